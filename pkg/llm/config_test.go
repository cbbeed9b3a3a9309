package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyProfileOverlaysValues(t *testing.T) {
	config := Config{
		AnthropicAPIKey: "base-key",
		AnthropicModel:  "claude-sonnet-4-20250514",
		MaxTokens:       8192,
	}

	err := applyProfile(&config, map[string]any{
		"anthropic_model": "claude-opus-4-20250514",
		"max_tokens":      16384,
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4-20250514", config.AnthropicModel)
	assert.Equal(t, 16384, config.MaxTokens)
	// Settings absent from the profile keep their base values.
	assert.Equal(t, "base-key", config.AnthropicAPIKey)
}

func TestApplyProfileWeakTyping(t *testing.T) {
	config := Config{MaxTokens: 8192}

	err := applyProfile(&config, map[string]any{"max_tokens": "4096"})
	require.NoError(t, err)
	assert.Equal(t, 4096, config.MaxTokens)
}

func TestApplyProfileNestedRetry(t *testing.T) {
	config := Config{Retry: DefaultRetryConfig}

	err := applyProfile(&config, map[string]any{
		"retry": map[string]any{"attempts": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, config.Retry.Attempts)
	assert.Equal(t, DefaultRetryConfig.InitialDelay, config.Retry.InitialDelay)
}
