package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModelNoProvider(t *testing.T) {
	_, err := SelectModel(Config{}, CapabilityGeneration)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = SelectModel(Config{}, CapabilityStructuredOutput)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestSelectModelGenerationPriority(t *testing.T) {
	all := Config{
		AnthropicAPIKey: "a",
		OpenAIAPIKey:    "o",
		GoogleAPIKey:    "g",
	}

	handle, err := SelectModel(all, CapabilityGeneration)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", handle.Provider())

	noAnthropic := all
	noAnthropic.AnthropicAPIKey = ""
	handle, err = SelectModel(noAnthropic, CapabilityGeneration)
	require.NoError(t, err)
	assert.Equal(t, "openai", handle.Provider())

	googleOnly := Config{GoogleAPIKey: "g"}
	handle, err = SelectModel(googleOnly, CapabilityGeneration)
	require.NoError(t, err)
	assert.Equal(t, "google", handle.Provider())
}

func TestSelectModelStructuredPriority(t *testing.T) {
	all := Config{
		AnthropicAPIKey: "a",
		OpenAIAPIKey:    "o",
		GoogleAPIKey:    "g",
	}

	handle, err := SelectModel(all, CapabilityStructuredOutput)
	require.NoError(t, err)
	assert.Equal(t, "openai", handle.Provider())

	anthropicOnly := Config{AnthropicAPIKey: "a"}
	handle, err = SelectModel(anthropicOnly, CapabilityStructuredOutput)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", handle.Provider())
}

func TestSelectModelDeterministic(t *testing.T) {
	config := Config{AnthropicAPIKey: "a", GoogleAPIKey: "g"}

	for range 10 {
		handle, err := SelectModel(config, CapabilityGeneration)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", handle.Provider())
	}
}

func TestDefaultModels(t *testing.T) {
	handle, err := SelectModel(Config{AnthropicAPIKey: "a"}, CapabilityGeneration)
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, handle.Model())

	handle, err = SelectModel(Config{OpenAIAPIKey: "o", OpenAIModel: "gpt-4.1"}, CapabilityGeneration)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", handle.Model())
}

func TestUnfenceJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                        `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"  {\"a\":1}  ":                  `{"a":1}`,
		"```json\n{\"a\":\"```x\"}\n```": "{\"a\":\"```x\"}",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, unfenceJSON(input))
	}
}
