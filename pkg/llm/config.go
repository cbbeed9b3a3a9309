package llm

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// RetryConfig controls transient-error retries for one-shot structured
// calls. Streams are never retried; a failed stream surfaces to the caller
// and the whole turn is re-issued by the user.
type RetryConfig struct {
	Attempts     int `mapstructure:"attempts"`
	InitialDelay int `mapstructure:"initial_delay"` // milliseconds
	MaxDelay     int `mapstructure:"max_delay"`     // milliseconds
}

// DefaultRetryConfig is applied when no retry settings are configured.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 500,
	MaxDelay:     5000,
}

// Config holds provider credentials and model choices. A provider is
// considered configured when its API key is non-empty.
type Config struct {
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	GoogleAPIKey    string `mapstructure:"google_api_key"`

	AnthropicModel string `mapstructure:"anthropic_model"`
	OpenAIModel    string `mapstructure:"openai_model"`
	GoogleModel    string `mapstructure:"google_model"`

	MaxTokens int         `mapstructure:"max_tokens"`
	Retry     RetryConfig `mapstructure:"retry"`

	// Profiles are named partial configs selectable via the top-level
	// "profile" setting. Profile values overlay the base config.
	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

// GetConfigFromViper loads the LLM configuration via viper and fills in
// environment-variable credentials and defaults.
func GetConfigFromViper() (Config, error) {
	var config Config
	if err := viper.UnmarshalKey("llm", &config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal llm configuration")
	}

	if profile := viper.GetString("profile"); profile != "" && profile != "default" {
		settings, ok := config.Profiles[profile]
		if !ok {
			return config, errors.Errorf("profile %q is not defined under llm.profiles", profile)
		}
		if err := applyProfile(&config, settings); err != nil {
			return config, err
		}
	}

	if config.AnthropicAPIKey == "" {
		config.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.OpenAIAPIKey == "" {
		config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.GoogleAPIKey == "" {
		config.GoogleAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.Retry.Attempts == 0 {
		config.Retry = DefaultRetryConfig
	}

	return config, nil
}

// applyProfile overlays profile settings on top of the base config. Zero
// fields in the profile leave the base value intact.
func applyProfile(config *Config, settings map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}
	return nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
