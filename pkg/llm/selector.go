package llm

import (
	"github.com/pkg/errors"
)

// ErrNoProvider is returned when no configured provider can serve the
// requested capability. This is a configuration error: it is fatal to the
// request and is never retried.
var ErrNoProvider = errors.New("no provider available")

// Priority orders are fixed. Generation prefers Anthropic for long-form
// instruction writing; structured output prefers OpenAI, whose JSON-schema
// response mode is the strictest of the three.
var (
	generationPriority = []string{"anthropic", "openai", "google"}
	structuredPriority = []string{"openai", "google", "anthropic"}
)

// SelectModel deterministically picks one backend for the given capability
// based purely on which provider credentials are configured. No randomness,
// no load balancing: the first configured provider in the capability's
// priority order wins.
func SelectModel(config Config, capability Capability) (ModelHandle, error) {
	order := generationPriority
	if capability == CapabilityStructuredOutput {
		order = structuredPriority
	}

	for _, provider := range order {
		switch provider {
		case "anthropic":
			if config.AnthropicAPIKey != "" {
				return newAnthropicHandle(config), nil
			}
		case "openai":
			if config.OpenAIAPIKey != "" {
				return newOpenAIHandle(config), nil
			}
		case "google":
			if config.GoogleAPIKey != "" {
				return newGoogleHandle(config), nil
			}
		}
	}

	return nil, errors.Wrapf(ErrNoProvider, "capability %s", capability)
}
