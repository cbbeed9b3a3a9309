// Package llm provides a provider-agnostic interface for the two model
// capabilities the pipeline needs: token-stream text generation and
// structured JSON object generation. A fixed priority order over the
// configured provider credentials picks the backend for each capability;
// there is no load balancing and no fallback at call time.
package llm

import (
	"context"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Capability enumerates what a selected backend is asked to do.
type Capability string

const (
	// CapabilityGeneration is streaming text completion.
	CapabilityGeneration Capability = "generation"
	// CapabilityStructuredOutput is one-shot JSON object generation.
	CapabilityStructuredOutput Capability = "structured_output"
)

// StreamHandler receives tokens as they arrive from a generation stream.
type StreamHandler interface {
	HandleToken(token string)
	HandleDone()
}

// StreamHandlerFunc adapts a function to the StreamHandler interface.
type StreamHandlerFunc func(token string)

func (f StreamHandlerFunc) HandleToken(token string) { f(token) }
func (f StreamHandlerFunc) HandleDone()              {}

// Request is a single completion request: a system instruction plus the
// ordered conversation turns.
type Request struct {
	System    string
	Turns     []skill.GenerationTurn
	MaxTokens int
}

// ModelHandle is one selected backend bound to a concrete model.
type ModelHandle interface {
	// Provider returns the provider name ("anthropic", "openai", "google").
	Provider() string
	// Model returns the concrete model identifier.
	Model() string
	// StreamCompletion issues one token-stream request, delivering tokens to
	// handler in arrival order, and returns the full accumulated text.
	StreamCompletion(ctx context.Context, req Request, handler StreamHandler) (string, error)
	// GenerateObject issues one structured-output request and unmarshals the
	// model's JSON response into out.
	GenerateObject(ctx context.Context, system, prompt string, out any) error
}
