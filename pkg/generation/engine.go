// Package generation implements the conversational engine that turns a
// capability request into a streamed skill package. An engine owns one
// conversation: it issues at most one provider stream at a time, accumulates
// tokens into a growing completion, and settles each turn into an artifact
// that later refinement turns edit rather than replace.
package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/pending"
	"github.com/jingkaihe/skillforge/pkg/sysprompt"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

// State is the lifecycle phase of the engine's conversation.
type State string

const (
	// StateIdle means no turn has been submitted yet.
	StateIdle State = "idle"
	// StateStreaming means a provider stream is outstanding.
	StateStreaming State = "streaming"
	// StateSettled means the last turn finished, successfully or not.
	StateSettled State = "settled"
)

var (
	// ErrBusy is returned when a turn is submitted while a stream is
	// outstanding. One stream at a time per conversation.
	ErrBusy = errors.New("a generation stream is already in progress")
	// ErrCancelled is the settled error of a cancelled turn.
	ErrCancelled = errors.New("generation cancelled")
	// ErrNoArtifact is returned when refinement is requested before any
	// turn has settled successfully.
	ErrNoArtifact = errors.New("no generated skill to refine")
)

// defaultDebounce limits how often streaming progress is flushed to the
// pending buffer.
const defaultDebounce = 500 * time.Millisecond

// Snapshot is a point-in-time view of the conversation, safe to take while
// a stream is running. Message and Files reflect the delimiter split of
// whatever has arrived so far.
type Snapshot struct {
	State   State
	Err     error
	Raw     string
	Message string
	Files   []skill.SkillFile
}

// Option configures an Engine.
type Option func(*Engine)

// WithPendingBuffer attaches the draft buffer; streaming progress is flushed
// into it on a debounce interval so a crash mid-stream loses little work.
func WithPendingBuffer(buffer *pending.Buffer) Option {
	return func(e *Engine) {
		e.buffer = buffer
	}
}

// WithDebounce overrides the pending-buffer flush interval.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithMaxTokens caps the provider completion length per turn.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// WithObserver registers a callback invoked for every accepted token, in
// arrival order. Used by streaming surfaces that relay tokens as they come.
func WithObserver(fn func(token string)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// Engine is the per-conversation generation state machine.
type Engine struct {
	handle    llm.ModelHandle
	buffer    *pending.Buffer
	debounce  time.Duration
	maxTokens int
	observer  func(token string)

	mu           sync.Mutex
	state        State
	raw          string
	err          error
	stop         bool
	cancelStream context.CancelFunc
	lastFlush    time.Time

	request    skill.CapabilityRequest
	configVals map[string]string
	transcript []skill.GenerationTurn
	artifact   string // Raw text of the last successfully settled turn
}

// NewEngine creates an engine bound to a generation-capable model handle.
func NewEngine(handle llm.ModelHandle, opts ...Option) *Engine {
	e := &Engine{
		handle:   handle,
		debounce: defaultDebounce,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the progressive view of the current (or last) turn.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	parsed := wire.Parse(e.raw)
	return Snapshot{
		State:   e.state,
		Err:     e.err,
		Raw:     e.raw,
		Message: wire.Message(e.raw),
		Files:   parsed.Files,
	}
}

// Transcript returns a copy of the settled conversation turns.
func (e *Engine) Transcript() []skill.GenerationTurn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]skill.GenerationTurn(nil), e.transcript...)
}

// Artifact returns the raw text of the last successfully settled turn.
func (e *Engine) Artifact() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.artifact
}

// Cancel requests cancellation of the in-flight stream. Tokens already
// delivered stay visible; nothing mutates after the flag is observed.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStreaming {
		return
	}
	e.stop = true
	if e.cancelStream != nil {
		e.cancelStream()
	}
}

// Start runs the initial turn from just the free-text description.
func (e *Engine) Start(ctx context.Context, request skill.CapabilityRequest) (skill.ParsedResponse, error) {
	return e.StartFromAnswers(ctx, request, nil, nil)
}

// StartFromAnswers runs the initial turn from the description plus the
// clarification answers and collected configuration values.
func (e *Engine) StartFromAnswers(ctx context.Context, request skill.CapabilityRequest, answers []skill.StructuredAnswer, configVals map[string]string) (skill.ParsedResponse, error) {
	request = request.Normalize()
	if strings.TrimSpace(request.Description) == "" {
		return skill.ParsedResponse{}, errors.New("description is required")
	}

	if err := e.begin(); err != nil {
		return skill.ParsedResponse{}, err
	}

	e.mu.Lock()
	e.request = request
	e.configVals = configVals
	e.transcript = nil
	e.artifact = ""
	e.mu.Unlock()

	if e.buffer != nil {
		e.buffer.Save(ctx, pending.Update{
			Description: pending.String(request.Description),
			Answers:     answers,
			ConfigVals:  configVals,
			TargetAgent: pending.String(request.TargetAgent),
			IsComplete:  pending.Bool(false),
		})
	}

	system := sysprompt.GenerationPrompt(sysprompt.GenerationParams{
		Complexity:   request.Complexity,
		TargetAgent:  request.TargetAgent,
		ConfigValues: configVals,
	})
	userTurn := skill.GenerationTurn{
		Role:    "user",
		Content: initialUserContent(request.Description, answers),
	}

	return e.run(ctx, system, []skill.GenerationTurn{userTurn})
}

// Refine runs a follow-up turn. The request carries the full prior
// transcript and the last settled artifact, so the model edits the existing
// package instead of starting over.
func (e *Engine) Refine(ctx context.Context, feedback string) (skill.ParsedResponse, error) {
	if strings.TrimSpace(feedback) == "" {
		return skill.ParsedResponse{}, errors.New("feedback is required")
	}

	e.mu.Lock()
	if e.artifact == "" {
		e.mu.Unlock()
		return skill.ParsedResponse{}, ErrNoArtifact
	}
	request := e.request
	configVals := e.configVals
	artifact := e.artifact
	prior := append([]skill.GenerationTurn(nil), e.transcript...)
	e.mu.Unlock()

	if err := e.begin(); err != nil {
		return skill.ParsedResponse{}, err
	}

	system := sysprompt.GenerationPrompt(sysprompt.GenerationParams{
		Complexity:      request.Complexity,
		TargetAgent:     request.TargetAgent,
		ConfigValues:    configVals,
		CurrentArtifact: artifact,
	})
	turns := append(prior, skill.GenerationTurn{Role: "user", Content: sysprompt.UntrustedInput(feedback)})

	return e.run(ctx, system, turns)
}

// begin transitions idle/settled -> streaming, rejecting concurrent turns.
func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStreaming {
		return ErrBusy
	}
	e.state = StateStreaming
	e.raw = ""
	e.err = nil
	e.stop = false
	e.lastFlush = time.Time{}
	return nil
}

// run issues the stream and settles the turn.
func (e *Engine) run(ctx context.Context, system string, turns []skill.GenerationTurn) (skill.ParsedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "generation.turn")
	defer span.End()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancelStream = cancel
	e.mu.Unlock()

	handler := llm.StreamHandlerFunc(func(token string) {
		e.handleToken(ctx, token)
	})

	log := logger.G(ctx).WithField("provider", e.handle.Provider()).WithField("model", e.handle.Model())
	log.Debug("starting generation stream")

	_, err := e.handle.StreamCompletion(streamCtx, llm.Request{
		System:    system,
		Turns:     turns,
		MaxTokens: e.maxTokens,
	}, handler)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelStream = nil
	e.state = StateSettled

	if e.stop {
		e.err = ErrCancelled
		log.Info("generation cancelled")
		return skill.ParsedResponse{}, ErrCancelled
	}
	if err != nil {
		// Previously settled artifact and transcript stay untouched; the
		// caller may retry the whole turn.
		e.err = errors.Wrap(err, "generation stream failed")
		log.WithError(err).Error("generation stream failed")
		return skill.ParsedResponse{}, e.err
	}

	raw := e.raw
	for _, issue := range wire.Validate(raw) {
		log.WithField("issue", issue).Warn("output contract violation")
	}

	parsed := wire.Parse(raw)
	e.transcript = append(append([]skill.GenerationTurn(nil), turns...), skill.GenerationTurn{Role: "assistant", Content: raw})
	e.artifact = raw

	if e.buffer != nil {
		e.buffer.Save(ctx, pending.Update{
			Spec:       pending.String(raw),
			IsComplete: pending.Bool(true),
		})
	}

	log.WithField("files", len(parsed.Files)).Info("generation settled")
	return parsed, nil
}

// handleToken appends a token and flushes debounced progress to the
// pending buffer.
func (e *Engine) handleToken(ctx context.Context, token string) {
	e.mu.Lock()
	if e.stop {
		e.mu.Unlock()
		return
	}
	e.raw += token

	flush := e.buffer != nil && time.Since(e.lastFlush) >= e.debounce
	var raw string
	if flush {
		e.lastFlush = time.Now()
		raw = e.raw
	}
	e.mu.Unlock()

	if e.observer != nil {
		e.observer(token)
	}
	if flush {
		e.buffer.Save(ctx, pending.Update{
			Spec:       pending.String(raw),
			IsComplete: pending.Bool(false),
		})
	}
}

// Restore seeds the engine with a previously settled conversation so a
// stateless caller (the HTTP surface, or session reopening) can continue it
// with refinement turns.
func (e *Engine) Restore(request skill.CapabilityRequest, configVals map[string]string, transcript []skill.GenerationTurn, artifact string) error {
	request = request.Normalize()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStreaming {
		return ErrBusy
	}
	e.state = StateSettled
	e.request = request
	e.configVals = configVals
	e.transcript = append([]skill.GenerationTurn(nil), transcript...)
	e.artifact = artifact
	e.raw = artifact
	e.err = nil
	return nil
}

// initialUserContent renders the first user turn: the untrusted description
// plus the structured clarification answers, in question order.
func initialUserContent(description string, answers []skill.StructuredAnswer) string {
	content := sysprompt.UntrustedInput(description)
	if len(answers) == 0 {
		return content
	}

	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\n## CLARIFICATION ANSWERS\n")
	for _, answer := range answers {
		fmt.Fprintf(&b, "- %s: %s\n", answer.QuestionID, answer.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}
