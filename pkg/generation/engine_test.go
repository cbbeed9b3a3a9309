package generation

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/pending"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

// fakeHandle scripts a token stream. If block is non-nil the stream pauses
// after delivering its tokens until the channel closes or the context ends.
type fakeHandle struct {
	mu      sync.Mutex
	tokens  []string
	err     error
	block   chan struct{}
	lastReq llm.Request
}

var _ llm.ModelHandle = (*fakeHandle)(nil)

func (f *fakeHandle) Provider() string { return "fake" }
func (f *fakeHandle) Model() string    { return "fake-model" }

func (f *fakeHandle) StreamCompletion(ctx context.Context, req llm.Request, handler llm.StreamHandler) (string, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()

	var b strings.Builder
	for _, token := range f.tokens {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		default:
		}
		handler.HandleToken(token)
		b.WriteString(token)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return b.String(), ctx.Err()
		}
	}
	if f.err != nil {
		return b.String(), f.err
	}
	handler.HandleDone()
	return b.String(), nil
}

func (f *fakeHandle) GenerateObject(_ context.Context, _, _ string, _ any) error {
	return errors.New("not a structured-output handle")
}

func (f *fakeHandle) request() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func tokenize(s string) []string {
	var tokens []string
	for len(s) > 0 {
		n := 7
		if n > len(s) {
			n = len(s)
		}
		tokens = append(tokens, s[:n])
		s = s[n:]
	}
	return tokens
}

func completion(message string, files ...skill.SkillFile) string {
	return wire.Encode(message, files)
}

func TestStartFromAnswersSettlesWithArtifact(t *testing.T) {
	ctx := context.Background()
	raw := completion("Here is your skill.", skill.SkillFile{
		Path:    "SKILL.md",
		Content: "# Website Monitor\n\nCheck https://example.com every hour.",
	})
	handle := &fakeHandle{tokens: tokenize(raw)}
	engine := NewEngine(handle)

	assert.Equal(t, StateIdle, engine.State())

	parsed, err := engine.StartFromAnswers(ctx,
		skill.CapabilityRequest{Description: "Monitor a website for changes", Complexity: skill.ComplexitySimple},
		[]skill.StructuredAnswer{skill.ChoiceAnswer("check_frequency", "Hourly")},
		map[string]string{"website_url": "https://example.com"},
	)
	require.NoError(t, err)

	assert.Equal(t, StateSettled, engine.State())
	assert.Equal(t, "Here is your skill.", parsed.Message)
	require.Len(t, parsed.Files, 1)
	assert.Equal(t, "SKILL.md", parsed.Files[0].Path)
	// Collected config values are embedded literally.
	assert.Contains(t, parsed.Files[0].Content, "https://example.com")

	transcript := engine.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Contains(t, transcript[0].Content, "Monitor a website for changes")
	assert.Contains(t, transcript[0].Content, "check_frequency: Hourly")
	assert.Equal(t, "assistant", transcript[1].Role)

	req := handle.request()
	assert.Contains(t, req.System, "https://example.com")
	assert.Contains(t, req.System, wire.Delimiter)
}

func TestSnapshotDuringStream(t *testing.T) {
	ctx := context.Background()
	raw := completion("Working on it.", skill.SkillFile{Path: "SKILL.md", Content: "# Draft"})
	block := make(chan struct{})
	handle := &fakeHandle{tokens: tokenize(raw), block: block}
	engine := NewEngine(handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	}()

	require.Eventually(t, func() bool {
		snap := engine.Snapshot()
		return snap.State == StateStreaming && snap.Raw == raw
	}, time.Second, 5*time.Millisecond)

	snap := engine.Snapshot()
	assert.Equal(t, "Working on it.", snap.Message)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "# Draft", snap.Files[0].Content)

	close(block)
	<-done
	assert.Equal(t, StateSettled, engine.State())
}

func TestSecondSubmissionWhileStreamingRejected(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	handle := &fakeHandle{tokens: []string{"partial"}, block: block}
	engine := NewEngine(handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	}()

	require.Eventually(t, func() bool {
		return engine.State() == StateStreaming
	}, time.Second, 5*time.Millisecond)

	_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "another skill"})
	assert.ErrorIs(t, err, ErrBusy)

	close(block)
	<-done
}

func TestStreamErrorBuffersPartialProgress(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	handle := &fakeHandle{
		tokens: []string{"chunk one ", "chunk two ", "chunk three"},
		err:    errors.New("provider connection reset"),
	}
	engine := NewEngine(handle, WithPendingBuffer(buf), WithDebounce(0))

	_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	require.Error(t, err)
	assert.Equal(t, StateSettled, engine.State())
	assert.Error(t, engine.Snapshot().Err)

	// The draft holds the last buffered partial and stays incomplete.
	draft, ok := buf.Load()
	require.True(t, ok)
	assert.Equal(t, "a skill", draft.Description)
	assert.Equal(t, "chunk one chunk two chunk three", draft.Spec)
	assert.False(t, draft.IsComplete)

	// Nothing settled, nothing to refine.
	assert.Empty(t, engine.Artifact())
	assert.Empty(t, engine.Transcript())
}

func TestSuccessfulStreamMarksDraftComplete(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	raw := completion("Done.", skill.SkillFile{Path: "SKILL.md", Content: "# Skill"})
	handle := &fakeHandle{tokens: tokenize(raw)}
	engine := NewEngine(handle, WithPendingBuffer(buf), WithDebounce(0))

	_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	require.NoError(t, err)

	draft, ok := buf.Load()
	require.True(t, ok)
	assert.Equal(t, raw, draft.Spec)
	assert.True(t, draft.IsComplete)
}

func TestRefineCarriesTranscriptAndArtifact(t *testing.T) {
	ctx := context.Background()
	first := completion("Here you go.", skill.SkillFile{Path: "SKILL.md", Content: "# Skill v1"})
	handle := &fakeHandle{tokens: tokenize(first)}
	engine := NewEngine(handle)

	_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "a changelog skill"})
	require.NoError(t, err)

	second := completion("Added error handling.", skill.SkillFile{Path: "SKILL.md", Content: "# Skill v2\n\nWith error handling."})
	handle.mu.Lock()
	handle.tokens = tokenize(second)
	handle.mu.Unlock()

	parsed, err := engine.Refine(ctx, "Add error handling")
	require.NoError(t, err)

	// Refinement mutates, never drops, the canonical file.
	require.NotNil(t, parsed.File("SKILL.md"))
	assert.Contains(t, parsed.File("SKILL.md").Content, "error handling")

	req := handle.request()
	// Full prior conversation plus the new feedback turn.
	require.Len(t, req.Turns, 3)
	assert.Equal(t, "assistant", req.Turns[1].Role)
	assert.Equal(t, first, req.Turns[1].Content)
	assert.Contains(t, req.Turns[2].Content, "Add error handling")
	// The system prompt carries the previous artifact for editing in place.
	assert.Contains(t, req.System, "# Skill v1")

	transcript := engine.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, second, engine.Artifact())
}

func TestRefineWithoutArtifact(t *testing.T) {
	engine := NewEngine(&fakeHandle{})
	_, err := engine.Refine(context.Background(), "make it better")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestRefineErrorKeepsSettledArtifact(t *testing.T) {
	ctx := context.Background()
	first := completion("Here.", skill.SkillFile{Path: "SKILL.md", Content: "# Skill v1"})
	handle := &fakeHandle{tokens: tokenize(first)}
	engine := NewEngine(handle)

	_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	require.NoError(t, err)

	handle.mu.Lock()
	handle.tokens = []string{"partial"}
	handle.err = errors.New("stream interrupted")
	handle.mu.Unlock()

	_, err = engine.Refine(ctx, "Add error handling")
	require.Error(t, err)

	// The failed turn does not mutate the last settled state.
	assert.Equal(t, first, engine.Artifact())
	assert.Len(t, engine.Transcript(), 2)
}

func TestCancelStopsStream(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	handle := &fakeHandle{tokens: []string{"delivered "}, block: block}
	engine := NewEngine(handle)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return engine.Snapshot().Raw == "delivered "
	}, time.Second, 5*time.Millisecond)

	engine.Cancel()
	err := <-done
	assert.ErrorIs(t, err, ErrCancelled)

	// Delivered tokens stay visible; state is settled.
	snap := engine.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.Equal(t, "delivered ", snap.Raw)

	// A fresh turn is allowed after cancellation.
	handle.mu.Lock()
	handle.block = nil
	handle.tokens = tokenize(completion("ok", skill.SkillFile{Path: "SKILL.md", Content: "x"}))
	handle.err = nil
	handle.mu.Unlock()
	_, err = engine.Start(ctx, skill.CapabilityRequest{Description: "a skill"})
	assert.NoError(t, err)
}

func TestEmptyDescriptionRejected(t *testing.T) {
	engine := NewEngine(&fakeHandle{})
	_, err := engine.Start(context.Background(), skill.CapabilityRequest{Description: "   "})
	assert.Error(t, err)
	assert.Equal(t, StateIdle, engine.State())
}
