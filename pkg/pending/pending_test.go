package pending

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	return NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
}

func TestSaveCreatesDraft(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	assert.False(t, buf.Exists())

	buf.Save(ctx, Update{Description: String("a changelog skill")})

	draft, ok := buf.Load()
	require.True(t, ok)
	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, "a changelog skill", draft.Description)
	assert.False(t, draft.CreatedAt.IsZero())
	assert.False(t, draft.LastUpdated.IsZero())
}

func TestSaveMergesNotReplaces(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	buf.Save(ctx, Update{
		Description: String("a changelog skill"),
		Answers: []skill.StructuredAnswer{
			skill.ChoiceAnswer("q1", "Keep a Changelog format"),
		},
	})
	first, ok := buf.Load()
	require.True(t, ok)

	// A streaming tick only carries the evolving artifact.
	buf.Save(ctx, Update{Spec: String("# Changelog Skill\n\npartial...")})

	draft, ok := buf.Load()
	require.True(t, ok)
	assert.Equal(t, first.ID, draft.ID)
	assert.Equal(t, "a changelog skill", draft.Description)
	require.Len(t, draft.Answers, 1)
	assert.Equal(t, "q1", draft.Answers[0].QuestionID)
	assert.Equal(t, "# Changelog Skill\n\npartial...", draft.Spec)
	assert.Equal(t, first.CreatedAt.Unix(), draft.CreatedAt.Unix())
}

func TestSaveOverwritesProvidedFields(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	buf.Save(ctx, Update{Spec: String("v1"), IsComplete: Bool(false)})
	buf.Save(ctx, Update{Spec: String("v2"), IsComplete: Bool(true)})

	draft, ok := buf.Load()
	require.True(t, ok)
	assert.Equal(t, "v2", draft.Spec)
	assert.True(t, draft.IsComplete)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	buf.Save(ctx, Update{Description: String("something")})
	require.True(t, buf.Exists())

	buf.Clear(ctx)
	assert.False(t, buf.Exists())

	// Clearing an empty slot is fine.
	buf.Clear(ctx)
}

func TestCorruptSlotTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pending_session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	buf := NewBuffer(path)
	assert.False(t, buf.Exists())

	// The next save rewrites the slot from scratch.
	buf.Save(ctx, Update{Description: String("fresh")})
	draft, ok := buf.Load()
	require.True(t, ok)
	assert.Equal(t, "fresh", draft.Description)
}

func TestSaveErrorSwallowed(t *testing.T) {
	ctx := context.Background()
	// Parent path is a file, so MkdirAll fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	buf := NewBuffer(filepath.Join(blocker, "pending_session.json"))
	buf.Save(ctx, Update{Description: String("doomed")})
	assert.False(t, buf.Exists())
}
