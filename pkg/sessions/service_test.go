package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/pending"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func TestSaveResultClearsPendingBuffer(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	buf.Save(ctx, pending.Update{Description: pending.String("draft")})
	require.True(t, buf.Exists())

	service := NewService(newLocal(t), WithPendingBuffer(buf))
	session, err := service.SaveResult(ctx, "draft", "# Skill", []skill.GenerationTurn{
		{Role: "user", Content: "draft"},
		{Role: "assistant", Content: "# Skill"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	// The draft slot is released only once the record is durable.
	assert.False(t, buf.Exists())
}

func TestSaveResultFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	buf.Save(ctx, pending.Update{Description: pending.String("draft")})

	store := newSQLite(t, "alice")
	require.NoError(t, store.Close()) // Force store failures.

	service := NewService(store, WithPendingBuffer(buf))
	_, err := service.SaveResult(ctx, "draft", "# Skill", nil)
	assert.Error(t, err)
	assert.True(t, buf.Exists())
}

func TestPromotePendingCompleteDraft(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	buf.Save(ctx, pending.Update{
		Description: pending.String("a skill that posts to slack"),
		Spec:        pending.String("# Skill\n\nPost to slack."),
		IsComplete:  pending.Bool(true),
	})

	service := NewService(newLocal(t), WithPendingBuffer(buf))
	session, promoted, err := service.PromotePending(ctx)
	require.NoError(t, err)
	require.True(t, promoted)
	assert.Equal(t, "a skill that posts to slack", session.Description)
	assert.Equal(t, "# Skill\n\nPost to slack.", session.Spec)
	require.Len(t, session.Messages, 2)

	// The interrupted work is now durable and the slot is gone.
	assert.False(t, buf.Exists())
	got, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Spec, got.Spec)
}

func TestPromotePendingSkipsIncompleteDraft(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	buf.Save(ctx, pending.Update{
		Description: pending.String("half done"),
		Spec:        pending.String("partial toke"),
	})

	service := NewService(newLocal(t), WithPendingBuffer(buf))
	_, promoted, err := service.PromotePending(ctx)
	require.NoError(t, err)
	assert.False(t, promoted)

	// An unfinished draft is left for the caller to resume instead.
	draft, ok := service.PendingDraft()
	require.True(t, ok)
	assert.Equal(t, "half done", draft.Description)
}

func TestPromotePendingEmptySlot(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))

	service := NewService(newLocal(t), WithPendingBuffer(buf))
	_, promoted, err := service.PromotePending(ctx)
	require.NoError(t, err)
	assert.False(t, promoted)

	// No buffer attached at all behaves the same way.
	bare := NewService(newLocal(t))
	_, ok := bare.PendingDraft()
	assert.False(t, ok)
	_, promoted, err = bare.PromotePending(ctx)
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestDiscardPending(t *testing.T) {
	ctx := context.Background()
	buf := pending.NewBuffer(filepath.Join(t.TempDir(), "pending_session.json"))
	buf.Save(ctx, pending.Update{Description: pending.String("draft")})

	service := NewService(newLocal(t), WithPendingBuffer(buf))
	service.DiscardPending(ctx)
	assert.False(t, buf.Exists())

	// Discarding an empty slot is a no-op.
	service.DiscardPending(ctx)
	NewService(newLocal(t)).DiscardPending(ctx)
}

func TestUpdateResult(t *testing.T) {
	ctx := context.Background()
	service := NewService(newLocal(t))

	session, err := service.SaveResult(ctx, "a skill", "v1", []skill.GenerationTurn{
		{Role: "user", Content: "a skill"},
		{Role: "assistant", Content: "v1"},
	})
	require.NoError(t, err)

	updated, err := service.UpdateResult(ctx, session.ID, "v2", []skill.GenerationTurn{
		{Role: "user", Content: "a skill"},
		{Role: "assistant", Content: "v1"},
		{Role: "user", Content: "make it stricter"},
		{Role: "assistant", Content: "v2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Spec)
	assert.Len(t, updated.Messages, 4)

	got, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Spec)
}
