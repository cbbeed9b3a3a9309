package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func TestMigrateLocal(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	dst := newSQLite(t, "alice")

	first, err := local.Create(ctx, skill.Session{Description: "first skill"})
	require.NoError(t, err)
	second, err := local.Create(ctx, skill.Session{Description: "second skill"})
	require.NoError(t, err)

	result, err := MigrateLocal(ctx, local, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Migrated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// IDs survive the move.
	got, err := dst.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first skill", got.Description)
	_, err = dst.Get(ctx, second.ID)
	require.NoError(t, err)

	// The local slot is drained.
	remaining, err := local.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMigrateLocalIdempotent(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	dst := newSQLite(t, "alice")

	session, err := local.Create(ctx, skill.Session{Description: "already there"})
	require.NoError(t, err)
	_, err = dst.Create(ctx, session)
	require.NoError(t, err)

	result, err := MigrateLocal(ctx, local, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Migrated)
	assert.Equal(t, 1, result.Skipped)

	sessions, err := dst.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestMigrateLocalEmpty(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	dst := newSQLite(t, "alice")

	result, err := MigrateLocal(ctx, local, dst)
	require.NoError(t, err)
	assert.Zero(t, result.Migrated)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
}
