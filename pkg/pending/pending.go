// Package pending implements the durable staging area for in-flight
// generation. One well-known slot holds at most one draft per device; it
// survives reloads and authentication round-trips and is cleared once a real
// session record is confirmed saved. All writes are best-effort: a failed
// save is logged and swallowed, never surfaced.
package pending

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const slotFileName = "pending_session.json"

// DefaultPath returns the default slot location under the user's skillforge
// directory.
func DefaultPath() (string, error) {
	if basePath := os.Getenv("SKILLFORGE_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, slotFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillforge", slotFileName), nil
}

// Update is a partial PendingSession. Nil fields keep their previous value
// on save: streaming ticks only carry the fields that changed, and the
// earlier description/answers must not be clobbered.
type Update struct {
	Description *string
	Answers     []skill.StructuredAnswer
	ConfigVals  map[string]string
	TargetAgent *string
	Spec        *string
	IsComplete  *bool
}

// String returns a pointer for string update fields.
func String(s string) *string { return &s }

// Bool returns a pointer for bool update fields.
func Bool(b bool) *bool { return &b }

// Buffer is the single-slot draft store. It is single-writer per device;
// the mutex only guards against concurrent saves within one process.
type Buffer struct {
	path string
	mu   sync.Mutex
}

// NewBuffer creates a buffer backed by the file at path.
func NewBuffer(path string) *Buffer {
	return &Buffer{path: path}
}

// Save merges the update into the existing draft, creating it when absent.
// Storage failures are logged and swallowed (best-effort cache).
func (b *Buffer) Save(ctx context.Context, update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	draft, ok := b.load()
	if !ok {
		draft = skill.PendingSession{
			ID:        uuid.NewString(),
			CreatedAt: time.Now(),
		}
	}

	if update.Description != nil {
		draft.Description = *update.Description
	}
	if update.Answers != nil {
		draft.Answers = update.Answers
	}
	if update.ConfigVals != nil {
		draft.ConfigVals = update.ConfigVals
	}
	if update.TargetAgent != nil {
		draft.TargetAgent = *update.TargetAgent
	}
	if update.Spec != nil {
		draft.Spec = *update.Spec
	}
	if update.IsComplete != nil {
		draft.IsComplete = *update.IsComplete
	}
	draft.LastUpdated = time.Now()

	if err := b.write(draft); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to save pending session")
	}
}

// Load returns the current draft, if any.
func (b *Buffer) Load() (skill.PendingSession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

// Exists reports whether a draft is present.
func (b *Buffer) Exists() bool {
	_, ok := b.Load()
	return ok
}

// Clear removes the draft. Missing slots are not an error.
func (b *Buffer) Clear(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		logger.G(ctx).WithError(err).Warn("failed to clear pending session")
	}
}

func (b *Buffer) load() (skill.PendingSession, bool) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return skill.PendingSession{}, false
	}

	var draft skill.PendingSession
	if err := json.Unmarshal(data, &draft); err != nil {
		// A corrupt slot is treated as absent; the next save rewrites it.
		return skill.PendingSession{}, false
	}
	return draft, true
}

func (b *Buffer) write(draft skill.PendingSession) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create pending session directory")
	}

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal pending session")
	}

	// Atomic write: temp file then rename.
	tempPath := b.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary pending session file")
	}
	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename pending session file")
	}
	return nil
}
