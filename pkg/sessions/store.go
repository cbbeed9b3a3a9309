// Package sessions provides durable storage for completed generation
// sessions. Anonymous usage is backed by a local JSON slot; authenticated
// usage moves to a per-identity SQLite database, with a one-shot migration
// of local history on login.
package sessions

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// ErrNotFound is returned when a session id has no record.
var ErrNotFound = errors.New("session not found")

// Store defines the interface for session persistence. List returns
// sessions newest-first by update time.
type Store interface {
	List(ctx context.Context) ([]skill.Session, error)
	Get(ctx context.Context, id string) (skill.Session, error)
	Create(ctx context.Context, session skill.Session) (skill.Session, error)
	Update(ctx context.Context, session skill.Session) (skill.Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config holds configuration for the session store.
type Config struct {
	BasePath string // Base storage path
	UserID   string // Non-empty selects the identity-backed store
}

// GetDefaultBasePath returns the skillforge storage directory.
func GetDefaultBasePath() (string, error) {
	if basePath := os.Getenv("SKILLFORGE_BASE_PATH"); basePath != "" {
		return basePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillforge"), nil
}

// GetStore returns the store matching the config: the SQLite store when an
// identity is present, the local JSON store otherwise.
func GetStore(ctx context.Context, config Config) (Store, error) {
	if config.BasePath == "" {
		basePath, err := GetDefaultBasePath()
		if err != nil {
			return nil, err
		}
		config.BasePath = basePath
	}

	if config.UserID != "" {
		return NewSQLiteStore(ctx, filepath.Join(config.BasePath, "sessions.db"), config.UserID)
	}
	return NewLocalStore(config.BasePath)
}
