package sessions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const localFileName = "sessions.json"

// LocalStore implements Store with a single JSON file holding all sessions.
// It is the anonymous fallback; no identity is attached to its records.
type LocalStore struct {
	path string
	mu   sync.Mutex
}

// NewLocalStore creates a session store under basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create sessions directory")
	}
	return &LocalStore{path: filepath.Join(basePath, localFileName)}, nil
}

// List returns all sessions newest-first by update time.
func (s *LocalStore) List(_ context.Context) ([]skill.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// Get returns the session with the given id.
func (s *LocalStore) Get(_ context.Context, id string) (skill.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return skill.Session{}, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return skill.Session{}, errors.Wrapf(ErrNotFound, "id %s", id)
}

// Create stores a new session, assigning an id and timestamps when unset.
func (s *LocalStore) Create(_ context.Context, session skill.Session) (skill.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return skill.Session{}, err
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Title == "" {
		session.Title = skill.DeriveTitle(session.Description)
	}

	for _, record := range records {
		if record.ID == session.ID {
			return skill.Session{}, errors.Errorf("session already exists: %s", session.ID)
		}
	}

	records = append(records, session)
	if err := s.write(records); err != nil {
		return skill.Session{}, err
	}
	return session, nil
}

// Update replaces an existing session record.
func (s *LocalStore) Update(_ context.Context, session skill.Session) (skill.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return skill.Session{}, err
	}

	for i, record := range records {
		if record.ID == session.ID {
			session.CreatedAt = record.CreatedAt
			session.UpdatedAt = time.Now()
			records[i] = session
			if err := s.write(records); err != nil {
				return skill.Session{}, err
			}
			return session, nil
		}
	}
	return skill.Session{}, errors.Wrapf(ErrNotFound, "id %s", session.ID)
}

// Delete removes a session.
func (s *LocalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	for i, record := range records {
		if record.ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.write(records)
		}
	}
	return errors.Wrapf(ErrNotFound, "id %s", id)
}

// Close is a no-op for the file-backed store.
func (s *LocalStore) Close() error { return nil }

func (s *LocalStore) read() ([]skill.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read sessions file")
	}

	var records []skill.Session
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal sessions file")
	}
	return records, nil
}

func (s *LocalStore) write(records []skill.Session) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal sessions")
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary sessions file")
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary sessions file")
	}
	return nil
}
