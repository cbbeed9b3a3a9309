package sessions

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/pending"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Service provides high-level session operations over a Store.
type Service struct {
	store  Store
	buffer *pending.Buffer // Optional; cleared once a result is saved
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPendingBuffer attaches the draft buffer so it can be cleared once a
// session record is confirmed saved.
func WithPendingBuffer(buffer *pending.Buffer) ServiceOption {
	return func(s *Service) {
		s.buffer = buffer
	}
}

// NewService creates a session service.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSessions returns all sessions, newest-first.
func (s *Service) ListSessions(ctx context.Context) ([]skill.Session, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	logger.G(ctx).WithField("count", len(sessions)).Debug("listed sessions")
	return sessions, nil
}

// GetSession returns a single session.
func (s *Service) GetSession(ctx context.Context, id string) (skill.Session, error) {
	return s.store.Get(ctx, id)
}

// SaveResult persists a settled generation as a session and clears the
// draft buffer. The buffer is cleared only after the store confirms the
// write; a failed save keeps the draft recoverable.
func (s *Service) SaveResult(ctx context.Context, description, spec string, messages []skill.GenerationTurn) (skill.Session, error) {
	session, err := s.store.Create(ctx, skill.Session{
		Description: description,
		Spec:        spec,
		Messages:    messages,
	})
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to save session")
	}

	if s.buffer != nil {
		s.buffer.Clear(ctx)
	}

	logger.G(ctx).WithField("id", session.ID).WithField("title", session.Title).Info("saved session")
	return session, nil
}

// PendingDraft returns the buffered draft, if a buffer is attached and a
// draft exists.
func (s *Service) PendingDraft() (skill.PendingSession, bool) {
	if s.buffer == nil {
		return skill.PendingSession{}, false
	}
	return s.buffer.Load()
}

// PromotePending turns a complete buffered draft into a durable session.
// The slot is cleared by SaveResult once the store confirms the write;
// promoted is false when no complete draft exists.
func (s *Service) PromotePending(ctx context.Context) (skill.Session, bool, error) {
	draft, ok := s.PendingDraft()
	if !ok || !draft.IsComplete || draft.Spec == "" {
		return skill.Session{}, false, nil
	}

	session, err := s.SaveResult(ctx, draft.Description, draft.Spec, []skill.GenerationTurn{
		{Role: "user", Content: draft.Description},
		{Role: "assistant", Content: draft.Spec},
	})
	if err != nil {
		return skill.Session{}, false, err
	}
	logger.G(ctx).WithField("id", session.ID).Info("promoted pending draft to session")
	return session, true, nil
}

// DiscardPending drops the buffered draft.
func (s *Service) DiscardPending(ctx context.Context) {
	if s.buffer != nil {
		s.buffer.Clear(ctx)
	}
}

// UpdateResult replaces a session's artifact and transcript after a
// refinement turn settles.
func (s *Service) UpdateResult(ctx context.Context, id, spec string, messages []skill.GenerationTurn) (skill.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return skill.Session{}, err
	}
	session.Spec = spec
	session.Messages = messages
	return s.store.Update(ctx, session)
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.G(ctx).WithField("id", id).Info("deleted session")
	return nil
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
