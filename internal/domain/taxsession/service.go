package taxsession

import (
	"context"

	"taxthink-server/internal/utils/platformerrors"
)

// Service handles business logic for sessions, messages, and session data
type Service struct {
	repo Repository
}

// NewService creates a new session service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateSession persists a new session and returns it with its assigned id
func (s *Service) CreateSession(ctx context.Context, session *Session) (*Session, error) {
	if session.Status == "" {
		session.Status = SessionStatusActive
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create session")
	}
	return session, nil
}

// GetSession retrieves one session by id
func (s *Service) GetSession(ctx context.Context, id int) (*Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}
	return session, nil
}

// ListSessions returns all sessions, most recently updated first
func (s *Service) ListSessions(ctx context.Context) ([]*Session, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list sessions")
	}
	return sessions, nil
}

// UpdateSession applies a partial update and returns the stored result
func (s *Service) UpdateSession(ctx context.Context, id int, updates SessionUpdate) (*Session, error) {
	session, err := s.repo.UpdateSession(ctx, id, updates)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update session")
	}
	return session, nil
}

// TouchSession refreshes a session's updatedAt without changing any field
func (s *Service) TouchSession(ctx context.Context, id int) (*Session, error) {
	session, err := s.repo.UpdateSession(ctx, id, SessionUpdate{})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to touch session")
	}
	return session, nil
}

// CreateMessage appends a message to a session's transcript
func (s *Service) CreateMessage(ctx context.Context, message *Message) (*Message, error) {
	if message.Role != MessageRoleUser && message.Role != MessageRoleAssistant {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message role", nil, "7f3c1a9e-2b4d-4e6f-8a0c-1d2e3f4a5b6c")
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create message")
	}
	return message, nil
}

// ListMessages returns a session's messages in chronological order
func (s *Service) ListMessages(ctx context.Context, sessionID int) ([]*Message, error) {
	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return messages, nil
}

// UpsertSessionDatum inserts or replaces the datum for its key triple
func (s *Service) UpsertSessionDatum(ctx context.Context, datum *SessionDatum) (*SessionDatum, error) {
	stored, err := s.repo.UpsertSessionDatum(ctx, datum)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert session datum")
	}
	return stored, nil
}

// ListSessionData returns a session's data, optionally filtered by category
func (s *Service) ListSessionData(ctx context.Context, sessionID int, category *string) ([]*SessionDatum, error) {
	data, err := s.repo.ListSessionData(ctx, sessionID, category)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list session data")
	}
	return data, nil
}
