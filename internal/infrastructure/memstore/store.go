package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/utils/platformerrors"
)

// Store is an in-process taxsession.Repository backed by maps. It is safe
// for concurrent use and keeps everything only for the process lifetime.
type Store struct {
	mu sync.Mutex

	sessions map[int]*taxsession.Session
	messages map[int]*taxsession.Message
	data     map[int]*taxsession.SessionDatum

	// dataIndex maps the (session, category, key) triple to the datum id
	// so upserts can find the surviving row.
	dataIndex map[string]int

	nextSessionID int
	nextMessageID int
	nextDatumID   int
}

var _ taxsession.Repository = (*Store)(nil)

// New creates an empty store. Ids for each record kind start at 1.
func New() *Store {
	return &Store{
		sessions:      make(map[int]*taxsession.Session),
		messages:      make(map[int]*taxsession.Message),
		data:          make(map[int]*taxsession.SessionDatum),
		dataIndex:     make(map[string]int),
		nextSessionID: 1,
		nextMessageID: 1,
		nextDatumID:   1,
	}
}

func datumKey(sessionID int, category, dataKey string) string {
	return fmt.Sprintf("%d|%s|%s", sessionID, category, dataKey)
}

// CreateSession stores a session and assigns its id and timestamps.
func (s *Store) CreateSession(_ context.Context, session *taxsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	session.ID = s.nextSessionID
	s.nextSessionID++
	session.CreatedAt = now
	session.UpdatedAt = now

	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

// GetSession returns a copy of the stored session.
func (s *Store) GetSession(ctx context.Context, id int) (*taxsession.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "session not found", nil, "ms-01")
	}
	session := *stored
	return &session, nil
}

// ListSessions returns copies of every session, most recently updated
// first.
func (s *Store) ListSessions(_ context.Context) ([]*taxsession.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*taxsession.Session, 0, len(s.sessions))
	for _, stored := range s.sessions {
		session := *stored
		sessions = append(sessions, &session)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// UpdateSession applies non-nil fields and refreshes UpdatedAt.
func (s *Store) UpdateSession(ctx context.Context, id int, updates taxsession.SessionUpdate) (*taxsession.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "session not found", nil, "ms-02")
	}

	if updates.Title != nil {
		stored.Title = *updates.Title
	}
	if updates.Jurisdiction != nil {
		stored.Jurisdiction = *updates.Jurisdiction
	}
	if updates.Currency != nil {
		stored.Currency = *updates.Currency
	}
	if updates.Status != nil {
		stored.Status = *updates.Status
	}
	stored.UpdatedAt = time.Now()

	session := *stored
	return &session, nil
}

// CreateMessage stores a message and assigns its id and timestamp. The
// referenced session is not checked for existence.
func (s *Store) CreateMessage(_ context.Context, message *taxsession.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message.ID = s.nextMessageID
	s.nextMessageID++
	message.CreatedAt = time.Now()

	stored := *message
	if message.Metadata != nil {
		metadata := *message.Metadata
		stored.Metadata = &metadata
	}
	s.messages[message.ID] = &stored
	return nil
}

// ListMessages returns copies of a session's messages oldest first. Ties
// on the creation timestamp fall back to insertion order.
func (s *Store) ListMessages(_ context.Context, sessionID int) ([]*taxsession.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]*taxsession.Message, 0)
	for _, stored := range s.messages {
		if stored.SessionID != sessionID {
			continue
		}
		message := *stored
		if stored.Metadata != nil {
			metadata := *stored.Metadata
			message.Metadata = &metadata
		}
		messages = append(messages, &message)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// UpsertSessionDatum inserts the datum or replaces the value stored under
// its key triple, keeping the original id and CreatedAt.
func (s *Store) UpsertSessionDatum(_ context.Context, datum *taxsession.SessionDatum) (*taxsession.SessionDatum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	key := datumKey(datum.SessionID, datum.Category, datum.DataKey)

	if id, ok := s.dataIndex[key]; ok {
		stored := s.data[id]
		stored.DataValue = append([]byte(nil), datum.DataValue...)
		stored.UpdatedAt = now

		result := *stored
		result.DataValue = append([]byte(nil), stored.DataValue...)
		return &result, nil
	}

	stored := &taxsession.SessionDatum{
		ID:        s.nextDatumID,
		SessionID: datum.SessionID,
		Category:  datum.Category,
		DataKey:   datum.DataKey,
		DataValue: append([]byte(nil), datum.DataValue...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextDatumID++
	s.data[stored.ID] = stored
	s.dataIndex[key] = stored.ID

	result := *stored
	result.DataValue = append([]byte(nil), stored.DataValue...)
	return &result, nil
}

// ListSessionData returns copies of a session's data, optionally filtered
// by category, in insertion order.
func (s *Store) ListSessionData(_ context.Context, sessionID int, category *string) ([]*taxsession.SessionDatum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]*taxsession.SessionDatum, 0)
	for _, stored := range s.data {
		if stored.SessionID != sessionID {
			continue
		}
		if category != nil && stored.Category != *category {
			continue
		}
		datum := *stored
		datum.DataValue = append([]byte(nil), stored.DataValue...)
		data = append(data, &datum)
	}
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].ID < data[j].ID
	})
	return data, nil
}
