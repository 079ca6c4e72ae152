package taxsession

import (
	"context"
	"time"
)

// Jurisdiction selects which tax system the assistant reasons about.
type Jurisdiction string

const (
	JurisdictionUS Jurisdiction = "us"
	JurisdictionIN Jurisdiction = "in"
)

// Currency is the display currency tied to a session.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyINR Currency = "inr"
)

// SessionStatus tracks the lifecycle of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is one tax-thinking conversation. Ids are assigned by the store,
// unique and monotonically increasing. UpdatedAt is refreshed on every
// update and is never earlier than CreatedAt.
type Session struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Jurisdiction Jurisdiction  `json:"jurisdiction"`
	Currency     Currency      `json:"currency"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// SessionUpdate carries the fields a PATCH may change. Nil fields are left
// untouched; UpdatedAt is refreshed even when every field is nil.
type SessionUpdate struct {
	Title        *string
	Jurisdiction *Jurisdiction
	Currency     *Currency
	Status       *SessionStatus
}

// Repository is the persistence contract for sessions, messages, and
// session data. Implementations: the in-process memory store and the
// gorm/PostgreSQL repository.
//
// CreateMessage and UpsertSessionDatum deliberately do not check that the
// referenced session exists; ownership is referential, not enforced.
type Repository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id int) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, id int, updates SessionUpdate) (*Session, error)

	CreateMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, sessionID int) ([]*Message, error)

	UpsertSessionDatum(ctx context.Context, datum *SessionDatum) (*SessionDatum, error)
	ListSessionData(ctx context.Context, sessionID int, category *string) ([]*SessionDatum, error)
}

// NewSession builds an unsaved session with the default active status.
func NewSession(title string, jurisdiction Jurisdiction, currency Currency) *Session {
	return &Session{
		Title:        title,
		Jurisdiction: jurisdiction,
		Currency:     currency,
		Status:       SessionStatusActive,
	}
}
