package dbschema

import (
	"time"

	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(TaxSession{})
	database.RegisterSchemaForAutoMigrate(Message{})
	database.RegisterSchemaForAutoMigrate(SessionDatum{})
}

// TaxSession represents the database schema for sessions
type TaxSession struct {
	ID           int       `gorm:"primaryKey;autoIncrement"`
	Title        string    `gorm:"type:text;not null"`
	Jurisdiction string    `gorm:"type:varchar(8);not null"`
	Currency     string    `gorm:"type:varchar(8);not null"`
	Status       string    `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (TaxSession) TableName() string {
	return "tax_sessions"
}

// NewSchemaTaxSession creates a database schema from a domain session
func NewSchemaTaxSession(s *taxsession.Session) *TaxSession {
	return &TaxSession{
		ID:           s.ID,
		Title:        s.Title,
		Jurisdiction: string(s.Jurisdiction),
		Currency:     string(s.Currency),
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// EtoD converts a schema session back to the domain representation
func (s *TaxSession) EtoD() *taxsession.Session {
	return &taxsession.Session{
		ID:           s.ID,
		Title:        s.Title,
		Jurisdiction: taxsession.Jurisdiction(s.Jurisdiction),
		Currency:     taxsession.Currency(s.Currency),
		Status:       taxsession.SessionStatus(s.Status),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
