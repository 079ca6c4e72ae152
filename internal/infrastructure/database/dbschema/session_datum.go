package dbschema

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"taxthink-server/internal/domain/taxsession"
)

// SessionDatum represents the database schema for extracted session facts.
// The (SessionID, Category, DataKey) triple is unique; upserts replace
// DataValue in place.
type SessionDatum struct {
	ID        int            `gorm:"primaryKey;autoIncrement"`
	SessionID int            `gorm:"uniqueIndex:idx_session_data_key;not null"`
	Category  string         `gorm:"type:varchar(100);uniqueIndex:idx_session_data_key;not null"`
	DataKey   string         `gorm:"type:varchar(200);uniqueIndex:idx_session_data_key;not null"`
	DataValue datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (SessionDatum) TableName() string {
	return "session_data"
}

// NewSchemaSessionDatum creates a database schema from a domain datum
func NewSchemaSessionDatum(d *taxsession.SessionDatum) *SessionDatum {
	return &SessionDatum{
		ID:        d.ID,
		SessionID: d.SessionID,
		Category:  d.Category,
		DataKey:   d.DataKey,
		DataValue: datatypes.JSON(d.DataValue),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// EtoD converts a schema datum back to the domain representation
func (d *SessionDatum) EtoD() *taxsession.SessionDatum {
	return &taxsession.SessionDatum{
		ID:        d.ID,
		SessionID: d.SessionID,
		Category:  d.Category,
		DataKey:   d.DataKey,
		DataValue: json.RawMessage(d.DataValue),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
