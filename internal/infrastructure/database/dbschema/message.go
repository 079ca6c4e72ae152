package dbschema

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"taxthink-server/internal/domain/taxsession"
)

// Message represents the database schema for conversation messages.
// SessionID is indexed but deliberately not a foreign key; a message may
// reference a session id that was never created.
type Message struct {
	ID        int            `gorm:"primaryKey;autoIncrement"`
	SessionID int            `gorm:"index:idx_messages_session_created;not null"`
	Role      string         `gorm:"type:varchar(20);not null"`
	Content   string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index:idx_messages_session_created;not null"`
}

func (Message) TableName() string {
	return "messages"
}

// NewSchemaMessage creates a database schema from a domain message
func NewSchemaMessage(m *taxsession.Message) (*Message, error) {
	schema := &Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Metadata != nil {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, err
		}
		schema.Metadata = datatypes.JSON(raw)
	}
	return schema, nil
}

// EtoD converts a schema message back to the domain representation
func (m *Message) EtoD() (*taxsession.Message, error) {
	message := &taxsession.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      taxsession.MessageRole(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Metadata) > 0 && string(m.Metadata) != "null" {
		var metadata taxsession.MessageMetadata
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, err
		}
		message.Metadata = &metadata
	}
	return message, nil
}
