package taxsession

import (
	"encoding/json"
	"time"
)

// SessionDatum is one extracted fact about a session, keyed by the
// (SessionID, Category, DataKey) triple. Re-upserting the same triple
// replaces DataValue in place and keeps the original id and CreatedAt.
type SessionDatum struct {
	ID        int             `json:"id"`
	SessionID int             `json:"sessionId"`
	Category  string          `json:"category"`
	DataKey   string          `json:"dataKey"`
	DataValue json.RawMessage `json:"dataValue"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
