package sessionrequests

import (
	"encoding/json"

	"taxthink-server/internal/domain/taxsession"
)

// CreateSessionRequest represents the request to start a session.
// Jurisdiction and currency default to us/usd when omitted.
type CreateSessionRequest struct {
	Title        string `json:"title" binding:"required"`
	Jurisdiction string `json:"jurisdiction" binding:"omitempty,oneof=us in"`
	Currency     string `json:"currency" binding:"omitempty,oneof=usd inr"`
}

// ToSession converts the request into an unsaved domain session
func (r *CreateSessionRequest) ToSession() *taxsession.Session {
	jurisdiction := taxsession.Jurisdiction(r.Jurisdiction)
	if jurisdiction == "" {
		jurisdiction = taxsession.JurisdictionUS
	}
	currency := taxsession.Currency(r.Currency)
	if currency == "" {
		currency = taxsession.CurrencyUSD
	}
	return taxsession.NewSession(r.Title, jurisdiction, currency)
}

// UpdateSessionRequest represents a partial session update. Absent fields
// are left unchanged.
type UpdateSessionRequest struct {
	Title        *string `json:"title,omitempty"`
	Jurisdiction *string `json:"jurisdiction,omitempty" binding:"omitempty,oneof=us in"`
	Currency     *string `json:"currency,omitempty" binding:"omitempty,oneof=usd inr"`
	Status       *string `json:"status,omitempty" binding:"omitempty,oneof=active completed"`
}

// ToSessionUpdate converts the request into a domain update
func (r *UpdateSessionRequest) ToSessionUpdate() taxsession.SessionUpdate {
	update := taxsession.SessionUpdate{Title: r.Title}
	if r.Jurisdiction != nil {
		jurisdiction := taxsession.Jurisdiction(*r.Jurisdiction)
		update.Jurisdiction = &jurisdiction
	}
	if r.Currency != nil {
		currency := taxsession.Currency(*r.Currency)
		update.Currency = &currency
	}
	if r.Status != nil {
		status := taxsession.SessionStatus(*r.Status)
		update.Status = &status
	}
	return update
}

// SendMessageRequest represents a user message posted to a session
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpsertSessionDatumRequest represents an extracted fact to store
type UpsertSessionDatumRequest struct {
	Category  string          `json:"category" binding:"required"`
	DataKey   string          `json:"dataKey" binding:"required"`
	DataValue json.RawMessage `json:"dataValue" binding:"required"`
}

// ToSessionDatum converts the request into an unsaved domain datum
func (r *UpsertSessionDatumRequest) ToSessionDatum(sessionID int) *taxsession.SessionDatum {
	return &taxsession.SessionDatum{
		SessionID: sessionID,
		Category:  r.Category,
		DataKey:   r.DataKey,
		DataValue: r.DataValue,
	}
}
