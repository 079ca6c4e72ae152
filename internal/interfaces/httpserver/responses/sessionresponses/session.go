package sessionresponses

import (
	"taxthink-server/internal/domain/advisor"
	"taxthink-server/internal/domain/taxsession"
)

// CreateSessionResponse bundles a new session with the raw structured
// welcome reply. The welcome is also stored as the session's first
// assistant message, but the envelope carries the reply itself.
type CreateSessionResponse struct {
	Session        *taxsession.Session      `json:"session"`
	WelcomeMessage *advisor.StructuredReply `json:"welcomeMessage"`
}

// SendMessageResponse bundles both persisted turns of a message exchange
// with the raw structured reply.
type SendMessageResponse struct {
	UserMessage      *taxsession.Message      `json:"userMessage"`
	AssistantMessage *taxsession.Message      `json:"assistantMessage"`
	AIResponse       *advisor.StructuredReply `json:"aiResponse"`
}
