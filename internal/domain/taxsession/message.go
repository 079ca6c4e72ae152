package taxsession

import "time"

// MessageRole is who authored a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageMetadata is the structured payload attached to assistant messages.
// User messages carry no metadata.
type MessageMetadata struct {
	ThinkingMode  string   `json:"thinkingMode,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	ActionItems   []string `json:"actionItems,omitempty"`
	KeyInsights   []string `json:"keyInsights,omitempty"`
	NextQuestions []string `json:"nextQuestions,omitempty"`
}

// Message is a single turn in a session. Messages are append-only; there is
// no update or delete.
type Message struct {
	ID        int              `json:"id"`
	SessionID int              `json:"sessionId"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
}
