package sessionhandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taxthink-server/internal/domain/advisor"
	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/metrics"
	"taxthink-server/internal/interfaces/httpserver/requests/sessionrequests"
	"taxthink-server/internal/interfaces/httpserver/responses"
	"taxthink-server/internal/interfaces/httpserver/responses/sessionresponses"
	"taxthink-server/internal/utils/functional"
	"taxthink-server/internal/utils/platformerrors"
)

// SessionHandler handles session, message, and session-data HTTP requests.
type SessionHandler struct {
	sessions          *taxsession.Service
	advisor           *advisor.Service
	generationTimeout time.Duration
	logger            zerolog.Logger
}

// NewSessionHandler constructs a new handler instance.
func NewSessionHandler(sessions *taxsession.Service, advisorService *advisor.Service, generationTimeout time.Duration, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:          sessions,
		advisor:           advisorService,
		generationTimeout: generationTimeout,
		logger:            logger,
	}
}

// CreateSession handles POST /api/sessions. It persists the session, then
// generates and stores the welcome message as the first assistant turn.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req sessionrequests.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid session payload", "3a5c7e9b-1d2f-4a6c-8e0b-2d4f6a8c0e2b")
		return
	}

	ctx := c.Request.Context()
	session, err := h.sessions.CreateSession(ctx, req.ToSession())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create session")
		responses.HandleError(c, err, "failed to create session")
		return
	}

	welcome := h.advisor.WelcomeMessage(session.Jurisdiction, session.Currency)

	// The stored welcome metadata intentionally omits the follow-up
	// questions; they only surface in the response envelope.
	welcomeMessage := &taxsession.Message{
		SessionID: session.ID,
		Role:      taxsession.MessageRoleAssistant,
		Content:   welcome.Content,
		Metadata: &taxsession.MessageMetadata{
			ThinkingMode: welcome.ThinkingMode,
			Categories:   welcome.Categories,
			ActionItems:  welcome.ActionItems,
			KeyInsights:  welcome.KeyInsights,
		},
	}
	if _, err := h.sessions.CreateMessage(ctx, welcomeMessage); err != nil {
		h.logger.Error().Err(err).Int("session_id", session.ID).Msg("failed to store welcome message")
		responses.HandleError(c, err, "failed to create session")
		return
	}

	c.JSON(http.StatusOK, sessionresponses.CreateSessionResponse{
		Session:        session,
		WelcomeMessage: welcome,
	})
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list sessions")
		responses.HandleError(c, err, "failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		responses.HandleError(c, err, "session not found")
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateSession handles PATCH /api/sessions/:id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req sessionrequests.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid update payload", "5b7d9f1a-3c4e-4b8d-0f2a-4e6c8a0b2d4f")
		return
	}

	session, err := h.sessions.UpdateSession(c.Request.Context(), sessionID, req.ToSessionUpdate())
	if err != nil {
		responses.HandleError(c, err, "failed to update session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListMessages handles GET /api/sessions/:id/messages
func (h *SessionHandler) ListMessages(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	messages, err := h.sessions.ListMessages(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to list messages")
		responses.HandleError(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage handles POST /api/sessions/:id/messages. It persists the
// user turn, generates the assistant reply from the trailing conversation
// history, persists it, and touches the session.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req sessionrequests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid message payload", "7d9f1b3c-5e6a-4c0d-2a4b-6f8e0c2d4a6b")
		return
	}

	ctx := c.Request.Context()
	session, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		responses.HandleError(c, err, "session not found")
		return
	}

	userMessage := &taxsession.Message{
		SessionID: sessionID,
		Role:      taxsession.MessageRoleUser,
		Content:   req.Content,
	}
	if _, err := h.sessions.CreateMessage(ctx, userMessage); err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to store user message")
		responses.HandleError(c, err, "failed to process message")
		return
	}

	stored, err := h.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to load conversation history")
		responses.HandleError(c, err, "failed to process message")
		return
	}
	history := functional.Map(stored, func(message *taxsession.Message) advisor.Turn {
		return advisor.Turn{Role: message.Role, Content: message.Content}
	})

	generationCtx, cancel := context.WithTimeout(ctx, h.generationTimeout)
	defer cancel()

	start := time.Now()
	reply, err := h.advisor.GenerateResponse(generationCtx, session.Jurisdiction, session.Currency, req.Content, history)
	metrics.RecordGeneration(string(session.Jurisdiction), generationStatus(err), time.Since(start).Seconds())
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to generate response")
		responses.HandleError(c, err, "failed to process message")
		return
	}

	assistantMessage := &taxsession.Message{
		SessionID: sessionID,
		Role:      taxsession.MessageRoleAssistant,
		Content:   reply.Content,
		Metadata: &taxsession.MessageMetadata{
			ThinkingMode:  reply.ThinkingMode,
			Categories:    reply.Categories,
			ActionItems:   reply.ActionItems,
			KeyInsights:   reply.KeyInsights,
			NextQuestions: reply.NextQuestions,
		},
	}
	if _, err := h.sessions.CreateMessage(ctx, assistantMessage); err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to store assistant message")
		responses.HandleError(c, err, "failed to process message")
		return
	}

	if _, err := h.sessions.TouchSession(ctx, sessionID); err != nil {
		h.logger.Warn().Err(err).Int("session_id", sessionID).Msg("failed to touch session")
	}

	c.JSON(http.StatusOK, sessionresponses.SendMessageResponse{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		AIResponse:       reply,
	})
}

// UpsertSessionDatum handles POST /api/sessions/:id/data
func (h *SessionHandler) UpsertSessionDatum(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req sessionrequests.UpsertSessionDatumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid session data payload", "9f1b3d5e-7a8c-4d2e-4b6c-8a0f2e4b6d8a")
		return
	}

	datum, err := h.sessions.UpsertSessionDatum(c.Request.Context(), req.ToSessionDatum(sessionID))
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to upsert session datum")
		responses.HandleError(c, err, "failed to store session data")
		return
	}
	c.JSON(http.StatusOK, datum)
}

// ListSessionData handles GET /api/sessions/:id/data
func (h *SessionHandler) ListSessionData(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	data, err := h.sessions.ListSessionData(c.Request.Context(), sessionID, nil)
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Msg("failed to list session data")
		responses.HandleError(c, err, "failed to list session data")
		return
	}
	c.JSON(http.StatusOK, data)
}

// ListSessionDataByCategory handles GET /api/sessions/:id/data/:category
func (h *SessionHandler) ListSessionDataByCategory(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	category := c.Param("category")
	data, err := h.sessions.ListSessionData(c.Request.Context(), sessionID, &category)
	if err != nil {
		h.logger.Error().Err(err).Int("session_id", sessionID).Str("category", category).Msg("failed to list session data")
		responses.HandleError(c, err, "failed to list session data")
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *SessionHandler) sessionID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid session id", "1b3d5f7a-9c0e-4e4f-6a8b-0d2e4f6a8c0d")
		return 0, false
	}
	return id, true
}

func generationStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
