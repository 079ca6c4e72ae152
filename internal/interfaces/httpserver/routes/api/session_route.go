package api

import (
	"github.com/gin-gonic/gin"

	"taxthink-server/internal/interfaces/httpserver/handlers/sessionhandler"
)

// SessionRoute exposes the session, message, and session-data endpoints by
// delegating to the session handler.
type SessionRoute struct {
	sessionHandler *sessionhandler.SessionHandler
}

func NewSessionRoute(sessionHandler *sessionhandler.SessionHandler) *SessionRoute {
	return &SessionRoute{sessionHandler: sessionHandler}
}

func (route *SessionRoute) RegisterRouter(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	sessions.POST("", route.sessionHandler.CreateSession)
	sessions.GET("", route.sessionHandler.ListSessions)
	sessions.GET("/:id", route.sessionHandler.GetSession)
	sessions.PATCH("/:id", route.sessionHandler.UpdateSession)
	sessions.GET("/:id/messages", route.sessionHandler.ListMessages)
	sessions.POST("/:id/messages", route.sessionHandler.SendMessage)
	sessions.POST("/:id/data", route.sessionHandler.UpsertSessionDatum)
	sessions.GET("/:id/data", route.sessionHandler.ListSessionData)
	sessions.GET("/:id/data/:category", route.sessionHandler.ListSessionDataByCategory)
}
