package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/http/handlers"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// источник снимка сессии, который клиент получает при подключении
type SessionLookup interface {
	GetSessionInfo(ctx context.Context, sessionID string) (*service.SessionInfo, error)
}

// содержит зависимости для обработки WebSocket
type WSHandler struct {
	Hub           *Hub
	Sessions      SessionLookup
	AllowedOrigin string
}

func NewWSHandler(hub *Hub, sessions SessionLookup, allowedOrigin string) *WSHandler {
	return &WSHandler{
		Hub:           hub,
		Sessions:      sessions,
		AllowedOrigin: allowedOrigin,
	}
}

// HandleWS подписывает соединение на события сессии :sessionId
func (h *WSHandler) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		info, err := h.Sessions.GetSessionInfo(ctx, sessionID)
		cancel()
		if err != nil {
			handlers.RespondError(c, err)
			return
		}

		snapshot, err := json.Marshal(domain.Event{
			Type:      "snapshot",
			SessionID: info.SessionID,
			Round:     info.CurrentRound,
			Payload:   info,
			At:        time.Now().UTC(),
		})
		if err != nil {
			handlers.RespondError(c, err)
			return
		}

		allowedOrigin := h.AllowedOrigin
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ошибка обновления ws", "error", err)
			return
		}

		client := NewClient(sessionID, c.Query("playerId"), conn, h.Hub)
		go client.Run(snapshot)
	}
}
