// Chat websocket handler
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/odaihq/odai-server/pkg/models"
	"github.com/odaihq/odai-server/pkg/session"
	"github.com/odaihq/odai-server/pkg/utils"
)

const (
	readLimit  = 1 << 16
	readWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WSHandler serves the chat websocket.
type WSHandler struct {
	registry *session.Registry
	manager  *session.Manager
	upgrader websocket.Upgrader
}

// NewWSHandler creates the chat websocket handler.
func NewWSHandler(registry *session.Registry, manager *session.Manager) *WSHandler {
	return &WSHandler{
		registry: registry,
		manager:  manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *WSHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/chats/:id/ws", h.Handle)
}

// Handle upgrades the request and runs the chat read loop.
// GET /api/v1/chats/:id/ws?user_id=xxx
//
// Inbound frames carry a message to run or stop:true to cancel the
// active run. Closing the socket never cancels a run; it keeps
// executing and persists without a recipient.
func (h *WSHandler) Handle(c *gin.Context) {
	chatID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	logger := utils.GetLogger()
	conn := h.registry.Register(userID, chatID, ws)
	defer h.registry.Unregister(conn.ID)

	// Ping loop; exits when the connection is displaced or torn down.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-conn.Closed():
				return
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("chat websocket closed", "chat_id", chatID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))

		var inbound models.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			logger.Warn("malformed chat frame", "chat_id", chatID, "error", err)
			continue
		}

		if inbound.Stop {
			h.manager.Cancel(chatID)
			continue
		}
		if inbound.Message == "" {
			continue
		}
		// ErrSessionBusy is already reported on the wire.
		_ = h.manager.Submit(userID, chatID, inbound.ThreadID, inbound.Message)
	}
}
