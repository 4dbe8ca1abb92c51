// Chat HTTP handlers
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/odaihq/odai-server/pkg/service"
	"github.com/odaihq/odai-server/pkg/session"
	"github.com/odaihq/odai-server/pkg/tools"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	store   *service.ChatStore
	manager *session.Manager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(store *service.ChatStore, manager *session.Manager) *ChatHandler {
	return &ChatHandler{store: store, manager: manager}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	chats := r.Group("/chats")
	{
		chats.GET("", h.ListChats)
		chats.GET("/:id", h.GetChat)
		chats.DELETE("/:id", h.DeleteChat)
		chats.GET("/:id/messages", h.GetMessages)
		chats.GET("/:id/status", h.GetStatus)
		chats.POST("/:id/cancel", h.CancelRun)
	}
	r.GET("/capabilities", h.ListCapabilities)
}

// ListChats lists the user's chats
// GET /api/v1/chats?user_id=xxx
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	chats, err := h.store.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat returns one chat
// GET /api/v1/chats/:id
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.store.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == service.ErrChatNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, chat)
}

// DeleteChat removes a chat and its messages
// DELETE /api/v1/chats/:id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.store.DeleteChat(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetMessages returns a chat's messages in conversation order
// GET /api/v1/chats/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.store.GetMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetStatus reports the chat's session state
// GET /api/v1/chats/:id/status
func (h *ChatHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.manager.Status(c.Param("id"))})
}

// CancelRun stops the chat's active run
// POST /api/v1/chats/:id/cancel
func (h *ChatHandler) CancelRun(c *gin.Context) {
	cancelled := h.manager.Cancel(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// ListCapabilities lists the registered tool capabilities
// GET /api/v1/capabilities
func (h *ChatHandler) ListCapabilities(c *gin.Context) {
	type capability struct {
		Name         string `json:"name"`
		Label        string `json:"label"`
		Description  string `json:"description"`
		Dangerous    bool   `json:"dangerous"`
		SamplePrompt string `json:"sample_prompt,omitempty"`
	}
	defs := tools.List()
	out := make([]capability, 0, len(defs))
	for _, def := range defs {
		out = append(out, capability{
			Name:         def.Name,
			Label:        def.Label,
			Description:  def.Description,
			Dangerous:    def.Dangerous,
			SamplePrompt: def.SamplePrompt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": out})
}
