package rest

import (
	"net/http"
	"strconv"

	"github.com/arisefit/arise/server/game/chat"
	"github.com/gin-gonic/gin"
)

// MessageHandler serves the public chat message history.
type MessageHandler struct {
	chat *chat.Handler
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(ch *chat.Handler) *MessageHandler {
	return &MessageHandler{chat: ch}
}

// Recent handles GET /api/messages. The endpoint is public; the limit
// query parameter is clamped by the chat handler.
func (h *MessageHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgs, err := h.chat.RecentMessages(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
