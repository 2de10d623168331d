package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/model"
	"skillswap/internal/service/chat"
)

type Chat interface {
	SendMessage(ctx context.Context, offerID, senderID int64, message string) (*chat.Outgoing, error)
	History(ctx context.Context, offerID, userID int64, limit int) ([]model.ChatMessage, error)
}

type ChatHandler struct {
	chat   Chat
	logger *zap.Logger
}

func NewChatHandler(c Chat, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: c, logger: logger}
}

// SendMessage handles POST /offers/:offerId/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	offerID, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}
	out, err := h.chat.SendMessage(c.Request.Context(), offerID, currentUser(c), req.Message)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Message sent successfully", out)
}

// History handles GET /offers/:offerId/messages?limit=50
func (h *ChatHandler) History(c *gin.Context) {
	offerID, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	msgs, err := h.chat.History(c.Request.Context(), offerID, currentUser(c), limit)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Messages fetched successfully", msgs)
}
