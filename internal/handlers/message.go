package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

type MessageService interface {
	ListMessages(ctx context.Context, callerID, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, callerID string, in services.SendMessageInput) (models.Message, error)
	MarkRead(ctx context.Context, callerID, conversationID string) (int64, error)
}

// Broadcaster pushes stored changes to realtime subscribers.
type Broadcaster interface {
	BroadcastMessage(msg models.Message)
	BroadcastRead(conversationID, readerID string, updated int64)
}

// MessageHandler manages message endpoints.
type MessageHandler struct {
	service MessageService
	hub     Broadcaster
	emitter *events.Emitter
}

func NewMessageHandler(service MessageService, hub Broadcaster, emitter *events.Emitter) *MessageHandler {
	return &MessageHandler{service: service, hub: hub, emitter: emitter}
}

// ListMessages returns the conversation's messages oldest first.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID := c.GetString("userID")

	msgs, err := h.service.ListMessages(c.Request.Context(), userID, c.Param("conversationId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// SendMessage stores a message and pushes it to subscribers.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ConversationID string  `json:"conversationId"`
		Content        *string `json:"content"`
		ImageURL       *string `json:"imageUrl"`
		VideoURL       *string `json:"videoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidArg("invalid request body"))
		return
	}

	userID := c.GetString("userID")
	msg, err := h.service.SendMessage(c.Request.Context(), userID, services.SendMessageInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
		VideoURL:       req.VideoURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastMessage(msg)
	}
	h.emitter.MessageSent(c.Request.Context(), eventMeta(c, userID), msg)
	c.JSON(http.StatusOK, msg)
}

// MarkRead marks the caller's received messages in the conversation as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := c.GetString("userID")
	conversationID := c.Param("conversationId")

	updated, err := h.service.MarkRead(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	if updated > 0 {
		if h.hub != nil {
			h.hub.BroadcastRead(conversationID, userID, updated)
		}
		h.emitter.MessagesRead(c.Request.Context(), eventMeta(c, userID), conversationID, updated)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read", "updated": updated})
}
