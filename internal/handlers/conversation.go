package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/models"
)

type ConversationService interface {
	ListConversations(ctx context.Context, callerID string) ([]models.ConversationSummary, error)
	CreateConversation(ctx context.Context, callerID, recipientID string) (models.Conversation, bool, error)
}

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	service ConversationService
	emitter *events.Emitter
}

func NewConversationHandler(service ConversationService, emitter *events.Emitter) *ConversationHandler {
	return &ConversationHandler{service: service, emitter: emitter}
}

// ListConversations returns the caller's inbox.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	conversations, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// CreateConversation creates or returns the conversation with recipientId.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidArg("invalid request body"))
		return
	}

	userID := c.GetString("userID")
	conv, created, err := h.service.CreateConversation(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		respondError(c, err)
		return
	}

	if created {
		h.emitter.ConversationCreated(c.Request.Context(), eventMeta(c, userID), conv)
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID})
}
