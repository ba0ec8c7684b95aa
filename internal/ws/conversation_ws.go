package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// ConversationWebSocketHandler streams message and read events of one
// conversation to an authenticated participant.
type ConversationWebSocketHandler struct {
	hub           *Hub
	conversations repositories.ConversationRepository
	resolver      identity.Resolver
	cookieName    string
	emitter       *events.Emitter
	log           *zap.Logger
}

func NewConversationWebSocketHandler(hub *Hub, conversations repositories.ConversationRepository, resolver identity.Resolver, cookieName string, emitter *events.Emitter, log *zap.Logger) *ConversationWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationWebSocketHandler{
		hub:           hub,
		conversations: conversations,
		resolver:      resolver,
		cookieName:    cookieName,
		emitter:       emitter,
		log:           log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, checks membership, upgrades the connection
// and registers it with the hub.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Param("conversationId"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required", "code": apperrors.CodeInvalidArgument})
		return
	}

	ctx, span := observability.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := identity.TokenFromRequest(c.Request, h.cookieName)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials", "code": apperrors.CodeUnauthenticated})
		return
	}

	userID, err := h.resolver.Resolve(ctx, token)
	if err != nil || userID == "" {
		if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
			h.log.Error("identity provider failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session", "code": apperrors.CodeInternal})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session", "code": apperrors.CodeUnauthenticated})
		return
	}

	conv, err := h.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found", "code": apperrors.CodeNotFound})
			return
		}
		h.log.Error("load conversation failed", zap.String("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation", "code": apperrors.CodeInternal})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation", "code": apperrors.CodePermissionDenied})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    c.GetHeader("X-Device-Id"),
		IP:          c.ClientIP(),
		RequestID:   c.GetString(middleware.RequestIDKey),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	meta := events.Meta{RequestID: info.RequestID, TraceID: info.TraceID, UserID: userID}
	client := h.hub.AddClient(conversationID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.emitter.WSEvent(ctx, meta, "ws_connect", wsPayload(conversationID, "ws_connect", info, ""))

	// The client never sends data; reading only detects closure.
	connCtx := context.WithoutCancel(ctx)
	go func() {
		var closeReason string
		defer func() {
			if h.hub.RemoveClient(conversationID, client) {
				observability.DecWSActive()
			}
			observability.IncWSEvent("ws_disconnect")
			h.emitter.WSEvent(connCtx, meta, "ws_disconnect", wsPayload(conversationID, "ws_disconnect", info, closeReason))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
					h.emitter.WSEvent(connCtx, meta, "ws_error", wsPayload(conversationID, "ws_error", info, closeReason))
				}
				return
			}
		}
	}()
}
