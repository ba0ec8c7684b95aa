package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

const (
	RoutingConversationCreated = "conversation.created"
	RoutingMessageSent         = "message.sent"
	RoutingMessagesRead        = "messages.read"
	RoutingWSEvents            = "ws_events.conversations"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Emitter publishes domain events after the store write has succeeded.
// Publish failures are logged and never reach the caller.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
	log         *zap.Logger
	now         func() time.Time
}

type Envelope struct {
	EventID       string  `json:"event_id"`
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id"`
	TraceID       string  `json:"trace_id,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	Payload       any     `json:"payload"`
}

type ConversationCreatedPayload struct {
	ConversationID string `json:"conversationId"`
	ParticipantA   string `json:"participantA"`
	ParticipantB   string `json:"participantB"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
	Updated        int64  `json:"updated"`
}

// Meta carries request correlation into the envelope.
type Meta struct {
	RequestID string
	TraceID   string
	UserID    string
}

func NewEmitter(publisher Publisher, service, environment string, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		log:         log,
		now:         time.Now,
	}
}

func (e *Emitter) ConversationCreated(ctx context.Context, meta Meta, conv models.Conversation) {
	e.emit(ctx, RoutingConversationCreated, meta, ConversationCreatedPayload{
		ConversationID: conv.ID,
		ParticipantA:   conv.ParticipantA,
		ParticipantB:   conv.ParticipantB,
	})
}

func (e *Emitter) MessageSent(ctx context.Context, meta Meta, msg models.Message) {
	e.emit(ctx, RoutingMessageSent, meta, msg)
}

func (e *Emitter) MessagesRead(ctx context.Context, meta Meta, conversationID string, updated int64) {
	e.emit(ctx, RoutingMessagesRead, meta, MessagesReadPayload{
		ConversationID: conversationID,
		ReaderID:       meta.UserID,
		Updated:        updated,
	})
}

// WSEvent reports a websocket lifecycle event (ws_connect, ws_disconnect, ws_error).
func (e *Emitter) WSEvent(ctx context.Context, meta Meta, name string, payload map[string]any) {
	e.emitTyped(ctx, RoutingWSEvents, name, meta, payload)
}

func (e *Emitter) emit(ctx context.Context, routingKey string, meta Meta, payload any) {
	e.emitTyped(ctx, routingKey, routingKey, meta, payload)
}

func (e *Emitter) emitTyped(ctx context.Context, routingKey, eventType string, meta Meta, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		EventID:       uuid.NewString(),
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     meta.RequestID,
		TraceID:       meta.TraceID,
		Payload:       payload,
	}
	if meta.UserID != "" {
		userID := meta.UserID
		envelope.UserID = &userID
	}

	if err := e.publisher.Publish(ctx, routingKey, envelope); err != nil {
		e.log.Warn("event publish failed",
			zap.String("routing_key", routingKey),
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
	}
}
