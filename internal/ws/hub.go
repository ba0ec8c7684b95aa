package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	EventMessage = "message"
	EventRead    = "read"

	writeWait  = 10 * time.Second
	sendBuffer = 32
)

var errSlowConsumer = errors.New("send buffer full")

// wsConn is the part of *websocket.Conn the writer needs.
type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one subscribed connection. Its send queue is drained by a
// dedicated writer goroutine so a slow peer never blocks broadcasters.
type Client struct {
	conn wsConn
	info ConnInfo
	send chan []byte
}

// Hub maintains websocket rooms keyed by conversation id.
type Hub struct {
	rooms   map[string]map[*Client]struct{}
	mu      sync.RWMutex
	emitter *events.Emitter
	log     *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(emitter *events.Emitter, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		emitter: emitter,
		log:     log,
	}
}

// AddClient registers a connection to a conversation room and starts its writer.
func (h *Hub) AddClient(conversationID string, conn wsConn, info ConnInfo) *Client {
	client := &Client{conn: conn, info: info, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(conversationID, client)
	return client
}

// RemoveClient unregisters a client and stops its writer. It reports whether
// the client was still registered.
func (h *Hub) RemoveClient(conversationID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[conversationID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, conversationID)
	}
	// send is only closed here, under the write lock, so broadcasters holding
	// the read lock never write to a closed channel.
	close(client.send)
	return true
}

// ClientCount returns the number of connections subscribed to a conversation.
func (h *Hub) ClientCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// BroadcastMessage pushes a newly stored message to the conversation's subscribers.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.broadcast(msg.ConversationID, models.ConversationEvent{
		Type:           EventMessage,
		ConversationID: msg.ConversationID,
		Message:        &msg,
	})
}

// BroadcastRead tells subscribers that readerID has read the conversation.
func (h *Hub) BroadcastRead(conversationID, readerID string, updated int64) {
	h.broadcast(conversationID, models.ConversationEvent{
		Type:           EventRead,
		ConversationID: conversationID,
		ReaderID:       readerID,
		Updated:        updated,
	})
}

// broadcast enqueues the event for every subscriber without blocking.
// Subscribers whose queue is full are dropped.
func (h *Hub) broadcast(conversationID string, event models.ConversationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("websocket event encode failed", zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.rooms[conversationID] {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.log.Warn("websocket client too slow, dropping",
			zap.String("conversation_id", conversationID),
			zap.String("conn_id", client.info.ConnID),
		)
		h.drop(conversationID, client, errSlowConsumer)
	}
	observability.IncWSEvent(event.Type)
}

func (h *Hub) writePump(conversationID string, client *Client) {
	for payload := range client.send {
		if client.conn == nil {
			continue
		}
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Warn("websocket write error",
				zap.String("conversation_id", conversationID),
				zap.String("conn_id", client.info.ConnID),
				zap.Error(err),
			)
			h.drop(conversationID, client, err)
			return
		}
	}
}

func (h *Hub) drop(conversationID string, client *Client, reason error) {
	if client.conn != nil {
		client.conn.Close()
	}
	if !h.RemoveClient(conversationID, client) {
		return
	}
	observability.DecWSActive()
	h.publishWSError(conversationID, client.info, reason)
}

func (h *Hub) publishWSError(conversationID string, info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	h.emitter.WSEvent(context.Background(), events.Meta{
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		UserID:    info.UserID,
	}, "ws_error", wsPayload(conversationID, "ws_error", info, err.Error()))
}
