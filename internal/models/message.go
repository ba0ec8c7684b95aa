package models

import "time"

// Message is an entry in a conversation. Only IsRead ever changes after insert.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	ReceiverID     string    `db:"receiver_id" json:"receiverId"`
	Content        *string   `db:"content" json:"content"`
	ImageURL       *string   `db:"image_url" json:"imageUrl"`
	VideoURL       *string   `db:"video_url" json:"videoUrl"`
	IsRead         bool      `db:"is_read" json:"isRead"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// MessagePreview is the latest message shown next to a conversation in the inbox.
type MessagePreview struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   *string   `json:"content"`
	ImageURL  *string   `json:"imageUrl"`
	VideoURL  *string   `json:"videoUrl"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationEvent is pushed to websocket subscribers of a conversation.
type ConversationEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversationId"`
	Message        *Message `json:"message,omitempty"`
	ReaderID       string   `json:"readerId,omitempty"`
	Updated        int64    `json:"updated,omitempty"`
}
