package models

import "time"

// Conversation is a private thread between exactly two users.
// ParticipantA always sorts before ParticipantB.
type Conversation struct {
	ID             string    `db:"id" json:"id"`
	ParticipantA   string    `db:"participant_a" json:"participantA"`
	ParticipantB   string    `db:"participant_b" json:"participantB"`
	LastActivityAt time.Time `db:"last_activity_at" json:"lastActivityAt"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// Counterpart returns the participant that is not userID.
func (c Conversation) Counterpart(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// ConversationRow is one inbox row as read from the store, with the
// latest message flattened into nullable columns.
type ConversationRow struct {
	Conversation

	UnreadCount   int        `db:"unread_count"`
	LastMessageID *string    `db:"last_message_id"`
	LastSenderID  *string    `db:"last_sender_id"`
	LastContent   *string    `db:"last_content"`
	LastImageURL  *string    `db:"last_image_url"`
	LastVideoURL  *string    `db:"last_video_url"`
	LastIsRead    *bool      `db:"last_is_read"`
	LastMessageAt *time.Time `db:"last_message_at"`
}

// LastMessage extracts the most recent message, or nil when the conversation is empty.
func (r ConversationRow) LastMessage() *MessagePreview {
	if r.LastMessageID == nil {
		return nil
	}
	preview := &MessagePreview{
		ID:       *r.LastMessageID,
		Content:  r.LastContent,
		ImageURL: r.LastImageURL,
		VideoURL: r.LastVideoURL,
	}
	if r.LastSenderID != nil {
		preview.SenderID = *r.LastSenderID
	}
	if r.LastIsRead != nil {
		preview.IsRead = *r.LastIsRead
	}
	if r.LastMessageAt != nil {
		preview.CreatedAt = *r.LastMessageAt
	}
	return preview
}

// ConversationSummary is the API view of a conversation for the caller's inbox.
type ConversationSummary struct {
	ID                 string          `json:"id"`
	ParticipantA       string          `json:"participantA"`
	ParticipantB       string          `json:"participantB"`
	LastActivityAt     time.Time       `json:"lastActivityAt"`
	CreatedAt          time.Time       `json:"createdAt"`
	ParticipantProfile *ProfileSummary `json:"participantProfile"`
	LastMessage        *MessagePreview `json:"lastMessage"`
	UnreadCount        int             `json:"unreadCount"`
}
