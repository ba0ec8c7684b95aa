package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSameParticipant      = errors.New("cannot create conversation with self")
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetConversation(ctx context.Context, id string, userID string, recipientID string, now time.Time) (models.Conversation, bool, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationRow, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CanonicalPair orders two participant ids the way they are stored.
func CanonicalPair(userID, otherID string) (string, string) {
	if otherID < userID {
		return otherID, userID
	}
	return userID, otherID
}

// CreateOrGetConversation inserts the conversation for the pair or returns the
// existing one. The boolean reports whether a new row was created. A single
// upsert against the pair's unique constraint keeps concurrent callers from
// producing duplicates.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, id string, userID string, recipientID string, now time.Time) (models.Conversation, bool, error) {
	if userID == recipientID {
		return models.Conversation{}, false, ErrSameParticipant
	}
	a, b := CanonicalPair(userID, recipientID)

	var (
		conv     models.Conversation
		inserted bool
	)
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (id, participant_a, participant_b, last_activity_at, created_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (participant_a, participant_b) DO UPDATE SET participant_a = EXCLUDED.participant_a
        RETURNING id, participant_a, participant_b, last_activity_at, created_at, (xmax = 0) AS inserted`,
		id, a, b, now).
		Scan(&conv.ID, &conv.ParticipantA, &conv.ParticipantB, &conv.LastActivityAt, &conv.CreatedAt, &inserted)
	if err != nil {
		return models.Conversation{}, false, err
	}
	return conv, inserted, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, participant_a, participant_b, last_activity_at, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListConversations returns the user's conversations, most recently active
// first, each joined with its latest message and the user's unread count.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID string) ([]models.ConversationRow, error) {
	query := `SELECT c.id, c.participant_a, c.participant_b, c.last_activity_at, c.created_at,
            COALESCE(u.unread_count, 0) AS unread_count,
            lm.id AS last_message_id, lm.sender_id AS last_sender_id, lm.content AS last_content,
            lm.image_url AS last_image_url, lm.video_url AS last_video_url,
            lm.is_read AS last_is_read, lm.created_at AS last_message_at
        FROM conversations c
        LEFT JOIN LATERAL (
            SELECT m.id, m.sender_id, m.content, m.image_url, m.video_url, m.is_read, m.created_at
            FROM messages m
            WHERE m.conversation_id = c.id
            ORDER BY m.created_at DESC, m.seq DESC
            LIMIT 1
        ) lm ON TRUE
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS unread_count
            FROM messages m
            WHERE m.conversation_id = c.id AND m.receiver_id = $1 AND m.is_read = FALSE
        ) u ON TRUE
        WHERE c.participant_a = $1 OR c.participant_b = $1
        ORDER BY c.last_activity_at DESC, c.id ASC`

	rows := []models.ConversationRow{}
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, nil
}
