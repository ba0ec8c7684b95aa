package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, image_url, video_url, is_read, created_at`

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID string, receiverID string) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores an unread message and moves the conversation's
// last activity forward in the same transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (created models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, image_url, video_url, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
        RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.ImageURL, msg.VideoURL, msg.CreatedAt).
		StructScan(&created); err != nil {
		return models.Message{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id=$1`, msg.ConversationID, created.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		err = ErrConversationNotFound
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit message: %w", err)
	}
	return created, nil
}

// ListMessages returns the conversation's messages oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips every unread message received by receiverID in the
// conversation and returns how many changed.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID string, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE conversation_id=$1 AND receiver_id=$2 AND is_read = FALSE`, conversationID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
