package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// SendMessageInput is the caller-supplied part of a new message.
type SendMessageInput struct {
	ConversationID string
	Content        *string
	ImageURL       *string
	VideoURL       *string
}

// MessageService sends, lists and marks messages inside conversations the
// caller participates in.
type MessageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	log           *zap.Logger
	now           func() time.Time
	newID         func() string
}

func NewMessageService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

func (s *MessageService) ListMessages(ctx context.Context, callerID, conversationID string) ([]models.Message, error) {
	if _, err := s.authorize(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListMessages(ctx, conversationID)
	if err != nil {
		s.log.Error("list messages failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil, apperrors.Internal("failed to load messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// SendMessage stores a message from the caller to the other participant.
// Blank fields are treated as absent and at least one must remain.
func (s *MessageService) SendMessage(ctx context.Context, callerID string, in SendMessageInput) (models.Message, error) {
	if callerID == "" {
		return models.Message{}, apperrors.ErrUnauthenticated
	}
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		return models.Message{}, apperrors.ErrMissingConversation
	}
	content := nonBlank(in.Content)
	imageURL := nonBlank(in.ImageURL)
	videoURL := nonBlank(in.VideoURL)
	if content == nil && imageURL == nil && videoURL == nil {
		return models.Message{}, apperrors.ErrEmptyMessage
	}

	conv, err := s.authorize(ctx, callerID, conversationID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		SenderID:       callerID,
		ReceiverID:     conv.Counterpart(callerID),
		Content:        content,
		ImageURL:       imageURL,
		VideoURL:       videoURL,
		CreatedAt:      s.now(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Message{}, apperrors.ErrConversationNotFound
		}
		s.log.Error("send message failed",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", callerID),
			zap.Error(err),
		)
		return models.Message{}, apperrors.Internal("failed to send message", err)
	}

	observability.IncMessageSent(messageKind(msg))
	return msg, nil
}

// MarkRead flips every unread message addressed to the caller in the
// conversation and returns how many changed.
func (s *MessageService) MarkRead(ctx context.Context, callerID, conversationID string) (int64, error) {
	if _, err := s.authorize(ctx, callerID, conversationID); err != nil {
		return 0, err
	}

	updated, err := s.messages.MarkRead(ctx, conversationID, callerID)
	if err != nil {
		s.log.Error("mark read failed",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", callerID),
			zap.Error(err),
		)
		return 0, apperrors.Internal("failed to mark messages as read", err)
	}
	observability.AddMessagesMarkedRead(updated)
	return updated, nil
}

func (s *MessageService) authorize(ctx context.Context, callerID, conversationID string) (models.Conversation, error) {
	if callerID == "" {
		return models.Conversation{}, apperrors.ErrUnauthenticated
	}
	if strings.TrimSpace(conversationID) == "" {
		return models.Conversation{}, apperrors.ErrMissingConversation
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, apperrors.ErrConversationNotFound
		}
		s.log.Error("load conversation failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return models.Conversation{}, apperrors.Internal("failed to load conversation", err)
	}
	if !conv.HasParticipant(callerID) {
		return models.Conversation{}, apperrors.ErrNotParticipant
	}
	return conv, nil
}

func nonBlank(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func messageKind(msg models.Message) string {
	switch {
	case msg.ImageURL != nil:
		return "image"
	case msg.VideoURL != nil:
		return "video"
	default:
		return "text"
	}
}
