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
	"messaging-service/internal/profiles"
	"messaging-service/internal/repositories"
)

// ConversationService owns conversation creation and the caller's inbox.
type ConversationService struct {
	conversations repositories.ConversationRepository
	profiles      profiles.Directory
	log           *zap.Logger
	now           func() time.Time
	newID         func() string
}

func NewConversationService(conversations repositories.ConversationRepository, dir profiles.Directory, log *zap.Logger) *ConversationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationService{
		conversations: conversations,
		profiles:      dir,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// ListConversations returns the caller's conversations, most recently active
// first, each with the counterpart's profile and the latest message.
func (s *ConversationService) ListConversations(ctx context.Context, callerID string) ([]models.ConversationSummary, error) {
	if callerID == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	rows, err := s.conversations.ListConversations(ctx, callerID)
	if err != nil {
		s.log.Error("list conversations failed", zap.String("user_id", callerID), zap.Error(err))
		return nil, apperrors.Internal("failed to load conversations", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(rows))
	if len(rows) == 0 {
		return summaries, nil
	}

	counterparts := make([]string, 0, len(rows))
	for _, row := range rows {
		counterparts = append(counterparts, row.Counterpart(callerID))
	}
	profilesByID, err := s.profiles.Lookup(ctx, counterparts)
	if err != nil {
		s.log.Error("profile lookup failed", zap.String("user_id", callerID), zap.Error(err))
		return nil, apperrors.Internal("failed to load participant profiles", err)
	}

	for _, row := range rows {
		summary := models.ConversationSummary{
			ID:             row.ID,
			ParticipantA:   row.ParticipantA,
			ParticipantB:   row.ParticipantB,
			LastActivityAt: row.LastActivityAt,
			CreatedAt:      row.CreatedAt,
			LastMessage:    row.LastMessage(),
			UnreadCount:    row.UnreadCount,
		}
		if profile, ok := profilesByID[row.Counterpart(callerID)]; ok {
			p := profile
			summary.ParticipantProfile = &p
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// CreateConversation returns the conversation between the caller and the
// recipient, creating it on first contact. The boolean reports creation.
func (s *ConversationService) CreateConversation(ctx context.Context, callerID, recipientID string) (models.Conversation, bool, error) {
	if callerID == "" {
		return models.Conversation{}, false, apperrors.ErrUnauthenticated
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return models.Conversation{}, false, apperrors.ErrMissingRecipient
	}
	if recipientID == callerID {
		return models.Conversation{}, false, apperrors.ErrSelfConversation
	}

	conv, created, err := s.conversations.CreateOrGetConversation(ctx, s.newID(), callerID, recipientID, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrSameParticipant) {
			return models.Conversation{}, false, apperrors.ErrSelfConversation
		}
		s.log.Error("create conversation failed",
			zap.String("user_id", callerID),
			zap.String("recipient_id", recipientID),
			zap.Error(err),
		)
		return models.Conversation{}, false, apperrors.Internal("failed to create conversation", err)
	}
	if created {
		observability.IncConversationCreated()
	}
	return conv, created, nil
}
