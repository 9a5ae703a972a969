package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/repository/db"
)

// ConversationSummary is a conversation as listed for its owner
type ConversationSummary struct {
	ID           string
	Mode         string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationService handles the business logic for conversation management
type ConversationService struct {
	db db.Database
}

// NewConversationService creates a new ConversationService
func NewConversationService(database db.Database) *ConversationService {
	return &ConversationService{
		db: database,
	}
}

// GetUserConversations retrieves all conversations for a user with their message counts
func (s *ConversationService) GetUserConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	conversations, err := s.db.GetConversationsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("list conversations", err)
	}

	result := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		count, err := s.db.CountMessages(ctx, conv.ID)
		if err != nil {
			return nil, apperr.Storage("count messages", err)
		}

		result = append(result, ConversationSummary{
			ID:           conv.ID,
			Mode:         conv.Mode,
			Title:        conv.Title,
			MessageCount: count,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	return result, nil
}

// GetConversationMessages retrieves all messages from a conversation the user owns
func (s *ConversationService) GetConversationMessages(ctx context.Context, conversationID, userID string) ([]db.Message, error) {
	if _, err := s.ownedConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.db.GetConversationMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, apperr.Storage("list messages", err)
	}

	return messages, nil
}

// DeleteConversation deletes a conversation if the user owns it
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if _, err := s.ownedConversation(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := s.db.DeleteConversation(ctx, conversationID); err != nil {
		return apperr.Storage("delete conversation", err)
	}

	return nil
}

// ownedConversation loads a conversation and verifies the user owns it
func (s *ConversationService) ownedConversation(ctx context.Context, conversationID, userID string) (*db.Conversation, error) {
	conversation, err := s.db.GetConversation(ctx, conversationID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, apperr.Storage("read conversation", err)
	}

	if conversation.UserID != userID {
		return nil, fmt.Errorf("%w: user does not own this conversation", apperr.ErrForbidden)
	}

	return conversation, nil
}
