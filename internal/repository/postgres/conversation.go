package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateConversation creates a new conversation for a user
func (p *PostgresDB) CreateConversation(ctx context.Context, userID, mode, title string) (*db.Conversation, error) {
	convID := uuid.New().String()
	var createdAt, updatedAt time.Time

	query := `
	INSERT INTO conversations (id, user_id, mode, title)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at, updated_at
	`

	err := p.conn.QueryRowContext(ctx, query, convID, userID, mode, title).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": convID, "user_id": userID, "mode": mode}).Info("Created new conversation")

	return &db.Conversation{
		ID:        convID,
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// GetConversation retrieves a specific conversation
func (p *PostgresDB) GetConversation(ctx context.Context, convID string) (*db.Conversation, error) {
	var conv db.Conversation
	query := `
	SELECT id, user_id, mode, title, created_at, updated_at
	FROM conversations
	WHERE id = $1
	`

	err := p.conn.QueryRowContext(ctx, query, convID).Scan(&conv.ID, &conv.UserID, &conv.Mode, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving conversation: %w", err)
	}

	return &conv, nil
}

// GetConversationsByUser retrieves all conversations for a user, most recent first
func (p *PostgresDB) GetConversationsByUser(ctx context.Context, userID string) ([]db.Conversation, error) {
	query := `
	SELECT id, user_id, mode, title, created_at, updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`

	rows, err := p.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []db.Conversation
	for rows.Next() {
		var conv db.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Mode, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// UpdateConversationTitle renames a conversation and bumps updated_at
func (p *PostgresDB) UpdateConversationTitle(ctx context.Context, convID, title string) error {
	query := `UPDATE conversations SET title = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := p.conn.ExecContext(ctx, query, title, convID)
	if err != nil {
		return fmt.Errorf("error updating conversation title: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}

	logger.Log.WithField("conversation_id", convID).Debug("Updated conversation title")
	return nil
}

// DeleteConversation deletes a conversation and all its messages
func (p *PostgresDB) DeleteConversation(ctx context.Context, convID string) error {
	query := `DELETE FROM conversations WHERE id = $1`
	if _, err := p.conn.ExecContext(ctx, query, convID); err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}

	logger.Log.WithField("conversation_id", convID).Info("Deleted conversation")
	return nil
}
