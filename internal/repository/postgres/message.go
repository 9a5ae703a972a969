package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const messageColumns = `id, conversation_id, role, content, COALESCE(intent, ''), audio, COALESCE(audio_format, ''),
	COALESCE(model, ''), COALESCE(provider, ''), COALESCE(finish_reason, ''),
	prompt_tokens, completion_tokens, total_tokens, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*db.Message, error) {
	var msg db.Message
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Intent, &msg.Audio, &msg.AudioFormat,
		&msg.Model, &msg.Provider, &msg.FinishReason,
		&msg.PromptTokens, &msg.CompletionTokens, &msg.TotalTokens, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddMessage appends a message to a conversation and bumps the conversation's updated_at
func (p *PostgresDB) AddMessage(ctx context.Context, msg *db.Message) (*db.Message, error) {
	stored := *msg
	stored.ID = uuid.New().String()

	query := `
	INSERT INTO messages (id, conversation_id, role, content, intent, audio, audio_format, model, provider, finish_reason,
		prompt_tokens, completion_tokens, total_tokens)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
	RETURNING created_at
	`

	var audio any
	if stored.HasAudio() {
		audio = stored.Audio
	}

	err := p.conn.QueryRowContext(ctx, query, stored.ID, stored.ConversationID, stored.Role, stored.Content, stored.Intent,
		audio, stored.AudioFormat, stored.Model, stored.Provider, stored.FinishReason,
		stored.PromptTokens, stored.CompletionTokens, stored.TotalTokens).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error adding message: %w", err)
	}

	updateQuery := `UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := p.conn.ExecContext(ctx, updateQuery, stored.ConversationID); err != nil {
		logger.Log.WithError(err).Warn("Error updating conversation timestamp")
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": stored.ConversationID,
		"role":            stored.Role,
		"intent":          stored.Intent,
		"provider":        stored.Provider,
		"model":           stored.Model,
		"has_audio":       stored.HasAudio(),
	}).Debug("Added message to conversation")

	return &stored, nil
}

// GetConversationMessages returns the first limit messages of a conversation,
// oldest to newest. A limit <= 0 returns every message.
func (p *PostgresDB) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]db.Message, error) {
	query := `SELECT ` + messageColumns + `
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at ASC
	LIMIT NULLIF($2, 0)
	`
	if limit < 0 {
		limit = 0
	}

	rows, err := p.conn.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// GetLatestMessageByRole returns the newest message with the given role
func (p *PostgresDB) GetLatestMessageByRole(ctx context.Context, conversationID, role string) (*db.Message, error) {
	query := `SELECT ` + messageColumns + `
	FROM messages
	WHERE conversation_id = $1 AND role = $2
	ORDER BY created_at DESC
	LIMIT 1
	`

	msg, err := scanMessage(p.conn.QueryRowContext(ctx, query, conversationID, role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving latest %s message: %w", role, err)
	}
	return msg, nil
}

// CountMessages returns the number of messages in a conversation
func (p *PostgresDB) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	if err := p.conn.QueryRowContext(ctx, query, conversationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting messages: %w", err)
	}
	return count, nil
}
