package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("record not found")

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the services from the specific database implementation
type Database interface {
	Ping(ctx context.Context) error

	// Usage
	ConsumeDailyRequest(ctx context.Context, userID string, day time.Time, limit int) (count int, allowed bool, err error)
	GetDailyUsage(ctx context.Context, userID string, day time.Time) (*UsageRecord, error)

	// Conversations
	CreateConversation(ctx context.Context, userID, mode, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationsByUser(ctx context.Context, userID string) ([]Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages
	AddMessage(ctx context.Context, msg *Message) (*Message, error)
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	GetLatestMessageByRole(ctx context.Context, conversationID, role string) (*Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// Subscriptions
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	UpsertSubscription(ctx context.Context, sub *Subscription) error

	// Payments
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPaymentByReference(ctx context.Context, reference string) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, reference, status string) error
	// CompletePayment marks a payment successful and reports whether this call made the change
	CompletePayment(ctx context.Context, reference string) (bool, error)
}
