package db

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Subscription tiers and statuses
const (
	TierFree    = "free"
	TierPremium = "premium"
	TierPro     = "pro"

	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// Payment statuses
const (
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentAbandoned = "abandoned"
)

// DefaultConversationTitle is stored until the first user message names the conversation
const DefaultConversationTitle = "New story"

// UsageRecord counts a user's generation requests for one UTC calendar day
type UsageRecord struct {
	UserID       string
	UsageDate    time.Time
	RequestCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation represents a conversation in the database
type Conversation struct {
	ID        string
	UserID    string
	Mode      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a message in a conversation
type Message struct {
	ID               string
	ConversationID   string
	Role             string
	Content          string
	Intent           string
	Audio            []byte
	AudioFormat      string
	Model            string
	Provider         string
	FinishReason     string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	CreatedAt        time.Time
}

// HasAudio reports whether an audio payload is attached
func (m *Message) HasAudio() bool {
	return len(m.Audio) > 0
}

// Subscription holds a user's paid tier
type Subscription struct {
	UserID    string
	Tier      string
	Status    string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// IsExempt reports whether the subscription removes the daily cap at the given time
func (s *Subscription) IsExempt(now time.Time) bool {
	if s == nil || s.Tier == TierFree || s.Status != SubscriptionActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Payment records a payment initialised through the gateway
type Payment struct {
	Reference string
	UserID    string
	Email     string
	Plan      string
	Amount    int64
	Currency  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
