package testutil

import (
	"context"
	"errors"
	"io"
	"time"

	"story-app/internal/app"
	"story-app/internal/config"
	"story-app/internal/repository/db"
	"story-app/internal/service/llm"
)

var errNotImplemented = errors.New("not implemented")

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	PingFunc func(ctx context.Context) error

	// Usage mocks
	ConsumeDailyRequestFunc func(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error)
	GetDailyUsageFunc       func(ctx context.Context, userID string, day time.Time) (*db.UsageRecord, error)

	// Conversation mocks
	CreateConversationFunc      func(ctx context.Context, userID, mode, title string) (*db.Conversation, error)
	GetConversationFunc         func(ctx context.Context, id string) (*db.Conversation, error)
	GetConversationsByUserFunc  func(ctx context.Context, userID string) ([]db.Conversation, error)
	UpdateConversationTitleFunc func(ctx context.Context, id, title string) error
	DeleteConversationFunc      func(ctx context.Context, id string) error

	// Message mocks
	AddMessageFunc              func(ctx context.Context, msg *db.Message) (*db.Message, error)
	GetConversationMessagesFunc func(ctx context.Context, conversationID string, limit int) ([]db.Message, error)
	GetLatestMessageByRoleFunc  func(ctx context.Context, conversationID, role string) (*db.Message, error)
	CountMessagesFunc           func(ctx context.Context, conversationID string) (int, error)

	// Billing mocks
	GetSubscriptionFunc       func(ctx context.Context, userID string) (*db.Subscription, error)
	UpsertSubscriptionFunc    func(ctx context.Context, sub *db.Subscription) error
	CreatePaymentFunc         func(ctx context.Context, payment *db.Payment) error
	GetPaymentByReferenceFunc func(ctx context.Context, reference string) (*db.Payment, error)
	UpdatePaymentStatusFunc   func(ctx context.Context, reference, status string) error
	CompletePaymentFunc       func(ctx context.Context, reference string) (bool, error)
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Usage methods
func (m *MockDatabase) ConsumeDailyRequest(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
	if m.ConsumeDailyRequestFunc != nil {
		return m.ConsumeDailyRequestFunc(ctx, userID, day, limit)
	}
	return 0, false, errNotImplemented
}

func (m *MockDatabase) GetDailyUsage(ctx context.Context, userID string, day time.Time) (*db.UsageRecord, error) {
	if m.GetDailyUsageFunc != nil {
		return m.GetDailyUsageFunc(ctx, userID, day)
	}
	return nil, errNotImplemented
}

// Conversation methods
func (m *MockDatabase) CreateConversation(ctx context.Context, userID, mode, title string) (*db.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, userID, mode, title)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversation(ctx context.Context, id string) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversationsByUser(ctx context.Context, userID string) ([]db.Conversation, error) {
	if m.GetConversationsByUserFunc != nil {
		return m.GetConversationsByUserFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateConversationTitle(ctx context.Context, id, title string) error {
	if m.UpdateConversationTitleFunc != nil {
		return m.UpdateConversationTitleFunc(ctx, id, title)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteConversation(ctx context.Context, id string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, id)
	}
	return errNotImplemented
}

// Message methods
func (m *MockDatabase) AddMessage(ctx context.Context, msg *db.Message) (*db.Message, error) {
	if m.AddMessageFunc != nil {
		return m.AddMessageFunc(ctx, msg)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]db.Message, error) {
	if m.GetConversationMessagesFunc != nil {
		return m.GetConversationMessagesFunc(ctx, conversationID, limit)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetLatestMessageByRole(ctx context.Context, conversationID, role string) (*db.Message, error) {
	if m.GetLatestMessageByRoleFunc != nil {
		return m.GetLatestMessageByRoleFunc(ctx, conversationID, role)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) CountMessages(ctx context.Context, conversationID string) (int, error) {
	if m.CountMessagesFunc != nil {
		return m.CountMessagesFunc(ctx, conversationID)
	}
	return 0, errNotImplemented
}

// Billing methods
func (m *MockDatabase) GetSubscription(ctx context.Context, userID string) (*db.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertSubscription(ctx context.Context, sub *db.Subscription) error {
	if m.UpsertSubscriptionFunc != nil {
		return m.UpsertSubscriptionFunc(ctx, sub)
	}
	return errNotImplemented
}

func (m *MockDatabase) CreatePayment(ctx context.Context, payment *db.Payment) error {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, payment)
	}
	return errNotImplemented
}

func (m *MockDatabase) GetPaymentByReference(ctx context.Context, reference string) (*db.Payment, error) {
	if m.GetPaymentByReferenceFunc != nil {
		return m.GetPaymentByReferenceFunc(ctx, reference)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdatePaymentStatus(ctx context.Context, reference, status string) error {
	if m.UpdatePaymentStatusFunc != nil {
		return m.UpdatePaymentStatusFunc(ctx, reference, status)
	}
	return errNotImplemented
}

func (m *MockDatabase) CompletePayment(ctx context.Context, reference string) (bool, error) {
	if m.CompletePaymentFunc != nil {
		return m.CompletePaymentFunc(ctx, reference)
	}
	return false, errNotImplemented
}

// MockLLMProvider is a mock implementation of llm.LLMProvider for testing
type MockLLMProvider struct {
	GenerateFunc        func(ctx context.Context, req llm.GenerationRequest) (*llm.Generation, error)
	GetDefaultModelFunc func() string

	// Calls records every request passed to Generate
	Calls []llm.GenerationRequest
}

func (m *MockLLMProvider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.Generation, error) {
	m.Calls = append(m.Calls, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

func (m *MockLLMProvider) GetDefaultModel() string {
	if m.GetDefaultModelFunc != nil {
		return m.GetDefaultModelFunc()
	}
	return "default-model"
}

// MockSpeaker is a mock implementation of voice.Speaker for testing
type MockSpeaker struct {
	SynthesizeFunc func(ctx context.Context, text, voice string, speed float64) ([]byte, error)
	TranscribeFunc func(ctx context.Context, audio io.Reader, filename, language string) (string, error)
}

func (m *MockSpeaker) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voice, speed)
	}
	return nil, errNotImplemented
}

func (m *MockSpeaker) Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, filename, language)
	}
	return "", errNotImplemented
}

// NewMockConfig creates a mock app.Config for testing
func NewMockConfig() *app.Config {
	return &app.Config{
		AppConfig: &config.AppConfig{
			Server: config.ServerConfig{Port: "8080", Version: "test"},
			LLM: config.LLMConfig{
				Provider:           "openai",
				OpenAIAPIKey:       "test-api-key",
				OpenAIModel:        "gpt-4o-mini",
				DefaultTemperature: 0.8,
				DefaultMaxTokens:   800,
			},
			Usage: config.UsageConfig{
				DailyRequestLimit: 10,
				HistoryLimit:      20,
			},
			Voice: config.VoiceConfig{
				TTSModel:     "tts-1",
				DefaultVoice: "alloy",
				STTModel:     "whisper-1",
			},
			Payment: config.PaymentConfig{
				SecretKey:          "sk_test_secret",
				Currency:           "NGN",
				PlanAmounts:        map[string]int64{db.TierPremium: 500000, db.TierPro: 1500000},
				SubscriptionPeriod: 30 * 24 * time.Hour,
			},
			Modes: config.NewModesConfig(config.DefaultModes()),
		},
	}
}
