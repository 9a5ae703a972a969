package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"story-app/internal/repository/db"
)

// NewMemoryDatabase returns a MockDatabase whose functions share an in-memory store.
// Individual Func fields can still be overridden to inject failures.
func NewMemoryDatabase() *MockDatabase {
	s := &memoryStore{
		usage:         make(map[string]int),
		conversations: make(map[string]*db.Conversation),
		messages:      make(map[string][]db.Message),
		subscriptions: make(map[string]*db.Subscription),
		payments:      make(map[string]*db.Payment),
	}

	return &MockDatabase{
		ConsumeDailyRequestFunc:     s.consumeDailyRequest,
		GetDailyUsageFunc:           s.getDailyUsage,
		CreateConversationFunc:      s.createConversation,
		GetConversationFunc:         s.getConversation,
		GetConversationsByUserFunc:  s.getConversationsByUser,
		UpdateConversationTitleFunc: s.updateConversationTitle,
		DeleteConversationFunc:      s.deleteConversation,
		AddMessageFunc:              s.addMessage,
		GetConversationMessagesFunc: s.getConversationMessages,
		GetLatestMessageByRoleFunc:  s.getLatestMessageByRole,
		CountMessagesFunc:           s.countMessages,
		GetSubscriptionFunc:         s.getSubscription,
		UpsertSubscriptionFunc:      s.upsertSubscription,
		CreatePaymentFunc:           s.createPayment,
		GetPaymentByReferenceFunc:   s.getPaymentByReference,
		UpdatePaymentStatusFunc:     s.updatePaymentStatus,
		CompletePaymentFunc:         s.completePayment,
	}
}

type memoryStore struct {
	mu            sync.Mutex
	seq           int
	usage         map[string]int
	conversations map[string]*db.Conversation
	messages      map[string][]db.Message
	subscriptions map[string]*db.Subscription
	payments      map[string]*db.Payment
}

// nextID returns UUID-shaped ids so handlers accept them as conversation ids
func (s *memoryStore) nextID() string {
	s.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.seq)
}

func usageKey(userID string, day time.Time) string {
	return userID + "|" + day.UTC().Format(time.DateOnly)
}

func (s *memoryStore) consumeDailyRequest(_ context.Context, userID string, day time.Time, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey(userID, day)
	if s.usage[key] >= limit {
		return s.usage[key], false, nil
	}
	s.usage[key]++
	return s.usage[key], true, nil
}

func (s *memoryStore) getDailyUsage(_ context.Context, userID string, day time.Time) (*db.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.usage[usageKey(userID, day)]
	if !ok {
		return nil, nil
	}
	return &db.UsageRecord{UserID: userID, UsageDate: day, RequestCount: count}, nil
}

func (s *memoryStore) createConversation(_ context.Context, userID, mode, title string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &db.Conversation{ID: s.nextID(), UserID: userID, Mode: mode, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[conv.ID] = conv
	copied := *conv
	return &copied, nil
}

func (s *memoryStore) getConversation(_ context.Context, id string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (s *memoryStore) getConversationsByUser(_ context.Context, userID string) ([]db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memoryStore) updateConversationTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return db.ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *memoryStore) deleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *memoryStore) addMessage(_ context.Context, msg *db.Message) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return nil, db.ErrNotFound
	}
	stored := *msg
	stored.ID = s.nextID()
	stored.CreatedAt = time.Now()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], stored)
	return &stored, nil
}

func (s *memoryStore) getConversationMessages(_ context.Context, conversationID string, limit int) ([]db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]db.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) getLatestMessageByRole(_ context.Context, conversationID, role string) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			found := msgs[i]
			return &found, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memoryStore) countMessages(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages[conversationID]), nil
}

func (s *memoryStore) getSubscription(_ context.Context, userID string) (*db.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (s *memoryStore) upsertSubscription(_ context.Context, sub *db.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sub
	copied.UpdatedAt = time.Now()
	s.subscriptions[sub.UserID] = &copied
	return nil
}

func (s *memoryStore) createPayment(_ context.Context, payment *db.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.Reference]; exists {
		return fmt.Errorf("duplicate payment reference %s", payment.Reference)
	}
	copied := *payment
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	s.payments[payment.Reference] = &copied
	return nil
}

func (s *memoryStore) getPaymentByReference(_ context.Context, reference string) (*db.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[reference]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *payment
	return &copied, nil
}

func (s *memoryStore) updatePaymentStatus(_ context.Context, reference, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[reference]
	if !ok {
		return db.ErrNotFound
	}
	payment.Status = status
	payment.UpdatedAt = time.Now()
	return nil
}

func (s *memoryStore) completePayment(_ context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[reference]
	if !ok {
		return false, db.ErrNotFound
	}
	if payment.Status == db.PaymentSuccess {
		return false, nil
	}
	payment.Status = db.PaymentSuccess
	payment.UpdatedAt = time.Now()
	return true, nil
}
