package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventChargeSuccess is the webhook event that confirms a payment
const EventChargeSuccess = "charge.success"

// CheckoutRequest contains the parameters to start a subscription payment
type CheckoutRequest struct {
	UserID      string
	Email       string
	Plan        string
	CallbackURL string
}

// VerifyResult reports a payment's status and the resulting subscription
type VerifyResult struct {
	Reference string
	Status    string
	Tier      string
	ExpiresAt *time.Time
}

// PaymentService handles subscription payments
type PaymentService struct {
	db      db.Database
	gateway Gateway
	config  config.PaymentConfig
	now     func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(database db.Database, gateway Gateway, paymentConfig config.PaymentConfig) *PaymentService {
	return &PaymentService{
		db:      database,
		gateway: gateway,
		config:  paymentConfig,
		now:     time.Now,
	}
}

// Checkout records a pending payment and returns the gateway checkout URL
func (s *PaymentService) Checkout(ctx context.Context, req CheckoutRequest) (*Authorization, error) {
	amount, ok := s.config.PlanAmounts[req.Plan]
	if !ok {
		return nil, apperr.Validation("unknown plan %q", req.Plan)
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.config.CallbackURL
	}

	payment := &db.Payment{
		Reference: "story_" + uuid.NewString(),
		UserID:    req.UserID,
		Email:     req.Email,
		Plan:      req.Plan,
		Amount:    amount,
		Currency:  s.config.Currency,
		Status:    db.PaymentPending,
	}
	if err := s.db.CreatePayment(ctx, payment); err != nil {
		return nil, apperr.Storage("create payment", err)
	}

	auth, err := s.gateway.Initialize(ctx, InitializeRequest{
		Email:       payment.Email,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Reference:   payment.Reference,
		CallbackURL: callbackURL,
		Metadata:    map[string]string{"user_id": payment.UserID, "plan": payment.Plan},
	})
	if err != nil {
		if updateErr := s.db.UpdatePaymentStatus(ctx, payment.Reference, db.PaymentFailed); updateErr != nil {
			logger.Log.WithError(updateErr).Warn("Failed to mark payment as failed")
		}
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":   payment.UserID,
		"plan":      payment.Plan,
		"reference": payment.Reference,
	}).Info("Payment initialized")

	return auth, nil
}

// Verify checks a payment with the gateway and activates the subscription on success.
// Verifying an already successful payment returns the current subscription unchanged.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	payment, err := s.db.GetPaymentByReference(ctx, reference)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, reference)
	}
	if err != nil {
		return nil, apperr.Storage("read payment", err)
	}

	if payment.Status == db.PaymentSuccess {
		return s.currentResult(ctx, payment)
	}

	tx, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	status := gatewayStatus(tx.Status)
	if status == db.PaymentSuccess && tx.Amount < payment.Amount {
		logger.Log.WithFields(logrus.Fields{
			"reference": reference,
			"paid":      tx.Amount,
			"expected":  payment.Amount,
		}).Warn("Payment amount below plan price")
		status = db.PaymentFailed
	}

	if status != db.PaymentSuccess {
		if status != payment.Status {
			if err := s.db.UpdatePaymentStatus(ctx, reference, status); err != nil {
				return nil, apperr.Storage("update payment", err)
			}
		}
		return &VerifyResult{Reference: reference, Status: status, Tier: db.TierFree}, nil
	}

	// Only the caller that moves the payment to success activates it
	completed, err := s.db.CompletePayment(ctx, reference)
	if err != nil {
		return nil, apperr.Storage("complete payment", err)
	}
	if !completed {
		payment.Status = db.PaymentSuccess
		return s.currentResult(ctx, payment)
	}

	sub, err := s.activate(ctx, payment)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Reference: reference, Status: status, Tier: sub.Tier, ExpiresAt: sub.ExpiresAt}, nil
}

// HandleWebhook authenticates a gateway event and applies charge.success events
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.config.SecretKey == "" {
		return apperr.NotConfigured("PAYSTACK_SECRET_KEY")
	}
	if !ValidSignature(s.config.SecretKey, payload, signature) {
		return fmt.Errorf("%w: invalid webhook signature", apperr.ErrUnauthorized)
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return apperr.Validation("malformed webhook payload")
	}

	logger.Log.WithFields(logrus.Fields{
		"event":     event.Event,
		"reference": event.Data.Reference,
	}).Info("Received payment webhook")

	if event.Event != EventChargeSuccess {
		return nil
	}

	_, err := s.Verify(ctx, event.Data.Reference)
	return err
}

// ValidSignature checks the HMAC-SHA512 hex signature of a webhook payload
func ValidSignature(secret string, payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// activate extends the subscription by one period from now or from its current expiry
func (s *PaymentService) activate(ctx context.Context, payment *db.Payment) (*db.Subscription, error) {
	current, err := s.db.GetSubscription(ctx, payment.UserID)
	if err != nil {
		return nil, apperr.Storage("read subscription", err)
	}

	start := s.now()
	if current.IsExempt(start) && current.Tier == payment.Plan && current.ExpiresAt != nil {
		start = *current.ExpiresAt
	}
	expires := start.Add(s.config.SubscriptionPeriod)

	sub := &db.Subscription{
		UserID:    payment.UserID,
		Tier:      payment.Plan,
		Status:    db.SubscriptionActive,
		ExpiresAt: &expires,
	}
	if err := s.db.UpsertSubscription(ctx, sub); err != nil {
		return nil, apperr.Storage("activate subscription", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":    payment.UserID,
		"tier":       sub.Tier,
		"expires_at": expires,
	}).Info("Subscription activated")

	return sub, nil
}

func (s *PaymentService) currentResult(ctx context.Context, payment *db.Payment) (*VerifyResult, error) {
	sub, err := s.db.GetSubscription(ctx, payment.UserID)
	if err != nil {
		return nil, apperr.Storage("read subscription", err)
	}

	result := &VerifyResult{Reference: payment.Reference, Status: payment.Status, Tier: db.TierFree}
	if sub.IsExempt(s.now()) {
		result.Tier = sub.Tier
		result.ExpiresAt = sub.ExpiresAt
	}
	return result, nil
}

// gatewayStatus maps a gateway transaction status onto a stored payment status
func gatewayStatus(status string) string {
	switch status {
	case "success":
		return db.PaymentSuccess
	case "failed", "reversed":
		return db.PaymentFailed
	case "abandoned":
		return db.PaymentAbandoned
	default:
		return db.PaymentPending
	}
}
