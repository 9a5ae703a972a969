package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"

	"github.com/sirupsen/logrus"
)

// InitializeRequest starts a hosted checkout
type InitializeRequest struct {
	Email       string
	Amount      int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// Authorization is where the customer completes the payment
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the gateway's view of a payment
type Transaction struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

// Gateway initialises and verifies transactions
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*Transaction, error)
}

// PaystackClient implements Gateway over the Paystack REST API
type PaystackClient struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

const defaultRetryAfter = 30 * time.Second

// NewPaystackClient creates a client from the payment configuration
func NewPaystackClient(paymentConfig config.PaymentConfig) *PaystackClient {
	return &PaystackClient{
		secretKey: paymentConfig.SecretKey,
		baseURL:   strings.TrimSuffix(paymentConfig.BaseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a transaction and returns the checkout URL
func (c *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount,
		"currency":  req.Currency,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	var auth Authorization
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Verify fetches the current state of a transaction
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *PaystackClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.secretKey == "" {
		return apperr.NotConfigured("PAYSTACK_SECRET_KEY")
	}

	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: paystack: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: paystack: reading response: %v", apperr.ErrUpstream, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("Paystack response")

	if resp.StatusCode == http.StatusTooManyRequests {
		return &apperr.RateLimitError{
			Provider:   "paystack",
			RetryAfter: apperr.ParseRetryAfter(resp.Header.Get("Retry-After"), defaultRetryAfter),
			Err:        fmt.Errorf("paystack returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("%w: paystack returned status %d: %s", apperr.ErrUpstream, resp.StatusCode, string(respBody))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: paystack: %s", apperr.ErrNotFound, envelope.Message)
	case resp.StatusCode == http.StatusBadRequest:
		return apperr.Validation("paystack: %s", envelope.Message)
	case resp.StatusCode != http.StatusOK || !envelope.Status:
		return fmt.Errorf("%w: paystack returned status %d: %s", apperr.ErrUpstream, resp.StatusCode, envelope.Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: paystack: decoding data: %v", apperr.ErrUpstream, err)
	}
	return nil
}
