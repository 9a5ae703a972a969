package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"story-app/internal/app"
	"story-app/internal/apperr"
	"story-app/internal/auth"
	"story-app/internal/logger"
	chatService "story-app/internal/service/chat"
	conversationService "story-app/internal/service/conversation"
	"story-app/internal/service/llm"
	paymentService "story-app/internal/service/payment"
	"story-app/internal/service/usage"
	"story-app/internal/service/voice"
	"story-app/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`

	// Quota fields
	LimitReached bool `json:"limit_reached,omitempty"`
	Remaining    *int `json:"remaining,omitempty"`
	Limit        *int `json:"limit,omitempty"`
	Upgrade      bool `json:"upgrade,omitempty"`

	// Provider throttling hint in seconds
	RetryAfter int `json:"retry_after,omitempty"`
}

// Handlers serves the HTTP API on top of the service layer
type Handlers struct {
	config              *app.Config
	providerName        string
	validator           *validation.GenerateRequestValidator
	paymentValidator    *validation.PaymentRequestValidator
	chatService         *chatService.ChatService
	conversationService *conversationService.ConversationService
	paymentService      *paymentService.PaymentService
	limiter             *usage.Limiter
	speaker             voice.Speaker
}

// NewHandlers wires the services around the given external clients
func NewHandlers(config *app.Config, provider llm.LLMProvider, speaker voice.Speaker, gateway paymentService.Gateway) *Handlers {
	limiter := usage.NewLimiter(config.DB, config.AppConfig.Usage)

	return &Handlers{
		config:              config,
		providerName:        provider.Name(),
		validator:           validation.NewGenerateRequestValidator(config.ModesConfig().IsValidMode, voice.IsValidVoice),
		paymentValidator:    validation.NewPaymentRequestValidator(config.AppConfig.Payment.PlanAmounts),
		chatService:         chatService.NewChatService(config.DB, config, provider, speaker, limiter),
		conversationService: conversationService.NewConversationService(config.DB),
		paymentService:      paymentService.NewPaymentService(config.DB, gateway, config.AppConfig.Payment),
		limiter:             limiter,
		speaker:             speaker,
	}
}

// resolveUser returns the caller identity from a bearer token or the given fallback id
func (h *Handlers) resolveUser(r *http.Request, fallbackID string) (string, error) {
	return auth.ResolveUserID(r, fallbackID, h.config.AppConfig.Auth.JWTSecret)
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

// sendError sends a standardized JSON error response
func (h *Handlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	} else {
		errResp.Error = message
	}
	h.sendJSON(w, status, errResp)
}

// sendServiceError maps a service error onto its status and JSON body
func (h *Handlers) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	errResp := ErrorResponse{
		Error:   err.Error(),
		Code:    status,
		Message: statusMessage(status),
	}

	var quotaErr *apperr.QuotaError
	if errors.As(err, &quotaErr) {
		remaining, limit := 0, quotaErr.Limit
		errResp.LimitReached = true
		errResp.Remaining = &remaining
		errResp.Limit = &limit
		errResp.Upgrade = true
		errResp.Message = "You've reached your daily limit of " + strconv.Itoa(limit) + " stories. Upgrade for unlimited access or come back tomorrow."
	}

	var rateErr *apperr.RateLimitError
	if errors.As(err, &rateErr) {
		errResp.RetryAfter = int(math.Ceil(rateErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(errResp.RetryAfter))
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	h.sendJSON(w, status, errResp)
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusUnauthorized:
		return "User identity is required"
	case http.StatusForbidden:
		return "Access denied"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusTooManyRequests:
		return "Daily limit reached"
	case http.StatusServiceUnavailable:
		return "The story engine is busy, please retry shortly"
	default:
		return "Internal server error"
	}
}
