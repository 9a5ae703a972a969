package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	paymentService "story-app/internal/service/payment"
)

const (
	maxWebhookBody  = 1 << 20
	signatureHeader = "x-paystack-signature"
)

type CheckoutRequest struct {
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email"`
	Plan        string `json:"plan"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type CheckoutResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResponse struct {
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Tier      string  `json:"tier,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// CheckoutHandler starts a subscription payment
func (h *Handlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userID, err := h.resolveUser(r, req.UserID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	if err := h.paymentValidator.ValidateCheckoutRequest(req.Email, req.Plan); err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	authorization, err := h.paymentService.Checkout(r.Context(), paymentService.CheckoutRequest{
		UserID:      userID,
		Email:       req.Email,
		Plan:        req.Plan,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, CheckoutResponse{
		AuthorizationURL: authorization.AuthorizationURL,
		AccessCode:       authorization.AccessCode,
		Reference:        authorization.Reference,
	})
}

// VerifyHandler confirms a payment by reference
func (h *Handlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if err := h.paymentValidator.ValidateReference(reference); err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	result, err := h.paymentService.Verify(r.Context(), reference)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	resp := VerifyResponse{
		Reference: result.Reference,
		Status:    result.Status,
		Tier:      result.Tier,
	}
	if result.ExpiresAt != nil {
		expires := result.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &expires
	}
	h.sendJSON(w, http.StatusOK, resp)
}

// WebhookHandler applies signed gateway events
func (h *Handlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.paymentService.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
