package validation

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	referenceRegex = regexp.MustCompile(`^[a-zA-Z0-9._=\-]+$`)
)

// PaymentRequestValidator validates payment-related requests
type PaymentRequestValidator struct {
	plans map[string]int64
}

// NewPaymentRequestValidator creates a validator for the configured plans
func NewPaymentRequestValidator(plans map[string]int64) *PaymentRequestValidator {
	return &PaymentRequestValidator{plans: plans}
}

// ValidateEmail validates an email address (basic validation)
func (v *PaymentRequestValidator) ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}

	if len(email) > 255 {
		return fmt.Errorf("email must be at most 255 characters long, got %d", len(email))
	}

	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}

	return nil
}

// ValidatePlan validates the subscription plan
func (v *PaymentRequestValidator) ValidatePlan(plan string) error {
	if plan == "" {
		return errors.New("plan cannot be empty")
	}
	if _, ok := v.plans[plan]; !ok {
		return fmt.Errorf("unknown plan: %s", plan)
	}
	return nil
}

// ValidateReference validates a payment reference
func (v *PaymentRequestValidator) ValidateReference(reference string) error {
	if reference == "" {
		return errors.New("reference cannot be empty")
	}

	if len(reference) > 100 {
		return fmt.Errorf("reference must be at most 100 characters long, got %d", len(reference))
	}

	if !referenceRegex.MatchString(reference) {
		return errors.New("reference can only contain letters, numbers, and the characters . _ = -")
	}

	return nil
}

// ValidateCheckoutRequest validates a payment initialisation request
func (v *PaymentRequestValidator) ValidateCheckoutRequest(email, plan string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}

	return v.ValidatePlan(plan)
}
