package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// GetSubscription returns a user's subscription, or nil when the user never paid
func (p *PostgresDB) GetSubscription(ctx context.Context, userID string) (*db.Subscription, error) {
	query := `
	SELECT user_id, tier, status, expires_at, updated_at
	FROM subscriptions
	WHERE user_id = $1
	`

	var sub db.Subscription
	err := p.conn.QueryRowContext(ctx, query, userID).Scan(&sub.UserID, &sub.Tier, &sub.Status, &sub.ExpiresAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription creates or replaces a user's subscription
func (p *PostgresDB) UpsertSubscription(ctx context.Context, sub *db.Subscription) error {
	query := `
	INSERT INTO subscriptions (user_id, tier, status, expires_at, updated_at)
	VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
	ON CONFLICT (user_id) DO UPDATE
	SET tier = EXCLUDED.tier, status = EXCLUDED.status, expires_at = EXCLUDED.expires_at, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := p.conn.ExecContext(ctx, query, sub.UserID, sub.Tier, sub.Status, sub.ExpiresAt); err != nil {
		return fmt.Errorf("error upserting subscription: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": sub.UserID, "tier": sub.Tier, "status": sub.Status}).Info("Updated subscription")
	return nil
}

// CreatePayment records a newly initialised payment
func (p *PostgresDB) CreatePayment(ctx context.Context, payment *db.Payment) error {
	query := `
	INSERT INTO payments (reference, user_id, email, plan, amount, currency, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.conn.ExecContext(ctx, query, payment.Reference, payment.UserID, payment.Email, payment.Plan,
		payment.Amount, payment.Currency, payment.Status)
	if err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"reference": payment.Reference, "user_id": payment.UserID, "plan": payment.Plan}).Info("Created payment")
	return nil
}

// GetPaymentByReference looks up a payment by its gateway reference
func (p *PostgresDB) GetPaymentByReference(ctx context.Context, reference string) (*db.Payment, error) {
	query := `
	SELECT reference, user_id, email, plan, amount, currency, status, created_at, updated_at
	FROM payments
	WHERE reference = $1
	`

	var payment db.Payment
	err := p.conn.QueryRowContext(ctx, query, reference).Scan(&payment.Reference, &payment.UserID, &payment.Email,
		&payment.Plan, &payment.Amount, &payment.Currency, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving payment: %w", err)
	}
	return &payment, nil
}

// UpdatePaymentStatus sets the status of a payment
func (p *PostgresDB) UpdatePaymentStatus(ctx context.Context, reference, status string) error {
	query := `UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE reference = $2`
	res, err := p.conn.ExecContext(ctx, query, status, reference)
	if err != nil {
		return fmt.Errorf("error updating payment status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// CompletePayment moves a payment to success unless it is already there.
// Concurrent callers race on the conditional update and exactly one sees true.
func (p *PostgresDB) CompletePayment(ctx context.Context, reference string) (bool, error) {
	query := `UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE reference = $2 AND status <> $1`
	res, err := p.conn.ExecContext(ctx, query, db.PaymentSuccess, reference)
	if err != nil {
		return false, fmt.Errorf("error completing payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error completing payment: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := p.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1)`, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking payment: %w", err)
	}
	if !exists {
		return false, db.ErrNotFound
	}
	return false, nil
}
