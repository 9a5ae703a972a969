package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// ConsumeDailyRequest increments today's counter only while it is below limit.
// The insert-or-conditional-update runs as one statement, so concurrent
// requests for the same user and day can never push the count past limit.
// When the cap is already reached no row is returned and allowed is false.
func (p *PostgresDB) ConsumeDailyRequest(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
	query := `
	INSERT INTO usage_records (user_id, usage_date, request_count)
	VALUES ($1, $2, 1)
	ON CONFLICT (user_id, usage_date) DO UPDATE
	SET request_count = usage_records.request_count + 1, updated_at = CURRENT_TIMESTAMP
	WHERE usage_records.request_count < $3
	RETURNING request_count
	`

	var count int
	err := p.conn.QueryRowContext(ctx, query, userID, dateOnly(day), limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "limit": limit}).Debug("Daily request limit reached")
		return limit, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error consuming daily request: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": userID, "count": count, "limit": limit}).Debug("Consumed daily request")
	return count, true, nil
}

// GetDailyUsage returns the usage record for a day, or nil when none exists yet
func (p *PostgresDB) GetDailyUsage(ctx context.Context, userID string, day time.Time) (*db.UsageRecord, error) {
	query := `
	SELECT user_id, usage_date, request_count, created_at, updated_at
	FROM usage_records
	WHERE user_id = $1 AND usage_date = $2
	`

	var record db.UsageRecord
	err := p.conn.QueryRowContext(ctx, query, userID, dateOnly(day)).Scan(
		&record.UserID, &record.UsageDate, &record.RequestCount, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving daily usage: %w", err)
	}

	return &record, nil
}

// dateOnly formats a day as YYYY-MM-DD in UTC so the DATE column never depends
// on the session timezone
func dateOnly(day time.Time) string {
	return day.UTC().Format(time.DateOnly)
}
