package usage

import (
	"context"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"
	"story-app/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// Unlimited is reported as Remaining for exempt users
const Unlimited = -1

// Result is the outcome of a limiter call
type Result struct {
	Allowed   bool
	Used      int
	Limit     int
	Remaining int
	Unlimited bool
}

// TierExempt is reported for users listed in EXEMPT_USER_IDS
const TierExempt = "exempt"

// Limiter gates generation requests by a per-user daily cap
type Limiter struct {
	db     db.Database
	config config.UsageConfig
	now    func() time.Time
}

// NewLimiter creates a limiter from the usage configuration
func NewLimiter(database db.Database, usageConfig config.UsageConfig) *Limiter {
	return &Limiter{
		db:     database,
		config: usageConfig,
		now:    time.Now,
	}
}

// ResolveTier returns the user's tier and whether it removes the daily cap.
// Users without an active paid subscription are on the free tier.
func (l *Limiter) ResolveTier(ctx context.Context, userID string) (string, bool, error) {
	if l.config.IsExempt(userID) {
		return TierExempt, true, nil
	}

	sub, err := l.db.GetSubscription(ctx, userID)
	if err != nil {
		return "", false, apperr.Storage("read subscription", err)
	}
	if sub.IsExempt(l.now()) {
		return sub.Tier, true, nil
	}
	return db.TierFree, false, nil
}

// DailyLimit returns the configured cap
func (l *Limiter) DailyLimit() int {
	return l.config.DailyRequestLimit
}

// Today returns the current UTC calendar day
func (l *Limiter) Today() time.Time {
	now := l.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckAndConsume admits one request for userID and counts it against today's cap.
// Exempt users are always admitted and never counted.
func (l *Limiter) CheckAndConsume(ctx context.Context, userID string, exempt bool) (Result, error) {
	if exempt {
		return unlimitedResult(), nil
	}

	limit := l.DailyLimit()
	if limit <= 0 {
		return Result{Allowed: false, Used: 0, Limit: limit, Remaining: 0}, nil
	}

	count, allowed, err := l.db.ConsumeDailyRequest(ctx, userID, l.Today(), limit)
	if err != nil {
		return Result{}, apperr.Storage("consume daily request", err)
	}

	if !allowed {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "limit": limit}).Info("Daily request limit reached")
		return Result{Allowed: false, Used: limit, Limit: limit, Remaining: 0}, nil
	}

	return Result{
		Allowed:   true,
		Used:      count,
		Limit:     limit,
		Remaining: remaining(limit, count),
	}, nil
}

// Peek reports today's usage without consuming a request
func (l *Limiter) Peek(ctx context.Context, userID string, exempt bool) (Result, error) {
	if exempt {
		return unlimitedResult(), nil
	}

	record, err := l.db.GetDailyUsage(ctx, userID, l.Today())
	if err != nil {
		return Result{}, apperr.Storage("read daily usage", err)
	}

	used := 0
	if record != nil {
		used = record.RequestCount
	}

	limit := l.DailyLimit()
	return Result{
		Allowed:   used < limit,
		Used:      used,
		Limit:     limit,
		Remaining: remaining(limit, used),
	}, nil
}

func unlimitedResult() Result {
	return Result{Allowed: true, Used: 0, Limit: Unlimited, Remaining: Unlimited, Unlimited: true}
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
