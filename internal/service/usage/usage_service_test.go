package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/repository/db"
	"story-app/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(database db.Database, limit int, exempt ...string) *Limiter {
	limiter := NewLimiter(database, config.UsageConfig{DailyRequestLimit: limit, ExemptUserIDs: exempt})
	limiter.now = func() time.Time { return time.Date(2026, 5, 4, 23, 30, 0, 0, time.FixedZone("WAT", 3600)) }
	return limiter
}

func TestCheckAndConsume_RejectsAfterCap(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(testutil.NewMemoryDatabase(), 10)

	for i := 1; i <= 10; i++ {
		result, err := limiter.CheckAndConsume(ctx, "user-1", false)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
		assert.Equal(t, i, result.Used)
		assert.Equal(t, 10-i, result.Remaining)
	}

	result, err := limiter.CheckAndConsume(ctx, "user-1", false)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 10, result.Used)

	// Other users have their own counter
	result, err = limiter.CheckAndConsume(ctx, "user-2", false)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 9, result.Remaining)
}

func TestCheckAndConsume_Exempt(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ConsumeDailyRequestFunc: func(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
			t.Fatal("exempt users must not be counted")
			return 0, false, nil
		},
	}
	limiter := newTestLimiter(mockDB, 1)

	result, err := limiter.CheckAndConsume(context.Background(), "vip", true)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Unlimited)
	assert.Equal(t, Unlimited, result.Remaining)
}

func TestCheckAndConsume_ZeroCapRejectsEverything(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ConsumeDailyRequestFunc: func(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
			t.Fatal("store must not be touched when the cap is zero")
			return 0, false, nil
		},
	}

	result, err := newTestLimiter(mockDB, 0).CheckAndConsume(context.Background(), "user", false)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestCheckAndConsume_StorageError(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ConsumeDailyRequestFunc: func(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
			return 0, false, errors.New("connection refused")
		},
	}

	_, err := newTestLimiter(mockDB, 5).CheckAndConsume(context.Background(), "user", false)
	assert.True(t, errors.Is(err, apperr.ErrStorage))
}

func TestCheckAndConsume_UsesUTCDay(t *testing.T) {
	var gotDay time.Time
	mockDB := &testutil.MockDatabase{
		ConsumeDailyRequestFunc: func(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
			gotDay = day
			return 1, true, nil
		},
	}

	_, err := newTestLimiter(mockDB, 5).CheckAndConsume(context.Background(), "user", false)
	require.NoError(t, err)
	// 23:30 at UTC+1 is 22:30 UTC on the same date
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), gotDay)
}

func TestPeek(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(testutil.NewMemoryDatabase(), 3)

	result, err := limiter.Peek(ctx, "user", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Used)
	assert.Equal(t, 3, result.Remaining)

	_, err = limiter.CheckAndConsume(ctx, "user", false)
	require.NoError(t, err)

	result, err = limiter.Peek(ctx, "user", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Used)
	assert.Equal(t, 2, result.Remaining)

	// Peeking never consumes
	result, err = limiter.Peek(ctx, "user", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Used)
}

func TestResolveTier(t *testing.T) {
	future := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		userID     string
		sub        *db.Subscription
		wantTier   string
		wantExempt bool
	}{
		{name: "configured exempt", userID: "staff", wantTier: TierExempt, wantExempt: true},
		{name: "no subscription", userID: "u1", wantTier: db.TierFree},
		{name: "active premium", userID: "u2", sub: &db.Subscription{Tier: db.TierPremium, Status: db.SubscriptionActive, ExpiresAt: &future}, wantTier: db.TierPremium, wantExempt: true},
		{name: "expired premium", userID: "u3", sub: &db.Subscription{Tier: db.TierPremium, Status: db.SubscriptionActive, ExpiresAt: &past}, wantTier: db.TierFree},
		{name: "inactive pro", userID: "u4", sub: &db.Subscription{Tier: db.TierPro, Status: db.SubscriptionInactive}, wantTier: db.TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &testutil.MockDatabase{
				GetSubscriptionFunc: func(ctx context.Context, userID string) (*db.Subscription, error) {
					return tt.sub, nil
				},
			}

			tier, exempt, err := newTestLimiter(mockDB, 10, "staff").ResolveTier(context.Background(), tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantExempt, exempt)
		})
	}
}
