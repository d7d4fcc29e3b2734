package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/routekit/routekit/model"
	"github.com/routekit/routekit/usage"
)

func newTestGuard(t *testing.T, now time.Time) (*Guard, *usage.MemoryStore) {
	t.Helper()
	store := usage.NewMemoryStore()
	g := New(store, withClock(func() time.Time { return now }))
	return g, store
}

func TestCheckQuotaUnknownAccount(t *testing.T) {
	g, _ := newTestGuard(t, time.Now())

	res, err := g.CheckQuota(context.Background(), "ghost", 100)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, "account not found", res.Reason)
}

func TestCheckQuotaSuspended(t *testing.T) {
	g, store := newTestGuard(t, time.Now())
	store.Seed(usage.Account{
		ID: "u1", Tier: model.TierFree,
		IsSuspended: true, SuspensionReason: "multiple abuse violations detected",
	})

	res, err := g.CheckQuota(context.Background(), "u1", 100)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, "multiple abuse violations detected", res.Reason)
}

func TestCheckQuotaMonthlyTokens(t *testing.T) {
	g, store := newTestGuard(t, time.Now())
	store.Seed(usage.Account{ID: "u1", Tier: model.TierFree, TokensUsedThisPeriod: 99_500})

	// 1000 estimated tokens do not fit in the remaining 500.
	res, err := g.CheckQuota(context.Background(), "u1", 1000)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, LimitMonthlyTokens, res.Kind)

	// 500 exactly fits.
	res, err = g.CheckQuota(context.Background(), "u1", 500)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckQuotaMonthlySkippedForUnlimited(t *testing.T) {
	g, store := newTestGuard(t, time.Now())
	store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited, TokensUsedThisPeriod: 50_000_000})

	res, err := g.CheckQuota(context.Background(), "u1", 1000)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckQuotaPerRequestCeiling(t *testing.T) {
	g, store := newTestGuard(t, time.Now())
	store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	res, err := g.CheckQuota(context.Background(), "u1", 2001)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Empty(t, res.Kind)
	require.Contains(t, res.Reason, "2000")

	// Exactly at the ceiling is allowed.
	res, err = g.CheckQuota(context.Background(), "u1", 2000)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckQuotaMinuteWindow(t *testing.T) {
	now := time.Now()
	g, store := newTestGuard(t, now)
	store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	ctx := context.Background()
	// Free tier allows 5 requests per minute. Fill the window.
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRequest(ctx, "u1", now.Add(-time.Duration(50-i*10)*time.Second)))
	}

	res, err := g.CheckQuota(ctx, "u1", 100)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, LimitMinute, res.Kind)
	// Oldest request is 50s old, so a slot frees in 10s.
	require.Equal(t, 10*time.Second, res.RetryAfter)
}

func TestCheckQuotaWindowAgesOut(t *testing.T) {
	now := time.Now()
	g, store := newTestGuard(t, now)
	store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	ctx := context.Background()
	// All five requests older than a minute: the minute window is clear.
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRequest(ctx, "u1", now.Add(-2*time.Minute)))
	}

	res, err := g.CheckQuota(ctx, "u1", 100)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckQuotaHourWindow(t *testing.T) {
	now := time.Now()
	g, store := newTestGuard(t, now)
	store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	ctx := context.Background()
	// 50 requests spread over the hour, none in the last minute.
	for i := 0; i < 50; i++ {
		require.NoError(t, store.RecordRequest(ctx, "u1", now.Add(-time.Duration(2+i)*time.Minute)))
	}

	res, err := g.CheckQuota(ctx, "u1", 100)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, LimitHour, res.Kind)
	require.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestRecordRequestStampsClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g, store := newTestGuard(t, now)
	store.Seed(usage.Account{ID: "u1", Tier: model.TierPro})

	ctx := context.Background()
	require.NoError(t, g.RecordRequest(ctx, "u1"))

	count, oldest, err := store.RequestsSince(ctx, "u1", now.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.True(t, oldest.Equal(now))
}
