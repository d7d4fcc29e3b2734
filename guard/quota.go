package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/routekit/routekit/usage"
)

// LimitKind identifies which ceiling a denied request ran into.
type LimitKind string

const (
	LimitMonthlyTokens LimitKind = "monthly_tokens"
	LimitMinute        LimitKind = "minute"
	LimitHour          LimitKind = "hour"
	LimitDay           LimitKind = "day"
)

// Result reports the outcome of a quota check.
type Result struct {
	Allowed bool
	Reason  string
	Kind    LimitKind
	// RetryAfter is how long until the limiting window frees a slot.
	// Zero for non-window denials.
	RetryAfter time.Duration
}

func allowed() Result { return Result{Allowed: true} }

func denied(reason string, kind LimitKind, retryAfter time.Duration) Result {
	return Result{Reason: reason, Kind: kind, RetryAfter: retryAfter}
}

type window struct {
	kind     LimitKind
	duration time.Duration
	limit    func(TierLimits) int
}

var windows = []window{
	{LimitMinute, time.Minute, func(l TierLimits) int { return l.RequestsPerMinute }},
	{LimitHour, time.Hour, func(l TierLimits) int { return l.RequestsPerHour }},
	{LimitDay, 24 * time.Hour, func(l TierLimits) int { return l.RequestsPerDay }},
}

// Guard enforces per-account quotas and detects abusive traffic against
// a usage.Store.
type Guard struct {
	store  usage.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard backed by the given usage store.
func New(store usage.Store, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckQuota verifies that the account may issue a request of the given
// estimated token size. Checks run in a fixed order and the first failure
// wins: suspension, monthly token budget, per-request ceiling, then the
// minute, hour, and day request windows.
func (g *Guard) CheckQuota(ctx context.Context, accountID string, estimatedTokens int64) (Result, error) {
	acct, err := g.store.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, usage.ErrAccountNotFound) {
			return denied("account not found", "", 0), nil
		}
		return Result{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	if acct.IsSuspended {
		reason := acct.SuspensionReason
		if reason == "" {
			reason = "account suspended"
		}
		return denied(reason, "", 0), nil
	}

	limits := LimitsForTier(acct.Tier)

	if limits.MonthlyTokenLimit != -1 {
		remaining := limits.MonthlyTokenLimit - acct.TokensUsedThisPeriod
		if remaining < estimatedTokens {
			return denied("monthly token limit exceeded", LimitMonthlyTokens, 0), nil
		}
	}

	if estimatedTokens > limits.MaxTokensPerRequest {
		reason := fmt.Sprintf("request exceeds maximum tokens (%d)", limits.MaxTokensPerRequest)
		return denied(reason, "", 0), nil
	}

	now := g.now()
	for _, w := range windows {
		max := w.limit(limits)
		count, oldest, err := g.store.RequestsSince(ctx, accountID, now.Add(-w.duration))
		if err != nil {
			// Fail open: a broken counter store should not take down
			// request serving.
			g.logger.Warn("rate window check failed",
				"account", accountID, "window", string(w.kind), "error", err)
			continue
		}
		if count >= max {
			reason := fmt.Sprintf("rate limit exceeded: %d requests per %s", max, w.kind)
			return denied(reason, w.kind, g.retryAfter(now, oldest, w.duration)), nil
		}
	}

	return allowed(), nil
}

// retryAfter is the time until the oldest request in the window ages out
// and frees a slot.
func (g *Guard) retryAfter(now, oldest time.Time, window time.Duration) time.Duration {
	if oldest.IsZero() {
		return window
	}
	after := window - now.Sub(oldest)
	if after < time.Second {
		after = time.Second
	}
	return after
}

// RecordRequest records one served request against the account's rate
// windows.
func (g *Guard) RecordRequest(ctx context.Context, accountID string) error {
	return g.store.RecordRequest(ctx, accountID, g.now())
}
