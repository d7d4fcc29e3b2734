package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/routekit/routekit/model"
	"github.com/routekit/routekit/prompt"
)

const (
	// repeatSimilarity is the Jaccard similarity above which two prompts
	// count as near-identical.
	repeatSimilarity = 0.95

	// repeatHistoryDepth is how many recent prompts are compared.
	repeatHistoryDepth = 5

	// repeatThreshold is how many near-identical recent prompts trigger a
	// violation.
	repeatThreshold = 5

	// minInterArrival is the shortest gap between requests before the
	// account looks like a bot.
	minInterArrival = 2 * time.Second

	// suspendThreshold is the violation count that auto-suspends an
	// account.
	suspendThreshold = 10
)

// Violation type labels recorded in the usage store.
const (
	ViolationSuspiciousPrompt = "suspicious_prompt"
	ViolationRepeatedPrompts  = "repeated_prompts"
	ViolationTooFast          = "too_fast"
)

// AbuseReport is the outcome of an abuse check.
type AbuseReport struct {
	Abusive   bool
	Reason    string
	Suspended bool
}

// DetectAbuse flags degenerate prompts, near-duplicate prompt floods, and
// bot-speed request cadence. Every flagged violation is recorded; an
// account crossing the violation threshold is auto-suspended.
func (g *Guard) DetectAbuse(ctx context.Context, accountID, promptText string) (AbuseReport, error) {
	if suspicious, reason := prompt.DetectSuspicious(promptText); suspicious {
		detail := promptText
		if len(detail) > 100 {
			detail = detail[:100]
		}
		if report, err := g.recordViolation(ctx, accountID, ViolationSuspiciousPrompt, detail, reason); err != nil || report.Abusive {
			return report, err
		}
	}

	recent, err := g.store.RecentPrompts(ctx, accountID, repeatHistoryDepth)
	if err != nil {
		g.logger.Warn("recent prompt lookup failed", "account", accountID, "error", err)
	}
	identical := 0
	for _, prev := range recent {
		if prompt.Similarity(promptText, prev) >= repeatSimilarity {
			identical++
		}
	}
	if identical >= repeatThreshold {
		detail := fmt.Sprintf("%d near-identical prompts", identical)
		if report, err := g.recordViolation(ctx, accountID, ViolationRepeatedPrompts, detail,
			"detected repeated identical prompts"); err != nil || report.Abusive {
			return report, err
		}
	}

	acct, err := g.store.Account(ctx, accountID)
	if err == nil && !acct.LastRequestAt.IsZero() {
		if gap := g.now().Sub(acct.LastRequestAt); gap < minInterArrival {
			detail := fmt.Sprintf("%.1fs since last request", gap.Seconds())
			if report, err := g.recordViolation(ctx, accountID, ViolationTooFast, detail,
				"requests too frequent (possible bot)"); err != nil || report.Abusive {
				return report, err
			}
		}
	}

	return AbuseReport{}, nil
}

// recordViolation logs the violation and suspends the account if it has
// crossed the threshold. The returned report carries the user-facing
// reason, upgraded to a suspension notice when the threshold is hit.
func (g *Guard) recordViolation(ctx context.Context, accountID, violationType, detail, reason string) (AbuseReport, error) {
	count, err := g.store.RecordViolation(ctx, accountID, violationType, detail)
	if err != nil {
		return AbuseReport{}, fmt.Errorf("recording violation for %s: %w", accountID, err)
	}

	g.logger.Warn("abuse violation",
		"account", accountID, "type", violationType, "count", count)

	if count >= suspendThreshold {
		if err := g.store.Suspend(ctx, accountID, "multiple abuse violations detected"); err != nil {
			return AbuseReport{}, fmt.Errorf("suspending %s: %w", accountID, err)
		}
		return AbuseReport{
			Abusive:   true,
			Reason:    "account suspended due to repeated violations",
			Suspended: true,
		}, nil
	}

	return AbuseReport{Abusive: true, Reason: reason}, nil
}

// CanUsePremium reports whether the account may route to a premium model.
// Paid tiers always can; free accounts spend from their monthly premium
// request allowance.
func (g *Guard) CanUsePremium(ctx context.Context, accountID string, tier model.Tier) (bool, error) {
	limits := LimitsForTier(tier)
	if limits.CanUsePremiumModels {
		return true, nil
	}
	if limits.PremiumRequestsPerMonth <= 0 {
		return false, nil
	}

	acct, err := g.store.Account(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return acct.PremiumRequestsThisPeriod < limits.PremiumRequestsPerMonth, nil
}

// Stats is a point-in-time snapshot of an account's consumption against
// its tier limits. Limit fields are -1 when the tier is unbounded.
type Stats struct {
	Tier                     model.Tier
	TokensUsed               int64
	TokensLimit              int64
	TokensRemaining          int64
	RequestsToday            int
	RequestsLimitToday       int
	PercentUsed              float64
	PremiumRequestsRemaining int
	PremiumRequestsLimit     int
}

// UsageStats computes the account's current consumption snapshot.
func (g *Guard) UsageStats(ctx context.Context, accountID string) (Stats, error) {
	acct, err := g.store.Account(ctx, accountID)
	if err != nil {
		return Stats{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	limits := LimitsForTier(acct.Tier)
	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	requestsToday, _, err := g.store.RequestsSince(ctx, accountID, midnight)
	if err != nil {
		return Stats{}, fmt.Errorf("counting today's requests for %s: %w", accountID, err)
	}

	stats := Stats{
		Tier:                 acct.Tier,
		TokensUsed:           acct.TokensUsedThisPeriod,
		TokensLimit:          limits.MonthlyTokenLimit,
		TokensRemaining:      -1,
		RequestsToday:        requestsToday,
		RequestsLimitToday:   limits.RequestsPerDay,
		PremiumRequestsLimit: limits.PremiumRequestsPerMonth,
	}
	if limits.MonthlyTokenLimit != -1 {
		stats.TokensRemaining = limits.MonthlyTokenLimit - acct.TokensUsedThisPeriod
		stats.PercentUsed = float64(acct.TokensUsedThisPeriod) / float64(limits.MonthlyTokenLimit) * 100
	}
	stats.PremiumRequestsRemaining = -1
	if limits.PremiumRequestsPerMonth != -1 {
		stats.PremiumRequestsRemaining = limits.PremiumRequestsPerMonth - acct.PremiumRequestsThisPeriod
	}
	return stats, nil
}
