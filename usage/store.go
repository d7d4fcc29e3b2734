package usage

import (
	"context"
	"errors"
	"time"

	"github.com/routekit/routekit/model"
)

// ErrAccountNotFound indicates the account id has no record in the store.
var ErrAccountNotFound = errors.New("account not found")

// Account is the per-account record the routing core reads and mutates.
// The authoritative copy lives in the external persistent store; counters
// only increase within a billing period and are reset by an external
// billing-cycle process, never by this core.
type Account struct {
	ID   string
	Tier model.Tier

	// TokensUsedThisPeriod is the billing-period token consumption.
	TokensUsedThisPeriod int64

	// TotalTokensUsed and TotalCostUSD accumulate across periods.
	TotalTokensUsed int64
	TotalCostUSD    float64

	// PremiumRequestsThisPeriod counts premium-credit answers consumed.
	PremiumRequestsThisPeriod int

	// SuspiciousActivityCount is the recorded abuse violation count.
	SuspiciousActivityCount int

	// IsSuspended blocks all requests; SuspensionReason says why.
	IsSuspended      bool
	SuspensionReason string

	// LastRequestAt is when the account's previous request arrived.
	// Zero if the account has never made a request.
	LastRequestAt time.Time
}

// Store is the persistent usage-counter collaborator. Increments are
// monotonic; read-then-write semantics are acceptable since enforcement
// is soft-limiting, not a financial ledger.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Account returns the record for an account id.
	Account(ctx context.Context, accountID string) (Account, error)

	// RecordRequest notes an accepted request at the given time, updating
	// the account's request history and last-request timestamp.
	RecordRequest(ctx context.Context, accountID string, at time.Time) error

	// RequestsSince returns how many requests the account made at or after
	// since, and the timestamp of the oldest such request.
	RequestsSince(ctx context.Context, accountID string, since time.Time) (count int, oldest time.Time, err error)

	// AddTokens adds token consumption and cost to the account's counters.
	AddTokens(ctx context.Context, accountID string, tokens int64, costUSD float64) error

	// IncrementPremium consumes one premium credit.
	IncrementPremium(ctx context.Context, accountID string) error

	// RecordPrompt stores a prompt for near-duplicate detection.
	RecordPrompt(ctx context.Context, accountID, prompt string) error

	// RecentPrompts returns up to n of the account's most recent prompts,
	// newest first.
	RecentPrompts(ctx context.Context, accountID string, n int) ([]string, error)

	// RecordViolation logs an abuse violation and returns the account's
	// total violation count including this one.
	RecordViolation(ctx context.Context, accountID, violationType, detail string) (int, error)

	// Suspend marks the account suspended with a reason.
	Suspend(ctx context.Context, accountID, reason string) error
}
