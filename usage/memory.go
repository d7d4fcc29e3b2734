package usage

import (
	"context"
	"sync"
	"time"

	"github.com/routekit/routekit/model"
)

// retentionWindow bounds how long request timestamps are kept. A day is
// the widest rate-limit window the guard checks.
const retentionWindow = 24 * time.Hour

// maxStoredPrompts bounds the per-account prompt history kept for
// near-duplicate detection.
const maxStoredPrompts = 10

// MemoryStore is an in-process Store. It backs tests and single-instance
// deployments; multi-instance deployments use a shared persistent store.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
}

type memAccount struct {
	Account
	requests []time.Time // ascending
	prompts  []string    // newest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

// Seed inserts or replaces an account record. Intended for tests and for
// mirroring the external account store.
func (s *MemoryStore) Seed(acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[acct.ID]
	if !ok {
		s.accounts[acct.ID] = &memAccount{Account: acct}
		return
	}
	existing.Account = acct
}

func (s *MemoryStore) get(accountID string) (*memAccount, error) {
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// getOrCreate returns the account, creating a free-tier record on first
// sight. Mutating operations tolerate unseeded accounts so best-effort
// accounting never fails a served response.
func (s *MemoryStore) getOrCreate(accountID string) *memAccount {
	acct, ok := s.accounts[accountID]
	if !ok {
		acct = &memAccount{Account: Account{ID: accountID, Tier: model.TierFree}}
		s.accounts[accountID] = acct
	}
	return acct
}

// Account implements Store.
func (s *MemoryStore) Account(_ context.Context, accountID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(accountID)
	if err != nil {
		return Account{}, err
	}
	return acct.Account, nil
}

// RecordRequest implements Store.
func (s *MemoryStore) RecordRequest(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(accountID)
	acct.requests = append(acct.requests, at)
	if at.After(acct.LastRequestAt) {
		acct.LastRequestAt = at
	}

	// Prune timestamps older than any window the guard can ask about.
	cutoff := at.Add(-retentionWindow)
	i := 0
	for i < len(acct.requests) && acct.requests[i].Before(cutoff) {
		i++
	}
	acct.requests = acct.requests[i:]
	return nil
}

// RequestsSince implements Store.
func (s *MemoryStore) RequestsSince(_ context.Context, accountID string, since time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return 0, time.Time{}, nil
	}

	count := 0
	var oldest time.Time
	for _, at := range acct.requests {
		if at.Before(since) {
			continue
		}
		if count == 0 || at.Before(oldest) {
			oldest = at
		}
		count++
	}
	return count, oldest, nil
}

// AddTokens implements Store.
func (s *MemoryStore) AddTokens(_ context.Context, accountID string, tokens int64, costUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(accountID)
	acct.TokensUsedThisPeriod += tokens
	acct.TotalTokensUsed += tokens
	acct.TotalCostUSD += costUSD
	return nil
}

// IncrementPremium implements Store.
func (s *MemoryStore) IncrementPremium(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(accountID).PremiumRequestsThisPeriod++
	return nil
}

// RecordPrompt implements Store.
func (s *MemoryStore) RecordPrompt(_ context.Context, accountID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(accountID)
	acct.prompts = append([]string{prompt}, acct.prompts...)
	if len(acct.prompts) > maxStoredPrompts {
		acct.prompts = acct.prompts[:maxStoredPrompts]
	}
	return nil
}

// RecentPrompts implements Store.
func (s *MemoryStore) RecentPrompts(_ context.Context, accountID string, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, nil
	}

	if n > len(acct.prompts) {
		n = len(acct.prompts)
	}
	out := make([]string, n)
	copy(out, acct.prompts[:n])
	return out, nil
}

// RecordViolation implements Store.
func (s *MemoryStore) RecordViolation(_ context.Context, accountID, violationType, detail string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(accountID)
	acct.SuspiciousActivityCount++
	return acct.SuspiciousActivityCount, nil
}

// Suspend implements Store.
func (s *MemoryStore) Suspend(_ context.Context, accountID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(accountID)
	acct.IsSuspended = true
	acct.SuspensionReason = reason
	return nil
}
