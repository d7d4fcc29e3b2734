package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/routekit/routekit/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	id                    TEXT PRIMARY KEY,
	tier                  TEXT NOT NULL DEFAULT 'free',
	tokens_used_period    INTEGER NOT NULL DEFAULT 0,
	total_tokens_used     INTEGER NOT NULL DEFAULT 0,
	total_cost_usd        REAL NOT NULL DEFAULT 0,
	premium_requests      INTEGER NOT NULL DEFAULT 0,
	suspicious_count      INTEGER NOT NULL DEFAULT 0,
	is_suspended          INTEGER NOT NULL DEFAULT 0,
	suspension_reason     TEXT NOT NULL DEFAULT '',
	last_request_at       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS requests (
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	requested_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_account_time
	ON requests(account_id, requested_at);

CREATE TABLE IF NOT EXISTS prompts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	prompt     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_account
	ON prompts(account_id, id);

CREATE TABLE IF NOT EXISTS violations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	violation_type TEXT NOT NULL,
	detail         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`

// SQLiteStore is a Store backed by a local SQLite database. It survives
// restarts and can be shared by processes on the same host.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the usage database at the given path.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating usage dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening usage db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the usage database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensure inserts an empty free-tier account row if none exists, so that
// accounting on an unseeded account never fails a served response.
func (s *SQLiteStore) ensure(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, accountID)
	return err
}

// Seed inserts or replaces an account record.
func (s *SQLiteStore) Seed(ctx context.Context, acct Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, tier, tokens_used_period, total_tokens_used,
			total_cost_usd, premium_requests, suspicious_count, is_suspended,
			suspension_reason, last_request_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tier = excluded.tier,
			tokens_used_period = excluded.tokens_used_period,
			total_tokens_used = excluded.total_tokens_used,
			total_cost_usd = excluded.total_cost_usd,
			premium_requests = excluded.premium_requests,
			suspicious_count = excluded.suspicious_count,
			is_suspended = excluded.is_suspended,
			suspension_reason = excluded.suspension_reason,
			last_request_at = excluded.last_request_at`,
		acct.ID, string(acct.Tier), acct.TokensUsedThisPeriod, acct.TotalTokensUsed,
		acct.TotalCostUSD, acct.PremiumRequestsThisPeriod, acct.SuspiciousActivityCount,
		boolToInt(acct.IsSuspended), acct.SuspensionReason, formatTime(acct.LastRequestAt))
	return err
}

// Account implements Store.
func (s *SQLiteStore) Account(ctx context.Context, accountID string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, tokens_used_period, total_tokens_used, total_cost_usd,
			premium_requests, suspicious_count, is_suspended, suspension_reason,
			last_request_at
		FROM accounts WHERE id = ?`, accountID)

	var acct Account
	var tier, lastRequest string
	var suspended int
	err := row.Scan(&acct.ID, &tier, &acct.TokensUsedThisPeriod, &acct.TotalTokensUsed,
		&acct.TotalCostUSD, &acct.PremiumRequestsThisPeriod, &acct.SuspiciousActivityCount,
		&suspended, &acct.SuspensionReason, &lastRequest)
	if err == sql.ErrNoRows {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}

	acct.Tier = model.Tier(tier)
	acct.IsSuspended = suspended != 0
	acct.LastRequestAt = parseTime(lastRequest)
	return acct, nil
}

// RecordRequest implements Store.
func (s *SQLiteStore) RecordRequest(ctx context.Context, accountID string, at time.Time) error {
	if err := s.ensure(ctx, accountID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO requests (account_id, requested_at) VALUES (?, ?)`,
		accountID, formatTime(at)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET last_request_at = ? WHERE id = ? AND last_request_at < ?`,
		formatTime(at), accountID, formatTime(at)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM requests WHERE account_id = ? AND requested_at < ?`,
		accountID, formatTime(at.Add(-retentionWindow))); err != nil {
		return err
	}
	return tx.Commit()
}

// RequestsSince implements Store.
func (s *SQLiteStore) RequestsSince(ctx context.Context, accountID string, since time.Time) (int, time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MIN(requested_at), '')
		FROM requests WHERE account_id = ? AND requested_at >= ?`,
		accountID, formatTime(since))

	var count int
	var oldest string
	if err := row.Scan(&count, &oldest); err != nil {
		return 0, time.Time{}, err
	}
	return count, parseTime(oldest), nil
}

// AddTokens implements Store.
func (s *SQLiteStore) AddTokens(ctx context.Context, accountID string, tokens int64, costUSD float64) error {
	if err := s.ensure(ctx, accountID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			tokens_used_period = tokens_used_period + ?,
			total_tokens_used = total_tokens_used + ?,
			total_cost_usd = total_cost_usd + ?
		WHERE id = ?`, tokens, tokens, costUSD, accountID)
	return err
}

// IncrementPremium implements Store.
func (s *SQLiteStore) IncrementPremium(ctx context.Context, accountID string) error {
	if err := s.ensure(ctx, accountID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET premium_requests = premium_requests + 1 WHERE id = ?`, accountID)
	return err
}

// RecordPrompt implements Store.
func (s *SQLiteStore) RecordPrompt(ctx context.Context, accountID, prompt string) error {
	if err := s.ensure(ctx, accountID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prompts (account_id, prompt, created_at) VALUES (?, ?, ?)`,
		accountID, prompt, formatTime(time.Now())); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM prompts WHERE account_id = ? AND id NOT IN (
			SELECT id FROM prompts WHERE account_id = ?
			ORDER BY id DESC LIMIT ?
		)`, accountID, accountID, maxStoredPrompts); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentPrompts implements Store.
func (s *SQLiteStore) RecentPrompts(ctx context.Context, accountID string, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt FROM prompts WHERE account_id = ?
		ORDER BY id DESC LIMIT ?`, accountID, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var prompts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// RecordViolation implements Store.
func (s *SQLiteStore) RecordViolation(ctx context.Context, accountID, violationType, detail string) (int, error) {
	if err := s.ensure(ctx, accountID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO violations (account_id, violation_type, detail, created_at)
		 VALUES (?, ?, ?, ?)`,
		accountID, violationType, detail, formatTime(time.Now())); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET suspicious_count = suspicious_count + 1 WHERE id = ?`,
		accountID); err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT suspicious_count FROM accounts WHERE id = ?`, accountID).Scan(&count); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// Suspend implements Store.
func (s *SQLiteStore) Suspend(ctx context.Context, accountID, reason string) error {
	if err := s.ensure(ctx, accountID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET is_suspended = 1, suspension_reason = ? WHERE id = ?`,
		reason, accountID)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
