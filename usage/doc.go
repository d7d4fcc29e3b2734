// Package usage persists per-account consumption: request timestamps for
// rate windows, token and cost totals, premium request counts, recent
// prompts for near-duplicate detection, and violation records.
//
// Two Store implementations are provided: MemoryStore for tests and
// single-instance deployments, and SQLiteStore for durable accounting
// across restarts.
package usage
