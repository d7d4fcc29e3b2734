// Package guard enforces per-account quotas and abuse controls: tier
// limits, monthly token budgets, sliding rate windows, degenerate and
// near-duplicate prompt detection, auto-suspension, and per-IP
// throttling for public endpoints.
package guard
