// Package tokens provides token counting for quota pre-checks and
// token-budget text trimming.
//
// Counts are estimates based on a character-to-token ratio (~4 chars per
// token for English). They are deliberately coarse: the routing core uses
// them to decide whether a request fits within an account's remaining
// budget before spending money upstream. Billing always uses the exact
// counts reported by the provider.
//
// Basic usage:
//
//	counter := tokens.NewEstimatingCounter()
//	count := counter.Count("Hello, World!")
//
// Estimating a full request including history and response reserve:
//
//	estimate := tokens.EstimateRequest(prompt, historyTurns)
//
// Truncate and TrimHistory cut text and conversation history down to a
// token budget, such as a tier's context window.
package tokens
