package router

import (
	"fmt"
	"time"

	"github.com/routekit/routekit/cache"
	"github.com/routekit/routekit/guard"
	"github.com/routekit/routekit/prompt"
	"github.com/routekit/routekit/provider"
)

// ChatRequest is one inbound completion request.
type ChatRequest struct {
	// AccountID identifies the requesting account. Required.
	AccountID string

	// ConversationID groups requests belonging to one conversation. Used
	// for log correlation only.
	ConversationID string

	// Prompt is the current user prompt. Required.
	Prompt string

	// History is the prior conversation, oldest first.
	History []cache.Turn

	// SystemPrompt optionally overrides the default system message.
	SystemPrompt string

	// Temperature controls response randomness.
	Temperature float64
}

// EventType discriminates stream events.
type EventType string

const (
	// EventMetadata opens every stream: routing decision, cache status.
	EventMetadata EventType = "metadata"

	// EventChunk carries a piece of response text.
	EventChunk EventType = "chunk"

	// EventDone closes a successful stream with usage and cost.
	EventDone EventType = "done"

	// EventError closes a failed stream.
	EventError EventType = "error"
)

// Metadata describes the routing decision for a request.
type Metadata struct {
	RequestID string          `json:"request_id"`
	Model     string          `json:"model"`
	Reason    string          `json:"reason"`
	Category  prompt.Category `json:"category"`
	Cached    bool            `json:"cached"`

	// FailedOver is true when the serving model differs from the
	// selected one. FailoverReason then says why in caller-facing words.
	FailedOver     bool   `json:"failed_over,omitempty"`
	OriginalModel  string `json:"original_model,omitempty"`
	FailoverReason string `json:"failover_reason,omitempty"`

	// UsedPremiumCredit is true when a free-tier account spent one of
	// its premium request allowance on this answer.
	UsedPremiumCredit bool `json:"used_premium_credit,omitempty"`

	// BetterModelAvailable names a model reachable at the next tier up,
	// if one would have ranked higher.
	BetterModelAvailable string `json:"better_model_available,omitempty"`
}

// Event is one element of a chat response stream.
type Event struct {
	Type     EventType           `json:"type"`
	Metadata *Metadata           `json:"metadata,omitempty"`
	Content  string              `json:"content,omitempty"`
	Usage    *provider.TokenUsage `json:"usage,omitempty"`
	CostUSD  float64             `json:"cost_usd,omitempty"`

	// Model and Category are restated on chunk events so subscribers
	// joining mid-stream can render consistently without the opening
	// metadata event.
	Model    string          `json:"model,omitempty"`
	Category prompt.Category `json:"category,omitempty"`

	// Cached and FailedOver are set on done events, echoing the routing
	// outcome alongside the final accounting.
	Cached     bool `json:"cached,omitempty"`
	FailedOver bool `json:"failed_over,omitempty"`

	// CreditsRemaining is the premium-credit balance left after this
	// request, or -1 when the tier's allowance is unbounded. Set on done
	// events only.
	CreditsRemaining int `json:"credits_remaining,omitempty"`

	// Latency is the wall time from request receipt to stream end. Set on
	// done events only.
	Latency time.Duration `json:"latency_ms,omitempty"`

	Err error `json:"-"`
}

// DeniedError reports a request refused by quota or abuse checks before
// reaching any upstream vendor.
type DeniedError struct {
	Reason     string
	Kind       guard.LimitKind
	RetryAfter time.Duration
	Suspended  bool
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("request denied: %s (retry after %s)", e.Reason, e.RetryAfter)
	}
	return "request denied: " + e.Reason
}
