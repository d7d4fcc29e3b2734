// Package router composes the routing core: classify the prompt, pick a
// model, serve from cache when possible, enforce quota and abuse checks
// on cache misses, stream from the upstream vendor with failover, and
// account for tokens and cost.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/routekit/routekit/cache"
	"github.com/routekit/routekit/failover"
	"github.com/routekit/routekit/guard"
	"github.com/routekit/routekit/model"
	"github.com/routekit/routekit/provider"
	"github.com/routekit/routekit/tokens"
	"github.com/routekit/routekit/usage"
)

// Streamer starts a failover-aware stream. Implemented by
// failover.Orchestrator.
type Streamer interface {
	Stream(ctx context.Context, modelID string, req provider.Request) (*failover.Result, error)
}

// Router routes chat requests end to end.
type Router struct {
	selector *model.Selector
	cache    *cache.Cache
	guard    *guard.Guard
	store    usage.Store
	stream   Streamer
	tracker  *model.CostTracker
	logger   *slog.Logger
	system   string
	newID    func() string
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSystemPrompt sets the system message sent with every upstream call.
func WithSystemPrompt(system string) Option {
	return func(r *Router) { r.system = system }
}

// WithCostTracker attaches an in-process cost aggregator.
func WithCostTracker(tracker *model.CostTracker) Option {
	return func(r *Router) { r.tracker = tracker }
}

// withIDGenerator overrides request id generation for tests.
func withIDGenerator(fn func() string) Option {
	return func(r *Router) { r.newID = fn }
}

// New creates a Router.
func New(selector *model.Selector, responseCache *cache.Cache, g *guard.Guard, store usage.Store, stream Streamer, opts ...Option) *Router {
	r := &Router{
		selector: selector,
		cache:    responseCache,
		guard:    g,
		store:    store,
		stream:   stream,
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chat handles one completion request and returns its event stream.
//
// Requests refused before any upstream call return a *DeniedError; the
// event channel is only returned once a response source (cache or
// upstream) is secured. Events arrive as metadata, then zero or more
// chunks, then exactly one done or error event.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (<-chan Event, error) {
	if req.AccountID == "" {
		return nil, errors.New("account id is required")
	}
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}

	requestID := r.newID()
	started := time.Now()
	logger := r.logger.With("request_id", requestID, "account", req.AccountID)
	if req.ConversationID != "" {
		logger = logger.With("conversation", req.ConversationID)
	}

	acct, err := r.store.Account(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, usage.ErrAccountNotFound) {
			return nil, &DeniedError{Reason: "account not found"}
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	hasCredit, err := r.guard.CanUsePremium(ctx, req.AccountID, acct.Tier)
	if err != nil {
		logger.Warn("premium credit check failed", "error", err)
		hasCredit = false
	}

	sel := r.selector.Select(req.Prompt, acct.Tier, hasCredit)
	key := cache.Key(sel.Model.ID, req.Prompt, req.History)

	// A cache hit bypasses quota and abuse checks entirely: the prompt
	// already produced an accepted response, and no upstream cost accrues.
	if entry, ok := r.cache.Get(key); ok {
		logger.Info("served from cache", "model", entry.ModelID, "category", entry.Category)
		// The hit still counts as a served request, at zero token cost, so
		// per-account accounting stays consistent with what callers saw.
		if err := r.guard.RecordRequest(ctx, req.AccountID); err != nil {
			logger.Warn("recording cached request failed", "error", err)
		}
		if err := r.store.AddTokens(ctx, req.AccountID, 0, 0); err != nil {
			logger.Warn("recording zero-cost usage failed", "error", err)
		}
		credits := creditsAfter(acct.Tier, acct.PremiumRequestsThisPeriod, false)
		return r.replay(requestID, entry, started, credits), nil
	}

	quota, err := r.guard.CheckQuota(ctx, req.AccountID, int64(sel.EstimatedTokens))
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !quota.Allowed {
		return nil, &DeniedError{Reason: quota.Reason, Kind: quota.Kind, RetryAfter: quota.RetryAfter}
	}

	abuse, err := r.guard.DetectAbuse(ctx, req.AccountID, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("abuse check: %w", err)
	}
	if abuse.Abusive {
		return nil, &DeniedError{Reason: abuse.Reason, Suspended: abuse.Suspended}
	}

	// Accounting writes are best effort: a counter failure must not fail
	// a request that cleared its checks.
	if err := r.guard.RecordRequest(ctx, req.AccountID); err != nil {
		logger.Warn("recording request failed", "error", err)
	}
	if err := r.store.RecordPrompt(ctx, req.AccountID, req.Prompt); err != nil {
		logger.Warn("recording prompt failed", "error", err)
	}
	if sel.UsedPremiumCredit {
		if err := r.store.IncrementPremium(ctx, req.AccountID); err != nil {
			logger.Warn("incrementing premium counter failed", "error", err)
		}
	}

	// Trim leading history turns so the upstream request fits the tier's
	// context window. The cache key above stays on the full history: the
	// same conversation must hit the same entry regardless of trimming.
	window := int(guard.LimitsForTier(acct.Tier).MaxContextWindow)
	drop := tokens.TrimHistory(req.Prompt, historyText(req.History), window)
	if drop > 0 {
		logger.Info("trimmed history to fit context window",
			"dropped_turns", drop, "max_context", window)
	}

	result, err := r.stream.Stream(ctx, sel.Model.ID, provider.Request{
		SystemPrompt: firstNonEmpty(req.SystemPrompt, r.system),
		Messages:     buildMessages(req.Prompt, req.History[drop:]),
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("routing to upstream",
		"model", result.Model.ID, "category", sel.Category,
		"failed_over", result.FailedOver(), "attempts", result.Attempts)

	credits := creditsAfter(acct.Tier, acct.PremiumRequestsThisPeriod, sel.UsedPremiumCredit)
	events := make(chan Event)
	go r.pipe(ctx, events, requestID, req, sel, key, result, credits, started, logger)
	return events, nil
}

// replay serves a cached entry as a complete event stream.
func (r *Router) replay(requestID string, entry cache.Entry, started time.Time, credits int) <-chan Event {
	events := make(chan Event, 3)
	events <- Event{Type: EventMetadata, Metadata: &Metadata{
		RequestID: requestID,
		Model:     entry.ModelID,
		Reason:    entry.SelectionReason,
		Category:  entry.Category,
		Cached:    true,
	}}
	events <- Event{Type: EventChunk, Content: entry.ResponseText, Model: entry.ModelID, Category: entry.Category}
	events <- Event{Type: EventDone, Usage: &provider.TokenUsage{
		InputTokens:  entry.InputTokens,
		OutputTokens: entry.OutputTokens,
		TotalTokens:  entry.InputTokens + entry.OutputTokens,
	}, Cached: true, CreditsRemaining: credits, Latency: time.Since(started)}
	close(events)
	return events
}

// pipe relays upstream chunks as events and settles accounting when the
// stream completes.
func (r *Router) pipe(ctx context.Context, events chan<- Event, requestID string, req ChatRequest, sel model.Selection, key string, result *failover.Result, credits int, started time.Time, logger *slog.Logger) {
	defer close(events)

	meta := &Metadata{
		RequestID:            requestID,
		Model:                result.Model.ID,
		Reason:               sel.Reason,
		Category:             sel.Category,
		FailedOver:           result.FailedOver(),
		UsedPremiumCredit:    sel.UsedPremiumCredit,
		BetterModelAvailable: sel.BetterModelAvailable,
	}
	if result.FailedOver() {
		meta.OriginalModel = result.OriginalModel
		meta.FailoverReason = result.Reason
	}
	if !r.emit(ctx, events, Event{Type: EventMetadata, Metadata: meta}) {
		return
	}

	var text []byte
	for chunk := range result.Chunks {
		if chunk.Error != nil {
			logger.Error("stream failed", "error", chunk.Error)
			r.emit(ctx, events, Event{Type: EventError, Err: chunk.Error})
			return
		}
		if chunk.Content != "" {
			text = append(text, chunk.Content...)
			event := Event{Type: EventChunk, Content: chunk.Content, Model: result.Model.ID, Category: sel.Category}
			if !r.emit(ctx, events, event) {
				return
			}
		}
		if chunk.Done {
			usage := provider.TokenUsage{}
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			latency := time.Since(started)
			cost := r.settle(ctx, req, sel, key, result, string(text), usage, latency, logger)
			r.emit(ctx, events, Event{
				Type:             EventDone,
				Usage:            &usage,
				CostUSD:          cost,
				FailedOver:       result.FailedOver(),
				CreditsRemaining: credits,
				Latency:          latency,
			})
			return
		}
	}

	// Upstream closed without a terminal chunk.
	r.emit(ctx, events, Event{Type: EventError, Err: errors.New("upstream stream ended unexpectedly")})
}

// settle records usage and cost and populates the cache after a completed
// response.
func (r *Router) settle(ctx context.Context, req ChatRequest, sel model.Selection, key string, result *failover.Result, text string, usage provider.TokenUsage, latency time.Duration, logger *slog.Logger) float64 {
	cost := model.Cost(result.Model, usage.InputTokens, usage.OutputTokens)

	if err := r.store.AddTokens(ctx, req.AccountID, int64(usage.InputTokens+usage.OutputTokens), cost); err != nil {
		logger.Warn("recording token usage failed", "error", err)
	}
	if r.tracker != nil {
		r.tracker.Record(result.Model.ID, usage.InputTokens, usage.OutputTokens)
	}

	if text != "" {
		r.cache.Set(key, cache.Entry{
			ResponseText:    text,
			InputTokens:     usage.InputTokens,
			OutputTokens:    usage.OutputTokens,
			ModelID:         result.Model.ID,
			Category:        sel.Category,
			SelectionReason: sel.Reason,
		})
	}

	logger.Info("request complete",
		"model", result.Model.ID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"cost_usd", cost,
		"latency", latency)
	return cost
}

func (r *Router) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

// UsageStats returns the account's consumption snapshot.
func (r *Router) UsageStats(ctx context.Context, accountID string) (guard.Stats, error) {
	return r.guard.UsageStats(ctx, accountID)
}

// CacheStats returns response cache statistics.
func (r *Router) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// SuggestUpgrade reports what the account would need to reach the desired
// model.
func (r *Router) SuggestUpgrade(ctx context.Context, accountID, desiredModel string) (model.UpgradeSuggestion, error) {
	acct, err := r.store.Account(ctx, accountID)
	if err != nil {
		return model.UpgradeSuggestion{}, fmt.Errorf("loading account: %w", err)
	}
	return r.selector.SuggestUpgrade(desiredModel, acct.Tier), nil
}

// creditsAfter computes the premium-credit balance left once this request
// settles. Unbounded allowances report -1.
func creditsAfter(tier model.Tier, used int, spent bool) int {
	limits := guard.LimitsForTier(tier)
	if limits.PremiumRequestsPerMonth == -1 {
		return -1
	}
	remaining := limits.PremiumRequestsPerMonth - used
	if spent {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func historyText(history []cache.Turn) []string {
	out := make([]string, len(history))
	for i, turn := range history {
		out[i] = turn.Content
	}
	return out
}

func buildMessages(prompt string, history []cache.Turn) []provider.Message {
	msgs := make([]provider.Message, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, provider.Message{Role: provider.Role(turn.Role), Content: turn.Content})
	}
	return append(msgs, provider.NewTextMessage(provider.RoleUser, prompt))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
