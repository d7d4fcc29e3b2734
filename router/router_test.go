package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/routekit/routekit/cache"
	"github.com/routekit/routekit/failover"
	"github.com/routekit/routekit/guard"
	"github.com/routekit/routekit/model"
	"github.com/routekit/routekit/provider"
	"github.com/routekit/routekit/usage"
)

// fakeStreamer serves canned responses and records which models were
// requested.
type fakeStreamer struct {
	catalog  *model.Catalog
	response string
	usage    provider.TokenUsage
	err      error
	serveAs  string // when set, pretend failover landed here
	calls    []string
	lastReq  provider.Request
}

func (f *fakeStreamer) Stream(ctx context.Context, modelID string, req provider.Request) (*failover.Result, error) {
	f.calls = append(f.calls, modelID)
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}

	serving := modelID
	attempts := 1
	reason := ""
	if f.serveAs != "" && f.serveAs != modelID {
		serving = f.serveAs
		attempts = 2
		reason = "openai rate limited the request"
	}
	desc, err := f.catalog.Get(serving)
	if err != nil {
		return nil, err
	}

	chunks := make(chan provider.StreamChunk, 3)
	half := len(f.response) / 2
	chunks <- provider.StreamChunk{Content: f.response[:half]}
	chunks <- provider.StreamChunk{Content: f.response[half:]}
	u := f.usage
	chunks <- provider.StreamChunk{Done: true, Usage: &u}
	close(chunks)

	return &failover.Result{
		Chunks:        chunks,
		Model:         desc,
		OriginalModel: modelID,
		Attempts:      attempts,
		Reason:        reason,
	}, nil
}

type harness struct {
	router   *Router
	store    *usage.MemoryStore
	cache    *cache.Cache
	streamer *fakeStreamer
	tracker  *model.CostTracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := model.DefaultCatalog()
	store := usage.NewMemoryStore()
	responseCache := cache.New(cache.WithLogger(logger))
	g := guard.New(store, guard.WithLogger(logger))
	streamer := &fakeStreamer{
		catalog:  catalog,
		response: "the answer is 42",
		usage:    provider.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}
	tracker := model.NewCostTracker(catalog)

	r := New(model.NewSelector(catalog), responseCache, g, store, streamer,
		WithLogger(logger),
		WithCostTracker(tracker),
		withIDGenerator(func() string { return "req-1" }))

	return &harness{router: r, store: store, cache: responseCache, streamer: streamer, tracker: tracker}
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	require.NotEmpty(t, out)
	return out
}

const codingPrompt = "Write a function to check if a number is prime"

func TestChatStreamsAndAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)

	all := drain(t, events)

	meta := all[0]
	require.Equal(t, EventMetadata, meta.Type)
	require.Equal(t, "req-1", meta.Metadata.RequestID)
	require.Equal(t, "claude-3-5-haiku-20241022", meta.Metadata.Model)
	require.False(t, meta.Metadata.Cached)
	require.False(t, meta.Metadata.FailedOver)

	var content string
	for _, e := range all[1 : len(all)-1] {
		require.Equal(t, EventChunk, e.Type)
		require.Equal(t, "claude-3-5-haiku-20241022", e.Model)
		content += e.Content
	}
	require.Equal(t, "the answer is 42", content)

	done := all[len(all)-1]
	require.Equal(t, EventDone, done.Type)
	require.Equal(t, 150, done.Usage.TotalTokens)
	require.Greater(t, done.CostUSD, 0.0)
	require.Greater(t, done.Latency, time.Duration(0))
	require.False(t, done.Cached)
	require.False(t, done.FailedOver)
	require.Equal(t, -1, done.CreditsRemaining)

	// Token and cost accounting landed in the store.
	acct, err := h.store.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), acct.TokensUsedThisPeriod)
	require.InDelta(t, done.CostUSD, acct.TotalCostUSD, 1e-9)

	// The in-process tracker saw the same usage.
	require.InDelta(t, done.CostUSD, h.tracker.EstimatedCost(), 1e-9)
}

func TestChatDuplicatePromptServedFromCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})

	req := ChatRequest{AccountID: "u1", Prompt: codingPrompt}

	events, err := h.router.Chat(ctx, req)
	require.NoError(t, err)
	drain(t, events)

	costAfterFirst := mustAccount(t, h.store, "u1").TotalCostUSD
	tokensAfterFirst := mustAccount(t, h.store, "u1").TokensUsedThisPeriod
	require.Greater(t, costAfterFirst, 0.0)

	// Identical prompt and history: served entirely from cache.
	events, err = h.router.Chat(ctx, req)
	require.NoError(t, err)
	all := drain(t, events)

	require.True(t, all[0].Metadata.Cached)
	require.Equal(t, "claude-3-5-haiku-20241022", all[0].Metadata.Model)
	require.Equal(t, "the answer is 42", all[1].Content)
	require.Equal(t, EventDone, all[2].Type)
	require.True(t, all[2].Cached)

	// No second upstream call, no additional cost or tokens — but the hit
	// is still recorded as a served request at zero cost.
	require.Len(t, h.streamer.calls, 1)
	acct := mustAccount(t, h.store, "u1")
	require.Equal(t, costAfterFirst, acct.TotalCostUSD)
	require.Equal(t, tokensAfterFirst, acct.TokensUsedThisPeriod)

	count, _, err := h.store.RequestsSince(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestChatHistoryChangesCacheKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	drain(t, events)

	// Same prompt, different history: cache miss.
	// The only guard obstacle is the inter-arrival check, which this
	// account avoids by a fresh seed.
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})
	events, err = h.router.Chat(ctx, ChatRequest{
		AccountID: "u1",
		Prompt:    codingPrompt,
		History:   []cache.Turn{{Role: "user", Content: "earlier question"}},
	})
	require.NoError(t, err)
	all := drain(t, events)

	require.False(t, all[0].Metadata.Cached)
	require.Len(t, h.streamer.calls, 2)
}

func TestChatTrimsHistoryToContextWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	// Three 4000-token turns against the free tier's 8000-token window:
	// only the newest survives once the prompt and response reserve are
	// accounted for.
	turn := strings.Repeat("abcd", 4000)
	events, err := h.router.Chat(ctx, ChatRequest{
		AccountID: "u1",
		Prompt:    codingPrompt,
		History: []cache.Turn{
			{Role: "user", Content: turn + " first"},
			{Role: "assistant", Content: turn + " second"},
			{Role: "user", Content: turn + " third"},
		},
	})
	require.NoError(t, err)
	drain(t, events)

	msgs := h.streamer.lastReq.Messages
	require.Len(t, msgs, 2)
	require.Equal(t, provider.RoleUser, msgs[0].Role)
	require.Equal(t, turn+" third", msgs[0].Content)
	require.Equal(t, codingPrompt, msgs[1].Content)
}

func TestChatQuotaDenied(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierFree, TokensUsedThisPeriod: 100_000})

	_, err := h.router.Chat(context.Background(), ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.Error(t, err)

	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, guard.LimitMonthlyTokens, denied.Kind)
	require.Empty(t, h.streamer.calls)
}

func TestChatSuspiciousPromptDenied(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierPro})

	_, err := h.router.Chat(context.Background(), ChatRequest{AccountID: "u1", Prompt: "hi"})
	require.Error(t, err)

	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	require.False(t, denied.Suspended)
	require.Empty(t, h.streamer.calls)

	// The violation was recorded.
	require.Equal(t, 1, mustAccount(t, h.store, "u1").SuspiciousActivityCount)
}

func TestChatUnknownAccountDenied(t *testing.T) {
	h := newHarness(t)

	_, err := h.router.Chat(context.Background(), ChatRequest{AccountID: "ghost", Prompt: codingPrompt})
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, "account not found", denied.Reason)
}

func TestChatValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.router.Chat(context.Background(), ChatRequest{Prompt: codingPrompt})
	require.Error(t, err)

	_, err = h.router.Chat(context.Background(), ChatRequest{AccountID: "u1"})
	require.Error(t, err)
}

func TestChatPremiumCreditSpent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierFree})

	// A free account with unused premium credit reaches the pro-tier
	// coding model and spends one credit doing so.
	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	all := drain(t, events)

	require.Equal(t, "claude-3-5-haiku-20241022", all[0].Metadata.Model)
	require.True(t, all[0].Metadata.UsedPremiumCredit)
	require.Equal(t, 9, all[len(all)-1].CreditsRemaining)
	require.Equal(t, 1, mustAccount(t, h.store, "u1").PremiumRequestsThisPeriod)
}

func TestChatFreeTierWithoutCredit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierFree, PremiumRequestsThisPeriod: 10})

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	all := drain(t, events)

	// Credits exhausted: restricted to free-tier models, with the better
	// pro model surfaced as an upsell.
	require.Equal(t, "gpt-4o-mini", all[0].Metadata.Model)
	require.False(t, all[0].Metadata.UsedPremiumCredit)
	require.Equal(t, "Claude 3.5 Haiku", all[0].Metadata.BetterModelAvailable)
	require.Zero(t, mustAccount(t, h.store, "u1").PremiumRequestsThisPeriod)
}

func TestChatFailoverAnnotated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})
	h.streamer.serveAs = "gpt-4o"

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	all := drain(t, events)

	meta := all[0].Metadata
	require.True(t, meta.FailedOver)
	require.Equal(t, "gpt-4o", meta.Model)
	require.Equal(t, "claude-3-5-haiku-20241022", meta.OriginalModel)
	require.Equal(t, "openai rate limited the request", meta.FailoverReason)
	require.True(t, all[len(all)-1].FailedOver)

	// Cost is settled against the serving model, and the cached entry
	// names it too.
	acct := mustAccount(t, h.store, "u1")
	wantCost := model.Cost(mustDescriptor(t, h, "gpt-4o"), 100, 50)
	require.InDelta(t, wantCost, acct.TotalCostUSD, 1e-9)
}

func TestChatUpstreamExhaustedSurfacesError(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})
	h.streamer.err = failover.ErrExhausted

	_, err := h.router.Chat(context.Background(), ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.True(t, errors.Is(err, failover.ErrExhausted))
}

func TestChatStreamErrorEmitsErrorEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})

	catalog := h.streamer.catalog
	h.router.stream = streamFunc(func(ctx context.Context, modelID string, req provider.Request) (*failover.Result, error) {
		desc, _ := catalog.Get(modelID)
		chunks := make(chan provider.StreamChunk, 2)
		chunks <- provider.StreamChunk{Content: "partial "}
		chunks <- provider.StreamChunk{Error: provider.NewError("openai", "stream", provider.ErrUnavailable, true)}
		close(chunks)
		return &failover.Result{Chunks: chunks, Model: desc, OriginalModel: modelID, Attempts: 1}, nil
	})

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	all := drain(t, events)

	last := all[len(all)-1]
	require.Equal(t, EventError, last.Type)
	require.Error(t, last.Err)

	// A failed stream must not populate the cache.
	require.Zero(t, h.cache.Len())
}

type streamFunc func(ctx context.Context, modelID string, req provider.Request) (*failover.Result, error)

func (f streamFunc) Stream(ctx context.Context, modelID string, req provider.Request) (*failover.Result, error) {
	return f(ctx, modelID, req)
}

func TestUsageAndCacheStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(usage.Account{ID: "u1", Tier: model.TierUnlimited})

	events, err := h.router.Chat(ctx, ChatRequest{AccountID: "u1", Prompt: codingPrompt})
	require.NoError(t, err)
	drain(t, events)

	stats, err := h.router.UsageStats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), stats.TokensUsed)
	require.Equal(t, 1, stats.RequestsToday)

	cs := h.router.CacheStats()
	require.Equal(t, 1, cs.Size)
	require.Equal(t, int64(1), cs.Misses)
}

func mustAccount(t *testing.T, store *usage.MemoryStore, id string) usage.Account {
	t.Helper()
	acct, err := store.Account(context.Background(), id)
	require.NoError(t, err)
	return acct
}

func mustDescriptor(t *testing.T, h *harness, id string) model.Descriptor {
	t.Helper()
	desc, err := h.streamer.catalog.Get(id)
	require.NoError(t, err)
	return desc
}
