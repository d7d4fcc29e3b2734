// Package routekit routes LLM chat requests: it classifies prompts, picks
// the cheapest capable model for the caller's tier, serves repeated prompts
// from cache, enforces quota and abuse limits, and streams from upstream
// vendors with automatic failover.
//
// Each subpackage can be used independently:
//
//   - prompt: Prompt classification and suspicious-content detection
//   - tokens: Token estimation, truncation, and history trimming
//   - model: Model catalog, tier-aware selection, failover chains, cost tracking
//   - cache: TTL response cache keyed by model, prompt, and history
//   - usage: Account usage stores (in-memory and SQLite)
//   - guard: Quota enforcement, abuse detection, per-IP rate limiting
//   - provider: Vendor client interface, error taxonomy, and mock
//   - openai, anthropic, google: HTTP streaming clients per vendor
//   - failover: Chain-walking stream orchestration with backoff
//   - router: The composed end-to-end pipeline
//
// # Quick Start
//
//	store := usage.NewMemoryStore()
//	catalog := model.DefaultCatalog()
//
//	orch := failover.New(catalog, map[string]provider.Client{
//		openai.Name:    provider.MustNew(openai.Name, provider.Config{APIKey: openaiKey}),
//		anthropic.Name: provider.MustNew(anthropic.Name, provider.Config{APIKey: anthropicKey}),
//	})
//
//	r := router.New(model.NewSelector(catalog), cache.New(),
//		guard.New(store), store, orch)
//
//	events, err := r.Chat(ctx, router.ChatRequest{
//		AccountID: "acct-1",
//		Prompt:    "Write a function to check if a number is prime",
//	})
//
// The returned channel carries a metadata event, content chunks, and a
// terminal done or error event.
package routekit
