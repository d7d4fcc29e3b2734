// Package model provides the model catalog, tier-aware selection, failover
// chains, and cost accounting.
//
// The catalog is a static table of model descriptors: per-category
// capability ranks, pricing, context windows, and the minimum subscription
// tier required to reach each model. Selection picks the lowest rank for a
// prompt's classified category among the models reachable at the caller's
// effective tier, breaking ties on average cost per token.
//
//	selector := model.NewSelector(model.DefaultCatalog())
//	sel := selector.Select(promptText, model.TierFree, false)
//
// The catalog and failover chains are versioned configuration: LoadConfig
// reads them from TOML or YAML, and WatchConfig hot-reloads on change.
// Chains referencing models removed from the catalog have the dangling
// references dropped at load; use Validate for strict linting.
package model
