package model

import (
	"github.com/routekit/routekit/prompt"
)

// Tier is a subscription level. Tiers form a total order:
// free < pro < unlimited.
type Tier string

// Subscription tiers.
const (
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierUnlimited Tier = "unlimited"
)

// tierOrder maps tiers to their position in the total order.
var tierOrder = map[Tier]int{
	TierFree:      0,
	TierPro:       1,
	TierUnlimited: 2,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierOrder[t]
	return ok
}

// AtLeast reports whether t is equal to or above other in the tier order.
func (t Tier) AtLeast(other Tier) bool {
	return tierOrder[t] >= tierOrder[other]
}

// Next returns the tier one level up, or t itself if already at the top.
func (t Tier) Next() Tier {
	switch t {
	case TierFree:
		return TierPro
	case TierPro:
		return TierUnlimited
	default:
		return t
	}
}

// Provider names for the upstream vendors the core can route to.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Descriptor describes one model in the catalog.
type Descriptor struct {
	// ID is the provider-specific model identifier sent on the wire.
	ID string `json:"id" toml:"id" yaml:"id"`

	// Provider names the upstream vendor ("openai", "anthropic", "google").
	Provider string `json:"provider" toml:"provider" yaml:"provider"`

	// DisplayName is the user-facing model name.
	DisplayName string `json:"display_name" toml:"display_name" yaml:"display_name"`

	// CostPerMillionInput is the input price in USD per 1M tokens.
	CostPerMillionInput float64 `json:"cost_per_1m_input" toml:"cost_per_1m_input" yaml:"cost_per_1m_input"`

	// CostPerMillionOutput is the output price in USD per 1M tokens.
	CostPerMillionOutput float64 `json:"cost_per_1m_output" toml:"cost_per_1m_output" yaml:"cost_per_1m_output"`

	// MaxContextTokens is the model's context window.
	MaxContextTokens int `json:"max_context_tokens" toml:"max_context_tokens" yaml:"max_context_tokens"`

	// SupportsStreaming is false for models that only return a complete
	// response. Such models are adapted to the streaming interface by
	// emitting a single chunk.
	SupportsStreaming bool `json:"supports_streaming" toml:"supports_streaming" yaml:"supports_streaming"`

	// RankByCategory maps a task category to the model's rank for it.
	// Lower is better.
	RankByCategory map[prompt.Category]int `json:"rank_by_category" toml:"rank_by_category" yaml:"rank_by_category"`

	// MinimumTier is the lowest tier that can reach this model.
	MinimumTier Tier `json:"minimum_tier" toml:"minimum_tier" yaml:"minimum_tier"`

	// PreferredCategories, when non-empty, restricts the model to the
	// listed categories regardless of rank.
	PreferredCategories []prompt.Category `json:"preferred_categories,omitempty" toml:"preferred_categories,omitempty" yaml:"preferred_categories,omitempty"`

	// MonthlyTokenCap is a hard per-model monthly ceiling independent of
	// tier quota. Zero means no cap.
	MonthlyTokenCap int64 `json:"monthly_token_cap,omitempty" toml:"monthly_token_cap,omitempty" yaml:"monthly_token_cap,omitempty"`
}

// Rank returns the model's rank for a category. Models without a rank for
// the category return ok=false and are not candidates for it.
func (d *Descriptor) Rank(category prompt.Category) (int, bool) {
	r, ok := d.RankByCategory[category]
	return r, ok
}

// AllowsCategory reports whether the model may serve the given category,
// honoring PreferredCategories when declared.
func (d *Descriptor) AllowsCategory(category prompt.Category) bool {
	if len(d.PreferredCategories) == 0 {
		return true
	}
	for _, c := range d.PreferredCategories {
		if c == category {
			return true
		}
	}
	return false
}

// AvgCostPerToken returns the average of input and output price per token.
// Used as the cost-aware tie-breaker during selection.
func (d *Descriptor) AvgCostPerToken() float64 {
	return (d.CostPerMillionInput + d.CostPerMillionOutput) / 2 / 1_000_000
}

// IsPremium reports whether reaching this model requires pro or higher.
func (d *Descriptor) IsPremium() bool {
	return d.MinimumTier.AtLeast(TierPro)
}
