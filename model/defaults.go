package model

import (
	"github.com/routekit/routekit/prompt"
)

// DefaultFallbackModel is the designated low-cost model used when no model
// is eligible for a request (catalog misconfiguration).
const DefaultFallbackModel = "gpt-4o-mini"

// defaultModels is the built-in catalog. Ranks follow public arena
// leaderboards; costs are USD per 1M tokens.
var defaultModels = []Descriptor{
	{
		ID:                   "gpt-4o-mini",
		Provider:             ProviderOpenAI,
		DisplayName:          "GPT-4o Mini",
		CostPerMillionInput:  0.15,
		CostPerMillionOutput: 0.60,
		MaxContextTokens:     128000,
		SupportsStreaming:    true,
		RankByCategory: map[prompt.Category]int{
			prompt.CategoryCoding:       2,
			prompt.CategoryCreative:     1,
			prompt.CategoryMath:         1,
			prompt.CategoryCasual:       2,
			prompt.CategoryDataAnalysis: 2,
		},
		MinimumTier: TierFree,
	},
	{
		ID:                   "gemini-2.0-flash-thinking-exp-01-21",
		Provider:             ProviderGoogle,
		DisplayName:          "Gemini 2.0 Flash",
		CostPerMillionInput:  0.0, // free during experimental period
		CostPerMillionOutput: 0.0,
		MaxContextTokens:     1000000,
		// Reasoning variant: returns the complete response only.
		SupportsStreaming: false,
		RankByCategory: map[prompt.Category]int{
			prompt.CategoryCoding:       3,
			prompt.CategoryCreative:     3,
			prompt.CategoryMath:         2,
			prompt.CategoryCasual:       1,
			prompt.CategoryDataAnalysis: 1,
		},
		MinimumTier: TierFree,
	},
	{
		ID:                   "claude-3-5-haiku-20241022",
		Provider:             ProviderAnthropic,
		DisplayName:          "Claude 3.5 Haiku",
		CostPerMillionInput:  0.80,
		CostPerMillionOutput: 4.00,
		MaxContextTokens:     200000,
		SupportsStreaming:    true,
		RankByCategory: map[prompt.Category]int{
			prompt.CategoryCoding:       1,
			prompt.CategoryCreative:     2,
			prompt.CategoryMath:         3,
			prompt.CategoryCasual:       3,
			prompt.CategoryDataAnalysis: 3,
		},
		MinimumTier: TierPro,
	},
	{
		ID:                   "gpt-4o",
		Provider:             ProviderOpenAI,
		DisplayName:          "GPT-4o",
		CostPerMillionInput:  2.50,
		CostPerMillionOutput: 10.00,
		MaxContextTokens:     128000,
		SupportsStreaming:    true,
		RankByCategory: map[prompt.Category]int{
			prompt.CategoryCoding:       2,
			prompt.CategoryCreative:     1,
			prompt.CategoryMath:         1,
			prompt.CategoryCasual:       1,
			prompt.CategoryDataAnalysis: 1,
		},
		MinimumTier: TierUnlimited,
	},
	{
		ID:                   "claude-3-5-sonnet",
		Provider:             ProviderAnthropic,
		DisplayName:          "Claude 3.5 Sonnet",
		CostPerMillionInput:  3.00,
		CostPerMillionOutput: 15.00,
		MaxContextTokens:     200000,
		SupportsStreaming:    true,
		RankByCategory: map[prompt.Category]int{
			prompt.CategoryCoding:       1,
			prompt.CategoryCreative:     2,
			prompt.CategoryMath:         2,
			prompt.CategoryCasual:       2,
			prompt.CategoryDataAnalysis: 2,
		},
		MinimumTier: TierUnlimited,
	},
}

// defaultChains groups models that can substitute for each other when a
// provider call fails. Cheaper equivalents come first; capability upgrades
// close out each chain.
var defaultChains = FailoverChains{
	"gemini-2.0-flash-thinking-exp-01-21": {
		"gpt-4o-mini",
		"gpt-4o",
		"claude-3-5-sonnet",
	},
	"gpt-4o-mini": {
		"claude-3-5-haiku-20241022",
		"gemini-2.0-flash-thinking-exp-01-21",
		"gpt-4o",
	},
	"gpt-4o": {
		"claude-3-5-sonnet",
		"gemini-2.0-flash-thinking-exp-01-21",
	},
	"claude-3-5-haiku-20241022": {
		"gpt-4o-mini",
		"gemini-2.0-flash-thinking-exp-01-21",
		"gpt-4o",
	},
	"claude-3-5-sonnet": {
		"gpt-4o",
		"gemini-2.0-flash-thinking-exp-01-21",
	},
}

// DefaultCatalog returns the built-in catalog and failover chains.
// Use LoadConfig to replace it with versioned configuration data.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultModels, defaultChains, DefaultFallbackModel)
	if err != nil {
		// The built-in tables are static; failing to build them is a bug.
		panic("model: invalid built-in catalog: " + err.Error())
	}
	return c
}
