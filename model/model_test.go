package model

import (
	"testing"

	"github.com/routekit/routekit/prompt"
)

func TestTier_Order(t *testing.T) {
	if !TierPro.AtLeast(TierFree) {
		t.Error("pro should be at least free")
	}
	if !TierUnlimited.AtLeast(TierPro) {
		t.Error("unlimited should be at least pro")
	}
	if TierFree.AtLeast(TierPro) {
		t.Error("free should not be at least pro")
	}
	if !TierFree.AtLeast(TierFree) {
		t.Error("a tier should be at least itself")
	}
}

func TestTier_Next(t *testing.T) {
	tests := []struct {
		tier Tier
		next Tier
	}{
		{TierFree, TierPro},
		{TierPro, TierUnlimited},
		{TierUnlimited, TierUnlimited},
	}
	for _, tt := range tests {
		if got := tt.tier.Next(); got != tt.next {
			t.Errorf("%s.Next() = %s, expected %s", tt.tier, got, tt.next)
		}
	}
}

func TestCatalog_ForTier(t *testing.T) {
	c := DefaultCatalog()

	// Every model reachable at tier T must have MinimumTier <= T.
	for _, tier := range []Tier{TierFree, TierPro, TierUnlimited} {
		for _, m := range c.ForTier(tier) {
			if !tier.AtLeast(m.MinimumTier) {
				t.Errorf("tier %s reached model %s with minimum tier %s", tier, m.ID, m.MinimumTier)
			}
		}
	}

	// Higher tiers see at least as many models.
	free := len(c.ForTier(TierFree))
	pro := len(c.ForTier(TierPro))
	unlimited := len(c.ForTier(TierUnlimited))
	if pro < free || unlimited < pro {
		t.Errorf("model counts not monotonic: free=%d pro=%d unlimited=%d", free, pro, unlimited)
	}
}

func TestCatalog_BestForTask_TierMonotonicity(t *testing.T) {
	c := DefaultCatalog()

	// The model chosen at a higher tier must rank no worse than the one
	// chosen at a lower tier, for every category.
	tiers := []Tier{TierFree, TierPro, TierUnlimited}
	for _, cat := range prompt.Categories {
		prevRank := -1
		for _, tier := range tiers {
			m, ok := c.BestForTask(cat, tier)
			if !ok {
				t.Fatalf("no model for %s at %s", cat, tier)
			}
			rank, _ := m.Rank(cat)
			if prevRank != -1 && rank > prevRank {
				t.Errorf("category %s: rank worsened from %d to %d going up to %s",
					cat, prevRank, rank, tier)
			}
			prevRank = rank
		}
	}
}

func TestCatalog_BestForTask_CostTieBreak(t *testing.T) {
	models := []Descriptor{
		{
			ID: "pricey", Provider: ProviderOpenAI, DisplayName: "Pricey",
			CostPerMillionInput: 10, CostPerMillionOutput: 30,
			SupportsStreaming: true, MinimumTier: TierFree,
			RankByCategory: map[prompt.Category]int{prompt.CategoryCasual: 1},
		},
		{
			ID: "cheap", Provider: ProviderOpenAI, DisplayName: "Cheap",
			CostPerMillionInput: 1, CostPerMillionOutput: 2,
			SupportsStreaming: true, MinimumTier: TierFree,
			RankByCategory: map[prompt.Category]int{prompt.CategoryCasual: 1},
		},
	}

	c, err := NewCatalog(models, nil, "cheap")
	if err != nil {
		t.Fatal(err)
	}

	m, ok := c.BestForTask(prompt.CategoryCasual, TierFree)
	if !ok {
		t.Fatal("expected a model")
	}
	if m.ID != "cheap" {
		t.Errorf("rank tie should break on cost: got %s", m.ID)
	}
}

func TestCatalog_PreferredCategories(t *testing.T) {
	models := []Descriptor{
		{
			ID: "chat-only", Provider: ProviderGoogle, DisplayName: "Chat Only",
			SupportsStreaming: true, MinimumTier: TierFree,
			RankByCategory: map[prompt.Category]int{
				prompt.CategoryCasual: 1,
				prompt.CategoryCoding: 1,
			},
			PreferredCategories: []prompt.Category{prompt.CategoryCasual},
		},
		{
			ID: "general", Provider: ProviderOpenAI, DisplayName: "General",
			SupportsStreaming: true, MinimumTier: TierFree,
			RankByCategory: map[prompt.Category]int{
				prompt.CategoryCasual: 2,
				prompt.CategoryCoding: 2,
			},
		},
	}

	c, err := NewCatalog(models, nil, "general")
	if err != nil {
		t.Fatal(err)
	}

	// chat-only ranks better for coding but is restricted to casual.
	m, ok := c.BestForTask(prompt.CategoryCoding, TierFree)
	if !ok {
		t.Fatal("expected a model")
	}
	if m.ID != "general" {
		t.Errorf("preferred categories not honored: got %s", m.ID)
	}

	m, _ = c.BestForTask(prompt.CategoryCasual, TierFree)
	if m.ID != "chat-only" {
		t.Errorf("expected chat-only for casual, got %s", m.ID)
	}
}

func TestNewCatalog_DropsDanglingChainRefs(t *testing.T) {
	models := defaultModels[:2] // gpt-4o-mini and gemini flash only
	chains := FailoverChains{
		"gpt-4o-mini": {"claude-3-5-haiku-20241022", "gemini-2.0-flash-thinking-exp-01-21", "gpt-4o"},
		"gpt-4o":      {"claude-3-5-sonnet"}, // key itself not in catalog
	}

	c, err := NewCatalog(models, chains, "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}

	chain := c.Chain("gpt-4o-mini")
	if len(chain) != 1 || chain[0] != "gemini-2.0-flash-thinking-exp-01-21" {
		t.Errorf("expected dangling refs dropped, got %v", chain)
	}
	if c.Chain("gpt-4o") != nil {
		t.Error("chain keyed by a removed model should be dropped")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(defaultModels, defaultChains, DefaultFallbackModel); err != nil {
		t.Errorf("built-in tables should validate: %v", err)
	}

	bad := FailoverChains{"gpt-4o-mini": {"no-such-model"}}
	if err := Validate(defaultModels, bad, DefaultFallbackModel); err == nil {
		t.Error("expected validation error for dangling chain reference")
	}

	if err := Validate(defaultModels, defaultChains, "no-such-model"); err == nil {
		t.Error("expected validation error for unknown default model")
	}
}

func TestFailoverChains_NextCandidate(t *testing.T) {
	chains := FailoverChains{
		"a": {"b", "c", "d"},
	}

	tests := []struct {
		name      string
		attempted []string
		expected  string
		ok        bool
	}{
		{"first attempt", []string{"a"}, "b", true},
		{"second attempt", []string{"a", "b"}, "c", true},
		{"third attempt", []string{"a", "b", "c"}, "d", true},
		{"exhausted", []string{"a", "b", "c", "d"}, "", false},
		{"no chain", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "a"
			if tt.name == "no chain" {
				key = "z"
			}
			got, ok := chains.NextCandidate(key, tt.attempted)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("NextCandidate() = (%q, %v), expected (%q, %v)", got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestCost(t *testing.T) {
	m := Descriptor{CostPerMillionInput: 2.50, CostPerMillionOutput: 10.00}

	got := Cost(m, 1_000_000, 500_000)
	expected := 2.50 + 5.00
	if got != expected {
		t.Errorf("Cost() = %v, expected %v", got, expected)
	}

	if Cost(m, 0, 0) != 0 {
		t.Error("zero tokens should cost zero")
	}
}

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker(DefaultCatalog())

	tracker.Record("gpt-4o", 1_000_000, 0)
	tracker.Record("gpt-4o", 0, 1_000_000)
	tracker.Record("unknown-model", 500, 500)

	u := tracker.Usage("gpt-4o")
	if u.Requests != 2 || u.InputTokens != 1_000_000 || u.OutputTokens != 1_000_000 {
		t.Errorf("unexpected usage: %+v", u)
	}

	// gpt-4o: $2.50 input + $10.00 output; unknown model contributes zero.
	if got := tracker.EstimatedCost(); got != 12.50 {
		t.Errorf("EstimatedCost() = %v, expected 12.50", got)
	}

	total := tracker.TotalUsage()
	if total.Requests != 3 {
		t.Errorf("TotalUsage().Requests = %d, expected 3", total.Requests)
	}

	tracker.Reset()
	if tracker.TotalUsage().Requests != 0 {
		t.Error("Reset should clear totals")
	}
}
