package model

import (
	"fmt"

	"github.com/routekit/routekit/prompt"
	"github.com/routekit/routekit/tokens"
)

// Selection is the outcome of choosing a model for a prompt.
type Selection struct {
	// Model is the chosen descriptor.
	Model Descriptor

	// Reason is a human-readable explanation of the choice.
	Reason string

	// Category is the classified task category.
	Category prompt.Category

	// Confidence is the classifier's confidence for the category.
	Confidence float64

	// EstimatedTokens covers the prompt plus a response reserve. Used for
	// quota pre-checks only; history is bounded separately by the tier's
	// context window.
	EstimatedTokens int

	// IsPremium is true when the chosen model requires pro or higher, i.e.
	// serving it consumes a premium credit for free-tier callers.
	IsPremium bool

	// UsedPremiumCredit is true when a free-tier caller reached the model
	// only through their premium-credit allowance.
	UsedPremiumCredit bool

	// BetterModelAvailable names a superior model reachable one tier up,
	// when one exists. Empty otherwise.
	BetterModelAvailable string
}

// Selector chooses a model for a classified prompt, a caller's tier, and
// their premium-credit state.
type Selector struct {
	catalog *Catalog
	usage   *CostTracker
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithUsage attaches a usage tracker so models with a MonthlyTokenCap are
// skipped once their tracked consumption reaches the cap.
func WithUsage(tracker *CostTracker) SelectorOption {
	return func(s *Selector) { s.usage = tracker }
}

// NewSelector creates a selector over the given catalog.
// A nil catalog uses the built-in default.
func NewSelector(catalog *Catalog, opts ...SelectorOption) *Selector {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	s := &Selector{catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the catalog the selector reads from.
func (s *Selector) Catalog() *Catalog {
	return s.catalog
}

// Select picks the best model for the prompt at the caller's tier.
//
// A free-tier caller with unused premium credit is treated as pro for this
// one selection (the hybrid freemium mechanism). Candidates are the models
// whose minimum tier is reachable at the effective tier and whose preferred
// categories, if declared, include the classified category; the lowest rank
// for the category wins, ties broken by lowest average cost per token. If
// no model is eligible at all, the catalog's designated default is used
// rather than failing the request.
func (s *Selector) Select(text string, tier Tier, hasPremiumCredit bool) Selection {
	analysis := prompt.Analyze(text)

	effectiveTier := tier
	if tier == TierFree && hasPremiumCredit {
		effectiveTier = TierPro
	}

	chosen, ok := s.bestAvailable(analysis.Category, effectiveTier)
	if !ok {
		chosen = s.catalog.Default()
	}

	usedCredit := tier == TierFree && hasPremiumCredit && chosen.IsPremium()

	// Surface the upgrade target: the best pick one tier above the paid
	// tier, when it differs from what the caller is getting.
	better := ""
	if next := tier.Next(); next != tier && !usedCredit {
		if upgrade, upOK := s.catalog.BestForTask(analysis.Category, next); upOK && upgrade.ID != chosen.ID {
			better = upgrade.DisplayName
		}
	}

	reason := selectionReason(chosen.DisplayName, analysis.Category, analysis.Confidence, usedCredit)
	if !ok {
		reason = fmt.Sprintf("Using %s (default model)", chosen.DisplayName)
	}

	return Selection{
		Model:                chosen,
		Reason:               reason,
		Category:             analysis.Category,
		Confidence:           analysis.Confidence,
		EstimatedTokens:      tokens.EstimateRequest(text, nil),
		IsPremium:            chosen.IsPremium(),
		UsedPremiumCredit:    usedCredit,
		BetterModelAvailable: better,
	}
}

// bestAvailable walks the ranked candidates for the category, skipping any
// whose per-model monthly token cap is already spent.
func (s *Selector) bestAvailable(category prompt.Category, tier Tier) (Descriptor, bool) {
	for _, m := range s.catalog.RankedForTask(category, tier) {
		if s.capExhausted(m) {
			continue
		}
		return m, true
	}
	return Descriptor{}, false
}

func (s *Selector) capExhausted(m Descriptor) bool {
	if s.usage == nil || m.MonthlyTokenCap <= 0 {
		return false
	}
	u := s.usage.Usage(m.ID)
	return u.TotalTokens() >= m.MonthlyTokenCap
}

// categoryDescriptions phrases each category for selection reasons.
var categoryDescriptions = map[prompt.Category]string{
	prompt.CategoryCoding:       "coding and technical tasks",
	prompt.CategoryCreative:     "creative writing and content generation",
	prompt.CategoryMath:         "mathematical reasoning and calculations",
	prompt.CategoryCasual:       "general conversation",
	prompt.CategoryDataAnalysis: "data analysis and summarization",
}

func selectionReason(displayName string, category prompt.Category, confidence float64, usedCredit bool) string {
	desc := categoryDescriptions[category]

	if usedCredit {
		return fmt.Sprintf("%s excels at %s ⭐ Premium answer", displayName, desc)
	}

	switch {
	case confidence > 0.7:
		return fmt.Sprintf("%s excels at %s (ranked #1 in your tier)", displayName, desc)
	case confidence > 0.4:
		return fmt.Sprintf("%s performs well for %s", displayName, desc)
	default:
		return fmt.Sprintf("%s is a versatile choice for your request", displayName)
	}
}

// AvailableForTier reports whether a model id is reachable at the tier.
func (s *Selector) AvailableForTier(id string, tier Tier) bool {
	m, err := s.catalog.Get(id)
	if err != nil {
		return false
	}
	return tier.AtLeast(m.MinimumTier)
}

// UpgradeSuggestion describes the tier needed to reach a desired model.
type UpgradeSuggestion struct {
	NeedsUpgrade  bool
	SuggestedTier Tier
	Reason        string
}

// SuggestUpgrade returns the upgrade needed for a caller at tier to reach
// the desired model, if any.
func (s *Selector) SuggestUpgrade(desiredModel string, tier Tier) UpgradeSuggestion {
	m, err := s.catalog.Get(desiredModel)
	if err != nil {
		return UpgradeSuggestion{}
	}
	if tier.AtLeast(m.MinimumTier) {
		return UpgradeSuggestion{}
	}
	return UpgradeSuggestion{
		NeedsUpgrade:  true,
		SuggestedTier: m.MinimumTier,
		Reason:        fmt.Sprintf("%s is available on the %s tier", m.DisplayName, m.MinimumTier),
	}
}
