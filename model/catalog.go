package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/routekit/routekit/prompt"
)

// Sentinel errors for catalog operations.
var (
	// ErrUnknownModel indicates a model id is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrEmptyCatalog indicates the catalog holds no models.
	ErrEmptyCatalog = errors.New("catalog is empty")
)

// Catalog is the static table of available models plus their failover
// chains. It is read-only after construction; build a new Catalog to apply
// configuration changes.
type Catalog struct {
	models  map[string]Descriptor
	chains  FailoverChains
	ordered []string // ids in insertion order, for deterministic iteration

	// defaultID is the designated low-cost fallback when no model is
	// eligible for a request.
	defaultID string
}

// NewCatalog builds a catalog from descriptors and failover chains.
// defaultID designates the fallback model; it must be present in models.
// Chains referencing models absent from the catalog have those references
// dropped (see Validate for strict checking).
func NewCatalog(models []Descriptor, chains FailoverChains, defaultID string) (*Catalog, error) {
	if len(models) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		models:    make(map[string]Descriptor, len(models)),
		chains:    make(FailoverChains, len(chains)),
		defaultID: defaultID,
	}

	for _, m := range models {
		if m.ID == "" {
			return nil, errors.New("model with empty id")
		}
		if !m.MinimumTier.Valid() {
			return nil, fmt.Errorf("model %s: invalid minimum tier %q", m.ID, m.MinimumTier)
		}
		if _, dup := c.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		c.models[m.ID] = m
		c.ordered = append(c.ordered, m.ID)
	}

	if _, ok := c.models[defaultID]; !ok {
		return nil, fmt.Errorf("default model %s: %w", defaultID, ErrUnknownModel)
	}

	// Chains may reference models that were removed from the catalog in a
	// newer config revision. Dropping the dangling references keeps the
	// remaining substitutes usable instead of failing the whole chain.
	for id, chain := range chains {
		if _, ok := c.models[id]; !ok {
			continue
		}
		kept := make([]string, 0, len(chain))
		for _, sub := range chain {
			if _, ok := c.models[sub]; ok {
				kept = append(kept, sub)
			}
		}
		if len(kept) > 0 {
			c.chains[id] = kept
		}
	}

	return c, nil
}

// Get returns the descriptor for a model id.
func (c *Catalog) Get(id string) (Descriptor, error) {
	m, ok := c.models[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// Has reports whether the catalog contains the model id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.models[id]
	return ok
}

// Default returns the designated fallback model.
func (c *Catalog) Default() Descriptor {
	return c.models[c.defaultID]
}

// Models returns all descriptors in a stable order.
func (c *Catalog) Models() []Descriptor {
	out := make([]Descriptor, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.models[id])
	}
	return out
}

// ForTier returns the models reachable at the given tier, in stable order.
// Every returned model satisfies MinimumTier <= tier.
func (c *Catalog) ForTier(tier Tier) []Descriptor {
	var out []Descriptor
	for _, id := range c.ordered {
		m := c.models[id]
		if tier.AtLeast(m.MinimumTier) {
			out = append(out, m)
		}
	}
	return out
}

// RankedForTask returns the models eligible for a category at the tier,
// best first: lowest rank for the category wins, ties broken by lowest
// average cost-per-token.
func (c *Catalog) RankedForTask(category prompt.Category, tier Tier) []Descriptor {
	var eligible []Descriptor
	for _, m := range c.ForTier(tier) {
		if !m.AllowsCategory(category) {
			continue
		}
		if _, ok := m.Rank(category); !ok {
			continue
		}
		eligible = append(eligible, m)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, _ := eligible[i].Rank(category)
		rj, _ := eligible[j].Rank(category)
		if ri != rj {
			return ri < rj
		}
		return eligible[i].AvgCostPerToken() < eligible[j].AvgCostPerToken()
	})
	return eligible
}

// BestForTask returns the best model for a category reachable at the tier.
// Returns false when no reachable model ranks the category.
func (c *Catalog) BestForTask(category prompt.Category, tier Tier) (Descriptor, bool) {
	ranked := c.RankedForTask(category, tier)
	if len(ranked) == 0 {
		return Descriptor{}, false
	}
	return ranked[0], true
}

// Chain returns the failover chain for a model id, or nil if none.
func (c *Catalog) Chain(id string) []string {
	return c.chains[id]
}

// NextCandidate returns the next untried substitute in the failover chain
// for the originally requested model.
func (c *Catalog) NextCandidate(original string, attempted []string) (string, bool) {
	return c.chains.NextCandidate(original, attempted)
}

// Validate checks catalog invariants strictly: a non-empty model set, a
// reachable default, and chains that only reference catalog entries.
// NewCatalog already drops dangling chain references; Validate is for
// configuration linting where silent dropping is not wanted.
func Validate(models []Descriptor, chains FailoverChains, defaultID string) error {
	ids := make(map[string]struct{}, len(models))
	for _, m := range models {
		ids[m.ID] = struct{}{}
	}

	if len(ids) == 0 {
		return ErrEmptyCatalog
	}
	if _, ok := ids[defaultID]; !ok {
		return fmt.Errorf("default model %s: %w", defaultID, ErrUnknownModel)
	}

	var errs []error
	for id, chain := range chains {
		if _, ok := ids[id]; !ok {
			errs = append(errs, fmt.Errorf("chain key %s: %w", id, ErrUnknownModel))
		}
		for _, sub := range chain {
			if _, ok := ids[sub]; !ok {
				errs = append(errs, fmt.Errorf("chain %s references %s: %w", id, sub, ErrUnknownModel))
			}
		}
	}
	return errors.Join(errs...)
}
