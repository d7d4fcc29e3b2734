package model

import (
	"sync"
)

// Usage tracks token usage for a model.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Requests     int64
}

// Add adds the given usage to this usage.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// TotalTokens returns the total tokens used.
func (u *Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Cost computes the USD cost of a request against a descriptor's pricing.
func Cost(m Descriptor, inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * m.CostPerMillionInput
	outputCost := float64(outputTokens) / 1_000_000 * m.CostPerMillionOutput
	return inputCost + outputCost
}

// CostTracker accumulates token usage and estimated spend per model.
// Safe for concurrent use.
type CostTracker struct {
	mu      sync.RWMutex
	catalog *Catalog
	totals  map[string]Usage
}

// NewCostTracker creates a cost tracker priced against the given catalog.
func NewCostTracker(catalog *Catalog) *CostTracker {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &CostTracker{
		catalog: catalog,
		totals:  make(map[string]Usage),
	}
}

// Record adds a usage record for the given model id.
func (t *CostTracker) Record(modelID string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.totals[modelID]
	u.InputTokens += int64(input)
	u.OutputTokens += int64(output)
	u.Requests++
	t.totals[modelID] = u
}

// Usage returns the usage for a specific model id.
func (t *CostTracker) Usage(modelID string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals[modelID]
}

// Summary returns a copy of all usage totals keyed by model id.
func (t *CostTracker) Summary() map[string]Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]Usage, len(t.totals))
	for k, v := range t.totals {
		result[k] = v
	}
	return result
}

// TotalUsage returns aggregated usage across all models.
func (t *CostTracker) TotalUsage() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total Usage
	for _, u := range t.totals {
		total.Add(u)
	}
	return total
}

// EstimatedCost calculates the estimated spend across all models using the
// catalog's pricing. Models no longer in the catalog contribute zero.
func (t *CostTracker) EstimatedCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total float64
	for id, usage := range t.totals {
		m, err := t.catalog.Get(id)
		if err != nil {
			continue
		}
		total += Cost(m, int(usage.InputTokens), int(usage.OutputTokens))
	}
	return total
}

// Reset clears all tracked usage.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = make(map[string]Usage)
}
