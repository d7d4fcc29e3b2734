package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/routekit/routekit/prompt"
)

// Defaults for the cache policy.
const (
	// DefaultCapacity is the maximum number of entries held.
	DefaultCapacity = 1000

	// DefaultTTL is how long an entry stays servable.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is how often the background sweep drops expired
	// entries. The sweep is an optimization only: correctness comes from
	// the expiry check on read.
	DefaultSweepInterval = 15 * time.Minute

	// AvgCostPerRequest is the rough per-request spend used to derive the
	// estimated-savings figure from the hit count.
	AvgCostPerRequest = 0.002
)

// Entry is one cached completion.
type Entry struct {
	// ResponseText is the full completion text.
	ResponseText string

	// InputTokens and OutputTokens are the usage of the original call.
	InputTokens  int
	OutputTokens int

	// ModelID is the model that produced the response.
	ModelID string

	// Category is the task category the prompt classified to.
	Category prompt.Category

	// SelectionReason explains why the model was chosen.
	SelectionReason string

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Size          int     `json:"size"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`

	// EstimatedSavings is hits times a rough average cost per request.
	EstimatedSavings float64 `json:"estimated_savings"`
}

// Cache is a bounded, TTL-limited, LRU response cache. All operations are
// safe for concurrent use; a single mutex serializes the map and the
// recency list, which is enough since every operation is O(1) amortized.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // front = most recently used
	capacity  int
	ttl       time.Duration
	hits      int64
	misses    int64
	evictions int64

	logger *slog.Logger
	now    func() time.Time
}

type cacheItem struct {
	key   string
	entry Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity sets the maximum entry count.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets the entry time-to-live.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger for sweep reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache with capacity 1000 and a 1 hour TTL unless
// configured otherwise.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry for key if present and within TTL, marking it most
// recently used. An expired entry is dropped and counted as a miss: an
// entry older than the TTL is never returned, even if still physically
// present.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}

	item := elem.Value.(*cacheItem)
	if c.now().Sub(item.entry.CreatedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return Entry{}, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return item.entry, true
}

// Set stores an entry under key, evicting the least-recently-used entry
// first when at capacity. The entry's CreatedAt is stamped here.
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.CreatedAt = c.now()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheItem).key)
			c.evictions++
		}
	}

	c.entries[key] = c.order.PushFront(&cacheItem{key: key, entry: entry})
}

// Sweep drops expired entries and returns how many were removed.
// Purely an optimization; Get enforces TTL regardless of sweep timing.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		item := elem.Value.(*cacheItem)
		if now.Sub(item.entry.CreatedAt) > c.ttl {
			c.order.Remove(elem)
			delete(c.entries, item.key)
			removed++
		}
		elem = prev
	}
	return removed
}

// StartSweeper runs Sweep every interval until the context is cancelled.
// Pass 0 for the default 15 minute interval.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 {
					c.logger.Debug("cache sweep removed expired entries", "removed", removed)
				}
			}
		}
	}()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:             c.hits,
		Misses:           c.misses,
		Evictions:        c.evictions,
		Size:             c.order.Len(),
		TotalRequests:    total,
		HitRate:          hitRate,
		EstimatedSavings: float64(c.hits) * AvgCostPerRequest,
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}
