package guard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimitConfig sizes a per-IP token bucket.
type IPLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// Preset IP rate limits for different endpoint classes.
var (
	// IPLimitAuth is strict, to slow credential brute force.
	IPLimitAuth = IPLimitConfig{MaxRequests: 10, Window: 15 * time.Minute}

	// IPLimitAPI covers general API traffic.
	IPLimitAPI = IPLimitConfig{MaxRequests: 100, Window: time.Minute}

	// IPLimitChat covers the expensive completion path.
	IPLimitChat = IPLimitConfig{MaxRequests: 30, Window: time.Minute}
)

// ipEntry pairs a limiter with its last-touch time for eviction.
type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter throttles requests per client IP using token buckets. Idle
// entries are evicted so the map does not grow without bound.
type IPLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewIPLimiter creates a limiter with the given per-IP config.
func NewIPLimiter(cfg IPLimitConfig) *IPLimiter {
	return &IPLimiter{
		entries: make(map[string]*ipEntry),
		limit:   rate.Limit(float64(cfg.MaxRequests) / cfg.Window.Seconds()),
		burst:   cfg.MaxRequests,
		idleTTL: 2 * cfg.Window,
		now:     time.Now,
	}
}

// Allow reports whether a request from ip may proceed now.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = l.now()
	return entry.limiter.Allow()
}

// Len returns the number of tracked IPs.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweep evicts entries idle longer than the TTL.
func (l *IPLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	for ip, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}

// StartSweeper evicts idle entries on the given interval until ctx is
// cancelled.
func (l *IPLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}
