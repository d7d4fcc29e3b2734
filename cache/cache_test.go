package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetAfterSet(t *testing.T) {
	c := New()

	entry := Entry{
		ResponseText: "the answer",
		InputTokens:  12,
		OutputTokens: 34,
		ModelID:      "gpt-4o-mini",
	}
	c.Set("k1", entry)

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "the answer", got.ResponseText)
	assert.Equal(t, 12, got.InputTokens)
	assert.Equal(t, 34, got.OutputTokens)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCache_MissOnAbsentKey(t *testing.T) {
	c := New()

	_, ok := c.Get("nope")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestCache_TTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := New(WithTTL(time.Hour), withClock(func() time.Time { return clock() }))

	c.Set("k", Entry{ResponseText: "v"})

	_, ok := c.Get("k")
	require.True(t, ok)

	// Advance past the TTL without any intervening Set: the entry must not
	// be served even though it is still physically present.
	now = now.Add(time.Hour + time.Second)

	_, ok = c.Get("k")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 0, stats.Size)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(WithCapacity(3))

	c.Set("a", Entry{ResponseText: "a"})
	c.Set("b", Entry{ResponseText: "b"})
	c.Set("c", Entry{ResponseText: "c"})

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	// Inserting one more distinct key evicts exactly the LRU entry.
	c.Set("d", Entry{ResponseText: "d"})

	_, ok = c.Get("b")
	assert.False(t, ok, "LRU entry should have been evicted")

	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "entry %s should survive", k)
	}

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_SetExistingKeyRefreshes(t *testing.T) {
	c := New(WithCapacity(2))

	c.Set("a", Entry{ResponseText: "a1"})
	c.Set("b", Entry{ResponseText: "b"})
	c.Set("a", Entry{ResponseText: "a2"})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a2", got.ResponseText)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestCache_Sweep(t *testing.T) {
	now := time.Now()
	c := New(WithTTL(time.Minute), withClock(func() time.Time { return now }))

	c.Set("a", Entry{})
	c.Set("b", Entry{})

	now = now.Add(2 * time.Minute)
	c.Set("c", Entry{})
	// Stamp "c" fresh relative to the advanced clock: only a and b expire.
	removed := c.Sweep()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Stats(t *testing.T) {
	c := New()

	c.Set("k", Entry{})
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.InDelta(t, 2*AvgCostPerRequest, stats.EstimatedSavings, 1e-9)
	assert.Equal(t, 1, stats.Size)
}

func TestCache_Clear(t *testing.T) {
	c := New()
	c.Set("k", Entry{})
	c.Get("k")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.TotalRequests)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(WithCapacity(64))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%100)
				if j%2 == 0 {
					c.Set(key, Entry{ResponseText: key})
				} else {
					c.Get(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}

func TestKey_Deterministic(t *testing.T) {
	history := []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}

	k1 := Key("gpt-4o-mini", "What is Go?", history)
	k2 := Key("gpt-4o-mini", "What is Go?", history)
	assert.Equal(t, k1, k2)
}

func TestKey_NormalizesPrompt(t *testing.T) {
	history := []Turn{{Role: "user", Content: "hi"}}

	base := Key("m", "What is Go?", history)

	// Leading/trailing whitespace and letter case are immaterial.
	assert.Equal(t, base, Key("m", "  What is Go?  ", history))
	assert.Equal(t, base, Key("m", "WHAT IS GO?", history))
	assert.Equal(t, base, Key("m", "what    is   go?", history))
}

func TestKey_SensitiveToInputs(t *testing.T) {
	history := []Turn{{Role: "user", Content: "hi"}}

	base := Key("m", "What is Go?", history)

	assert.NotEqual(t, base, Key("other-model", "What is Go?", history))
	assert.NotEqual(t, base, Key("m", "What is Rust?", history))
	assert.NotEqual(t, base, Key("m", "What is Go?", []Turn{{Role: "user", Content: "different"}}))
}

func TestKey_UsesOnlyRecentHistory(t *testing.T) {
	long := make([]Turn, 0, 10)
	for i := 0; i < 10; i++ {
		long = append(long, Turn{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	// Only the last five turns participate: changing an older turn must
	// not change the key.
	changed := make([]Turn, len(long))
	copy(changed, long)
	changed[0].Content = "rewritten ancient history"

	assert.Equal(t, Key("m", "p", long), Key("m", "p", changed))

	// Changing a recent turn must change the key.
	changed[9].Content = "rewritten recent turn"
	assert.NotEqual(t, Key("m", "p", long), Key("m", "p", changed))
}
