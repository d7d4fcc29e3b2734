// Package cache provides a content-addressed, in-memory response cache
// with LRU eviction and TTL expiry.
//
// Keys are SHA-256 hashes over the model id, the normalized prompt, and
// the last five conversation turns, so an identical question in an
// identical context reuses the previously produced completion instead of
// paying for another provider call.
//
//	c := cache.New(cache.WithCapacity(1000), cache.WithTTL(time.Hour))
//	key := cache.Key(modelID, promptText, history)
//	if entry, ok := c.Get(key); ok { ... }
//
// Expiry is enforced on every read; the optional background sweeper
// (StartSweeper) only reclaims memory earlier.
package cache
