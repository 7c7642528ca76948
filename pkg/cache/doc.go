// Package cache stores upstream account payloads in Redis so repeated
// batches can revalidate instead of refetching.
//
// Entries keep the ETag and Last-Modified validators of the original
// response. When an entry exists the upstream client sends a conditional
// request and serves the cached payload on 304 Not Modified.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.Key{AccountID: "a1"}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - fanout_cache_hits_total - Cache hits
//   - fanout_cache_misses_total - Cache misses
//   - fanout_304_responses_total - Conditional request successes
//   - fanout_cache_errors_total{operation} - Cache operation errors
package cache
