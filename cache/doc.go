// Package cache provides the shared process cache contract and the key
// serialization used across the habit engine.
//
// It exports two interfaces with default implementations:
//
//   - CacheService: read-through caching with key and prefix invalidation
//   - KeySerializer: builds stable keys from operation names and arguments
//
// # Key Grammar
//
// Keys are colon-separated segments starting with the operation name:
//
//	serializer := cache.NewKeySerializer()
//	serializer.SerializeKey("habit_get_by_id", int64(12))
//	// "habit_get_by_id:12"
//
// Day arguments collapse to their calendar date and id slices are sorted and
// deduplicated before joining, so BulkChecks([3,7,3]) and BulkChecks([7,3])
// over the same range produce one key. Prefix invalidation works because
// every key for an entity kind starts with that entity's name, e.g.
// "habit_stats:" covers every cached calculation.
//
// # Usage
//
// The typed wrapper keeps call sites free of assertions:
//
//	h, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (*habit.Habit, error) {
//		return repo.GetByID(ctx, 12)
//	})
//
// A fetched nil is cached like any other value, which prevents repeated
// queries for rows that do not exist.
//
// The sturdyc-backed implementation lives in internal/cacheinfra and is built
// through NewCacheService. The transaction-scoped cache in uowcache is a
// separate, simpler structure and does not implement CacheService.
package cache
