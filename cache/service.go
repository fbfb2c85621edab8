package cache

import "context"

// KeySerializer builds a cache key from an operation name plus its arguments.
// Implementations must produce identical keys for logically identical calls,
// including calls whose slice arguments differ only in ordering or duplicates.
type KeySerializer interface {
	SerializeKey(op string, args ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through caching operations the engine needs.
// The shared process cache behind it outlives any one unit of work; the
// transaction-scoped cache in uowcache does not use this interface.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch adapts a typed fetch function onto a CacheService. A cached nil
// comes back as the zero T, which for pointer results preserves the "absent is
// nil, not an error" convention.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetch FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return v, nil
}
