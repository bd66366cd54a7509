package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed key-value cache with per-entry TTLs. Callers
// that only read through it can take the interface and leave the
// backing store to the caller that wires them up.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
