package cache

import (
	"context"
	"time"
)

// WithOpTimeout bounds every backend call so a slow shared cache cannot stall a
// request; d <= 0 returns store unchanged.
func WithOpTimeout(store Interface, d time.Duration) Interface {
	if d <= 0 {
		return store
	}
	return &bounded{store: store, d: d}
}

type bounded struct {
	store Interface
	d     time.Duration
}

func (b *bounded) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.d)
	defer cancel()
	return b.store.Get(ctx, key, ttl)
}

func (b *bounded) Set(ctx context.Context, key string, val []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.d)
	defer cancel()
	return b.store.Set(ctx, key, val)
}

func (b *bounded) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := context.WithTimeout(ctx, b.d)
	defer cancel()
	return b.store.Del(ctx, keys...)
}
