package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/cache/codec"
	"github.com/adnan855570/Global-Dorm-App/internal/core/observability"
)

// Typed wraps a byte store with a codec. Backend and decode failures are logged
// and reported as misses so a broken cache never fails a lookup.
type Typed[V any] struct {
	store     Interface
	codec     codec.Codec[V]
	namespace string
	logger    *slog.Logger
}

func NewTyped[V any](store Interface, c codec.Codec[V], namespace string, logger *slog.Logger) *Typed[V] {
	if c == nil {
		c = codec.Msgpack[V]{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Typed[V]{store: store, codec: c, namespace: namespace, logger: logger}
}

func (t *Typed[V]) Get(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	var zero V
	raw, ok, err := t.store.Get(ctx, key, ttl)
	if err != nil {
		observability.IncCacheOpError("get")
		t.logger.WarnContext(ctx, "cache get failed; treating as miss", "key", key, "err", err)
		observability.IncCacheMiss(t.namespace)
		return zero, false
	}
	if !ok {
		observability.IncCacheMiss(t.namespace)
		return zero, false
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		observability.IncCacheOpError("decode")
		t.logger.WarnContext(ctx, "cache decode failed; treating as miss", "key", key, "err", err)
		observability.IncCacheMiss(t.namespace)
		return zero, false
	}
	observability.IncCacheHit(t.namespace)
	return v, true
}

func (t *Typed[V]) Set(ctx context.Context, key string, v V) {
	raw, err := t.codec.Encode(v)
	if err != nil {
		observability.IncCacheOpError("encode")
		t.logger.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return
	}
	if err := t.store.Set(ctx, key, raw); err != nil {
		observability.IncCacheOpError("set")
		t.logger.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}
