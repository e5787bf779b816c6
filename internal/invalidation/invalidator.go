package invalidation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
	"github.com/adnan855570/Global-Dorm-App/internal/core/observability"
)

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop is used when no bus is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Invalidator removes keys from the local cache and announces the removal.
// Failures are logged; the caller's write has already succeeded.
type Invalidator struct {
	cache  cache.Interface
	pub    Publisher
	source string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last uint64
}

func NewInvalidator(c cache.Interface, pub Publisher, source string, logger *slog.Logger) *Invalidator {
	if pub == nil {
		pub = Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: c, pub: pub, source: source, logger: logger, now: time.Now}
}

func (i *Invalidator) Invalidate(ctx context.Context, op string, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := i.cache.Del(ctx, keys...); err != nil {
		observability.IncCacheOpError("del")
		i.logger.WarnContext(ctx, "local invalidation failed", "keys", keys, "err", err)
	}

	now := i.now().UTC()
	ev := Event{Version: i.nextVersion(now), Op: op, Keys: keys, TS: now, Source: i.source}
	if err := i.pub.Publish(ctx, ev); err != nil {
		observability.IncInvalidation("publish", "error")
		i.logger.WarnContext(ctx, "publish invalidation failed", "keys", keys, "err", err)
		return
	}
	observability.IncInvalidation("publish", "ok")
}

// versions are wall-clock nanos, bumped when the clock does not advance
func (i *Invalidator) nextVersion(now time.Time) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	v := uint64(now.UnixNano())
	if v <= i.last {
		v = i.last + 1
	}
	i.last = v
	return v
}
