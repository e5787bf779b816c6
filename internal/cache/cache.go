// Package cache implements the expiring key/value cache placed in front of upstream lookups.
package cache

import (
	"context"
	"time"
)

// DefaultTTL applies when a read passes ttl <= 0.
const DefaultTTL = 600 * time.Second

// Interface is a last-write-wins byte store whose entries are valid only while
// now-storedAt < ttl, with ttl chosen by the reader. Stale entries are removed on read.
// Set and Get copy values; neither side aliases the stored bytes.
type Interface interface {
	Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Sweeper is implemented by backends that can drop old entries eagerly.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

func Fresh(storedAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(storedAt) < ttl
}
