// Package redisstore is the shared cache backend: entries live in Redis so every
// instance sees the same lookups, with the same per-read freshness rule as memstore.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
)

type Option func(*Client)

func WithPoolSize(n int) Option {
	return func(c *Client) { c.opts.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.WriteTimeout = d }
}

// WithRetention sets the Redis key TTL. It only bounds how long Redis keeps an
// entry; readers still decide freshness from the stored timestamp.
func WithRetention(d time.Duration) Option {
	return func(c *Client) { c.retention = d }
}

func WithKeyPrefix(p string) Option {
	return func(c *Client) { c.prefix = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

type Client struct {
	rdb       *redis.Client
	opts      *redis.Options
	retention time.Duration
	prefix    string
	now       func() time.Time
}

var _ cache.Interface = (*Client)(nil)

type envelope struct {
	StoredAt int64  `msgpack:"t"`
	Value    []byte `msgpack:"v"`
}

// deletes KEYS[1] only if it still holds the stale payload we read
var delIfUnchanged = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	c := &Client{
		opts: &redis.Options{
			Addr:         addr,
			PoolSize:     64,
			MinIdleConns: 4,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		},
		retention: 2 * cache.DefaultTTL,
		prefix:    "globaldorm:",
		now:       time.Now,
	}
	for _, f := range opts {
		f(c)
	}

	c.rdb = redis.NewClient(c.opts)
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func (c *Client) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	k := c.prefix + key
	raw, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", k, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("redis decode %q: %w", k, err)
	}
	if !cache.Fresh(time.Unix(0, env.StoredAt), c.now(), ttl) {
		if err := delIfUnchanged.Run(ctx, c.rdb, []string{k}, raw).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, false, fmt.Errorf("redis drop stale %q: %w", k, err)
		}
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte) error {
	k := c.prefix + key
	raw, err := msgpack.Marshal(envelope{StoredAt: c.now().UnixNano(), Value: val})
	if err != nil {
		return fmt.Errorf("redis encode %q: %w", k, err)
	}
	if err := c.rdb.Set(ctx, k, raw, c.retention).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", k, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = c.prefix + k
	}
	if err := c.rdb.Del(ctx, ks...).Err(); err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(ks), err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
