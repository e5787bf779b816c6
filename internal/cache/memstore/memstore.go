// Package memstore is the default in-process cache backend: a sharded map with
// lazy expiry on read. It has no size bound; see lrustore for a bounded variant.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
)

const numShards = 64

type Store struct {
	now    func() time.Time
	shards [numShards]shard
}

type shard struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	storedAt time.Time
	val      []byte
}

var (
	_ cache.Interface = (*Store)(nil)
	_ cache.Sweeper   = (*Store)(nil)
)

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i].m = make(map[string]entry)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	sh := s.pick(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.m[key]
	if !ok {
		return nil, false, nil
	}
	if !cache.Fresh(e.storedAt, s.now(), ttl) {
		delete(sh.m, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (s *Store) Set(_ context.Context, key string, val []byte) error {
	cp := append([]byte(nil), val...)
	sh := s.pick(key)
	sh.mu.Lock()
	sh.m[key] = entry{storedAt: s.now(), val: cp}
	sh.mu.Unlock()
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		sh := s.pick(k)
		sh.mu.Lock()
		delete(sh.m, k)
		sh.mu.Unlock()
	}
	return nil
}

// Sweep drops every entry older than maxAge and reports how many were removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	n := s.now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, e := range sh.m {
			if !cache.Fresh(e.storedAt, n, maxAge) {
				delete(sh.m, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		total += len(s.shards[i].m)
		s.shards[i].mu.Unlock()
	}
	return total
}

func (s *Store) pick(key string) *shard {
	h := xxhash.Sum64String(key)
	return &s.shards[h&(numShards-1)]
}
