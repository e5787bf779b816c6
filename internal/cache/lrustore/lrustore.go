// Package lrustore is a bounded cache backend: the same per-read expiry as
// memstore, with least-recently-used eviction once maxEntries is reached.
package lrustore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
)

type entry struct {
	storedAt time.Time
	val      []byte
}

type Store struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry]
	now func() time.Time
}

var (
	_ cache.Interface = (*Store)(nil)
	_ cache.Sweeper   = (*Store)(nil)
)

func New(maxEntries int, now func() time.Time) (*Store, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("lrustore: maxEntries must be > 0 (got %d)", maxEntries)
	}
	if now == nil {
		now = time.Now
	}
	l, err := simplelru.NewLRU[string, entry](maxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("lrustore: %w", err)
	}
	return &Store{lru: l, now: now}, nil
}

func (s *Store) Get(_ context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !cache.Fresh(e.storedAt, s.now(), ttl) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (s *Store) Set(_ context.Context, key string, val []byte) error {
	cp := append([]byte(nil), val...)
	s.mu.Lock()
	s.lru.Add(key, entry{storedAt: s.now(), val: cp})
	s.mu.Unlock()
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		s.lru.Remove(k)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now()
	removed := 0
	for _, k := range s.lru.Keys() {
		e, ok := s.lru.Peek(k)
		if ok && !cache.Fresh(e.storedAt, n, maxAge) {
			s.lru.Remove(k)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
