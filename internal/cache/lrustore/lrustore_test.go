package lrustore

import (
	"context"
	"testing"
	"time"
)

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	if _, err := New(0, nil); err == nil {
		t.Fatalf("expected error for size 0")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s, err := New(2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"))
	_ = s.Set(ctx, "b", []byte("2"))
	if _, ok, _ := s.Get(ctx, "a", time.Minute); !ok {
		t.Fatalf("a should be present")
	}
	_ = s.Set(ctx, "c", []byte("3")) // evicts b, a was touched

	if _, ok, _ := s.Get(ctx, "b", time.Minute); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok, _ := s.Get(ctx, "a", time.Minute); !ok {
		t.Fatalf("a should survive")
	}
	if s.Len() != 2 {
		t.Fatalf("len=%d want 2", s.Len())
	}
}

func TestSetAndGet_DoNotAliasStoredValue(t *testing.T) {
	s, _ := New(4, nil)
	ctx := context.Background()

	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'X'
	got, _, _ := s.Get(ctx, "k", time.Minute)
	got[1] = 'Y'
	again, _, _ := s.Get(ctx, "k", time.Minute)
	if string(again) != "abc" {
		t.Fatalf("stored value=%q want abc", again)
	}
}

func TestExpiryOnRead(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(10, func() time.Time { return now })
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"))
	now = now.Add(601 * time.Second)

	if _, ok, _ := s.Get(ctx, "k", 600*time.Second); ok {
		t.Fatalf("expected stale miss")
	}
	if s.Len() != 0 {
		t.Fatalf("stale entry not removed")
	}
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(10, func() time.Time { return now })
	ctx := context.Background()

	_ = s.Set(ctx, "old", []byte("v"))
	now = now.Add(time.Hour)
	_ = s.Set(ctx, "new", []byte("v"))

	if n := s.Sweep(10 * time.Minute); n != 1 {
		t.Fatalf("Sweep=%d want 1", n)
	}
	if _, ok, _ := s.Get(ctx, "new", time.Minute); !ok {
		t.Fatalf("fresh entry swept")
	}
}
