// Package store persists users, rooms and applications in an embedded clover document database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ostafen/clover"
)

const (
	collUsers        = "users"
	collRooms        = "rooms"
	collApplications = "applications"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
	ErrStatus    = errors.New("store: unexpected status")
)

type DB struct {
	db *clover.DB
	// serializes check-then-insert sequences that must stay unique
	mu  sync.Mutex
	now func() time.Time
}

func Open(path string) (*DB, error) {
	cdb, err := clover.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clover %q: %w", path, err)
	}
	d := &DB{db: cdb, now: time.Now}
	for _, c := range []string{collUsers, collRooms, collApplications} {
		if err := d.ensureCollection(c); err != nil {
			_ = cdb.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *DB) ensureCollection(name string) error {
	ok, err := d.db.HasCollection(name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if ok {
		return nil
	}
	if err := d.db.CreateCollection(name); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Ping reports whether the database still answers queries.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.db.HasCollection(collRooms); err != nil {
		return fmt.Errorf("clover ping: %w", err)
	}
	return nil
}

// Collections lists the database's collections.
func (d *DB) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := d.db.ListCollections()
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close clover: %w", err)
	}
	return nil
}

func (d *DB) findOne(coll, field string, value any) (*clover.Document, error) {
	doc, err := d.db.Query(coll).Where(clover.Field(field).Eq(value)).FindFirst()
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", coll, field, err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func getString(doc *clover.Document, field string) string {
	s, _ := doc.Get(field).(string)
	return s
}

func getStringPtr(doc *clover.Document, field string) *string {
	s, ok := doc.Get(field).(string)
	if !ok {
		return nil
	}
	return &s
}

func getFloat(doc *clover.Document, field string) float64 {
	switch v := doc.Get(field).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func getTime(doc *clover.Document, field string) time.Time {
	switch v := doc.Get(field).(type) {
	case time.Time:
		return v.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
