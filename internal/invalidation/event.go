// Package invalidation drops cache keys when the data behind them changes and
// fans the change out to other instances over Kafka.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event names cache keys that are no longer valid. Version orders events for
// the same key; receivers ignore versions they have already applied.
type Event struct {
	Version uint64    `json:"version"`
	Op      string    `json:"op"`
	Keys    []string  `json:"keys"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return fmt.Errorf("version is required")
	}
	switch e.Op {
	case OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be update|delete")
	}
	if len(e.Keys) == 0 {
		return fmt.Errorf("at least one key is required")
	}
	for i, k := range e.Keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("key %d is empty", i)
		}
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
