package kafkaconsumer

import (
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	Source              string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

// FromConfig maps the service config onto consumer settings. Source is this
// instance's id; events it published itself are skipped.
func FromConfig(c config.InvalidationCfg, source string) Config {
	return Config{
		Brokers:          c.Brokers,
		Topic:            c.Topic,
		GroupID:          c.GroupID,
		Source:           source,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		DedupeSize:       8192,
	}
}
