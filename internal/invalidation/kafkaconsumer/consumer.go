// Package kafkaconsumer applies cache invalidation events published by other instances.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
	obs "github.com/adnan855570/Global-Dorm-App/internal/core/observability"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation"
	mylog "github.com/adnan855570/Global-Dorm-App/internal/logger"
)

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  cache.Interface
	ver    *versionDedupe
	zlog   *zerolog.Logger

	assigned atomic.Bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, c cache.Interface) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}
	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		ver:    newVersionDedupe(cfg.DedupeSize),
		zlog:   mylog.FromContext(base, zl),
	}
}

// Start joins the consumer group and consumes in the background until ctx is
// done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	handler := &groupHandler{
		process: c.ProcessOne,
		setup:   func() { c.assigned.Store(true) },
		cleanup: func() { c.assigned.Store(false) },
	}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				c.logger.Info("kafka invalidation consumer shutting down")
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.logger.Error("kafka group error", "err", err)
		}
	}()
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Ping reports an error until the group has assigned this consumer a claim.
func (c *Consumer) Ping(context.Context) error {
	if !c.assigned.Load() {
		return errors.New("kafka consumer has no partition assignment")
	}
	return nil
}

// ProcessOne applies a single invalidation message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncInvalidation("consume", "decode_error")
		c.zlog.Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		// a poison message must not block the partition
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncInvalidation("consume", "invalid")
		c.logger.Warn("skipping invalid invalidation event", "offset", msg.Offset, "err", err)
		return nil
	}
	if ev.Source != "" && ev.Source == c.cfg.Source {
		obs.IncInvalidation("consume", "self")
		return nil
	}

	// versions are per-publisher clocks, so they only order events of one source
	del := make([]string, 0, len(ev.Keys))
	applied := make([]string, 0, len(ev.Keys))
	for _, k := range ev.Keys {
		dk := dedupeKey(ev.Source, k)
		if c.ver.shouldApply(dk, ev.Version) {
			del = append(del, k)
			applied = append(applied, dk)
		}
	}
	if len(del) == 0 {
		obs.IncInvalidation("consume", "stale")
		return nil
	}

	if err := c.cache.Del(ctx, del...); err != nil {
		obs.IncInvalidation("consume", "error")
		c.ver.forget(applied...)
		c.zlog.Error().Err(err).
			Str("kind", "cache_del").
			Int32("partition", msg.Partition).
			Int("keys", len(del)).
			Msg("kafka error")
		return fmt.Errorf("cache del: %w", err)
	}
	obs.IncInvalidation("consume", "ok")
	c.logger.Debug("invalidated keys", "op", ev.Op, "keys", len(del), "source", ev.Source)
	return nil
}
