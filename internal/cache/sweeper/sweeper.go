// Package sweeper purges old cache entries on a cron schedule so the unbounded
// in-memory backend does not keep every key it ever saw.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
)

type Sweeper struct {
	cron   *cron.Cron
	target cache.Sweeper
	maxAge time.Duration
	logger *slog.Logger
}

// New parses schedule (standard five-field cron or a descriptor such as "@every 5m").
func New(schedule string, target cache.Sweeper, maxAge time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("sweeper: nil target")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = cache.DefaultTTL
	}
	s := &Sweeper{
		target: target,
		maxAge: maxAge,
		logger: logger,
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("cache sweeper started", "max_age", s.maxAge)
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	start := time.Now()
	n := s.target.Sweep(s.maxAge)
	s.logger.Debug("cache sweep", "removed", n, "took", time.Since(start))
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "err", err)...)
}
