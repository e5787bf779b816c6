package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/auth"
	"github.com/adnan855570/Global-Dorm-App/internal/booking"
	"github.com/adnan855570/Global-Dorm-App/internal/cache"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/lrustore"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/memstore"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/redisstore"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/sweeper"
	"github.com/adnan855570/Global-Dorm-App/internal/core/config"
	"github.com/adnan855570/Global-Dorm-App/internal/core/health"
	"github.com/adnan855570/Global-Dorm-App/internal/core/httpclient"
	"github.com/adnan855570/Global-Dorm-App/internal/core/observability"
	"github.com/adnan855570/Global-Dorm-App/internal/core/router"
	"github.com/adnan855570/Global-Dorm-App/internal/core/server"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/h3cell"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/osrm"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/postcodes"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation/kafkaconsumer"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation/kafkapublisher"
	"github.com/adnan855570/Global-Dorm-App/internal/listing"
	"github.com/adnan855570/Global-Dorm-App/internal/logger"
	"github.com/adnan855570/Global-Dorm-App/internal/lookup"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "globaldorm",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting globaldorm",
		"addr", cfg.Addr,
		"version", Version,
		"cache_backend", cfg.CacheBackend,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		appLog.Error("open store", "path", cfg.DBPath, "err", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	ready := map[string]health.Pinger{"store": db}

	base, closer, err := buildCache(ctx, cfg)
	if err != nil {
		appLog.Error("cache setup failed", "backend", cfg.CacheBackend, "err", err)
		return 1
	}
	defer func() { _ = closer.Close() }()
	if p, ok := base.(health.Pinger); ok {
		ready["cache"] = p
	}
	c := cache.WithOpTimeout(base, cfg.CacheOpTimeout)

	if sw, ok := base.(cache.Sweeper); ok && cfg.CacheSweep != "" {
		s, err := sweeper.New(cfg.CacheSweep, sw, cfg.CacheTTL, appLog)
		if err != nil {
			appLog.Error("cache sweeper setup failed", "schedule", cfg.CacheSweep, "err", err)
			return 1
		}
		s.Start()
		defer s.Stop(context.Background())
	}

	instance := logger.NewID()
	var pub invalidation.Publisher = invalidation.Noop{}
	if cfg.Invalidation.Enabled {
		kp, err := kafkapublisher.New(cfg.Invalidation.Brokers, cfg.Invalidation.Topic)
		if err != nil {
			appLog.Error("kafka publisher setup failed", "err", err)
			return 1
		}
		defer func() { _ = kp.Close() }()
		pub = kp

		cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation, instance), appLog, &zl, c)
		if err := cons.Start(ctx); err != nil {
			appLog.Error("kafka consumer start failed", "err", err)
			return 1
		}
		defer cons.Stop()
		ready["invalidation"] = cons
	}
	inv := invalidation.NewInvalidator(c, pub, instance, appLog)

	outbound := httpclient.NewOutbound(cfg.UpstreamTimeout)
	lookups := lookup.New(lookup.Deps{
		Cache:          c,
		Geocoder:       postcodes.New(appLog, outbound, cfg.PostcodesURL),
		Router:         osrm.New(appLog, outbound, cfg.OSRMURL),
		Rooms:          db,
		CampusPostcode: cfg.CampusPostcode,
		TTL:            cfg.CacheTTL,
		Logger:         appLog,
	})

	cells, err := h3cell.New(cfg.H3Res)
	if err != nil {
		appLog.Error("h3 indexer setup failed", "err", err)
		return 1
	}

	tokens, err := auth.NewTokens(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		appLog.Error("token issuer setup failed", "err", err)
		return 1
	}

	handler := server.NewHandler(appLog, router.Deps{
		Logger:       appLog,
		Identity:     auth.NewService(db, tokens, appLog),
		Rooms:        listing.New(db, inv, appLog),
		Applications: booking.New(db, appLog),
		Lookups:      lookups,
		Cells:        cells,
		DB:           db,
	}, ready)

	if err := server.Run(ctx, cfg.Addr, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func buildCache(ctx context.Context, cfg config.Config) (cache.Interface, io.Closer, error) {
	switch cfg.CacheBackend {
	case "lru":
		s, err := lrustore.New(cfg.CacheMaxEntries, time.Now)
		return s, nopCloser{}, err
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s, err := redisstore.New(dialCtx, cfg.RedisAddr, redisstore.WithRetention(2*cfg.CacheTTL))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return memstore.New(), nopCloser{}, nil
	}
}
