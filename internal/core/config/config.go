package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type InvalidationCfg struct {
	Enabled bool     `yaml:"enabled"`
	Topic   string   `yaml:"topic"`
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type Config struct {
	Addr            string          `yaml:"addr"`
	LogLevel        string          `yaml:"log_level"`
	LogConsole      bool            `yaml:"log_console"`
	LogSampleN      int             `yaml:"log_sample_n"`
	SecretKey       string          `yaml:"secret_key"`
	TokenTTL        time.Duration   `yaml:"token_ttl"`
	DBPath          string          `yaml:"db_path"`
	CacheBackend    string          `yaml:"cache_backend"`
	CacheTTL        time.Duration   `yaml:"cache_ttl"`
	CacheMaxEntries int             `yaml:"cache_max_entries"`
	CacheSweep      string          `yaml:"cache_sweep_schedule"`
	CacheOpTimeout  time.Duration   `yaml:"cache_op_timeout"`
	RedisAddr       string          `yaml:"redis_addr"`
	PostcodesURL    string          `yaml:"postcodes_url"`
	OSRMURL         string          `yaml:"osrm_url"`
	CampusPostcode  string          `yaml:"campus_postcode"`
	UpstreamTimeout time.Duration   `yaml:"upstream_timeout"`
	H3Res           int             `yaml:"h3_res"`
	Invalidation    InvalidationCfg `yaml:"invalidation"`
}

func Defaults() Config {
	return Config{
		Addr:            ":8000",
		LogLevel:        "info",
		TokenTTL:        60 * time.Minute,
		DBPath:          "data/globaldorm",
		CacheBackend:    "memory",
		CacheTTL:        600 * time.Second,
		CacheMaxEntries: 10000,
		CacheOpTimeout:  250 * time.Millisecond,
		RedisAddr:       "localhost:6379",
		PostcodesURL:    "https://api.postcodes.io",
		OSRMURL:         "http://router.project-osrm.org",
		CampusPostcode:  "E1 4NS",
		UpstreamTimeout: 10 * time.Second,
		H3Res:           9,
		Invalidation: InvalidationCfg{
			Topic:   "room-cache-invalidation",
			Brokers: []string{"localhost:9092"},
			GroupID: "globaldorm-cache",
		},
	}
}

// FromEnv returns the defaults overridden by environment variables.
func FromEnv() Config {
	return applyEnv(Defaults())
}

// Load reads an optional YAML file on top of the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	return applyEnv(cfg), nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY is required")
	}
	switch c.CacheBackend {
	case "memory", "lru", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q (memory|lru|redis)", c.CacheBackend)
	}
	if c.H3Res < 0 || c.H3Res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", c.H3Res)
	}
	return nil
}

func applyEnv(c Config) Config {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)
	c.SecretKey = getenv("SECRET_KEY", c.SecretKey)
	c.TokenTTL = getduration("TOKEN_TTL", c.TokenTTL)
	c.DBPath = getenv("DB_PATH", c.DBPath)
	c.CacheBackend = strings.ToLower(getenv("CACHE_BACKEND", c.CacheBackend))
	c.CacheTTL = getduration("CACHE_TTL", c.CacheTTL)
	c.CacheMaxEntries = getint("CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.CacheSweep = getenv("CACHE_SWEEP_SCHEDULE", c.CacheSweep)
	c.CacheOpTimeout = getduration("CACHE_OP_TIMEOUT", c.CacheOpTimeout)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.PostcodesURL = strings.TrimRight(getenv("POSTCODES_URL", c.PostcodesURL), "/")
	c.OSRMURL = strings.TrimRight(getenv("OSRM_URL", c.OSRMURL), "/")
	c.CampusPostcode = getenv("CAMPUS_POSTCODE", c.CampusPostcode)
	c.UpstreamTimeout = getduration("UPSTREAM_TIMEOUT", c.UpstreamTimeout)
	c.H3Res = getint("H3_RES", c.H3Res)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	c.Invalidation.Topic = getenv("KAFKA_TOPIC", c.Invalidation.Topic)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Invalidation.Brokers = splitCSV(v)
	}
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

// accepts Go durations ("10m") or plain seconds ("600")
func getduration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
