package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL         string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	Rooms           int
	GeocodeRatio    float64
	Postcodes       string
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
	Smoke           bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:8000", "Global Dorm API base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.Rooms, "rooms", 32, "Rooms to seed before the run")
	flag.Float64Var(&cfg.GeocodeRatio, "geocode-ratio", 0.3, "Share of requests hitting /external/geocode instead of room-distance")
	flag.StringVar(&cfg.Postcodes, "postcodes", strings.Join(defaultPostcodes, ","), "Comma-separated postcode pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 15*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.BoolVar(&cfg.Smoke, "smoke", false, "Check Redis, Kafka and H3 connectivity instead of generating load")
	flag.Parse()
	return cfg
}

// London postcodes around the campus; the first few become the hot set.
var defaultPostcodes = []string{
	"E1 4NS", "E1 4DG", "E3 4AA", "E2 9PL", "E14 5AB",
	"N1 9GU", "WC1E 6BT", "SE1 7PB", "SW7 2AZ", "NW1 2DB",
	"E15 1NF", "E16 1XL", "N7 8DB", "EC1V 0HB", "E8 1DY",
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	Endpoint  string
	Target    string
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Rooms         int       `json:"rooms"`
	BaseURL       string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	latMs   []float64
}

func main() {
	cfg := loadConfig()
	if cfg.Smoke {
		if err := smoke(); err != nil {
			log.Fatalf("smoke: %v", err)
		}
		return
	}
	if err := runLoad(cfg); err != nil {
		log.Fatalf("loadgen: %v", err)
	}
}

func runLoad(cfg Config) error {
	postcodes := splitCSV(cfg.Postcodes)
	if len(postcodes) == 0 {
		return errors.New("empty postcode pool")
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return fmt.Errorf("zipf parameters out of range: s=%.2f (>1) v=%.2f (>=1)", cfg.ZipfS, cfg.ZipfV)
	}
	if cfg.Concurrency <= 0 {
		return errors.New("concurrency must be > 0")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}
	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:        512,
			MaxIdleConnsPerHost: 256,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}
	api := &apiClient{base: strings.TrimRight(cfg.BaseURL, "/"), http: httpClient}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelSeed()
	roomIDs, err := seed(seedCtx, api, cfg.Rooms, postcodes)
	if err != nil {
		return err
	}
	log.Printf("seeded %d rooms", len(roomIDs))

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	samples := make(chan sample, 4096)
	results := make(chan aggregatedResult, 1)
	go collect(csv.NewWriter(csvFile), samples, results)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	seedVal := time.Now().UnixNano()
	start := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) rooms=%d",
		api.base, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(roomIDs))

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seedVal + int64(id) + 1))
			roomZipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(len(roomIDs)-1))
			pcZipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(len(postcodes)-1))
			for {
				if ctx.Err() != nil {
					return
				}
				var endpoint, target string
				q := url.Values{}
				if r.Float64() < cfg.GeocodeRatio {
					endpoint, target = "/external/geocode", postcodes[pcZipf.Uint64()]
					q.Set("postcode", target)
				} else {
					endpoint, target = "/external/room-distance", roomIDs[roomZipf.Uint64()]
					q.Set("room_id", target)
				}
				s := api.probe(ctx, endpoint+"?"+q.Encode())
				s.Endpoint, s.Target = endpoint, target
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samples)
	}()

	agg := <-results
	end := time.Now()
	elapsed := end.Sub(start).Seconds()

	sort.Float64s(agg.latMs)
	out := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Rooms:         len(roomIDs),
		BaseURL:       api.base,
	}
	if f, err := os.Create(filepath.Clean(jsonPath)); err == nil {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		_ = f.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		out.TotalRequests, out.SuccessCount, out.ErrorCount, out.ThroughputRPS, out.P50Ms, out.P95Ms, out.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
	return nil
}

func collect(w *csv.Writer, samples <-chan sample, results chan<- aggregatedResult) {
	_ = w.Write([]string{"timestamp", "latency_ms", "status", "error", "endpoint", "target"})
	var agg aggregatedResult
	for s := range samples {
		agg.total++
		ms := float64(s.Latency.Microseconds()) / 1000.0
		if s.ErrorMsg == "" {
			agg.success++
			agg.latMs = append(agg.latMs, ms)
		} else {
			agg.errors++
		}
		_ = w.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", ms),
			fmt.Sprintf("%d", s.Status),
			s.ErrorMsg,
			s.Endpoint,
			s.Target,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("csv flush error: %v", err)
	}
	results <- agg
}

type apiClient struct {
	base  string
	http  *http.Client
	token string
}

func (c *apiClient) call(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, b)
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *apiClient) probe(ctx context.Context, path string) sample {
	start := time.Now()
	status, err := c.call(ctx, http.MethodGet, path, nil, nil)
	s := sample{Timestamp: start, Latency: time.Since(start), Status: status}
	if err != nil {
		s.ErrorMsg = err.Error()
	}
	return s
}

// seed registers a throwaway user and creates n rooms spread over postcodes.
func seed(ctx context.Context, c *apiClient, n int, postcodes []string) ([]string, error) {
	if n <= 0 {
		return nil, errors.New("rooms must be > 0")
	}
	creds := map[string]string{
		"email":    fmt.Sprintf("loadgen-%d@example.com", time.Now().UnixNano()),
		"password": "loadgen-password",
	}
	if _, err := c.call(ctx, http.MethodPost, "/users/register", creds, nil); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if _, err := c.call(ctx, http.MethodPost, "/users/login", creds, &tok); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.token = tok.AccessToken

	ids := make([]string, 0, n)
	for i := range n {
		pc := postcodes[i%len(postcodes)]
		var room struct {
			ID string `json:"id"`
		}
		in := map[string]any{
			"title":           fmt.Sprintf("Loadgen room %d", i),
			"address":         fmt.Sprintf("%d Test Street", i+1),
			"price_per_month": 600 + math.Mod(float64(i)*37, 900),
			"postcode":        pc,
		}
		if _, err := c.call(ctx, http.MethodPost, "/rooms", in, &room); err != nil {
			return nil, fmt.Errorf("create room %d: %w", i, err)
		}
		ids = append(ids, room.ID)
	}
	return ids, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
