// Package osrm queries an OSRM routing server for driving distance and duration.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/observability"
)

const upstreamName = "osrm"

type Client struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	now     func() time.Time
}

func New(logger *slog.Logger, client *http.Client, baseURL string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		logger:  logger,
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// RoutePath builds the OSRM driving path; OSRM takes lon,lat pairs.
func RoutePath(from, to model.Coordinates) string {
	return "/route/v1/driving/" + lonLat(from) + ";" + lonLat(to)
}

func lonLat(c model.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

// Route returns the first route between two points. Every failure is reported
// as a routing failure.
func (c *Client) Route(ctx context.Context, from, to model.Coordinates) (model.DistanceResult, error) {
	endpoint := c.baseURL + RoutePath(from, to) + "?overview=false"

	start := c.now()
	res, err := c.fetch(ctx, endpoint)
	dur := c.now().Sub(start)
	observability.ObserveUpstreamLatency(upstreamName, err, dur.Seconds())
	if err != nil {
		c.logger.WarnContext(ctx, "route failed", "endpoint", endpoint, "duration", dur.String(), "err", err)
		return model.DistanceResult{}, apperr.Wrap(apperr.KindRoutingFailure, "OSRM routing failed", err)
	}
	c.logger.DebugContext(ctx, "route done", "distance_m", res.DistanceMeters, "duration", dur.String())
	return res, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (model.DistanceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.DistanceResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.DistanceResult{}, fmt.Errorf("osrm request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.DistanceResult{}, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.DistanceResult{}, fmt.Errorf("decode osrm body: %w", err)
	}
	if len(body.Routes) == 0 {
		return model.DistanceResult{}, fmt.Errorf("osrm returned no routes (code %q)", body.Code)
	}
	r := body.Routes[0]
	return model.DistanceResult{DistanceMeters: r.Distance, DurationSeconds: r.Duration}, nil
}
