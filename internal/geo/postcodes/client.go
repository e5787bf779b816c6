// Package postcodes resolves UK postcodes to coordinates via a postcodes.io compatible API.
package postcodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/observability"
)

const upstreamName = "postcodes"

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

type lookupResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
}

// Lookup fetches coordinates for an already cleaned postcode. Every failure is
// reported as a geocode failure.
func (c *Client) Lookup(ctx context.Context, postcode string) (model.Coordinates, error) {
	if postcode == "" {
		return model.Coordinates{}, apperr.New(apperr.KindGeocodeFailure, "Could not geocode postcode")
	}
	endpoint := c.baseURL + "/postcodes/" + url.PathEscape(postcode)

	start := c.now()
	coords, err := c.fetch(ctx, endpoint)
	dur := c.now().Sub(start)
	observability.ObserveUpstreamLatency(upstreamName, err, dur.Seconds())
	if err != nil {
		c.logger.WarnContext(ctx, "geocode failed", "postcode", postcode, "duration", dur.String(), "err", err)
		return model.Coordinates{}, apperr.Wrap(apperr.KindGeocodeFailure, "Could not geocode postcode", err)
	}
	c.logger.DebugContext(ctx, "geocode done", "postcode", postcode, "duration", dur.String())
	return coords, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (model.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("postcodes request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("postcodes status %d", resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Coordinates{}, fmt.Errorf("decode postcodes body: %w", err)
	}
	if body.Status != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("postcodes body status %d", body.Status)
	}
	if body.Result == nil || body.Result.Latitude == nil || body.Result.Longitude == nil {
		return model.Coordinates{}, fmt.Errorf("postcodes result has no coordinates")
	}
	return model.Coordinates{Latitude: *body.Result.Latitude, Longitude: *body.Result.Longitude}, nil
}
