package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adnan855570/Global-Dorm-App/internal/auth"
	"github.com/adnan855570/Global-Dorm-App/internal/booking"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/memstore"
	"github.com/adnan855570/Global-Dorm-App/internal/core/health"
	"github.com/adnan855570/Global-Dorm-App/internal/core/router"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/h3cell"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/osrm"
	"github.com/adnan855570/Global-Dorm-App/internal/geo/postcodes"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation"
	"github.com/adnan855570/Global-Dorm-App/internal/listing"
	"github.com/adnan855570/Global-Dorm-App/internal/lookup"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

type upstreams struct {
	geocodes atomic.Int32
	routes   atomic.Int32
}

func fakePostcodes(u *upstreams) *httptest.Server {
	known := map[string][2]float64{
		"E14NS":  {51.5225, -0.0420},
		"N19GU":  {51.5300, -0.1200},
		"SW72AZ": {51.4988, -0.1749},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.geocodes.Add(1)
		pc := strings.ToUpper(strings.TrimPrefix(r.URL.Path, "/postcodes/"))
		ll, ok := known[pc]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404,"error":"Postcode not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"result": map[string]any{"latitude": ll[0], "longitude": ll[1]},
		})
	}))
}

func fakeOSRM(u *upstreams) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		u.routes.Add(1)
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":6120.4,"duration":845.2}]}`))
	}))
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (c *client) expect(method, path string, body any, status int, into any) {
	c.t.Helper()
	got, raw := c.do(method, path, body)
	if got != status {
		c.t.Fatalf("%s %s: status=%d want %d body=%s", method, path, got, status, raw)
	}
	if into != nil {
		if err := json.Unmarshal(raw, into); err != nil {
			c.t.Fatalf("%s %s: decode %s: %v", method, path, raw, err)
		}
	}
}

func newTestServer(t *testing.T, u *upstreams) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pc := fakePostcodes(u)
	t.Cleanup(pc.Close)
	rt := fakeOSRM(u)
	t.Cleanup(rt.Close)

	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := auth.NewTokens("e2e-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	mem := memstore.New()
	cells, _ := h3cell.New(9)

	deps := router.Deps{
		Logger:       logger,
		Identity:     auth.NewService(db, tokens, logger, auth.WithBcryptCost(bcrypt.MinCost)),
		Rooms:        listing.New(db, invalidation.NewInvalidator(mem, nil, "test", logger), logger),
		Applications: booking.New(db, logger),
		Lookups: lookup.New(lookup.Deps{
			Cache:    mem,
			Geocoder: postcodes.New(logger, pc.Client(), pc.URL),
			Router:   osrm.New(logger, rt.Client(), rt.URL),
			Rooms:    db,
			TTL:      time.Minute,
			Logger:   logger,
		}),
		Cells: cells,
		DB:    db,
	}
	srv := httptest.NewServer(NewHandler(logger, deps, map[string]health.Pinger{"store": db}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd_RoomDistanceFlow(t *testing.T) {
	u := &upstreams{}
	srv := newTestServer(t, u)
	c := &client{t: t, base: srv.URL}

	creds := map[string]string{"email": "student@qmul.ac.uk", "password": "s3cret"}
	var pub struct{ Email string }
	c.expect(http.MethodPost, "/users/register", creds, http.StatusOK, &pub)
	if pub.Email != creds["email"] {
		t.Fatalf("register returned %+v", pub)
	}
	c.expect(http.MethodPost, "/users/register", creds, http.StatusBadRequest, nil)
	c.expect(http.MethodPost, "/users/login", map[string]string{"email": creds["email"], "password": "nope"}, http.StatusUnauthorized, nil)

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	c.expect(http.MethodPost, "/users/login", creds, http.StatusOK, &tok)
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Fatalf("token=%+v", tok)
	}

	// no token yet
	c.expect(http.MethodPost, "/rooms/", map[string]any{"title": "x"}, http.StatusUnauthorized, nil)
	c.token = tok.AccessToken

	var room struct {
		ID       string `json:"id"`
		Postcode string `json:"postcode"`
	}
	c.expect(http.MethodPost, "/rooms/", map[string]any{
		"title": "Ensuite near campus", "address": "1 Mile End Rd",
		"price_per_month": 950, "postcode": "E1 4NS",
	}, http.StatusCreated, &room)
	if room.ID == "" {
		t.Fatalf("room id missing")
	}

	var rooms []map[string]any
	c.expect(http.MethodGet, "/rooms", nil, http.StatusOK, &rooms)
	if len(rooms) != 1 {
		t.Fatalf("rooms=%v", rooms)
	}

	var dist struct {
		DistanceMeters  float64 `json:"distance_meters"`
		DurationSeconds float64 `json:"duration_seconds"`
	}
	c.expect(http.MethodGet, "/external/room-distance?room_id="+room.ID, nil, http.StatusOK, &dist)
	if dist.DistanceMeters < 0 || dist.DurationSeconds < 0 || dist.DistanceMeters != 6120.4 {
		t.Fatalf("distance=%+v", dist)
	}
	c.expect(http.MethodGet, "/external/room-distance?room_id="+room.ID, nil, http.StatusOK, &dist)
	if u.routes.Load() != 1 {
		t.Fatalf("second distance call should be cached; routes=%d", u.routes.Load())
	}

	// postcode change drops the cached distance
	c.expect(http.MethodPut, "/rooms/"+room.ID, map[string]any{"postcode": "N1 9GU"}, http.StatusOK, &room)
	if room.Postcode != "N1 9GU" {
		t.Fatalf("updated room=%+v", room)
	}
	c.expect(http.MethodGet, "/external/room-distance?room_id="+room.ID, nil, http.StatusOK, &dist)
	if u.routes.Load() != 2 {
		t.Fatalf("expected recompute after postcode change; routes=%d", u.routes.Load())
	}
	c.expect(http.MethodPut, "/rooms/"+room.ID, map[string]any{}, http.StatusBadRequest, nil)

	c.expect(http.MethodGet, "/external/room-distance?room_id=abc", nil, http.StatusBadRequest, nil)
	c.expect(http.MethodGet, "/external/room-distance?room_id=00000000-0000-4000-8000-000000000000", nil, http.StatusNotFound, nil)
	c.expect(http.MethodGet, "/external/room-distance", nil, http.StatusUnprocessableEntity, nil)

	var app struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	c.expect(http.MethodPost, "/applications/", map[string]string{"room_id": room.ID}, http.StatusCreated, &app)
	c.expect(http.MethodPost, "/applications", map[string]string{"room_id": room.ID}, http.StatusBadRequest, nil)
	c.expect(http.MethodPatch, "/applications/"+app.ID+"/cancel", nil, http.StatusOK, &app)
	if app.Status != "cancelled" {
		t.Fatalf("app=%+v", app)
	}
	c.expect(http.MethodPatch, "/applications/"+app.ID+"/cancel", nil, http.StatusBadRequest, nil)
	var apps []map[string]any
	c.expect(http.MethodGet, "/applications/", nil, http.StatusOK, &apps)
	if len(apps) != 1 || apps[0]["status"] != "cancelled" {
		t.Fatalf("apps=%v", apps)
	}

	var hello struct{ Msg string }
	c.expect(http.MethodGet, "/protected", nil, http.StatusOK, &hello)
	if !strings.Contains(hello.Msg, creds["email"]) {
		t.Fatalf("protected msg=%q", hello.Msg)
	}

	c.expect(http.MethodDelete, "/rooms/"+room.ID, nil, http.StatusNoContent, nil)
	c.expect(http.MethodGet, "/rooms/"+room.ID, nil, http.StatusNotFound, nil)
}

func TestEndToEnd_GeocodeAndProbes(t *testing.T) {
	u := &upstreams{}
	srv := newTestServer(t, u)
	c := &client{t: t, base: srv.URL}

	var geo struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		H3Cell    string  `json:"h3_cell"`
	}
	c.expect(http.MethodGet, "/external/geocode?postcode=SW7%202AZ", nil, http.StatusOK, &geo)
	if geo.Latitude != 51.4988 || geo.H3Cell == "" {
		t.Fatalf("geocode=%+v", geo)
	}
	c.expect(http.MethodGet, "/external/geocode?postcode=sw72az", nil, http.StatusOK, &geo)
	if u.geocodes.Load() != 1 {
		t.Fatalf("second geocode should hit cache; upstream calls=%d", u.geocodes.Load())
	}

	var fail struct{ Detail string }
	c.expect(http.MethodGet, "/external/geocode?postcode=ZZ99ZZ", nil, http.StatusBadRequest, &fail)
	if fail.Detail != "Could not geocode postcode" {
		t.Fatalf("detail=%q", fail.Detail)
	}

	var welcome struct{ Message string }
	c.expect(http.MethodGet, "/", nil, http.StatusOK, &welcome)
	if welcome.Message == "" {
		t.Fatalf("missing welcome message")
	}
	c.expect(http.MethodGet, "/healthz", nil, http.StatusOK, nil)
	c.expect(http.MethodGet, "/readyz", nil, http.StatusOK, nil)
	c.expect(http.MethodGet, "/protected", nil, http.StatusUnauthorized, nil)

	var status struct {
		OK          bool     `json:"ok"`
		Collections []string `json:"collections"`
	}
	c.expect(http.MethodGet, "/db-status", nil, http.StatusOK, &status)
	if !status.OK || len(status.Collections) != 3 {
		t.Fatalf("db-status=%+v", status)
	}

	code, body := c.do(http.MethodGet, "/metrics", nil)
	if code != http.StatusOK || !strings.Contains(string(body), "cache_results_total") || !strings.Contains(string(body), `route="/external/geocode"`) {
		t.Fatalf("metrics status=%d missing series", code)
	}
}
