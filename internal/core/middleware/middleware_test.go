package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mylog "github.com/adnan855570/Global-Dorm-App/internal/logger"
)

func TestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := Logging(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc123" || rr.Header().Get("X-Request-ID") != "abc123" {
		t.Fatalf("seen=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("generated id not propagated: seen=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}
}

func TestRecover_Returns500JSON(t *testing.T) {
	h := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError || !strings.Contains(rr.Body.String(), `"detail"`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/rooms/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("allow-methods=%q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
	if rr.Header().Get("Access-Control-Allow-Headers") != "authorization,content-type" {
		t.Fatalf("allow-headers=%q", rr.Header().Get("Access-Control-Allow-Headers"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	if !called || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("simple request: called=%v origin=%q", called, rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
