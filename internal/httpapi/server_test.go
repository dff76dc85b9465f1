package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type calls struct {
	mu   sync.Mutex
	list []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, s)
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.list...)
}

func newTestServer(t *testing.T, origins []string) (*Server, *calls) {
	t.Helper()
	seen := &calls{}
	backend := func(name string) *url.URL {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.add(name + " " + r.Method + " " + r.URL.Path)
			if r.Header.Get("X-Request-ID") == "" {
				t.Errorf("request id not forwarded to %s", name)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"from":"`+name+`"}`)
		}))
		t.Cleanup(srv.Close)
		u, err := url.Parse(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		return u
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(backend("orders"), backend("payments"), origins, logger), seen
}

func TestProxyStripsServicePrefix(t *testing.T) {
	s, seen := newTestServer(t, nil)

	for _, path := range []string{"/orders/orders", "/payments/accounts/7/balance"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id on response", path)
		}
	}

	want := []string{"orders GET /orders", "payments GET /accounts/7/balance"}
	got := seen.all()
	if len(got) != len(want) {
		t.Fatalf("upstream calls %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRequestIDPreserved(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/orders", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("request id = %q", got)
	}
}

func TestHealth(t *testing.T) {
	s, seen := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "gateway" {
		t.Errorf("unexpected body %v", body)
	}
	if got := seen.all(); len(got) != 0 {
		t.Errorf("health must not reach upstreams: %v", got)
	}
}

func TestUpstreamDown(t *testing.T) {
	dead, _ := url.Parse("http://127.0.0.1:1")
	s := NewServer(dead, dead, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/orders", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "orders service unavailable") {
		t.Errorf("body %q", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	s, seen := newTestServer(t, []string{"http://localhost:5173"})

	pre := httptest.NewRequest(http.MethodOptions, "/orders/orders", nil)
	pre.Header.Set("Origin", "http://localhost:5173")
	pre.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, pre)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("allow headers %q", got)
	}
	if got := seen.all(); len(got) != 0 {
		t.Errorf("preflight must not reach upstreams: %v", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, other)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got %q", got)
	}
	if s.AllowOrigin("http://evil.example") {
		t.Error("unlisted origin allowed")
	}
}
