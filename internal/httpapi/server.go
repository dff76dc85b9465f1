package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	orders   *url.URL
	payments *url.URL
	origins  []string
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer fronts the two backend services. An empty origins list allows
// any origin.
func NewServer(orders, payments *url.URL, origins []string, logger *slog.Logger) *Server {
	s := &Server{
		orders:   orders,
		payments: payments,
		origins:  origins,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.health)
	s.mux.Handle("/orders/", http.StripPrefix("/orders", s.proxy("orders", s.orders)))
	s.mux.Handle("/payments/", http.StripPrefix("/payments", s.proxy("payments", s.payments)))
}

func (s *Server) HandleFunc(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(requestIDHeader) == "" {
		r.Header.Set(requestIDHeader, uuid.NewString())
	}
	w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))

	if origin := r.Header.Get("Origin"); origin != "" && s.AllowOrigin(origin) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) AllowOrigin(origin string) bool {
	return len(s.origins) == 0 || slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

func (s *Server) proxy(name string, target *url.URL) http.Handler {
	p := httputil.NewSingleHostReverseProxy(target)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error("upstream request failed",
			"upstream", name, "path", r.URL.Path, "request_id", r.Header.Get(requestIDHeader), "err", err)
		writeError(w, http.StatusBadGateway, name+" service unavailable")
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
