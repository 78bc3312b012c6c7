// Package api exposes the ledger operations over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obrapay/abono/internal/ledger"
)

// Server is the abonod HTTP API server.
type Server struct {
	ledger         *ledger.Coordinator
	metricsEnabled bool
}

// NewServer creates a new API server over the given coordinator.
func NewServer(l *ledger.Coordinator) *Server {
	return &Server{ledger: l}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/payments", s.handleRecordPayment)
		r.Get("/payments", s.handleListPayments)
		r.Get("/payments/search", s.handleSearchPayments)
		r.Get("/payments/{id}", s.handleGetPayment)
		r.Post("/payments/{id}/cancel", s.handleCancelPayment)
		r.Get("/projects/{id}/outstanding", s.handleOutstanding)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Response Helpers ───────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": message,
	})
}
