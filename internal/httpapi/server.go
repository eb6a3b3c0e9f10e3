// Package httpapi exposes the pipeline's operational HTTP surface:
// Prometheus metrics and a liveness probe. It never touches the
// ingestion pipeline's locks or the FIFO; its failure is logged and
// non-fatal, per the extended error handling in SPEC_FULL.md §7.
// Grounded on other_examples' asidko-grid-trading-bot gorilla/mux
// routing idiom (routes registered on a mux.NewRouter()), narrowed to
// the two routes this service needs.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/metrics"
)

// Server is the metrics/health HTTP server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds an HTTP server bound to addr, serving /metrics from the
// given registry and /healthz as a static liveness probe.
func New(addr string, registry *metrics.Registry, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", registry.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "httpapi").Logger(),
	}
}

// Run starts serving and blocks until the listener fails or Shutdown
// is called. A bind/serve failure is logged, not propagated: the
// ingestion pipeline must not depend on this endpoint.
func (s *Server) Run() {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting metrics/health server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("metrics/health server stopped unexpectedly")
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
