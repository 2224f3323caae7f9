package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the query API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 API, /healthz, /readyz, and
// /metrics routes. geocoder may be nil, in which case named route endpoints
// are rejected.
func NewServer(addr string, svc Service, geocoder domain.Geocoder, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := &api{svc: svc, geocoder: geocoder, logger: logger}
	mux.HandleFunc("POST /v1/reports", api.handleSubmitReports)
	mux.HandleFunc("GET /v1/events", api.handleEvents)
	mux.HandleFunc("GET /v1/network/status", api.handleNetworkStatus)
	mux.HandleFunc("GET /v1/network/segments", api.handleSegments)
	mux.HandleFunc("POST /v1/routes", api.handleRoute)
	mux.HandleFunc("POST /v1/routes/multi", api.handleRouteMulti)
	mux.HandleFunc("GET /v1/scenario/time", api.handleScenarioTime)
	mux.HandleFunc("POST /v1/scenario/time", api.handleAdvance)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type allReady []sharedobs.ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AllReady combines readiness checks; it is ready only when every checker is.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return allReady(checkers)
}
