// Package core provides the HTTP chassis for the push service. It builds a
// chi router usable both behind net/http (local and container deployments)
// and behind the Lambda proxy adapter in cmd/api, and applies the
// cross-cutting middleware before requests reach the notification handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"campuspush/internal/config"
)

// MetricsCollector records API telemetry. metrics.Prometheus and
// metrics.CloudWatch both satisfy it.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies shared by every route.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler, when set, is mounted at GET /metrics.
	MetricsHandler http.Handler

	// HealthProbes are executed by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are supplied
	// by cmd/api so core does not import the handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer prepares a server with an empty router. Call MountRoutes after
// populating the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests that register ad-hoc routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}
