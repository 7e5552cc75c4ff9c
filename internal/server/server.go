// Package server implements the HTTP server for health checks and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cherenkovlab/phspstore/internal/config/dto"
)

// Server exposes health probes and Prometheus metrics over HTTP.
// Either server may be disabled by configuration.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates the HTTP server pair from the observability config.
func NewServer(
	cfg dto.ObservabilityConfig,
	checker HealthChecker,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	s := &Server{logger: logger}

	if cfg.Health.Enabled {
		healthMux := http.NewServeMux()
		healthMux.HandleFunc(cfg.Health.LivenessPath, LivenessHandler(checker, logger))
		healthMux.HandleFunc(cfg.Health.ReadinessPath, ReadinessHandler(checker, logger))

		s.healthServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:      healthMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

// Start starts the enabled HTTP servers.
func (s *Server) Start() {
	if s.healthServer != nil {
		go func() {
			s.logger.Info("starting health server", "addr", s.healthServer.Addr)
			if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("health server failed", "error", err)
			}
		}()
	}

	if s.metricsServer != nil {
		go func() {
			s.logger.Info("starting metrics server", "addr", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", "error", err)
			}
		}()
	}
}

// Shutdown gracefully shuts down the enabled servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := []*http.Server{}
	if s.healthServer != nil {
		servers = append(servers, s.healthServer)
	}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	var lastErr error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			lastErr = err
		}
	}

	return lastErr
}
