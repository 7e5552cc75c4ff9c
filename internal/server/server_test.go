package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cherenkovlab/phspstore/internal/config/dto"
)

func observabilityConfig(health, metrics bool) dto.ObservabilityConfig {
	return dto.ObservabilityConfig{
		Metrics: dto.MetricsConfig{
			Enabled: metrics,
			Port:    0,
			Path:    "/metrics",
		},
		Health: dto.HealthConfig{
			Enabled:       health,
			Port:          0,
			LivenessPath:  "/health/live",
			ReadinessPath: "/health/ready",
		},
	}
}

func TestNewServer_Disabled(t *testing.T) {
	srv := NewServer(observabilityConfig(false, false), NewRunStatus(), prometheus.NewRegistry(), discardLogger())

	if srv.healthServer != nil {
		t.Error("health server should be nil when disabled")
	}
	if srv.metricsServer != nil {
		t.Error("metrics server should be nil when disabled")
	}
	if err := srv.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := NewServer(observabilityConfig(true, true), NewRunStatus(), prometheus.NewRegistry(), discardLogger())

	if srv.healthServer == nil || srv.metricsServer == nil {
		t.Fatal("both servers should be configured")
	}

	srv.Start()
	// Give the listeners a moment before shutting down.
	time.Sleep(10 * time.Millisecond)

	if err := srv.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
