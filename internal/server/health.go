// Package server implements health check handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// Run phase values reported by RunStatus.
const (
	PhaseIdle      = "idle"
	PhaseRunning   = "running"
	PhaseFinalized = "finalized"
)

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*RunStatus)(nil)

// RunStatus is a HealthChecker tracking the simulation run lifecycle.
// The process is always live; it is ready once a run has been started.
type RunStatus struct {
	phase atomic.Value // string
}

// NewRunStatus creates a run status checker in the idle phase.
func NewRunStatus() *RunStatus {
	s := &RunStatus{}
	s.phase.Store(PhaseIdle)
	return s
}

// SetPhase records the current run phase.
func (s *RunStatus) SetPhase(phase string) {
	s.phase.Store(phase)
}

// Phase returns the current run phase.
func (s *RunStatus) Phase() string {
	return s.phase.Load().(string)
}

// Liveness reports whether the process should keep running.
func (s *RunStatus) Liveness() bool {
	return true
}

// Readiness reports whether a run has been started.
func (s *RunStatus) Readiness(ctx context.Context) bool {
	return s.Phase() != PhaseIdle
}

// GetStatus returns per-component status details.
func (s *RunStatus) GetStatus() map[string]string {
	return map[string]string{
		"run": s.Phase(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// Readiness indicates that the run controller has started a run.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
