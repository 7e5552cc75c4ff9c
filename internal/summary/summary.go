// Package summary emits the run metadata artifact consumed by analysis
// tooling. Written once per run, by the primary thread, after all record
// output is finalized.
package summary

import (
	"encoding/json"
	"os"
	"syscall"
	"time"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
)

// timestampLayout matches the format analysis scripts already parse.
const timestampLayout = "2006-01-02T15:04:05"

// RunSummary describes one completed run.
type RunSummary struct {
	Timestamp              string  `json:"timestamp"`
	OutputBasePath         string  `json:"output_base_path"`
	OutputFormat           string  `json:"output_format"`
	PHSPFilePath           string  `json:"phsp_file_path,omitempty"`
	CherenkovEnabled       bool    `json:"cherenkov_enabled"`
	DoseEnabled            bool    `json:"dose_enabled"`
	NumThreadsConfig       int     `json:"num_threads_config"`
	NumThreadsEffective    int     `json:"num_threads_effective"`
	Events                 int64   `json:"events"`
	TotalPhotons           int64   `json:"total_photons"`
	TotalDeposits          int64   `json:"total_deposits"`
	DepositsWithoutPrimary int64   `json:"deposits_without_primary_vertex"`
	DroppedPhotons         int64   `json:"dropped_photons"`
	DroppedDeposits        int64   `json:"dropped_deposits"`
	WallTimeSeconds        float64 `json:"wall_time_seconds"`
	CPUTimeSeconds         float64 `json:"cpu_time_seconds"`
}

// MetaPath returns the summary artifact path for an output base path.
func MetaPath(basePath string) string {
	return basePath + ".run_meta.json"
}

// Stamp sets the summary timestamp from t in local time.
func (s *RunSummary) Stamp(t time.Time) {
	s.Timestamp = t.Format(timestampLayout)
}

// Write serializes the summary as indented JSON at path. A write failure
// never affects the run outcome; callers log and move on.
func Write(path string, s RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &apperrors.StorageError{Operation: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: path, Err: err}
	}
	return nil
}

// ProcessCPUSeconds returns the user+system CPU time consumed by the
// process so far. Sampled at run start and end to report CPU seconds and
// the CPU/wall speedup.
func ProcessCPUSeconds() float64 {
	var usage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &usage); err != nil {
		return 0
	}
	return timevalSeconds(usage.Utime) + timevalSeconds(usage.Stime)
}

func timevalSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}
