package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherCounter returns the value of a counter metric family member whose
// labels match all given label values, or -1 if absent.
func gatherCounter(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			got := make(map[string]string)
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.RecordsEmitted == nil || metrics.Flushes == nil || metrics.ArtifactsUploaded == nil {
		t.Error("expected all metric vectors to be initialized")
	}
}

func TestMetrics_RecorderCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncRecordsEmitted("cherenkov")
	metrics.IncRecordsEmitted("cherenkov")
	metrics.IncRecordsEmitted("dose")
	metrics.AddRecordsDropped("cherenkov", "flush_failure", 10000)
	metrics.IncEventsProcessed()

	if got := gatherCounter(t, registry, "records_emitted_total", map[string]string{"channel": "cherenkov"}); got != 2 {
		t.Errorf("cherenkov emitted = %v, want 2", got)
	}
	if got := gatherCounter(t, registry, "records_emitted_total", map[string]string{"channel": "dose"}); got != 1 {
		t.Errorf("dose emitted = %v, want 1", got)
	}
	if got := gatherCounter(t, registry, "records_dropped_total",
		map[string]string{"channel": "cherenkov", "reason": "flush_failure"}); got != 10000 {
		t.Errorf("dropped = %v, want 10000", got)
	}
	if got := gatherCounter(t, registry, "events_processed_total", nil); got != 1 {
		t.Errorf("events = %v, want 1", got)
	}
}

func TestMetrics_BufferCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncAbsorptions("cherenkov")
	metrics.IncFlushes("cherenkov", "success")
	metrics.IncFlushes("cherenkov", "error")
	metrics.ObserveFlushDuration("cherenkov", 0.05)
	metrics.ObserveFlushRecords("cherenkov", 10000)

	if got := gatherCounter(t, registry, "buffer_absorptions_total", map[string]string{"channel": "cherenkov"}); got != 1 {
		t.Errorf("absorptions = %v, want 1", got)
	}
	if got := gatherCounter(t, registry, "buffer_flushes_total",
		map[string]string{"channel": "cherenkov", "status": "error"}); got != 1 {
		t.Errorf("error flushes = %v, want 1", got)
	}
}

func TestMetrics_ArchiveCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncArtifactsUploaded("s3", "success")
	metrics.ObserveUploadDuration("s3", 2.5)
	metrics.ObserveArtifactSize("s3", 64*1024*1024)
	metrics.IncStorageErrors("s3", "upload")

	if got := gatherCounter(t, registry, "artifacts_uploaded_total",
		map[string]string{"backend": "s3", "status": "success"}); got != 1 {
		t.Errorf("uploads = %v, want 1", got)
	}
	if got := gatherCounter(t, registry, "storage_errors_total",
		map[string]string{"backend": "s3", "operation": "upload"}); got != 1 {
		t.Errorf("storage errors = %v, want 1", got)
	}
}

func TestMetrics_RegisteredWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncRecordsEmitted("cherenkov")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, fam := range families {
		if fam.GetName() == "records_emitted_total" {
			found = true
		}
	}
	if !found {
		t.Error("records_emitted_total not registered")
	}
}
