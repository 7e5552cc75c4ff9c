package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Recorder metrics
	RecordsEmitted  *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	EventsProcessed prometheus.Counter

	// Buffer metrics
	Absorptions   *prometheus.CounterVec
	Flushes       *prometheus.CounterVec
	FlushDuration *prometheus.HistogramVec
	FlushRecords  *prometheus.HistogramVec

	// Merge metrics
	ThreadFilesMerged *prometheus.CounterVec

	// Archive metrics
	ArtifactsUploaded *prometheus.CounterVec
	UploadDuration    *prometheus.HistogramVec
	ArtifactSize      *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Recorder metrics
		RecordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_emitted_total",
				Help: "Total number of records emitted by producer threads",
			},
			[]string{"channel"},
		),
		RecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_dropped_total",
				Help: "Total number of records lost to failed flushes or emitted without a bound buffer",
			},
			[]string{"channel", "reason"},
		),
		EventsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "events_processed_total",
				Help: "Total number of simulation events processed",
			},
		),

		// Buffer metrics
		Absorptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_absorptions_total",
				Help: "Total number of worker buffers absorbed into a master buffer",
			},
			[]string{"channel"},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_flushes_total",
				Help: "Total number of master buffer flushes to disk",
			},
			[]string{"channel", "status"},
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buffer_flush_duration_seconds",
				Help:    "Duration of master buffer flushes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		FlushRecords: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buffer_flush_records",
				Help:    "Number of records written per flush",
				Buckets: prometheus.ExponentialBuckets(100, 4, 8), // 100 to ~1.6M records
			},
			[]string{"channel"},
		),

		// Merge metrics
		ThreadFilesMerged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thread_files_merged_total",
				Help: "Total number of per-thread text files merged into the final output",
			},
			[]string{"status"},
		),

		// Archive metrics
		ArtifactsUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifacts_uploaded_total",
				Help: "Total number of run artifacts uploaded to archive storage",
			},
			[]string{"backend", "status"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artifact_upload_duration_seconds",
				Help:    "Duration of artifact uploads",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"backend"},
		),
		ArtifactSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artifact_size_bytes",
				Help:    "Size of uploaded run artifacts",
				Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 12), // 1MB to 4GB
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of archive storage errors",
			},
			[]string{"backend", "operation"},
		),
	}
}

// IncRecordsEmitted increments the emitted records counter.
func (m *Metrics) IncRecordsEmitted(channel string) {
	m.RecordsEmitted.WithLabelValues(channel).Inc()
}

// AddRecordsDropped adds to the dropped records counter.
func (m *Metrics) AddRecordsDropped(channel string, reason string, n float64) {
	m.RecordsDropped.WithLabelValues(channel, reason).Add(n)
}

// IncEventsProcessed increments the processed events counter.
func (m *Metrics) IncEventsProcessed() {
	m.EventsProcessed.Inc()
}

// IncAbsorptions increments the absorptions counter.
func (m *Metrics) IncAbsorptions(channel string) {
	m.Absorptions.WithLabelValues(channel).Inc()
}

// IncFlushes increments the flushes counter.
func (m *Metrics) IncFlushes(channel string, status string) {
	m.Flushes.WithLabelValues(channel, status).Inc()
}

// ObserveFlushDuration observes one flush duration.
func (m *Metrics) ObserveFlushDuration(channel string, seconds float64) {
	m.FlushDuration.WithLabelValues(channel).Observe(seconds)
}

// ObserveFlushRecords observes the batch size of one flush.
func (m *Metrics) ObserveFlushRecords(channel string, count float64) {
	m.FlushRecords.WithLabelValues(channel).Observe(count)
}

// IncThreadFilesMerged increments the merged thread files counter.
func (m *Metrics) IncThreadFilesMerged(status string) {
	m.ThreadFilesMerged.WithLabelValues(status).Inc()
}

// IncArtifactsUploaded increments the uploaded artifacts counter.
func (m *Metrics) IncArtifactsUploaded(backend string, status string) {
	m.ArtifactsUploaded.WithLabelValues(backend, status).Inc()
}

// ObserveUploadDuration observes one artifact upload duration.
func (m *Metrics) ObserveUploadDuration(backend string, seconds float64) {
	m.UploadDuration.WithLabelValues(backend).Observe(seconds)
}

// ObserveArtifactSize observes the size of one uploaded artifact.
func (m *Metrics) ObserveArtifactSize(backend string, size float64) {
	m.ArtifactSize.WithLabelValues(backend).Observe(size)
}

// IncStorageErrors increments the storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
