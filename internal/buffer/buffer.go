// Package buffer implements bounded record buffering for the binary
// output path.
package buffer

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cherenkovlab/phspstore/pkg/buffer"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Ensure implementations satisfy the interfaces at compile time.
var (
	_ buffer.Buffer[record.PhotonRecord]   = (*RecordBuffer[record.PhotonRecord])(nil)
	_ buffer.Absorber[record.PhotonRecord] = (*Master[record.PhotonRecord])(nil)
)

// MetricsCollector defines the metrics operations used by the buffer layer.
type MetricsCollector interface {
	IncAbsorptions(channel string)
	IncFlushes(channel string, status string)
	ObserveFlushDuration(channel string, seconds float64)
	ObserveFlushRecords(channel string, count float64)
}

// RecordBuffer is a bounded, ordered buffer of fixed-layout records owned
// by exactly one thread. It is not safe for concurrent use; thread-local
// ownership makes locking unnecessary on the producer side.
//
// A worker buffer's capacity is the configured capacity divided by the
// worker count, so the sum of all thread-local capacities stays bounded by
// the single configured buffer budget regardless of parallelism.
type RecordBuffer[T record.Binary] struct {
	recs     []T
	capacity int
	total    int64
}

// NewWorker creates a thread-local buffer for one of workers parallel
// producers. The usable capacity is capacity/workers, at least 1.
func NewWorker[T record.Binary](capacity, workers int) *RecordBuffer[T] {
	if workers > 0 {
		capacity = capacity / workers
	}
	if capacity < 1 {
		capacity = 1
	}
	return &RecordBuffer[T]{
		recs:     make([]T, 0, capacity),
		capacity: capacity,
	}
}

func newBuffer[T record.Binary](capacity int) *RecordBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RecordBuffer[T]{
		recs:     make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a record at the end of the buffer.
func (b *RecordBuffer[T]) Append(rec T) {
	b.recs = append(b.recs, rec)
	b.total++
}

// IsFull reports whether the buffer has reached its capacity.
func (b *RecordBuffer[T]) IsFull() bool {
	return len(b.recs) >= b.capacity
}

// Len returns the number of records currently buffered.
func (b *RecordBuffer[T]) Len() int { return len(b.recs) }

// Cap returns the buffer's capacity in records.
func (b *RecordBuffer[T]) Cap() int { return b.capacity }

// Total returns the lifetime count of records that passed through the buffer.
func (b *RecordBuffer[T]) Total() int64 { return b.total }

// Records returns the buffered records in insertion order. The slice is
// owned by the buffer and is only valid until the next Append or Clear.
func (b *RecordBuffer[T]) Records() []T { return b.recs }

// Clear resets the record count. The backing storage is kept so a run does
// not reallocate on every fill/flush cycle.
func (b *RecordBuffer[T]) Clear() {
	b.recs = b.recs[:0]
}

// encode appends the wire encoding of every buffered record to dst in
// insertion order.
func (b *RecordBuffer[T]) encode(dst []byte) []byte {
	for _, rec := range b.recs {
		dst = rec.AppendBinary(dst)
	}
	return dst
}

// Master is the shared buffer for one channel. All mutation is serialized
// by a single mutex; the critical section is bounded by one absorption
// plus, rarely, one flush. The master owns the channel's output path and
// appends to it on flush.
type Master[T record.Binary] struct {
	mu      sync.Mutex
	buf     *RecordBuffer[T]
	channel record.Channel
	path    string
	logger  *slog.Logger
	metrics MetricsCollector
	onDrop  func(n int)

	encodeBuf []byte // reused across flushes
}

// MasterConfig configures a master buffer.
type MasterConfig struct {
	Channel  record.Channel
	Capacity int
	Path     string

	// OnDrop is invoked with the number of records lost when a flush
	// fails. May be nil.
	OnDrop func(n int)
}

// NewMaster creates the shared master buffer for one channel. The master
// keeps the full configured capacity.
func NewMaster[T record.Binary](cfg MasterConfig, logger *slog.Logger, metrics MetricsCollector) *Master[T] {
	return &Master[T]{
		buf:     newBuffer[T](cfg.Capacity),
		channel: cfg.Channel,
		path:    cfg.Path,
		logger:  logger,
		metrics: metrics,
		onDrop:  cfg.OnDrop,
	}
}

// Path returns the output stream path the master flushes to.
func (m *Master[T]) Path() string { return m.path }

// Append adds one record produced on the primary thread. If the master is
// full afterwards it flushes itself to disk.
func (m *Master[T]) Append(rec T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf.Append(rec)
	if m.buf.IsFull() {
		m.flushLocked()
	}
}

// Absorb moves all records from a worker buffer into the master and clears
// the worker. If the absorption would exceed the master's capacity, the
// master flushes itself first, so absorption never silently drops data.
func (m *Master[T]) Absorb(worker buffer.Buffer[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := worker.Len()
	if n == 0 {
		return
	}

	if m.buf.Len()+n > m.buf.Cap() && m.buf.Len() > 0 {
		m.flushLocked()
	}

	m.buf.recs = append(m.buf.recs, worker.Records()...)
	m.buf.total += int64(n)
	worker.Clear()

	if m.metrics != nil {
		m.metrics.IncAbsorptions(string(m.channel))
	}
}

// Flush writes any buffered records to disk and clears the buffer.
func (m *Master[T]) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// Len returns the current in-memory record count.
func (m *Master[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Len()
}

// Total returns the lifetime count of records that passed through the master.
func (m *Master[T]) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Total()
}

// flushLocked appends the buffered records to the output file and clears
// the buffer. The buffer is cleared even when the write fails: retrying
// would hold memory unbounded, so the failed batch is counted as dropped
// and the run continues.
func (m *Master[T]) flushLocked() {
	n := m.buf.Len()
	if n == 0 {
		return
	}

	start := time.Now()
	err := m.writeLocked()
	m.buf.Clear()

	if err != nil {
		m.logger.Error("flush failed, records lost",
			"channel", m.channel,
			"path", m.path,
			"records", n,
			"error", err,
		)
		if m.onDrop != nil {
			m.onDrop(n)
		}
		if m.metrics != nil {
			m.metrics.IncFlushes(string(m.channel), "error")
		}
		return
	}

	if m.metrics != nil {
		m.metrics.IncFlushes(string(m.channel), "success")
		m.metrics.ObserveFlushDuration(string(m.channel), time.Since(start).Seconds())
		m.metrics.ObserveFlushRecords(string(m.channel), float64(n))
	}
}

func (m *Master[T]) writeLocked() error {
	m.encodeBuf = m.buf.encode(m.encodeBuf[:0])

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(m.encodeBuf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
