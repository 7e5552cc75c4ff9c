package buffer

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cherenkovlab/phspstore/pkg/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func photon(eventID uint32, trackID int32) record.PhotonRecord {
	return record.PhotonRecord{
		InitX:       float32(eventID),
		FinalEnergy: 2.5e6,
		EventID:     eventID,
		TrackID:     trackID,
	}
}

func newTestMaster(t *testing.T, capacity int, onDrop func(int)) *Master[record.PhotonRecord] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.phsp")
	return NewMaster[record.PhotonRecord](MasterConfig{
		Channel:  record.ChannelCherenkov,
		Capacity: capacity,
		Path:     path,
		OnDrop:   onDrop,
	}, testLogger(), nil)
}

func readPhotons(t *testing.T, path string) []record.PhotonRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data)%record.PhotonRecordSize != 0 {
		t.Fatalf("file size %d is not a multiple of %d", len(data), record.PhotonRecordSize)
	}
	var recs []record.PhotonRecord
	for off := 0; off < len(data); off += record.PhotonRecordSize {
		recs = append(recs, record.DecodePhotonRecord(data[off:]))
	}
	return recs
}

func TestNewWorker_CapacityDivision(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		workers  int
		want     int
	}{
		{"even division", 10000, 4, 2500},
		{"uneven division", 10000, 3, 3333},
		{"more workers than capacity", 2, 8, 1},
		{"zero workers keeps capacity", 100, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewWorker[record.PhotonRecord](tt.capacity, tt.workers)
			if buf.Cap() != tt.want {
				t.Errorf("Cap() = %d, want %d", buf.Cap(), tt.want)
			}
		})
	}
}

func TestRecordBuffer_AppendAndFull(t *testing.T) {
	buf := NewWorker[record.PhotonRecord](12, 4) // per-worker capacity 3

	for i := 0; i < 3; i++ {
		if buf.IsFull() {
			t.Fatalf("buffer full after %d records, capacity %d", i, buf.Cap())
		}
		buf.Append(photon(uint32(i), 1))
	}

	if !buf.IsFull() {
		t.Error("buffer should be full at capacity")
	}
	if buf.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buf.Len())
	}
	if buf.Total() != 3 {
		t.Errorf("Total() = %d, want 3", buf.Total())
	}
}

func TestRecordBuffer_ClearKeepsTotalAndCapacity(t *testing.T) {
	buf := NewWorker[record.PhotonRecord](4, 1)
	for i := 0; i < 4; i++ {
		buf.Append(photon(uint32(i), 1))
	}

	buf.Clear()

	if buf.Len() != 0 {
		t.Errorf("Len() after clear = %d, want 0", buf.Len())
	}
	if buf.Cap() != 4 {
		t.Errorf("Cap() after clear = %d, want 4", buf.Cap())
	}
	if buf.Total() != 4 {
		t.Errorf("Total() after clear = %d, want 4", buf.Total())
	}
}

func TestMaster_AppendFlushesAtCapacity(t *testing.T) {
	m := newTestMaster(t, 3, nil)

	for i := 0; i < 3; i++ {
		m.Append(photon(uint32(i), 1))
	}

	// Reaching capacity must have flushed to disk and cleared memory.
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after auto-flush", m.Len())
	}
	recs := readPhotons(t, m.Path())
	if len(recs) != 3 {
		t.Fatalf("flushed %d records, want 3", len(recs))
	}
	for i, r := range recs {
		if r.EventID != uint32(i) {
			t.Errorf("record %d has EventID %d, want %d (order not preserved)", i, r.EventID, i)
		}
	}
}

func TestMaster_AbsorbClearsWorkerAndPreservesOrder(t *testing.T) {
	m := newTestMaster(t, 100, nil)
	worker := NewWorker[record.PhotonRecord](40, 2) // capacity 20

	for i := 0; i < 5; i++ {
		worker.Append(photon(uint32(i), 2))
	}

	m.Absorb(worker)

	if worker.Len() != 0 {
		t.Errorf("worker Len() = %d, want 0 after absorption", worker.Len())
	}
	if worker.Total() != 5 {
		t.Errorf("worker Total() = %d, want 5", worker.Total())
	}
	if m.Len() != 5 {
		t.Errorf("master Len() = %d, want 5", m.Len())
	}
	if m.Total() != 5 {
		t.Errorf("master Total() = %d, want 5", m.Total())
	}
}

func TestMaster_AbsorbEmptyWorkerIsNoop(t *testing.T) {
	m := newTestMaster(t, 10, nil)
	worker := NewWorker[record.PhotonRecord](10, 1)

	m.Absorb(worker)

	if m.Len() != 0 || m.Total() != 0 {
		t.Errorf("Len()=%d Total()=%d, want 0/0", m.Len(), m.Total())
	}
}

func TestMaster_AbsorbOverflowFlushesFirst(t *testing.T) {
	m := newTestMaster(t, 4, nil)
	for i := 0; i < 3; i++ {
		m.Append(photon(uint32(i), 1))
	}

	worker := NewWorker[record.PhotonRecord](4, 1)
	for i := 3; i < 6; i++ {
		worker.Append(photon(uint32(i), 2))
	}

	// 3 + 3 > 4: the master must flush its 3 records before absorbing.
	m.Absorb(worker)

	if m.Len() != 3 {
		t.Errorf("master Len() = %d, want 3 (worker records only)", m.Len())
	}
	recs := readPhotons(t, m.Path())
	if len(recs) != 3 {
		t.Fatalf("on-disk records = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.EventID != uint32(i) {
			t.Errorf("disk record %d has EventID %d, want %d", i, r.EventID, i)
		}
	}

	// A final flush lands the absorbed records after the flushed ones.
	m.Flush()
	recs = readPhotons(t, m.Path())
	if len(recs) != 6 {
		t.Fatalf("on-disk records = %d, want 6", len(recs))
	}
	for i, r := range recs {
		if r.EventID != uint32(i) {
			t.Errorf("disk record %d has EventID %d, want %d", i, r.EventID, i)
		}
	}
}

// Two producers with per-thread capacity 4 emit 5 records each: each
// worker absorbs exactly once mid-run, the rest drains at end of run, and
// all 10 records reach disk with per-thread order intact.
func TestMaster_TwoWorkerScenario(t *testing.T) {
	m := newTestMaster(t, 8, nil)
	a := NewWorker[record.PhotonRecord](8, 2) // capacity 4
	b := NewWorker[record.PhotonRecord](8, 2)

	emit := func(w *RecordBuffer[record.PhotonRecord], trackID int32, seq uint32) {
		w.Append(photon(seq, trackID))
		if w.IsFull() {
			m.Absorb(w)
		}
	}

	for i := 0; i < 5; i++ {
		emit(a, 1, uint32(i))
		emit(b, 2, uint32(i))
	}

	// Forced end-of-run drain.
	m.Absorb(a)
	m.Absorb(b)
	m.Flush()

	recs := readPhotons(t, m.Path())
	if len(recs) != 10 {
		t.Fatalf("on-disk records = %d, want 10", len(recs))
	}

	// Per-thread subsequences must be in emit order.
	var seqA, seqB []uint32
	for _, r := range recs {
		switch r.TrackID {
		case 1:
			seqA = append(seqA, r.EventID)
		case 2:
			seqB = append(seqB, r.EventID)
		default:
			t.Fatalf("unexpected TrackID %d", r.TrackID)
		}
	}
	checkOrdered := func(name string, seq []uint32) {
		if len(seq) != 5 {
			t.Fatalf("thread %s contributed %d records, want 5", name, len(seq))
		}
		for i, s := range seq {
			if s != uint32(i) {
				t.Errorf("thread %s record %d has sequence %d, want %d", name, i, s, i)
			}
		}
	}
	checkOrdered("a", seqA)
	checkOrdered("b", seqB)
}

func TestMaster_FlushFailureCountsDrops(t *testing.T) {
	var dropped int
	dir := t.TempDir()
	m := NewMaster[record.PhotonRecord](MasterConfig{
		Channel:  record.ChannelCherenkov,
		Capacity: 10,
		Path:     dir, // opening a directory for writing fails
		OnDrop:   func(n int) { dropped += n },
	}, testLogger(), nil)

	for i := 0; i < 5; i++ {
		m.Append(photon(uint32(i), 1))
	}
	m.Flush()

	if dropped != 5 {
		t.Errorf("dropped = %d, want 5", dropped)
	}
	// The buffer must be cleared even on failure to bound memory.
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed flush", m.Len())
	}
}

func TestMaster_FlushEmptyIsNoop(t *testing.T) {
	m := newTestMaster(t, 10, nil)
	m.Flush()

	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Error("empty flush must not create the output file")
	}
}

func TestMaster_ConcurrentAbsorb(t *testing.T) {
	const (
		workers          = 8
		recordsPerWorker = 250
	)
	m := newTestMaster(t, 64, nil)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			local := NewWorker[record.PhotonRecord](64*workers, workers)
			for i := 0; i < recordsPerWorker; i++ {
				local.Append(photon(uint32(i), id))
				if local.IsFull() {
					m.Absorb(local)
				}
			}
			m.Absorb(local)
		}(int32(w))
	}
	wg.Wait()
	m.Flush()

	recs := readPhotons(t, m.Path())
	if len(recs) != workers*recordsPerWorker {
		t.Fatalf("on-disk records = %d, want %d", len(recs), workers*recordsPerWorker)
	}

	// Each worker's subsequence must be ordered regardless of interleaving.
	next := make(map[int32]uint32)
	for _, r := range recs {
		if r.EventID != next[r.TrackID] {
			t.Fatalf("worker %d out of order: got sequence %d, want %d",
				r.TrackID, r.EventID, next[r.TrackID])
		}
		next[r.TrackID]++
	}
}

func BenchmarkRecordBuffer_Append(b *testing.B) {
	buf := NewWorker[record.PhotonRecord](b.N+1, 1)
	rec := photon(1, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Append(rec)
	}
}

func BenchmarkMaster_Absorb(b *testing.B) {
	dir := b.TempDir()
	m := NewMaster[record.PhotonRecord](MasterConfig{
		Channel:  record.ChannelCherenkov,
		Capacity: 1 << 20,
		Path:     filepath.Join(dir, "bench.phsp"),
	}, testLogger(), nil)
	rec := photon(1, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		local := NewWorker[record.PhotonRecord](1024, 1)
		for j := 0; j < 1024; j++ {
			local.Append(rec)
		}
		b.StartTimer()
		m.Absorb(local)
	}
}
