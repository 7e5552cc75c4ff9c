package phsp

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

func writeStream(t *testing.T, recs []record.PhotonRecord, extra []byte) string {
	t.Helper()
	var data []byte
	for _, rec := range recs {
		data = rec.AppendBinary(data)
	}
	data = append(data, extra...)

	path := filepath.Join(t.TempDir(), "out.phsp")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestStreamReader_Batches(t *testing.T) {
	recs := make([]record.PhotonRecord, 7)
	for i := range recs {
		recs[i] = record.PhotonRecord{EventID: uint32(i), TrackID: int32(i), FinalEnergy: float32(i)}
	}
	path := writeStream(t, recs, nil)

	r, err := OpenStream(path)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer r.Close()

	batch, err := r.ReadBatch(3)
	if err != nil {
		t.Fatalf("ReadBatch() error = %v", err)
	}
	if len(batch) != 3 || batch[0].EventID != 0 || batch[2].EventID != 2 {
		t.Fatalf("first batch = %+v", batch)
	}

	batch, err = r.ReadBatch(3)
	if err != nil || len(batch) != 3 {
		t.Fatalf("second batch len = %d, err = %v", len(batch), err)
	}

	// Short final batch, no error.
	batch, err = r.ReadBatch(3)
	if err != nil {
		t.Fatalf("final batch error = %v", err)
	}
	if len(batch) != 1 || batch[0].EventID != 6 {
		t.Fatalf("final batch = %+v", batch)
	}

	if _, err := r.ReadBatch(3); err != io.EOF {
		t.Errorf("after exhaustion err = %v, want io.EOF", err)
	}
}

func TestStreamReader_Truncated(t *testing.T) {
	recs := []record.PhotonRecord{{EventID: 1}}
	path := writeStream(t, recs, []byte{0xde, 0xad})

	r, err := OpenStream(path)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer r.Close()

	batch, err := r.ReadBatch(10)
	if !errors.Is(err, apperrors.ErrTruncatedStream) {
		t.Fatalf("err = %v, want ErrTruncatedStream", err)
	}
	// The complete leading record is still returned.
	if len(batch) != 1 || batch[0].EventID != 1 {
		t.Errorf("batch = %+v", batch)
	}
}

func TestStreamReader_MissingFile(t *testing.T) {
	if _, err := OpenStream(filepath.Join(t.TempDir(), "missing.phsp")); err == nil {
		t.Fatal("expected error for missing stream")
	}
}

func TestStreamReader_Empty(t *testing.T) {
	path := writeStream(t, nil, nil)

	r, err := OpenStream(path)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer r.Close()

	if _, err := r.ReadBatch(5); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
