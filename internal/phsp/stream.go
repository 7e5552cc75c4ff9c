package phsp

import (
	"bufio"
	"io"
	"os"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// StreamReader reads a binary photon stream file in batches for the
// analysis export path. The file is a flat sequence of photon blocks with
// no framing, so any positive batch size works.
type StreamReader struct {
	path  string
	file  *os.File
	r     *bufio.Reader
	block []byte
}

// OpenStream opens the photon stream at path.
func OpenStream(path string) (*StreamReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "open", Path: path, Err: err}
	}
	return &StreamReader{
		path:  path,
		file:  f,
		r:     bufio.NewReaderSize(f, 1<<20),
		block: make([]byte, record.PhotonRecordSize),
	}, nil
}

// ReadBatch reads up to n records. It returns io.EOF with an empty batch
// once the stream is exhausted; a trailing partial block reports a
// truncated stream.
func (s *StreamReader) ReadBatch(n int) ([]record.PhotonRecord, error) {
	recs := make([]record.PhotonRecord, 0, n)
	for len(recs) < n {
		_, err := io.ReadFull(s.r, s.block)
		if err == io.EOF {
			if len(recs) == 0 {
				return nil, io.EOF
			}
			return recs, nil
		}
		if err == io.ErrUnexpectedEOF {
			return recs, &apperrors.StorageError{
				Operation: "read",
				Path:      s.path,
				Err:       apperrors.ErrTruncatedStream,
			}
		}
		if err != nil {
			return recs, &apperrors.StorageError{Operation: "read", Path: s.path, Err: err}
		}
		recs = append(recs, record.DecodePhotonRecord(s.block))
	}
	return recs, nil
}

// Close closes the underlying file.
func (s *StreamReader) Close() error {
	return s.file.Close()
}
