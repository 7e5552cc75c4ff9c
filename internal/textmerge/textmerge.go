// Package textmerge implements the CSV output path: every thread writes
// its own file during the run, and the primary thread concatenates them
// afterwards. No cross-thread state exists while the run is active.
package textmerge

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Column headers for the two channels. Field order matches the binary
// block layout so CSV and binary output stay column-compatible.
const (
	PhotonHeader = "InitialX,InitialY,InitialZ," +
		"InitialDirX,InitialDirY,InitialDirZ," +
		"FinalX,FinalY,FinalZ," +
		"FinalDirX,FinalDirY,FinalDirZ," +
		"FinalEnergyMicroeV,EventID,TrackID"

	DepositHeader = "X,Y,Z,RelX,RelY,RelZ,EnergyMeV,EventID,PDGCode"
)

// ThreadFilePath returns the per-thread file path for a final output path.
func ThreadFilePath(finalPath string, threadID int) string {
	return fmt.Sprintf("%s.thread_%d", finalPath, threadID)
}

// FormatPhoton renders one photon record as a CSV line without the
// trailing newline. Floats use scientific notation with six digits.
func FormatPhoton(rec record.PhotonRecord) string {
	var b strings.Builder
	b.Grow(208)
	appendFloats(&b,
		rec.InitX, rec.InitY, rec.InitZ,
		rec.InitDirX, rec.InitDirY, rec.InitDirZ,
		rec.FinalX, rec.FinalY, rec.FinalZ,
		rec.FinalDirX, rec.FinalDirY, rec.FinalDirZ,
		rec.FinalEnergy,
	)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(rec.EventID), 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(int64(rec.TrackID), 10))
	return b.String()
}

// FormatDeposit renders one deposit record as a CSV line without the
// trailing newline.
func FormatDeposit(rec record.DepositRecord) string {
	var b strings.Builder
	b.Grow(128)
	appendFloats(&b,
		rec.X, rec.Y, rec.Z,
		rec.DX, rec.DY, rec.DZ,
		rec.Energy,
	)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(rec.EventID), 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(int64(rec.PDG), 10))
	return b.String()
}

func appendFloats(b *strings.Builder, vals ...float32) {
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%.6e", v)
	}
}

// ThreadWriter writes CSV lines to one thread's private file. It is owned
// by exactly one thread and never shared.
type ThreadWriter struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// NewThreadWriter opens the per-thread file for finalPath and writes the
// header line. The file is truncated if it already exists.
func NewThreadWriter(finalPath string, threadID int, header string) (*ThreadWriter, error) {
	path := ThreadFilePath(finalPath, threadID)
	file, err := os.Create(path)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "create", Path: path, Err: err}
	}

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(header + "\n"); err != nil {
		file.Close()
		return nil, &apperrors.StorageError{Operation: "write", Path: path, Err: err}
	}

	return &ThreadWriter{path: path, file: file, w: w}, nil
}

// Path returns the per-thread file path.
func (t *ThreadWriter) Path() string { return t.path }

// Append writes one data line. Lines are buffered; Close flushes them.
func (t *ThreadWriter) Append(line string) error {
	if t.closed {
		return apperrors.ErrWriterClosed
	}
	if _, err := t.w.WriteString(line); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: t.path, Err: err}
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: t.path, Err: err}
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (t *ThreadWriter) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.w.Flush(); err != nil {
		t.file.Close()
		return &apperrors.StorageError{Operation: "flush", Path: t.path, Err: err}
	}
	if err := t.file.Close(); err != nil {
		return &apperrors.StorageError{Operation: "close", Path: t.path, Err: err}
	}
	return nil
}

// MetricsCollector defines the metrics operations used by the merger.
type MetricsCollector interface {
	IncThreadFilesMerged(status string)
}

// Merger concatenates per-thread CSV files into the final output. Run by
// the primary thread only, after every thread has closed its writer.
type Merger struct {
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger, metrics MetricsCollector) *Merger {
	return &Merger{logger: logger, metrics: metrics}
}

// Merge writes header once to finalPath, then appends every thread file's
// data lines in thread-index order 0..threads-1 and deletes each thread
// file. A thread file that cannot be opened is logged and skipped; only a
// failure to produce the final file itself is returned as an error.
func (m *Merger) Merge(finalPath, header string, threads int) error {
	out, err := os.Create(finalPath)
	if err != nil {
		return &apperrors.StorageError{Operation: "create", Path: finalPath, Err: err}
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(header + "\n"); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: finalPath, Err: err}
	}

	for i := 0; i < threads; i++ {
		if err := m.mergeOne(w, finalPath, i); err != nil {
			m.logger.Warn("skipping thread file",
				"thread_id", i,
				"path", ThreadFilePath(finalPath, i),
				"error", err,
			)
			if m.metrics != nil {
				m.metrics.IncThreadFilesMerged("skipped")
			}
			continue
		}
		if m.metrics != nil {
			m.metrics.IncThreadFilesMerged("merged")
		}
	}

	if err := w.Flush(); err != nil {
		return &apperrors.StorageError{Operation: "flush", Path: finalPath, Err: err}
	}

	m.logger.Info("merge complete", "path", finalPath, "threads", threads)
	return nil
}

// mergeOne copies one thread file's data lines (everything after its
// header line) into w, then removes the thread file.
func (m *Merger) mergeOne(w *bufio.Writer, finalPath string, threadID int) error {
	path := ThreadFilePath(finalPath, threadID)

	in, err := os.Open(path)
	if err != nil {
		return &apperrors.MergeError{ThreadID: threadID, Path: path, Err: err}
	}

	r := bufio.NewReader(in)
	if _, err := r.ReadString('\n'); err != nil && err != io.EOF {
		in.Close()
		return &apperrors.MergeError{ThreadID: threadID, Path: path, Err: err}
	}
	if _, err := io.Copy(w, r); err != nil {
		in.Close()
		return &apperrors.MergeError{ThreadID: threadID, Path: path, Err: err}
	}
	in.Close()

	if err := os.Remove(path); err != nil {
		// The data is already merged; a leftover thread file is not
		// worth skipping the contribution for.
		m.logger.Warn("could not remove thread file", "path", path, "error", err)
	}
	return nil
}
