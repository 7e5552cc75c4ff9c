package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStorageMetrics records metric calls for assertions.
type fakeStorageMetrics struct {
	uploaded map[string]int // backend/status
	errors   map[string]int // backend/operation
	sizes    []float64
}

func newFakeStorageMetrics() *fakeStorageMetrics {
	return &fakeStorageMetrics{
		uploaded: make(map[string]int),
		errors:   make(map[string]int),
	}
}

func (m *fakeStorageMetrics) IncArtifactsUploaded(backend, status string) {
	m.uploaded[backend+"/"+status]++
}

func (m *fakeStorageMetrics) ObserveUploadDuration(backend string, seconds float64) {}

func (m *fakeStorageMetrics) ObserveArtifactSize(backend string, size float64) {
	m.sizes = append(m.sizes, size)
}

func (m *fakeStorageMetrics) IncStorageErrors(backend, operation string) {
	m.errors[backend+"/"+operation]++
}

func TestNewFileUploader_CreatesBasePath(t *testing.T) {
	basePath := filepath.Join(t.TempDir(), "archive", "nested")

	uploader, err := NewFileUploader(FileConfig{BasePath: basePath}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}
	defer uploader.Close()

	if _, err := os.Stat(basePath); err != nil {
		t.Errorf("base path not created: %v", err)
	}
	if got := uploader.Backend(); got != "file" {
		t.Errorf("Backend() = %v, want file", got)
	}
}

func TestFileUploader_Upload(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "archive")
	srcPath := filepath.Join(dir, "run.phsp")
	content := []byte("photon stream payload")
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	uploader, err := NewFileUploader(FileConfig{BasePath: basePath}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}
	defer uploader.Close()

	bytesWritten, err := uploader.Upload(context.Background(), srcPath, "runs/20260101_120000/run.phsp")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if bytesWritten != int64(len(content)) {
		t.Errorf("Upload() = %d bytes, want %d", bytesWritten, len(content))
	}

	archived, err := os.ReadFile(filepath.Join(basePath, "runs", "20260101_120000", "run.phsp"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(archived) != string(content) {
		t.Errorf("archived content = %q, want %q", archived, content)
	}
}

func TestFileUploader_UploadMissingSource(t *testing.T) {
	metrics := newFakeStorageMetrics()
	uploader, err := NewFileUploader(FileConfig{BasePath: t.TempDir()}, discardLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}
	defer uploader.Close()

	if _, err := uploader.Upload(context.Background(), "/nonexistent/run.phsp", "runs/x/run.phsp"); err == nil {
		t.Fatal("Upload() of missing source should fail")
	}
	if metrics.errors["file/open"] != 1 {
		t.Errorf("errors = %v, want file/open counted once", metrics.errors)
	}
}
