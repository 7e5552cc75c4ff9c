// Package storage implements archive uploader implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cherenkovlab/phspstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*FileUploader)(nil)

// MetricsCollector defines metrics operations for archive storage.
type MetricsCollector interface {
	IncArtifactsUploaded(backend string, status string)
	ObserveUploadDuration(backend string, seconds float64)
	ObserveArtifactSize(backend string, size float64)
	IncStorageErrors(backend string, operation string)
}

// FileConfig contains local filesystem archive configuration.
type FileConfig struct {
	BasePath string
}

// FileUploader implements storage.Uploader for a local archive directory.
// Artifacts are copied under BasePath, preserving the remote path layout.
type FileUploader struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileUploader creates a new filesystem archive uploader.
func NewFileUploader(cfg FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileUploader, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive base path: %w", err)
	}

	logger.Info("filesystem archive uploader created", "base_path", cfg.BasePath)

	return &FileUploader{
		basePath: cfg.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Upload copies the local artifact into the archive directory.
func (u *FileUploader) Upload(ctx context.Context, localPath string, remotePath string) (int64, error) {
	startTime := time.Now()

	src, err := os.Open(localPath)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("file", "open")
		}
		return 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(u.basePath, remotePath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("file", "mkdir")
		}
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("file", "create")
		}
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}

	bytesWritten, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		if u.metrics != nil {
			u.metrics.IncStorageErrors("file", "copy")
		}
		return 0, fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("file", "close")
		}
		return 0, fmt.Errorf("failed to close archive file: %w", err)
	}

	u.logger.Info("archived artifact to filesystem",
		"source", localPath,
		"dest", destPath,
		"bytes", bytesWritten,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return bytesWritten, nil
}

// Backend returns the backend identifier.
func (u *FileUploader) Backend() string {
	return "file"
}

// Close closes the uploader.
func (u *FileUploader) Close() error {
	u.logger.Info("closing filesystem archive uploader")
	return nil
}
