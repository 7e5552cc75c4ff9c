// Package storage implements storage-related functionality.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cherenkovlab/phspstore/internal/config/dto"
	"github.com/cherenkovlab/phspstore/pkg/storage"
)

// Archiver uploads the artifacts of a finished run to one archive backend.
// Uploads are best-effort: a failed artifact is logged and counted, and the
// run outcome is unaffected.
type Archiver struct {
	uploader storage.Uploader
	prefix   string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewArchiver creates an archiver for the configured backend.
func NewArchiver(cfg dto.ArchiveConfig, logger *slog.Logger, metrics MetricsCollector) (*Archiver, error) {
	var (
		uploader storage.Uploader
		err      error
	)

	switch cfg.Backend {
	case "file":
		uploader, err = NewFileUploader(FileConfig{
			BasePath: cfg.File.BasePath,
		}, logger, metrics)
	case "s3":
		uploader, err = NewS3Uploader(S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BasePath:     cfg.S3.BasePath,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
		}, logger, metrics)
	case "gcs":
		uploader, err = NewGCSUploader(GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			ProjectID:            cfg.GCS.ProjectID,
			BasePath:             cfg.GCS.BasePath,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      cfg.GCS.CredentialsJSON,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		}, logger, metrics)
	case "azure":
		uploader, err = NewAzureUploader(AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    cfg.Azure.AccountKey,
			ContainerName: cfg.Azure.Container,
			Endpoint:      cfg.Azure.Endpoint,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &Archiver{
		uploader: uploader,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// RemotePath returns the archive object path for one artifact:
// <prefix>/<YYYYMMDD_HHMMSS>/<filename>.
func (a *Archiver) RemotePath(runStamp, localPath string) string {
	return path.Join(a.prefix, runStamp, filepath.Base(localPath))
}

// ArchiveRun uploads the given artifact files. Paths that do not exist are
// skipped silently (a disabled channel produces no artifact). Returns the
// number of artifacts uploaded.
func (a *Archiver) ArchiveRun(ctx context.Context, artifactPaths []string) int {
	runStamp := time.Now().Format("20060102_150405")
	backend := a.uploader.Backend()
	uploaded := 0

	for _, localPath := range artifactPaths {
		if _, err := os.Stat(localPath); err != nil {
			continue
		}

		startTime := time.Now()
		bytesWritten, err := a.uploader.Upload(ctx, localPath, a.RemotePath(runStamp, localPath))
		if err != nil {
			a.logger.Warn("artifact upload failed",
				"backend", backend,
				"path", localPath,
				"error", err,
			)
			if a.metrics != nil {
				a.metrics.IncArtifactsUploaded(backend, "failure")
			}
			continue
		}

		if a.metrics != nil {
			a.metrics.IncArtifactsUploaded(backend, "success")
			a.metrics.ObserveUploadDuration(backend, time.Since(startTime).Seconds())
			a.metrics.ObserveArtifactSize(backend, float64(bytesWritten))
		}
		uploaded++
	}

	a.logger.Info("run artifacts archived",
		"backend", backend,
		"uploaded", uploaded,
		"candidates", len(artifactPaths),
	)

	return uploaded
}

// Close closes the underlying uploader.
func (a *Archiver) Close() error {
	return a.uploader.Close()
}
