// Package storage implements Google Cloud Storage archive uploader.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/cherenkovlab/phspstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*GCSUploader)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	BasePath             string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSUploader implements storage.Uploader for Google Cloud Storage.
// It supports multiple authentication methods (service account file, JSON,
// default credentials) with hierarchical object path organization.
type GCSUploader struct {
	client     *gcs.Client
	bucket     string
	pathPrefix string
	logger     *slog.Logger
	metrics    MetricsCollector
}

// NewGCSUploader creates a new Google Cloud Storage archive uploader.
func NewGCSUploader(cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSUploader, error) {
	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	if cfg.UseDefaultCredential {
		// Application Default Credentials: GOOGLE_APPLICATION_CREDENTIALS
		// env var or the ambient service account.
		logger.Info("using default GCP credentials")
	} else if cfg.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	} else if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	} else {
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS archive uploader created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
	)

	return &GCSUploader{
		client:     client,
		bucket:     cfg.Bucket,
		pathPrefix: strings.Trim(cfg.BasePath, "/"),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Upload uploads the local artifact to Google Cloud Storage.
func (u *GCSUploader) Upload(ctx context.Context, localPath string, remotePath string) (int64, error) {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("gcs", "open")
		}
		return 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	objectPath := path.Join(u.pathPrefix, remotePath)
	objectPath = strings.TrimPrefix(objectPath, "/")

	obj := u.client.Bucket(u.bucket).Object(objectPath)
	gcsWriter := obj.NewWriter(ctx)
	gcsWriter.ContentType = "application/octet-stream"

	bytesWritten, err := io.Copy(gcsWriter, file)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("gcs", "upload")
		}
		gcsWriter.Close()
		return 0, fmt.Errorf("failed to write to GCS: %w", err)
	}

	// Close finalizes the upload.
	if err := gcsWriter.Close(); err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("gcs", "close")
		}
		return 0, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	u.logger.Info("archived artifact to GCS",
		"bucket", u.bucket,
		"object", objectPath,
		"bytes", bytesWritten,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return bytesWritten, nil
}

// Backend returns the backend identifier.
func (u *GCSUploader) Backend() string {
	return "gcs"
}

// Close closes the GCS uploader.
func (u *GCSUploader) Close() error {
	u.logger.Info("closing GCS archive uploader")
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}
