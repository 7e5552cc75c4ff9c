// Package storage implements S3 archive uploader.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cherenkovlab/phspstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*S3Uploader)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	BasePath     string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Uploader implements storage.Uploader for AWS S3.
// It provides multipart upload support, server-side encryption (SSE),
// and automatic retry handling for S3 operations.
type S3Uploader struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	keyPrefix   string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
}

// NewS3Uploader creates a new S3 archive uploader.
func NewS3Uploader(cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Uploader, error) {
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	// Multipart upload: photon streams can run to many gigabytes.
	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	logger.Info("S3 archive uploader created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Uploader{
		client:      s3Client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		keyPrefix:   strings.Trim(cfg.BasePath, "/"),
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Upload uploads the local artifact to S3.
func (u *S3Uploader) Upload(ctx context.Context, localPath string, remotePath string) (int64, error) {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("s3", "open")
		}
		return 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("s3", "stat")
		}
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}

	key := path.Join(u.keyPrefix, remotePath)
	key = strings.TrimPrefix(key, "/")

	uploadInput := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	}

	if u.sseEnabled {
		if u.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(u.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := u.uploader.Upload(ctx, uploadInput)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("s3", "upload")
		}
		return 0, fmt.Errorf("failed to upload to S3: %w", err)
	}

	u.logger.Info("archived artifact to S3",
		"bucket", u.bucket,
		"key", key,
		"bytes", info.Size(),
		"location", result.Location,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return info.Size(), nil
}

// Backend returns the backend identifier.
func (u *S3Uploader) Backend() string {
	return "s3"
}

// Close closes the S3 uploader.
func (u *S3Uploader) Close() error {
	u.logger.Info("closing S3 archive uploader")
	return nil
}
