// Package storage implements Azure Blob archive uploader.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/cherenkovlab/phspstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*AzureUploader)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureUploader implements storage.Uploader for Azure Blob Storage.
type AzureUploader struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewAzureUploader creates a new Azure Blob archive uploader.
func NewAzureUploader(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureUploader, error) {
	var connectionString string
	if cfg.Endpoint != "" {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	} else {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			cfg.AccountName, cfg.AccountKey)
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure archive uploader created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
	)

	return &AzureUploader{
		client:        client,
		containerName: cfg.ContainerName,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Upload uploads the local artifact to Azure Blob Storage.
func (u *AzureUploader) Upload(ctx context.Context, localPath string, remotePath string) (int64, error) {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("azure", "open")
		}
		return 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("azure", "stat")
		}
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}

	blobPath := strings.TrimPrefix(path.Clean(remotePath), "/")

	_, err = u.client.UploadFile(ctx, u.containerName, blobPath, file, nil)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncStorageErrors("azure", "upload")
		}
		return 0, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	u.logger.Info("archived artifact to Azure Blob",
		"container", u.containerName,
		"blob", blobPath,
		"bytes", info.Size(),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return info.Size(), nil
}

// Backend returns the backend identifier.
func (u *AzureUploader) Backend() string {
	return "azure"
}

// Close closes the Azure uploader.
func (u *AzureUploader) Close() error {
	u.logger.Info("closing Azure archive uploader")
	return nil
}
