// Package storage defines interfaces for run artifact archiving.
//
// This package provides abstractions for uploading finished run artifacts
// (photon streams, header documents, merged CSV files, run summaries) to
// archive backends (local filesystem, S3, GCS, Azure Blob).
package storage

import (
	"context"
)

// Uploader copies finished run artifacts to archive storage.
type Uploader interface {
	// Upload copies the local file to remotePath on the backend.
	// Returns the number of bytes uploaded.
	Upload(ctx context.Context, localPath string, remotePath string) (int64, error)

	// Backend returns the backend identifier ("file", "s3", "gcs", "azure").
	Backend() string

	// Close closes the uploader and releases resources.
	Close() error
}
