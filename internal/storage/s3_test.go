package storage

import (
	"testing"
)

func TestNewS3Uploader(t *testing.T) {
	cfg := S3Config{
		Bucket:       "sim-archive",
		Region:       "eu-west-1",
		BasePath:     "/cherenkov/",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	}

	uploader, err := NewS3Uploader(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewS3Uploader() error = %v", err)
	}
	defer uploader.Close()

	if uploader.bucket != "sim-archive" {
		t.Errorf("bucket = %v, want sim-archive", uploader.bucket)
	}
	if uploader.keyPrefix != "cherenkov" {
		t.Errorf("keyPrefix = %v, want cherenkov (slashes trimmed)", uploader.keyPrefix)
	}
	if got := uploader.Backend(); got != "s3" {
		t.Errorf("Backend() = %v, want s3", got)
	}
}

func TestNewS3Uploader_SSEConfig(t *testing.T) {
	cfg := S3Config{
		Bucket:      "sim-archive",
		Region:      "eu-west-1",
		SSEEnabled:  true,
		SSEKMSKeyID: "alias/sim-key",
	}

	uploader, err := NewS3Uploader(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewS3Uploader() error = %v", err)
	}
	defer uploader.Close()

	if !uploader.sseEnabled {
		t.Error("sseEnabled = false, want true")
	}
	if uploader.sseKMSKeyID != "alias/sim-key" {
		t.Errorf("sseKMSKeyID = %v", uploader.sseKMSKeyID)
	}
}
