package storage

import (
	"testing"
)

func TestNewAzureUploader(t *testing.T) {
	cfg := AzureConfig{
		AccountName:   "simarchive",
		AccountKey:    "dGVzdC1hY2NvdW50LWtleQ==",
		ContainerName: "cherenkov-runs",
	}

	uploader, err := NewAzureUploader(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewAzureUploader() error = %v", err)
	}
	defer uploader.Close()

	if uploader.containerName != "cherenkov-runs" {
		t.Errorf("containerName = %v, want cherenkov-runs", uploader.containerName)
	}
	if got := uploader.Backend(); got != "azure" {
		t.Errorf("Backend() = %v, want azure", got)
	}
}

func TestNewAzureUploader_CustomEndpoint(t *testing.T) {
	cfg := AzureConfig{
		AccountName:   "simarchive",
		AccountKey:    "dGVzdC1hY2NvdW50LWtleQ==",
		ContainerName: "cherenkov-runs",
		Endpoint:      "http://localhost:10000/simarchive",
	}

	if _, err := NewAzureUploader(cfg, discardLogger(), nil); err != nil {
		t.Fatalf("NewAzureUploader() error = %v", err)
	}
}
