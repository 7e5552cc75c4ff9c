package encoder

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cherenkovlab/phspstore/pkg/record"
)

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  record.FileFormat
		wantExt string
		wantErr bool
	}{
		{"parquet", record.FormatParquet, ".parquet", false},
		{"avro", record.FormatAvro, ".avro.gz", false},
		{"unsupported", record.FileFormat("orc"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.format, "gzip")
			enc, err := factory.CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", enc.Format(), tt.format)
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %v, want %v", enc.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 2 {
		t.Fatalf("SupportedFormats() = %v", formats)
	}
}

func TestSupportedCompressions(t *testing.T) {
	if got := SupportedCompressions(record.FormatParquet); len(got) != 5 {
		t.Errorf("parquet compressions = %v", got)
	}
	if got := SupportedCompressions(record.FormatAvro); len(got) != 2 {
		t.Errorf("avro compressions = %v", got)
	}
	if got := SupportedCompressions(record.FileFormat("orc")); len(got) != 0 {
		t.Errorf("unknown format compressions = %v", got)
	}
}

func TestDefaultCompression(t *testing.T) {
	if got := DefaultCompression(record.FormatParquet); got != "snappy" {
		t.Errorf("parquet default = %v, want snappy", got)
	}
	if got := DefaultCompression(record.FormatAvro); got != "gzip" {
		t.Errorf("avro default = %v, want gzip", got)
	}
}

func TestExport_Parquet(t *testing.T) {
	streamPath := filepath.Join(t.TempDir(), "run.phsp")

	var data []byte
	for _, rec := range samplePhotons(10) {
		data = rec.AppendBinary(data)
	}
	if err := os.WriteFile(streamPath, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	outPath, stats, err := Export(streamPath, record.FormatParquet, "", 4, logger)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if outPath != streamPath+".parquet" {
		t.Errorf("outPath = %q", outPath)
	}
	if stats.RecordCount != 10 {
		t.Errorf("RecordCount = %d, want 10", stats.RecordCount)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestExport_EmptyStream(t *testing.T) {
	streamPath := filepath.Join(t.TempDir(), "run.phsp")
	if err := os.WriteFile(streamPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, _, err := Export(streamPath, record.FormatAvro, "", 16, logger); err == nil {
		t.Error("Export() of empty stream should fail")
	}
}
