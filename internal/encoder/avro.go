// Package encoder implements file format encoders for the analysis export
// path.
package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/linkedin/goavro/v2"

	"github.com/cherenkovlab/phspstore/pkg/encoder"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression and produces OCF (Object Container
// File) output compatible with Apache Spark and other Avro readers.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for photon records. Field names match
// the binary header artifact's documentation.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "PhotonRecord",
		"namespace": "com.cherenkovlab.phspstore",
		"fields": [
			{"name": "initial_x", "type": "float"},
			{"name": "initial_y", "type": "float"},
			{"name": "initial_z", "type": "float"},
			{"name": "initial_dir_x", "type": "float"},
			{"name": "initial_dir_y", "type": "float"},
			{"name": "initial_dir_z", "type": "float"},
			{"name": "final_x", "type": "float"},
			{"name": "final_y", "type": "float"},
			{"name": "final_z", "type": "float"},
			{"name": "final_dir_x", "type": "float"},
			{"name": "final_dir_y", "type": "float"},
			{"name": "final_dir_z", "type": "float"},
			{"name": "final_energy_micro_ev", "type": "float"},
			{"name": "event_id", "type": "long"},
			{"name": "track_id", "type": "int"}
		]
	}`
}

// Encode writes records to an Avro OCF file.
func (e *AvroEncoder) Encode(filePath string, records []record.PhotonRecord) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	var gzipWriter *gzip.Writer
	if e.gzipEnabled() {
		gzipWriter = gzip.NewWriter(file)
		writer = gzipWriter
		defer gzipWriter.Close()
	}

	if err := e.writeOCF(writer, records); err != nil {
		return nil, err
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &record.FileStats{
		RecordCount: len(records),
		SizeBytes:   fileInfo.Size(),
	}, nil
}

// EncodeToBytes encodes records to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(records []record.PhotonRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	var writer io.Writer = &buf
	var gzipWriter *gzip.Writer
	if e.gzipEnabled() {
		gzipWriter = gzip.NewWriter(&buf)
		writer = gzipWriter
	}

	if err := e.writeOCF(writer, records); err != nil {
		return nil, err
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return buf.Bytes(), nil
}

func (e *AvroEncoder) writeOCF(w io.Writer, records []record.PhotonRecord) error {
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	for _, rec := range records {
		if err := ocfWriter.Append([]interface{}{avroMap(rec)}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// avroMap converts a photon record to its Avro map representation.
func avroMap(rec record.PhotonRecord) map[string]interface{} {
	return map[string]interface{}{
		"initial_x":             rec.InitX,
		"initial_y":             rec.InitY,
		"initial_z":             rec.InitZ,
		"initial_dir_x":         rec.InitDirX,
		"initial_dir_y":         rec.InitDirY,
		"initial_dir_z":         rec.InitDirZ,
		"final_x":               rec.FinalX,
		"final_y":               rec.FinalY,
		"final_z":               rec.FinalZ,
		"final_dir_x":           rec.FinalDirX,
		"final_dir_y":           rec.FinalDirY,
		"final_dir_z":           rec.FinalDirZ,
		"final_energy_micro_ev": rec.FinalEnergy,
		"event_id":              int64(rec.EventID),
		"track_id":              rec.TrackID,
	}
}

func (e *AvroEncoder) gzipEnabled() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Format returns the file format.
func (e *AvroEncoder) Format() record.FileFormat {
	return record.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipEnabled() {
		return ".avro.gz"
	}
	return ".avro"
}
