package encoder

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/cherenkovlab/phspstore/pkg/encoder"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// PhotonParquet is the Parquet schema for photon records. Column names
// match the binary header artifact so analysis queries read the same
// vocabulary everywhere.
type PhotonParquet struct {
	InitialX float32 `parquet:"initial_x"`
	InitialY float32 `parquet:"initial_y"`
	InitialZ float32 `parquet:"initial_z"`

	InitialDirX float32 `parquet:"initial_dir_x"`
	InitialDirY float32 `parquet:"initial_dir_y"`
	InitialDirZ float32 `parquet:"initial_dir_z"`

	FinalX float32 `parquet:"final_x"`
	FinalY float32 `parquet:"final_y"`
	FinalZ float32 `parquet:"final_z"`

	FinalDirX float32 `parquet:"final_dir_x"`
	FinalDirY float32 `parquet:"final_dir_y"`
	FinalDirZ float32 `parquet:"final_dir_z"`

	FinalEnergyMicroEV float32 `parquet:"final_energy_micro_ev"`
	EventID            int64   `parquet:"event_id"`
	TrackID            int32   `parquet:"track_id"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar
// format. Supports multiple compression codecs: SNAPPY (default), GZIP,
// LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, records []record.PhotonRecord) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	parquetRecords := make([]PhotonParquet, len(records))
	for i, rec := range records {
		parquetRecords[i] = toParquetRecord(rec)
	}

	schema := parquet.SchemaOf(new(PhotonParquet))
	writer := parquet.NewGenericWriter[PhotonParquet](
		file,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("phspstore", "1.0", "0"),
	)

	if _, err := writer.Write(parquetRecords); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
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

func toParquetRecord(rec record.PhotonRecord) PhotonParquet {
	return PhotonParquet{
		InitialX:           rec.InitX,
		InitialY:           rec.InitY,
		InitialZ:           rec.InitZ,
		InitialDirX:        rec.InitDirX,
		InitialDirY:        rec.InitDirY,
		InitialDirZ:        rec.InitDirZ,
		FinalX:             rec.FinalX,
		FinalY:             rec.FinalY,
		FinalZ:             rec.FinalZ,
		FinalDirX:          rec.FinalDirX,
		FinalDirY:          rec.FinalDirY,
		FinalDirZ:          rec.FinalDirZ,
		FinalEnergyMicroEV: rec.FinalEnergy,
		EventID:            int64(rec.EventID),
		TrackID:            rec.TrackID,
	}
}

// Format returns the file format.
func (e *ParquetEncoder) Format() record.FileFormat {
	return record.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
