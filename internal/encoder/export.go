package encoder

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cherenkovlab/phspstore/internal/phsp"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Export converts an existing binary photon stream into the requested
// analysis format. The stream is read in batches of batchSize records and
// written as one output file named streamPath plus the format's extension.
// Returns the output path and its statistics.
func Export(streamPath string, format record.FileFormat, compression string, batchSize int, logger *slog.Logger) (string, *record.FileStats, error) {
	if compression == "" {
		compression = DefaultCompression(format)
	}
	if batchSize < 1 {
		batchSize = 65536
	}

	enc, err := NewFactory(format, compression).CreateEncoder()
	if err != nil {
		return "", nil, err
	}

	reader, err := phsp.OpenStream(streamPath)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	var records []record.PhotonRecord
	for {
		batch, err := reader.ReadBatch(batchSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		records = append(records, batch...)
		if len(batch) < batchSize {
			break
		}
	}
	if len(records) == 0 {
		return "", nil, fmt.Errorf("stream %s holds no records", streamPath)
	}

	outPath := streamPath + enc.FileExtension()
	logger.Info("exporting photon stream",
		"stream", streamPath,
		"output", outPath,
		"format", format,
		"compression", compression,
		"records", len(records),
	)

	stats, err := enc.Encode(outPath, records)
	if err != nil {
		return "", nil, err
	}

	logger.Info("export complete",
		"output", outPath,
		"records", stats.RecordCount,
		"bytes", stats.SizeBytes,
	)
	return outPath, stats, nil
}
