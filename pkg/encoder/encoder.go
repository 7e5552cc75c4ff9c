// Package encoder defines interfaces for encoding photon records to
// analysis file formats.
package encoder

import "github.com/cherenkovlab/phspstore/pkg/record"

// Encoder encodes photon records to a specific file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []record.PhotonRecord) (*record.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() record.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
