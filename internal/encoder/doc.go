// Package encoder provides photon record encoding to analysis file formats.
//
// This package implements encoders for converting binary photon stream
// records into file formats suitable for analytics tooling, with
// configurable compression.
//
// # Supported Formats
//
// The package supports two file formats:
//
//   - Parquet: Columnar format optimized for analytics queries
//   - Avro: Row-based OCF format with embedded schema
//
// # Encoder Factory
//
// Use Factory to create encoder instances:
//
//	factory := encoder.NewFactory(record.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Encoding Records
//
// All encoders implement the pkg/encoder.Encoder interface:
//
//	stats, err := enc.Encode(filePath, records)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Encoded %d records, %d bytes\n",
//	    stats.RecordCount, stats.SizeBytes)
//
// # Compression Options
//
// Supported compression codecs:
//
//	Parquet: "snappy", "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip", "uncompressed"
//
// # File Extensions
//
// Encoders provide appropriate file extensions:
//
//	parquetEnc.FileExtension()  // ".parquet"
//	avroEnc.FileExtension()     // ".avro.gz" (with gzip)
//
// Column names in both schemas match the field order documented by the
// binary stream's companion header artifact, so queries use the same
// vocabulary as the raw stream documentation.
package encoder
