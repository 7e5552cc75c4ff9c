package dto

import (
	"fmt"
)

// Output format values.
const (
	FormatBinary = "binary"
	FormatCSV    = "csv"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Run           RunConfig           `mapstructure:"run"`
	Output        OutputConfig        `mapstructure:"output"`
	Source        SourceConfig        `mapstructure:"source"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Export        ExportConfig        `mapstructure:"export"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// RunConfig contains run-level settings
type RunConfig struct {
	Threads int   `mapstructure:"threads"` // 0 = one per CPU
	Events  int64 `mapstructure:"events"`
}

// OutputConfig contains record output configuration
type OutputConfig struct {
	BasePath   string        `mapstructure:"base_path"`
	Format     string        `mapstructure:"format"` // binary | csv
	BufferSize int           `mapstructure:"buffer_size"`
	Cherenkov  ChannelConfig `mapstructure:"cherenkov"`
	Dose       ChannelConfig `mapstructure:"dose"`
}

// ChannelConfig contains per-channel settings. BasePath and BufferSize
// fall back to the output-level values when empty/zero.
type ChannelConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BasePath   string `mapstructure:"base_path"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// SourceConfig contains primary particle source settings
type SourceConfig struct {
	Type             string  `mapstructure:"type"` // synthetic | phsp
	PHSPFilePath     string  `mapstructure:"phsp_file_path"`
	Cycle            bool    `mapstructure:"cycle"`
	Seed             uint64  `mapstructure:"seed"`
	PhotonsPerEvent  float64 `mapstructure:"photons_per_event"`
	DepositsPerEvent float64 `mapstructure:"deposits_per_event"`
}

// ArchiveConfig contains post-run artifact archiving settings
type ArchiveConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"` // file | s3 | gcs | azure
	Prefix  string      `mapstructure:"prefix"`
	S3      S3Config    `mapstructure:"s3"`
	Azure   AzureConfig `mapstructure:"azure"`
	GCS     GCSConfig   `mapstructure:"gcs"`
	File    FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem archive configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ExportConfig contains analysis export settings
type ExportConfig struct {
	Format      string `mapstructure:"format"` // parquet | avro
	Compression string `mapstructure:"compression"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// CherenkovBasePath returns the cherenkov channel's output base path.
func (c *OutputConfig) CherenkovBasePath() string {
	if c.Cherenkov.BasePath != "" {
		return c.Cherenkov.BasePath
	}
	return c.BasePath
}

// DoseBasePath returns the dose channel's output base path.
func (c *OutputConfig) DoseBasePath() string {
	if c.Dose.BasePath != "" {
		return c.Dose.BasePath
	}
	return c.BasePath
}

// CherenkovBufferSize returns the cherenkov channel's buffer capacity.
func (c *OutputConfig) CherenkovBufferSize() int {
	if c.Cherenkov.BufferSize > 0 {
		return c.Cherenkov.BufferSize
	}
	return c.BufferSize
}

// DoseBufferSize returns the dose channel's buffer capacity.
func (c *OutputConfig) DoseBufferSize() int {
	if c.Dose.BufferSize > 0 {
		return c.Dose.BufferSize
	}
	return c.BufferSize
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Output.BasePath == "" {
		return fmt.Errorf("output base path is required")
	}
	if c.Output.Format != FormatBinary && c.Output.Format != FormatCSV {
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	if c.Output.BufferSize < 1 {
		return fmt.Errorf("output buffer size must be positive")
	}
	if c.Run.Threads < 0 {
		return fmt.Errorf("run threads must not be negative")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file archive configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
