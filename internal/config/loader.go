package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cherenkovlab/phspstore/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	// Set defaults
	l.setDefaults()

	// Load from file if provided
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	// Only expand if the value contains ${...} pattern
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	// Unmarshal configuration
	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "phspstore")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Run defaults
	l.v.SetDefault("run.threads", 0) // 0 = one worker per CPU
	l.v.SetDefault("run.events", 10000)

	// Output defaults
	l.v.SetDefault("output.base_path", "output/cherenkov_output")
	l.v.SetDefault("output.format", dto.FormatBinary)
	l.v.SetDefault("output.buffer_size", 10000)
	l.v.SetDefault("output.cherenkov.enabled", true)
	l.v.SetDefault("output.dose.enabled", false)

	// Source defaults
	l.v.SetDefault("source.type", "synthetic")
	l.v.SetDefault("source.cycle", false)
	l.v.SetDefault("source.photons_per_event", 50)
	l.v.SetDefault("source.deposits_per_event", 20)

	// Archive defaults
	l.v.SetDefault("archive.enabled", false)
	l.v.SetDefault("archive.backend", "file")
	l.v.SetDefault("archive.prefix", "runs")
	l.v.SetDefault("archive.s3.use_path_style", false)
	l.v.SetDefault("archive.s3.sse_enabled", true)

	// Export defaults
	l.v.SetDefault("export.format", "parquet")
	l.v.SetDefault("export.compression", "snappy")
	l.v.SetDefault("export.batch_size", 65536)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "text")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", false)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.enabled", false)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// At least one channel must be enabled for a run to produce anything.
	if !config.Output.Cherenkov.Enabled && !config.Output.Dose.Enabled {
		return errors.New("at least one output channel must be enabled")
	}

	// Source validation
	switch config.Source.Type {
	case "synthetic":
	case "phsp":
		if config.Source.PHSPFilePath == "" {
			return errors.New("source.phsp_file_path is required for phsp source")
		}
	default:
		return fmt.Errorf("unsupported source type: %s", config.Source.Type)
	}

	// Archive validation, only when enabled
	if config.Archive.Enabled {
		switch config.Archive.Backend {
		case "s3":
			if err := config.Archive.S3.Validate(); err != nil {
				return err
			}
		case "azure":
			if err := config.Archive.Azure.Validate(); err != nil {
				return err
			}
		case "gcs":
			if err := config.Archive.GCS.Validate(); err != nil {
				return err
			}
		case "file":
			if err := config.Archive.File.Validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported archive backend: %s", config.Archive.Backend)
		}
	}

	// Export validation
	if config.Export.Format != "parquet" && config.Export.Format != "avro" {
		return fmt.Errorf("unsupported export format: %s", config.Export.Format)
	}
	if config.Export.BatchSize < 1 {
		return errors.New("export batch size must be positive")
	}

	// Port validation
	if config.Observability.Metrics.Enabled {
		if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
		}
	}
	if config.Observability.Health.Enabled {
		if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
			return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
		}
	}

	return nil
}
