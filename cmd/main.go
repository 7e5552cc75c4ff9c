package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cherenkovlab/phspstore/internal/config"
	"github.com/cherenkovlab/phspstore/internal/config/dto"
	"github.com/cherenkovlab/phspstore/internal/encoder"
	"github.com/cherenkovlab/phspstore/internal/generator"
	"github.com/cherenkovlab/phspstore/internal/observability"
	"github.com/cherenkovlab/phspstore/internal/phsp"
	"github.com/cherenkovlab/phspstore/internal/recorder"
	"github.com/cherenkovlab/phspstore/internal/server"
	"github.com/cherenkovlab/phspstore/internal/storage"
	"github.com/cherenkovlab/phspstore/internal/summary"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	exportStream := flag.String("export", "", "convert an existing .phsp stream to the analysis format and exit")
	exportFormat := flag.String("export-format", "", "export format: parquet or avro (overrides config)")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})

	// Export mode: one-shot stream conversion, no run.
	if *exportStream != "" {
		return runExport(cfg, *exportStream, *exportFormat, logger)
	}

	logger.Info("starting phspstore",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	runStatus := server.NewRunStatus()
	httpServer := server.NewServer(cfg.Observability, runStatus, registry, logger)
	httpServer.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}
	}()

	// Phase-space source is loaded once and shared read-only by all
	// workers.
	var source *phsp.Source
	if cfg.Source.Type == "phsp" {
		source, err = phsp.Load(cfg.Source.PHSPFilePath, cfg.Source.Cycle, logger)
		if err != nil {
			return fmt.Errorf("failed to load phase-space source: %w", err)
		}
	}

	ctrl := recorder.NewController(cfg, logger, metrics)
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	runStatus.SetPhase(server.PhaseRunning)

	// SIGINT/SIGTERM stop event production; the run still finalizes so no
	// buffered records are lost.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	threads := ctrl.Threads()
	var wg sync.WaitGroup
	for threadID := 0; threadID < threads; threadID++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			runWorker(ctx, ctrl, cfg, source, threadID, logger)
		}(threadID)
	}
	wg.Wait()

	if ctx.Err() != nil {
		logger.Info("event production interrupted, finalizing partial run")
	}

	if err := ctrl.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	runStatus.SetPhase(server.PhaseFinalized)

	if cfg.Archive.Enabled {
		archiveRun(cfg, logger, metrics)
	}

	logger.Info("run complete")
	return nil
}

// runWorker drives one producer thread: it generates events, records their
// photons and deposits, and pays remaining buffers out at the end. Events
// are partitioned across threads by striding.
func runWorker(
	ctx context.Context,
	ctrl *recorder.Controller,
	cfg *dto.ApplicationConfig,
	source *phsp.Source,
	threadID int,
	logger *slog.Logger,
) {
	rec, err := ctrl.BeginRun(threadID)
	if err != nil {
		logger.Error("worker cannot join run", "thread_id", threadID, "error", err)
		return
	}
	defer rec.EndRun()

	gen := generator.New(cfg.Source, threadID)
	var cursor *phsp.Cursor
	if source != nil {
		cursor = source.Cursor(threadID)
	}

	threads := ctrl.Threads()
	for eventID := int64(threadID); eventID < cfg.Run.Events; eventID += int64(threads) {
		if ctx.Err() != nil {
			return
		}

		var primary *phsp.Particle
		if cursor != nil {
			if p, ok := cursor.Next(); ok {
				primary = &p
			}
		}

		event := gen.NextEvent(primary)
		rec.BeginEvent(uint32(eventID), &event.Vertex)
		for _, p := range event.Photons {
			rec.PhotonCreated(p.TrackID, p.InitPos, p.InitDir)
			rec.PhotonEnded(p.TrackID, p.FinalPos, p.FinalDir, p.FinalEnergy)
		}
		for _, d := range event.Deposits {
			rec.EmitDeposit(d.Pos.X, d.Pos.Y, d.Pos.Z, d.Energy, d.PDG)
		}
		rec.EndEvent()
	}
}

// archiveRun uploads every artifact the run may have produced. Missing
// candidates (disabled channel, other mode's files) are skipped by the
// archiver.
func archiveRun(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) {
	archiver, err := storage.NewArchiver(cfg.Archive, logger, metrics)
	if err != nil {
		logger.Error("cannot create archiver, skipping archive step", "error", err)
		return
	}
	defer archiver.Close()

	base := cfg.Output.CherenkovBasePath()
	doseBase := cfg.Output.DoseBasePath()

	archiver.ArchiveRun(context.Background(), []string{
		base + ".phsp",
		base + ".header",
		base, // merged photon CSV keeps the bare base path
		doseBase + ".dose",
		doseBase + ".dose.header",
		doseBase + ".dose.csv",
		summary.MetaPath(base),
	})
}

// runExport converts an existing binary photon stream into the configured
// analysis format.
func runExport(cfg *dto.ApplicationConfig, streamPath, formatOverride string, logger *slog.Logger) error {
	format := record.FileFormat(cfg.Export.Format)
	if formatOverride != "" {
		format = record.FileFormat(formatOverride)
	}

	outPath, stats, err := encoder.Export(streamPath, format, cfg.Export.Compression, cfg.Export.BatchSize, logger)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	logger.Info("export finished",
		"output", outPath,
		"records", stats.RecordCount,
		"bytes", stats.SizeBytes,
	)
	return nil
}
