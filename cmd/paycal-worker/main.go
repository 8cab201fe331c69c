package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"paycal/internal/backend"
	"paycal/internal/config"
	"paycal/internal/export/google"
	applog "paycal/internal/log"
	"paycal/internal/worker"
)

func main() {
	// Load .env for local development; absent in containers.
	_ = godotenv.Load()

	applog.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger := applog.ForComponent(applog.ComponentWorker)

	logger.Info("Starting paycal-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	result, err := backend.FromConfig(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exporter worker.SnapshotExporter
	if cfg.SheetsExportEnabled() {
		client, err := google.NewClient(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled")
	}

	w := worker.NewSnapshotWorker(result.Store, exporter)

	// Catch up before consuming: snapshots may be stale after downtime.
	if err := w.RefreshAll(ctx); err != nil {
		logger.Error("Startup refresh finished with errors", "error", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	var consumer worker.Consumer
	if result.AMQP != nil {
		consumer = result.AMQP
	} else {
		logger.Info("No AMQP broker configured, relying on periodic refresh only")
	}

	if err := w.Run(ctx, consumer, cfg.SnapshotInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
