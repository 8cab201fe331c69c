package backend

import (
	"fmt"
	"log/slog"

	"paycal/internal/amqp"
	"paycal/internal/config"
	"paycal/internal/store/memory"
	"paycal/internal/store/sqlite"
)

// FromConfig builds the backend the configuration names. An AMQP broker
// that cannot be reached is logged and skipped; the calendar works
// without change notifications, only snapshot freshness suffers.
func FromConfig(cfg *config.Config) (*Result, error) {
	backendType := Type(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	result := &Result{}

	switch backendType {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		result.Store = repo
		result.Cleanup = repo.Close
		slog.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)

	case MemoryBackend:
		result.Store = memory.New()
		result.Cleanup = func() error { return nil }
		slog.Info("Initialized memory backend")
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			result.AMQP = client
			slog.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	storeCleanup := result.Cleanup
	result.Cleanup = func() error {
		if result.AMQP != nil {
			if err := result.AMQP.Close(); err != nil {
				slog.Warn("Failed to close AMQP client", "error", err)
			}
		}
		return storeCleanup()
	}

	return result, nil
}
