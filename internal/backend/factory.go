package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kaskelas/internal/amqp"
	"kaskelas/internal/ports/memory"
	"kaskelas/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return f.createMemoryBackend(ctx, config)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	res := &Result{Repository: repo, SyncQueue: repo}

	// AMQP is optional; rows stay pending and the worker's poller catches up.
	var client *amqp.Client
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", "error", err)
			client = nil
		} else {
			res.Publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if client != nil {
			if err := client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", client != nil)
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*Result, error) {
	store := memory.New()
	if config.SnapshotPath != "" {
		var err error
		store, err = memory.NewFromFile(config.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("load memory snapshot: %w", err)
		}
	}
	if config.AMQPURL != "" {
		f.logger.WarnContext(ctx, "AMQP sync requires the sqlite backend, ignoring AMQP_URL")
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "snapshot_path", config.SnapshotPath)
	return &Result{
		Repository:  store,
		Snapshotter: store,
		Cleanup:     store.Close,
	}, nil
}
