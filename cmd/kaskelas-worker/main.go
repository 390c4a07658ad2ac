package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"kaskelas/internal/amqp"
	"kaskelas/internal/cli"
	"kaskelas/internal/log"
	"kaskelas/internal/ports"
	gsheet "kaskelas/internal/ports/google"
	"kaskelas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting kaskelas-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// A nil mirror leaves rows pending until the sheet is configured.
	var mirror ports.TransactionMirror
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets mirror disabled - no spreadsheet configured")
	}

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize)
	poller := worker.NewPoller(cfg.SyncInterval, syncWorker.ProcessPending)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only")
	}

	ctx, done := cli.GracefulShutdown(logger, func(ctx context.Context) {
		if err := poller.Stop(ctx); err != nil {
			logger.Warn("Poller stop", log.FieldError, err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn("AMQP close", log.FieldError, err)
			}
		}
	})

	if mirror != nil {
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Startup sync check failed", log.FieldError, err)
		}
	}

	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start poller", log.FieldError, err)
		os.Exit(1)
	}

	if consumer != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return consumer.ConsumeTransactionSync(gctx, syncWorker.HandleSyncMessage)
		})
		g.Go(func() error {
			return consumer.ConsumeTransactionDelete(gctx, syncWorker.HandleDeleteMessage)
		})
		go func() {
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
}
