// Command kaskelas-resync rewrites every stored transaction into the Google
// Sheets mirror once and exits. Use it after clearing or replacing the sheet.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kaskelas/internal/cli"
	"kaskelas/internal/log"
	gsheet "kaskelas/internal/ports/google"
	"kaskelas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentSheets)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets mirror is not configured, set GOOGLE_SPREADSHEET_ID and service account credentials")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	synced, failed, err := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize).ResyncAll(ctx, repo, repo)
	logger.Info("Resync finished", "synced", synced, "errors", failed)
	if err != nil {
		logger.Error("Resync aborted", log.FieldError, err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(2)
	}
}
