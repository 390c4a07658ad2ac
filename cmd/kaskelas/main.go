package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"kaskelas/internal/backend"
	"kaskelas/internal/cli"
	apphttp "kaskelas/internal/http"
	"kaskelas/internal/insights"
	"kaskelas/internal/log"
	"kaskelas/internal/middleware/ratelimit"
	"kaskelas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	classes := services.NewClassService(be.Repository)
	txs := services.NewTransactionService(be.Repository, be.Publisher)
	if be.Snapshotter != nil {
		classes.SetSnapshotter(be.Snapshotter)
		txs.SetSnapshotter(be.Snapshotter)
	}
	ledger := services.NewLedgerService(be.Repository)

	if err := classes.EnsureDefaultClass(ctx, cfg.DefaultClassID, "Kelas Utama"); err != nil {
		logger.Error("Failed to create default class", log.FieldError, err, log.FieldClassID, cfg.DefaultClassID)
		os.Exit(1)
	}

	advisor, err := insights.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("Insights disabled", log.FieldError, err)
		advisor = nil
	}
	logger.Info("Insights advisor", "enabled", advisor.Enabled(), "model", cfg.GeminiModel)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Logger:       logger,
		Classes:      classes,
		Transactions: txs,
		Ledger:       ledger,
		Advisor:      advisor,
		Ready:        be.Repository,
		CacheTTL:     cfg.CacheTTL,
		RateLimit:    ratelimit.DefaultConfig(),
	})
	srv.MaxHeaderBytes = 1 << 16

	runCtx, done := cli.GracefulShutdown(logger, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
		m := srv.Metrics()
		logger.Info("Server stopped", "requests", m.TotalRequests, "server_errors", m.ServerErrors)
	})

	logger.Info("Starting kaskelas server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
}
