package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	"finboard/internal/config"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/worker"
)

const shutdownWindow = 30 * time.Second

func main() {
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger.Info("Starting finboard-worker")

	res := cli.OpenBackend(context.Background(), logger, cfg)
	if !res.Local() {
		logger.Error("The ledger worker reads transactions without a user token and needs a local backend",
			"backend", res.Type.String())
		os.Exit(1)
	}

	ledger, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		LedgerSheet:     cfg.GoogleLedgerSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuth: gsheet.OAuthConfig{
			ClientJSON: cfg.GoogleOAuthClientJSON,
			ClientFile: cfg.GoogleOAuthClientFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
		},
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets ledger initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleLedgerSheet)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(res.Backend, res.Backend, ledger, worker.Config{
		RetryInterval: cfg.LedgerSyncInterval,
		MaxRetries:    cfg.LedgerMaxRetries,
	})

	cleanup := func(ctx context.Context) {
		if err := ledgerWorker.Stop(ctx); err != nil {
			logger.Warn("Ledger worker stop error", "error", err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	}
	ctx, done := cli.GracefulShutdown(logger, shutdownWindow, cleanup)

	if err := ledgerWorker.Start(ctx); err != nil {
		logger.Error("Failed to start ledger worker", "error", err)
		os.Exit(1)
	}

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeWithRetry(ctx, ledgerWorker.HandleEvent)
	}()

	select {
	case <-done:
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
			cleanup(stopCtx)
			cancel()
			os.Exit(1)
		}
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Worker stopped", "pending_entries", ledgerWorker.PendingCount())
}
