package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"registro/internal/amqp"
	"registro/internal/cli"
	"registro/internal/ledger"
	"registro/internal/log"
	"registro/internal/services"
	"registro/internal/sheets"
	gsheet "registro/internal/sheets/google"
	"registro/internal/sheets/memory"
	"registro/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		bootLogger := cli.SetupLogger(os.Stdout, log.ComponentWorker, slog.LevelInfo)
		bootLogger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Stdout, log.ComponentWorker, cfg.SlogLevel())
	logger.Info("Starting registro-worker", log.FieldOperation, log.OpStartup)

	if cfg.DataBackend != "sqlite" {
		logger.Error("The worker needs a shared store, set DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	// The worker consumes the queue itself, so the backend gets no publisher.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	result, err := cli.OpenBackend(ctx, logger.WithComponent(log.ComponentBackend).Logger, &storeCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer cli.RunCleanup(logger.Logger, "backend", 5*time.Second, func(context.Context) error {
			return result.Cleanup()
		})
	}

	var writer sheets.SequenceWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		writer = client
	} else {
		logger.Info("Google Sheets disabled, mirroring to memory only")
		writer = memory.New()
	}

	engine := ledger.NewEngine(result.Store, cfg.Policy())
	syncWorker := worker.NewSyncWorker(engine, result.Store, writer, cfg.SyncBatchSize)
	processor := services.NewResyncProcessor(syncWorker, services.ResyncProcessorConfig{
		Interval:   cfg.SyncInterval,
		RunOnStart: true,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeLedgerChanged(gctx, syncWorker.HandleLedgerChanged)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic resync", "interval", cfg.SyncInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
