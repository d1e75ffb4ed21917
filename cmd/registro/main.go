package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"registro/internal/cli"
	apphttp "registro/internal/http"
	"registro/internal/ledger"
	"registro/internal/log"
	"registro/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		bootLogger := cli.SetupLogger(os.Stdout, log.ComponentApp, slog.LevelInfo)
		bootLogger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Stdout, log.ComponentApp, cfg.SlogLevel())

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	result, err := cli.OpenBackend(ctx, logger.WithComponent(log.ComponentBackend).Logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer cli.RunCleanup(logger.Logger, "backend", 5*time.Second, func(context.Context) error {
			return result.Cleanup()
		})
	}

	policy := cfg.Policy()
	engine := ledger.NewEngine(result.Store, policy)
	svc := services.NewLedgerService(engine, result.Publisher)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger.WithComponent(log.ComponentHTTP),
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BankNames:          cfg.BankNames(),
		Ready:              result.Store,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting registro server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"internal_transfer_polarity", policy.Internal,
			"jwt", cfg.JWTSecret != "",
			"amqp", result.Publisher != nil,
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	cli.RunCleanup(logger.Logger, "http", 30*time.Second, srv.Shutdown)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
