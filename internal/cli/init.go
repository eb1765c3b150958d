// Package cli provides common initialization for the expensedesk binaries
// (cmd/manager, cmd/employee, cmd/audit-worker).
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensedesk/internal/amqp"
	"expensedesk/internal/auth"
	"expensedesk/internal/config"
	"expensedesk/internal/storage"
)

// SetupLogger initializes structured logging with default settings and
// sets the result as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the SQLite store (running migrations) or exits on failure.
func InitStore(logger *slog.Logger, dbPath string) *storage.Store {
	store, err := storage.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return store
}

// InitAMQP connects the review event client. Returns nil when no AMQP URL
// is configured; the event stream is optional.
func InitAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, review events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect AMQP", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	return client
}

// SeedUserFromEnv creates an initial login from EXPENSEDESK_SEED_USER /
// EXPENSEDESK_SEED_PASSWORD so a fresh database is usable. No-op when the
// variables are unset or the user already exists.
func SeedUserFromEnv(ctx context.Context, logger *slog.Logger, store auth.UserStore, role string) {
	username := os.Getenv("EXPENSEDESK_SEED_USER")
	password := os.Getenv("EXPENSEDESK_SEED_PASSWORD")
	if username == "" || password == "" {
		return
	}
	if _, err := auth.EnsureUser(ctx, store, username, password, role); err != nil {
		logger.Error("Failed to seed user", "username", username, "error", err)
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
