package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensedesk/internal/amqp"
	"expensedesk/internal/cli"
	"expensedesk/internal/core"
	"expensedesk/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting audit-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("audit-worker requires AMQP_URL to be configured")
		os.Exit(1)
	}

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()
	repo := storage.NewExpenseRepository(store)

	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeReviewed(gctx, func(msg *amqp.ReviewedMessage) error {
			return archive(gctx, repo, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit-worker stopped", "error", err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("audit-worker stopped")
}

// archive writes one structured audit line per review event, resolving the
// full expense so operators can grep the log without touching the database.
func archive(ctx context.Context, repo *storage.ExpenseRepository, msg *amqp.ReviewedMessage) error {
	expense, err := repo.GetExpense(ctx, msg.ExpenseID)
	if errors.Is(err, core.ErrExpenseNotFound) {
		// The expense vanished between decision and consumption; the
		// event itself is still worth the audit line.
		slog.WarnContext(ctx, "Review event for unknown expense",
			"expense_id", msg.ExpenseID,
			"status", msg.Status,
			"reviewer", msg.Reviewer)
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense reviewed",
		"expense_id", expense.ID,
		"approval_id", msg.ApprovalID,
		"user_id", expense.UserID,
		"username", expense.Username,
		"category", expense.Category,
		"amount", expense.Amount.String(),
		"status", msg.Status,
		"reviewer", msg.Reviewer,
		"review_date", msg.ReviewDate)
	return nil
}
