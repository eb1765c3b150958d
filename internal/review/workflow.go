// Package review implements the expense review state machine: a pending
// expense moves exactly once to approved or denied, and every transition
// leaves an audit record.
package review

import (
	"context"
	"log/slog"
	"strings"

	"expensedesk/internal/core"
)

// Repository is the storage dependency of the workflow: the one atomic
// decision write.
type Repository interface {
	ApplyDecision(ctx context.Context, expenseID string, decision core.Status, reviewer, comment string) (core.ApprovalRecord, error)
}

// EventPublisher receives a notification after a decision has durably
// landed. Publishing is best-effort; failures never undo a decision.
type EventPublisher interface {
	PublishReviewed(ctx context.Context, record core.ApprovalRecord) error
}

// Workflow validates a requested transition and orchestrates the
// repository call. It holds no state and is safe to share.
type Workflow struct {
	repo      Repository
	publisher EventPublisher // optional
}

func NewWorkflow(repo Repository, publisher EventPublisher) *Workflow {
	return &Workflow{repo: repo, publisher: publisher}
}

// Decide applies a reviewer's decision to a pending expense. The returned
// error classifies every non-applied outcome: core.ErrInvalidDecision and
// core.ErrEmptyReviewer before any storage access, core.ErrExpenseNotFound
// and core.ErrAlreadyDecided from the storage row-match, anything else a
// storage fault. Callers needing the legacy boolean contract collapse this
// at their boundary.
func (w *Workflow) Decide(ctx context.Context, expenseID string, decision core.Status, reviewer, comment string) (core.ApprovalRecord, error) {
	if !decision.Terminal() {
		return core.ApprovalRecord{}, core.ErrInvalidDecision
	}
	if strings.TrimSpace(reviewer) == "" {
		return core.ApprovalRecord{}, core.ErrEmptyReviewer
	}

	record, err := w.repo.ApplyDecision(ctx, expenseID, decision, reviewer, comment)
	if err != nil {
		return core.ApprovalRecord{}, err
	}

	if w.publisher != nil {
		if err := w.publisher.PublishReviewed(ctx, record); err != nil {
			// The decision is committed; the event stream catches up later.
			slog.ErrorContext(ctx, "Failed to publish review event",
				"expense_id", record.ExpenseID,
				"status", string(record.Status),
				"error", err)
		}
	}

	return record, nil
}
