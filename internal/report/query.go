// Package report is the read-only reporting façade: it validates filter
// parameters and forwards them to the expense repository. Rejections
// happen before any storage access.
package report

import (
	"context"
	"errors"
	"strings"

	"expensedesk/internal/core"
)

// ErrEndBeforeStart reports a date range whose end precedes its start.
var ErrEndBeforeStart = errors.New("end date precedes start date")

// Repository is the read surface the façade composes.
type Repository interface {
	ListPending(ctx context.Context) ([]core.Expense, error)
	ListByStatus(ctx context.Context, status core.Status) ([]core.Expense, error)
	ListByUser(ctx context.Context, userID string) ([]core.Expense, error)
	ListByCategory(ctx context.Context, category string) ([]core.Expense, error)
	ListByDateRange(ctx context.Context, start, end core.Date) ([]core.Expense, error)
	FindUserByUsername(ctx context.Context, username string) (core.User, error)
}

// Query is stateless and safe to share.
type Query struct {
	repo Repository
}

func NewQuery(repo Repository) *Query {
	return &Query{repo: repo}
}

// Pending lists unresolved expenses, oldest incurred date first.
func (q *Query) Pending(ctx context.Context) ([]core.Expense, error) {
	return q.repo.ListPending(ctx)
}

// ByStatus rejects any literal outside pending/approved/denied.
func (q *Query) ByStatus(ctx context.Context, status string) ([]core.Expense, error) {
	parsed, err := core.ParseStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, &core.ValidationError{Field: "status", Reason: err.Error()}
	}
	return q.repo.ListByStatus(ctx, parsed)
}

// ByUser resolves the username and lists that user's expenses.
func (q *Query) ByUser(ctx context.Context, username string) ([]core.Expense, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &core.ValidationError{Field: "username", Reason: "cannot be empty"}
	}
	user, err := q.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return q.repo.ListByUser(ctx, user.ID)
}

// ByCategory requires a non-empty category; matching is case-insensitive.
func (q *Query) ByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, &core.ValidationError{Field: "category", Reason: "cannot be empty"}
	}
	return q.repo.ListByCategory(ctx, category)
}

// ByDateRange requires two parseable ISO dates with start <= end; both
// bounds are inclusive.
func (q *Query) ByDateRange(ctx context.Context, start, end string) ([]core.Expense, error) {
	startDate, err := core.ParseDate(strings.TrimSpace(start))
	if err != nil {
		return nil, &core.ValidationError{Field: "start date", Reason: err.Error()}
	}
	endDate, err := core.ParseDate(strings.TrimSpace(end))
	if err != nil {
		return nil, &core.ValidationError{Field: "end date", Reason: err.Error()}
	}
	if endDate.Before(startDate.Time) {
		return nil, ErrEndBeforeStart
	}
	return q.repo.ListByDateRange(ctx, startDate, endDate)
}
