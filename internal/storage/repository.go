package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"expensedesk/internal/core"
)

// ErrUserNotFound reports a username lookup with no matching row.
var ErrUserNotFound = errors.New("user not found")

const baseExpenseSelect = `
	SELECT e.id, e.user_id, COALESCE(u.username, ''), e.category, e.amount,
	       e.description, e.date, e.status,
	       COALESCE(e.reviewer, ''), COALESCE(e.comment, ''), COALESCE(e.review_date, '')
	FROM expenses e
	LEFT JOIN users u ON e.user_id = u.id`

// ExpenseRepository issues filtered reads and the single transactional
// write against the Store. It holds no state between calls and is safe to
// share.
type ExpenseRepository struct {
	store *Store
}

func NewExpenseRepository(store *Store) *ExpenseRepository {
	return &ExpenseRepository{store: store}
}

// ListPending returns pending expenses oldest incurred-date first, so the
// oldest unresolved items surface first for reviewer triage.
func (r *ExpenseRepository) ListPending(ctx context.Context) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.status = 'pending' ORDER BY e.date ASC`)
}

// ListByStatus returns expenses with the given status, newest first.
func (r *ExpenseRepository) ListByStatus(ctx context.Context, status core.Status) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.status = ? ORDER BY e.date DESC`, string(status))
}

// ListByUser returns a user's expenses, newest first.
func (r *ExpenseRepository) ListByUser(ctx context.Context, userID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.user_id = ? ORDER BY e.date DESC`, userID)
}

// ListByUserAndStatus narrows ListByUser to one status (submission flow's
// own-expenses view).
func (r *ExpenseRepository) ListByUserAndStatus(ctx context.Context, userID string, status core.Status) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.user_id = ? AND e.status = ? ORDER BY e.date DESC`,
		userID, string(status))
}

// ListByCategory matches the category case-insensitively (exact match, not
// substring), newest first.
func (r *ExpenseRepository) ListByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE lower(e.category) = lower(?) ORDER BY e.date DESC`, category)
}

// ListByDateRange returns expenses with start <= date <= end, oldest first.
// Bound ordering is the caller's contract and is not re-validated here.
func (r *ExpenseRepository) ListByDateRange(ctx context.Context, start, end core.Date) ([]core.Expense, error) {
	return r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.date BETWEEN ? AND ? ORDER BY e.date ASC`,
		start.String(), end.String())
}

// GetExpense retrieves a single expense by id.
func (r *ExpenseRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	expenses, err := r.queryExpenses(ctx, baseExpenseSelect+` WHERE e.id = ?`, id)
	if err != nil {
		return core.Expense{}, err
	}
	if len(expenses) == 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return expenses[0], nil
}

// ApplyDecision moves a pending expense to a terminal status and appends
// the audit record, as one atomic unit: both writes commit together or
// neither is visible. The review date is stamped at execution time so a
// reviewer cannot backdate. Zero rows affected is classified inside the
// same transaction as ErrExpenseNotFound or ErrAlreadyDecided.
func (r *ExpenseRepository) ApplyDecision(ctx context.Context, expenseID string, decision core.Status, reviewer, comment string) (core.ApprovalRecord, error) {
	if !decision.Terminal() {
		return core.ApprovalRecord{}, core.ErrInvalidDecision
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return core.ApprovalRecord{}, err
	}
	defer tx.Rollback()

	reviewDate := core.Today()

	res, err := tx.ExecContext(ctx, `
		UPDATE expenses
		SET status = ?, reviewer = ?, comment = ?, review_date = ?
		WHERE id = ? AND status = 'pending'`,
		string(decision), reviewer, comment, reviewDate.String(), expenseID)
	if err != nil {
		return core.ApprovalRecord{}, fmt.Errorf("update expense %s: %w", expenseID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return core.ApprovalRecord{}, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Probe inside the transaction: distinguishes a typo'd id from
		// an expense another reviewer already decided.
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, expenseID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return core.ApprovalRecord{}, core.ErrExpenseNotFound
		case err != nil:
			return core.ApprovalRecord{}, fmt.Errorf("probe expense %s: %w", expenseID, err)
		default:
			return core.ApprovalRecord{}, core.ErrAlreadyDecided
		}
	}

	record := core.ApprovalRecord{
		ID:         uuid.NewString(),
		ExpenseID:  expenseID,
		Status:     decision,
		Reviewer:   reviewer,
		Comment:    comment,
		ReviewDate: reviewDate,
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO approvals (id, expense_id, status, reviewer, comment, review_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.ExpenseID, string(record.Status), record.Reviewer, record.Comment, record.ReviewDate.String()); err != nil {
		return core.ApprovalRecord{}, fmt.Errorf("insert approval for expense %s: %w", expenseID, err)
	}

	if err := tx.Commit(); err != nil {
		return core.ApprovalRecord{}, fmt.Errorf("commit decision for expense %s: %w", expenseID, err)
	}

	slog.InfoContext(ctx, "Expense decision applied",
		"expense_id", expenseID,
		"status", string(decision),
		"reviewer", reviewer,
		"review_date", reviewDate.String())

	return record, nil
}

// ListApprovals returns the decision history for an expense in insertion
// order. The approvals relation is append-only; no mutation is exposed.
func (r *ExpenseRepository) ListApprovals(ctx context.Context, expenseID string) ([]core.ApprovalRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, expense_id, status, COALESCE(reviewer, ''), COALESCE(comment, ''), review_date
		FROM approvals
		WHERE expense_id = ?
		ORDER BY rowid ASC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("query approvals for expense %s: %w", expenseID, err)
	}
	defer rows.Close()

	var records []core.ApprovalRecord
	for rows.Next() {
		var (
			rec        core.ApprovalRecord
			status     string
			reviewDate string
		)
		if err := rows.Scan(&rec.ID, &rec.ExpenseID, &status, &rec.Reviewer, &rec.Comment, &reviewDate); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		rec.Status = core.Status(status)
		if rec.ReviewDate, err = core.ParseDate(reviewDate); err != nil {
			return nil, fmt.Errorf("approval %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return records, nil
}

// InsertExpense persists a newly submitted expense. Review columns stay
// NULL until a decision lands.
func (r *ExpenseRepository) InsertExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}

	amount, _ := e.Amount.Float64()
	if _, err := r.store.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, category, amount, description, date, status, reviewer, comment, review_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL)`,
		e.ID, e.UserID, e.Category, amount, e.Description, e.Date.String(), string(e.Status)); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense submitted",
		"expense_id", e.ID,
		"user_id", e.UserID,
		"category", e.Category,
		"amount", e.Amount.String(),
		"date", e.Date.String())

	return nil
}

// FindUserByUsername resolves a user for login and the by-user report.
func (r *ExpenseRepository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.store.db.QueryRowContext(ctx, `
		SELECT id, username, password, role FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user %s: %w", username, err)
	}
	return u, nil
}

// CreateUser inserts a user row (seeding and tests; user management itself
// belongs to an external collaborator).
func (r *ExpenseRepository) CreateUser(ctx context.Context, u core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, err := r.store.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password, role) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role); err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

func (r *ExpenseRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e          core.Expense
		amount     float64
		date       string
		status     string
		reviewDate string
	)
	if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Category, &amount,
		&e.Description, &date, &status, &e.Reviewer, &e.Comment, &reviewDate); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	e.Amount = decimal.NewFromFloat(amount)
	e.Status = core.Status(status)

	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if reviewDate != "" {
		if e.ReviewDate, err = core.ParseDate(reviewDate); err != nil {
			return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
		}
	}
	return e, nil
}
