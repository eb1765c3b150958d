package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

const (
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

type (
	// Status is the review state of an expense. An expense starts as
	// pending and moves exactly once to approved or denied.
	Status string

	// Date is a calendar date without a time component, rendered in
	// ISO form (YYYY-MM-DD) everywhere it is persisted or displayed.
	Date struct {
		time.Time
	}

	Expense struct {
		ID          string
		UserID      string
		Username    string // resolved from the users table, read-only
		Category    string
		Amount      decimal.Decimal
		Description string
		Date        Date
		Status      Status
		Reviewer    string // set only on review
		Comment     string // set only on review
		ReviewDate  Date   // set only on review
	}

	// ApprovalRecord is an immutable audit entry produced once per
	// successful decision. Records are append-only.
	ApprovalRecord struct {
		ID         string
		ExpenseID  string
		Status     Status
		Reviewer   string
		Comment    string
		ReviewDate Date
	}

	User struct {
		ID           string
		Username     string
		PasswordHash string
		Role         string
	}
)

var (
	ErrInvalidStatus    = errors.New("status must be pending, approved, or denied")
	ErrInvalidDecision  = errors.New("decision must be approved or denied")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyReviewer    = errors.New("empty reviewer")

	// ErrExpenseNotFound reports a decision that targeted an id with no
	// matching expense. ErrAlreadyDecided reports a decision that
	// targeted an expense whose status is no longer pending.
	ErrExpenseNotFound = errors.New("expense not found")
	ErrAlreadyDecided  = errors.New("expense already decided")
)

// ValidationError is a rejected filter or form input, produced before any
// storage access is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseStatus validates a status literal.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDenied:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// ParseDecision validates a decision literal. Pending is not a decision.
func ParseDecision(s string) (Status, error) {
	switch Status(s) {
	case StatusApproved, StatusDenied:
		return Status(s), nil
	}
	return "", ErrInvalidDecision
}

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: must be in YYYY-MM-DD format", s)
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// IsEmpty reports an unset optional date (review date while pending).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// NewExpense builds a pending expense for the submission flow with a fresh
// opaque id and no review fields set.
func NewExpense(userID, category string, amount decimal.Decimal, description string, date Date) Expense {
	return Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    category,
		Amount:      amount,
		Description: description,
		Date:        date,
		Status:      StatusPending,
	}
}

// Reviewed reports whether the expense has reached a terminal status.
func (e Expense) Reviewed() bool {
	return e.Status.Terminal()
}

func (e Expense) Validate() error {
	if e.UserID == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if _, err := ParseStatus(string(e.Status)); err != nil {
		return err
	}
	if e.Status == StatusPending && (e.Reviewer != "" || e.Comment != "" || !e.ReviewDate.IsEmpty()) {
		return errors.New("pending expense cannot carry review fields")
	}
	return nil
}
