package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"expensedesk/internal/core"
)

// Submitter is the storage surface of the employee menu.
type Submitter interface {
	InsertExpense(ctx context.Context, e core.Expense) error
	ListByUser(ctx context.Context, userID string) ([]core.Expense, error)
	ListByUserAndStatus(ctx context.Context, userID string, status core.Status) ([]core.Expense, error)
}

// Employee drives the submitter's menu loop.
type Employee struct {
	repo Submitter
	user core.User
	in   *bufio.Scanner
	out  io.Writer
}

func NewEmployee(repo Submitter, user core.User, in io.Reader, out io.Writer) *Employee {
	return &Employee{
		repo: repo,
		user: user,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

func (e *Employee) Run(ctx context.Context) {
	for {
		fmt.Fprintln(e.out, "\n--- Employee Menu ---")
		fmt.Fprintln(e.out, "1. Submit New Expense")
		fmt.Fprintln(e.out, "2. View My Expenses")
		fmt.Fprintln(e.out, "3. Exit")
		fmt.Fprint(e.out, "Enter choice: ")

		choice, ok := e.readLine()
		if !ok {
			return
		}
		switch choice {
		case "1":
			e.submit(ctx)
		case "2":
			e.viewOwn(ctx)
		case "3":
			return
		default:
			fmt.Fprintln(e.out, "Invalid choice. Try again.")
		}
	}
}

func (e *Employee) readLine() (string, bool) {
	if !e.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(e.in.Text()), true
}

func (e *Employee) submit(ctx context.Context) {
	amount, ok := e.promptAmount()
	if !ok {
		return
	}
	description, ok := e.promptNonEmpty("Enter description (e.g., Office Supplies): ")
	if !ok {
		return
	}
	category, ok := e.promptNonEmpty("Enter category (e.g., Travel, Meals, Office): ")
	if !ok {
		return
	}
	date, ok := e.promptDate()
	if !ok {
		return
	}

	expense := core.NewExpense(e.user.ID, category, amount, description, date)
	if err := e.repo.InsertExpense(ctx, expense); err != nil {
		slog.ErrorContext(ctx, "Failed to submit expense", "error", err)
		fmt.Fprintln(e.out, "Failed to submit expense.")
		return
	}
	fmt.Fprintf(e.out, "\n-> Expense submitted successfully! ID: %s\n", clip(expense.ID, 8))
}

func (e *Employee) promptAmount() (decimal.Decimal, bool) {
	for {
		fmt.Fprint(e.out, "Enter expense amount (e.g., 50.00): $")
		input, ok := e.readLine()
		if !ok {
			return decimal.Decimal{}, false
		}
		amount, err := decimal.NewFromString(input)
		if err != nil {
			fmt.Fprintln(e.out, "Invalid input. Please enter a valid number (e.g., 50.00).")
			continue
		}
		if !amount.IsPositive() {
			fmt.Fprintln(e.out, "Amount must be a positive number.")
			continue
		}
		return amount, true
	}
}

func (e *Employee) promptNonEmpty(prompt string) (string, bool) {
	for {
		fmt.Fprint(e.out, prompt)
		input, ok := e.readLine()
		if !ok {
			return "", false
		}
		if input != "" {
			return input, true
		}
		fmt.Fprintln(e.out, "Value cannot be empty.")
	}
}

func (e *Employee) promptDate() (core.Date, bool) {
	for {
		fmt.Fprint(e.out, "Enter date (YYYY-MM-DD, blank for today): ")
		input, ok := e.readLine()
		if !ok {
			return core.Date{}, false
		}
		if input == "" {
			return core.Today(), true
		}
		date, err := core.ParseDate(input)
		if err != nil {
			fmt.Fprintln(e.out, "Date must be in YYYY-MM-DD format.")
			continue
		}
		return date, true
	}
}

func (e *Employee) viewOwn(ctx context.Context) {
	fmt.Fprint(e.out, "Filter by status (pending/approved/denied, blank for all): ")
	input, ok := e.readLine()
	if !ok {
		return
	}

	var (
		expenses []core.Expense
		err      error
	)
	if input == "" {
		expenses, err = e.repo.ListByUser(ctx, e.user.ID)
	} else {
		var status core.Status
		if status, err = core.ParseStatus(input); err != nil {
			fmt.Fprintln(e.out, "Status must be pending, approved, or denied.")
			return
		}
		expenses, err = e.repo.ListByUserAndStatus(ctx, e.user.ID, status)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list own expenses", "error", err, "user_id", e.user.ID)
	}
	if len(expenses) == 0 {
		fmt.Fprintln(e.out, "\n  >>> No expenses found. <<<")
		return
	}
	printExpenses(e.out, expenses)
}
