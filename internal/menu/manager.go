// Package menu implements the interactive terminal surfaces: the manager
// review menu and the employee submission menu. This is the compatibility
// boundary where typed errors collapse to the legacy contract: reads render
// as empty listings and a failed decision renders as "no update performed",
// never as a crash.
package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"expensedesk/internal/core"
)

// Reports is the read surface the manager menu composes.
type Reports interface {
	Pending(ctx context.Context) ([]core.Expense, error)
	ByStatus(ctx context.Context, status string) ([]core.Expense, error)
	ByUser(ctx context.Context, username string) ([]core.Expense, error)
	ByCategory(ctx context.Context, category string) ([]core.Expense, error)
	ByDateRange(ctx context.Context, start, end string) ([]core.Expense, error)
}

// Decider applies a review decision.
type Decider interface {
	Decide(ctx context.Context, expenseID string, decision core.Status, reviewer, comment string) (core.ApprovalRecord, error)
}

// Manager drives the reviewer's menu loop.
type Manager struct {
	reports  Reports
	workflow Decider
	reviewer core.User
	in       *bufio.Scanner
	out      io.Writer
}

func NewManager(reports Reports, workflow Decider, reviewer core.User, in io.Reader, out io.Writer) *Manager {
	return &Manager{
		reports:  reports,
		workflow: workflow,
		reviewer: reviewer,
		in:       bufio.NewScanner(in),
		out:      out,
	}
}

// Run loops until the reviewer exits or input ends.
func (m *Manager) Run(ctx context.Context) {
	for {
		m.printMenu()
		choice, ok := m.readLine()
		if !ok {
			return
		}
		switch choice {
		case "1":
			m.showPending(ctx)
		case "2":
			m.decideExpense(ctx, core.StatusApproved)
		case "3":
			m.decideExpense(ctx, core.StatusDenied)
		case "4":
			m.reportByUser(ctx)
		case "5":
			m.reportByStatus(ctx)
		case "6":
			m.reportByCategory(ctx)
		case "7":
			m.reportByDateRange(ctx)
		case "8":
			return
		default:
			fmt.Fprintln(m.out, "Invalid choice. Try again.")
		}
	}
}

func (m *Manager) printMenu() {
	fmt.Fprintln(m.out, "\n--- Manager Menu ---")
	fmt.Fprintln(m.out, "1. View Pending Expenses")
	fmt.Fprintln(m.out, "2. Approve an Expense")
	fmt.Fprintln(m.out, "3. Deny an Expense")
	fmt.Fprintln(m.out, "4. Report by User")
	fmt.Fprintln(m.out, "5. Report by Status")
	fmt.Fprintln(m.out, "6. Report by Category")
	fmt.Fprintln(m.out, "7. Report by Date Range")
	fmt.Fprintln(m.out, "8. Exit")
	fmt.Fprint(m.out, "Enter choice: ")
}

func (m *Manager) readLine() (string, bool) {
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// pendingList is the collapse point for pending reads: a storage failure is
// logged and rendered exactly like an empty result.
func (m *Manager) pendingList(ctx context.Context) []core.Expense {
	pending, err := m.reports.Pending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending expenses", "error", err)
		return nil
	}
	return pending
}

func (m *Manager) showPending(ctx context.Context) {
	pending := m.pendingList(ctx)
	if len(pending) == 0 {
		fmt.Fprintln(m.out, "\nNo pending expenses.")
		return
	}
	printExpenses(m.out, pending)
}

func (m *Manager) decideExpense(ctx context.Context, decision core.Status) {
	pending := m.pendingList(ctx)
	if len(pending) == 0 {
		fmt.Fprintln(m.out, "\nNo pending expenses to review.")
		return
	}
	printExpenses(m.out, pending)

	verb := "approve"
	if decision == core.StatusDenied {
		verb = "deny"
	}
	fmt.Fprintf(m.out, "\nEnter expense number to %s: ", verb)
	input, ok := m.readLine()
	if !ok {
		return
	}
	index, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintln(m.out, "Invalid number.")
		return
	}
	if index < 1 || index > len(pending) {
		fmt.Fprintln(m.out, "Selection out of range.")
		return
	}
	target := pending[index-1]

	fmt.Fprint(m.out, "Add a comment (optional): ")
	comment, ok := m.readLine()
	if !ok {
		return
	}

	if !m.Decide(ctx, target.ID, decision, comment) {
		fmt.Fprintln(m.out, "Failed to update expense.")
		return
	}
	fmt.Fprintf(m.out, "Expense %s updated successfully.\n", target.ID)
}

// Decide is the legacy boolean wrapper around the workflow: every failure
// cause collapses to false. The cause is still logged for operators.
func (m *Manager) Decide(ctx context.Context, expenseID string, decision core.Status, comment string) bool {
	if _, err := m.workflow.Decide(ctx, expenseID, decision, m.reviewer.Username, comment); err != nil {
		slog.WarnContext(ctx, "No update performed",
			"expense_id", expenseID,
			"decision", string(decision),
			"error", err)
		return false
	}
	return true
}

func (m *Manager) reportByUser(ctx context.Context) {
	fmt.Fprint(m.out, "\nEnter username to report on: ")
	username, ok := m.readLine()
	if !ok {
		return
	}
	m.showReport(ctx, func() ([]core.Expense, error) {
		return m.reports.ByUser(ctx, username)
	})
}

func (m *Manager) reportByStatus(ctx context.Context) {
	fmt.Fprint(m.out, "\nEnter status (pending/approved/denied): ")
	status, ok := m.readLine()
	if !ok {
		return
	}
	m.showReport(ctx, func() ([]core.Expense, error) {
		return m.reports.ByStatus(ctx, status)
	})
}

func (m *Manager) reportByCategory(ctx context.Context) {
	fmt.Fprint(m.out, "\nEnter category: ")
	category, ok := m.readLine()
	if !ok {
		return
	}
	m.showReport(ctx, func() ([]core.Expense, error) {
		return m.reports.ByCategory(ctx, category)
	})
}

func (m *Manager) reportByDateRange(ctx context.Context) {
	fmt.Fprint(m.out, "\nEnter start date (YYYY-MM-DD): ")
	start, ok := m.readLine()
	if !ok {
		return
	}
	fmt.Fprint(m.out, "Enter end date (YYYY-MM-DD): ")
	end, ok := m.readLine()
	if !ok {
		return
	}
	m.showReport(ctx, func() ([]core.Expense, error) {
		return m.reports.ByDateRange(ctx, start, end)
	})
}

// showReport renders a report. Validation failures are the user's to fix
// and are shown verbatim; anything else collapses to an empty listing.
func (m *Manager) showReport(ctx context.Context, run func() ([]core.Expense, error)) {
	expenses, err := run()
	if err != nil {
		if msg, ok := userMessage(err); ok {
			fmt.Fprintln(m.out, msg)
			return
		}
		slog.ErrorContext(ctx, "Report query failed", "error", err)
	}
	if len(expenses) == 0 {
		fmt.Fprintln(m.out, "\n  >>> No expenses found. <<<")
		return
	}
	printExpenses(m.out, expenses)
}
