package menu

import (
	"errors"
	"fmt"
	"io"

	"expensedesk/internal/core"
	"expensedesk/internal/report"
	"expensedesk/internal/storage"
)

const tableRule = "--------------------------------------------------------------------------------------------------------"

// printExpenses renders a numbered expense table; the number is what the
// reviewer types to pick an expense.
func printExpenses(out io.Writer, expenses []core.Expense) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, tableRule)
	fmt.Fprintf(out, "| %-3s | %-8s | %-8s | %-10s | %-10s | %-12s | %-20s |\n",
		"NUM", "ID", "Amount", "Date", "Status", "Category", "Description")
	fmt.Fprintln(out, tableRule)

	for i, e := range expenses {
		fmt.Fprintf(out, "| %-3d | %-8s | $%-7s | %-10s | %-10s | %-12s | %-20s |\n",
			i+1,
			clip(e.ID, 8),
			e.Amount.StringFixed(2),
			e.Date.String(),
			string(e.Status),
			clip(e.Category, 12),
			clip(e.Description, 20))
		if e.Reviewed() {
			fmt.Fprintf(out, "|     reviewed by %s on %s", e.Reviewer, e.ReviewDate)
			if e.Comment != "" {
				fmt.Fprintf(out, " (%s)", e.Comment)
			}
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintln(out, tableRule)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// userMessage maps input mistakes to messages worth showing; anything else
// is an operational failure the menu renders as an empty result.
func userMessage(err error) (string, bool) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error(), true
	case errors.Is(err, report.ErrEndBeforeStart):
		return "End date cannot precede start date.", true
	case errors.Is(err, storage.ErrUserNotFound):
		return "User not found.", true
	}
	return "", false
}
