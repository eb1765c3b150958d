package menu

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"expensedesk/internal/core"
	"expensedesk/internal/storage"
)

type fakeReports struct {
	expenses []core.Expense
	err      error
}

func (f *fakeReports) result() ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expenses, nil
}

func (f *fakeReports) Pending(context.Context) ([]core.Expense, error)          { return f.result() }
func (f *fakeReports) ByStatus(context.Context, string) ([]core.Expense, error) { return f.result() }
func (f *fakeReports) ByUser(context.Context, string) ([]core.Expense, error)   { return f.result() }
func (f *fakeReports) ByCategory(context.Context, string) ([]core.Expense, error) {
	return f.result()
}
func (f *fakeReports) ByDateRange(context.Context, string, string) ([]core.Expense, error) {
	return f.result()
}

type fakeDecider struct {
	err       error
	expenseID string
	decision  core.Status
	reviewer  string
	comment   string
}

func (f *fakeDecider) Decide(_ context.Context, expenseID string, decision core.Status, reviewer, comment string) (core.ApprovalRecord, error) {
	f.expenseID, f.decision, f.reviewer, f.comment = expenseID, decision, reviewer, comment
	if f.err != nil {
		return core.ApprovalRecord{}, f.err
	}
	return core.ApprovalRecord{ID: "rec-1", ExpenseID: expenseID, Status: decision}, nil
}

func sampleExpense(id string) core.Expense {
	return core.Expense{
		ID:          id,
		UserID:      "u1",
		Category:    "Travel",
		Amount:      decimal.NewFromInt(10),
		Description: "taxi",
		Date:        core.NewDate(2024, 3, 1),
		Status:      core.StatusPending,
	}
}

func runManager(reports Reports, workflow Decider, input string) string {
	var out strings.Builder
	m := NewManager(reports, workflow, core.User{ID: "m1", Username: "alice", Role: core.RoleManager},
		strings.NewReader(input), &out)
	m.Run(context.Background())
	return out.String()
}

func TestDecideCollapsesEveryFailureToFalse(t *testing.T) {
	for _, cause := range []error{
		core.ErrExpenseNotFound,
		core.ErrAlreadyDecided,
		errors.New("disk I/O error"),
	} {
		workflow := &fakeDecider{err: cause}
		m := NewManager(&fakeReports{}, workflow, core.User{Username: "alice"}, strings.NewReader(""), &strings.Builder{})

		if m.Decide(context.Background(), "e1", core.StatusApproved, "") {
			t.Fatalf("cause %v must collapse to false", cause)
		}
	}

	m := NewManager(&fakeReports{}, &fakeDecider{}, core.User{Username: "alice"}, strings.NewReader(""), &strings.Builder{})
	if !m.Decide(context.Background(), "e1", core.StatusApproved, "ok") {
		t.Fatal("successful decision must report true")
	}
}

func TestApproveFlow(t *testing.T) {
	workflow := &fakeDecider{}
	reports := &fakeReports{expenses: []core.Expense{sampleExpense("aaaa-1"), sampleExpense("bbbb-2")}}

	out := runManager(reports, workflow, "2\n2\nlooks fine\n8\n")

	if workflow.expenseID != "bbbb-2" {
		t.Fatalf("decided expense = %q, want bbbb-2", workflow.expenseID)
	}
	if workflow.decision != core.StatusApproved || workflow.reviewer != "alice" || workflow.comment != "looks fine" {
		t.Fatalf("unexpected decision call: %+v", workflow)
	}
	if !strings.Contains(out, "updated successfully") {
		t.Fatalf("missing success message in output:\n%s", out)
	}
}

func TestDenyFlowReportsFailure(t *testing.T) {
	workflow := &fakeDecider{err: core.ErrAlreadyDecided}
	reports := &fakeReports{expenses: []core.Expense{sampleExpense("aaaa-1")}}

	out := runManager(reports, workflow, "3\n1\n\n8\n")

	if workflow.decision != core.StatusDenied {
		t.Fatalf("decision = %s, want denied", workflow.decision)
	}
	if !strings.Contains(out, "Failed to update expense.") {
		t.Fatalf("missing failure message in output:\n%s", out)
	}
}

func TestDecideSelectionOutOfRange(t *testing.T) {
	workflow := &fakeDecider{}
	reports := &fakeReports{expenses: []core.Expense{sampleExpense("aaaa-1")}}

	out := runManager(reports, workflow, "2\n5\n8\n")

	if workflow.expenseID != "" {
		t.Fatal("workflow must not be called for an out-of-range selection")
	}
	if !strings.Contains(out, "Selection out of range.") {
		t.Fatalf("missing range message in output:\n%s", out)
	}
}

func TestPendingStorageFaultRendersAsEmpty(t *testing.T) {
	reports := &fakeReports{err: errors.New("disk I/O error")}

	out := runManager(reports, &fakeDecider{}, "1\n8\n")

	if !strings.Contains(out, "No pending expenses.") {
		t.Fatalf("storage fault must render as an empty listing:\n%s", out)
	}
}

func TestReportShowsUserFacingMessages(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		input string
		want  string
	}{
		{"bad status literal", &core.ValidationError{Field: "status", Reason: "must be pending, approved, or denied"}, "5\narchived\n8\n", "invalid status"},
		{"unknown user", storage.ErrUserNotFound, "4\nnobody\n8\n", "User not found."},
		{"storage fault renders empty", errors.New("disk I/O error"), "6\nTravel\n8\n", "No expenses found."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := runManager(&fakeReports{err: tc.err}, &fakeDecider{}, tc.input)
			if !strings.Contains(out, tc.want) {
				t.Fatalf("output missing %q:\n%s", tc.want, out)
			}
		})
	}
}
