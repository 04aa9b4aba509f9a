package agent

import (
	"fmt"
	"strings"

	"expensetrack/internal/core"
	"expensetrack/internal/store"
)

// MaxChatExpenses bounds how many expenses go into a chat context.
const MaxChatExpenses = 100

// BuildReportPrompt renders the report request for the given window. The
// layout is fixed; agents key on the section headers.
func BuildReportPrompt(snap store.Snapshot, w core.Window) string {
	inWindow := core.PeriodExpenses(snap.Expenses, w.Start, w.End)

	var b strings.Builder
	b.WriteString("Here is my expense data for analysis:\n\n")
	fmt.Fprintf(&b, "EXPENSES (%s: %s to %s):\n", w.Label, w.Start, w.End)
	writeExpenseLines(&b, inWindow, "  No expenses recorded for this period.")
	b.WriteString("\n\nBUDGETS:\n")
	writeBudgetLines(&b, snap.Budgets)
	if line := balanceLine(snap); line != "" {
		b.WriteString("\n" + line)
	}
	if len(snap.Categories) > 0 {
		b.WriteString("\nCATEGORIES: " + strings.Join(snap.Categories, ", "))
	}
	fmt.Fprintf(&b, "\n\nPERIOD: %s for %s to %s", w.Period, w.Start, w.End)
	fmt.Fprintf(&b, "\n\nREQUEST: Generate a %s spending report with category breakdown, trends, budget alerts, and insights.", w.Period)
	return b.String()
}

// BuildChatPrompt renders a free-form question with the most recent
// expenses as context.
func BuildChatPrompt(snap store.Snapshot, question string) string {
	recent := snap.Expenses
	if len(recent) > MaxChatExpenses {
		recent = recent[:MaxChatExpenses]
	}

	var b strings.Builder
	b.WriteString("Here is my expense data for context:\n\n")
	b.WriteString("EXPENSES:\n")
	writeExpenseLines(&b, recent, "  No expenses recorded.")
	b.WriteString("\n\nBUDGETS:\n")
	writeBudgetLines(&b, snap.Budgets)
	if line := balanceLine(snap); line != "" {
		b.WriteString("\n\n" + line)
	}
	if len(snap.Categories) > 0 {
		b.WriteString("\n\nCATEGORIES: " + strings.Join(snap.Categories, ", "))
	}
	b.WriteString("\n\nMy question: " + strings.TrimSpace(question))
	return b.String()
}

func writeExpenseLines(b *strings.Builder, expenses []core.Expense, empty string) {
	if len(expenses) == 0 {
		b.WriteString(empty)
		return
	}
	for i, e := range expenses {
		if i > 0 {
			b.WriteByte('\n')
		}
		note := e.Note
		if note == "" {
			note = "No note"
		}
		fmt.Fprintf(b, "  - %s | %s | $%s | %s", e.Date, e.Category, e.Amount.Fixed(), note)
	}
}

func writeBudgetLines(b *strings.Builder, budgets []core.BudgetItem) {
	for i, bi := range budgets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "  - %s: $%s limit", bi.Category, bi.Limit)
	}
}

// balanceLine is empty unless something was ever topped up.
func balanceLine(snap store.Snapshot) string {
	topped := core.TotalToppedUp(snap.TopUps)
	if !topped.IsPositive() {
		return ""
	}
	spent := core.TotalSpent(snap.Expenses)
	return fmt.Sprintf("BALANCE: Total top-ups $%s, Current balance $%s, Total spent $%s",
		topped.Fixed(), topped.Sub(spent).Fixed(), spent.Fixed())
}
