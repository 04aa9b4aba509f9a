package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(amount, category string, d Date) Expense {
	return Expense{Amount: MustMoney(amount), Category: category, Date: d}
}

func TestBalance(t *testing.T) {
	today := NewDate(2026, 10, 19)
	topUps := []TopUp{{Amount: MustMoney("100"), Date: today}}
	expenses := []Expense{expense("30", "Food", today)}

	assert.Equal(t, "70.00", Balance(topUps, expenses).Fixed())
	assert.True(t, NetBorrowBalance(nil).IsZero())

	expenses = append(expenses, expense("95.5", "Travel", today))
	assert.Equal(t, "-25.50", Balance(topUps, expenses).Fixed(), "balance may go negative")
}

func TestWindowFor(t *testing.T) {
	today := NewDate(2026, 10, 19)
	cases := []struct {
		period Period
		label  string
		start  Date
	}{
		{Daily, "Today", today},
		{Weekly, "This Week", NewDate(2026, 10, 12)},
		{Monthly, "This Month", NewDate(2026, 9, 19)},
	}
	for _, tc := range cases {
		w, err := WindowFor(tc.period, today)
		require.NoError(t, err)
		assert.Equal(t, tc.label, w.Label)
		assert.Equal(t, tc.start.String(), w.Start.String(), tc.period)
		assert.Equal(t, today.String(), w.End.String())
	}

	_, err := WindowFor("hourly", today)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCalendarMonth(t *testing.T) {
	w := CalendarMonth(NewDate(2024, 2, 10))
	assert.Equal(t, "2024-02-01", w.Start.String())
	assert.Equal(t, "2024-02-29", w.End.String())
}

func TestPeriodExpensesInclusive(t *testing.T) {
	start, end := NewDate(2026, 10, 12), NewDate(2026, 10, 19)
	all := []Expense{
		expense("1", "A", NewDate(2026, 10, 11)),
		expense("2", "A", start),
		expense("3", "A", NewDate(2026, 10, 15)),
		expense("4", "A", end),
		expense("5", "A", NewDate(2026, 10, 20)),
	}
	got := PeriodExpenses(all, start, end)
	require.Len(t, got, 3)
	assert.Equal(t, "9.00", TotalSpent(got).Fixed())
}

func TestCategoryTotalsOrdering(t *testing.T) {
	d := NewDate(2026, 10, 19)
	got := CategoryTotals([]Expense{
		expense("10", "Travel", d),
		expense("5", "Food", d),
		expense("5", "Food", d),
		expense("10", "Deleted", d),
		expense("3", "Health", d),
	})
	require.Len(t, got, 4)
	// Travel, Food and Deleted tie at 10: first encountered wins.
	assert.Equal(t, []string{"Travel", "Food", "Deleted", "Health"},
		[]string{got[0].Name, got[1].Name, got[2].Name, got[3].Name})
	assert.Equal(t, 2, got[1].Count)

	top, ok := TopCategory(nil)
	assert.False(t, ok)
	assert.Empty(t, top.Name)
}

func TestBudgetUtilization(t *testing.T) {
	assert.InDelta(t, 50.0, BudgetUtilization(MustMoney("50"), MustMoney("100")), 1e-9)
	assert.InDelta(t, 150.0, BudgetUtilization(MustMoney("150"), MustMoney("100")), 1e-9, "not clamped")
	assert.Zero(t, BudgetUtilization(MustMoney("150"), Money{}))
}

func TestBudgetStatusesUseCalendarMonth(t *testing.T) {
	today := NewDate(2026, 10, 19)
	budgets := []BudgetItem{{Category: "Food", Limit: MustMoney("100")}, {Category: "Travel"}}
	expenses := []Expense{
		expense("40", "Food", NewDate(2026, 10, 1)),
		expense("80", "Food", NewDate(2026, 10, 18)),
		expense("500", "Food", NewDate(2026, 9, 30)),
		expense("12", "Travel", today),
	}
	got := BudgetStatuses(budgets, expenses, CalendarMonth(today))
	require.Len(t, got, 2)
	assert.Equal(t, "120.00", got[0].Spent.Fixed())
	assert.Equal(t, "-20.00", got[0].Remaining.Fixed())
	assert.True(t, got[0].OverBudget)
	assert.InDelta(t, 120.0, got[0].Utilization, 1e-9)
	assert.False(t, got[1].OverBudget, "unset limit is never over budget")
	assert.Zero(t, got[1].Utilization)
}

func TestNetBorrowBalance(t *testing.T) {
	settledOn := NewDate(2026, 10, 1)
	borrows := []BorrowRecord{
		{Type: Lent, Amount: MustMoney("150"), Status: Pending},
		{Type: Borrowed, Amount: MustMoney("200"), Status: Pending},
		{Type: Lent, Amount: MustMoney("999"), Status: Settled, SettledDate: &settledOn},
	}
	assert.Equal(t, "-50.00", NetBorrowBalance(borrows).Fixed())

	lent, borrowed := PendingTotals(borrows)
	assert.Equal(t, "150.00", lent.Fixed())
	assert.Equal(t, "200.00", borrowed.Fixed())
}

func TestSummarize(t *testing.T) {
	today := NewDate(2026, 10, 19)
	o := Summarize(
		[]Expense{
			expense("12.50", "Food", today),
			expense("35", "Travel", today),
			expense("22.75", "Food", today.AddDays(-1)),
		},
		[]TopUp{{Amount: MustMoney("1500")}, {Amount: MustMoney("500")}},
		nil,
		[]BudgetItem{{Category: "Food", Limit: MustMoney("400")}},
		today,
	)
	assert.Equal(t, "47.50", o.TodayTotal.Fixed())
	assert.Equal(t, "Travel", o.TopCategory)
	assert.Equal(t, "70.25", o.TotalSpent.Fixed())
	assert.Equal(t, "1929.75", o.Balance.Fixed())
	require.Len(t, o.Budgets, 1)
	assert.Equal(t, "35.25", o.Budgets[0].Spent.Fixed())
}
