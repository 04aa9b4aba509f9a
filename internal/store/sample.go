package store

import (
	"slices"
	"time"

	"expensetrack/internal/core"
)

// SampleSnapshot builds the demo ledger relative to now. IDs are fixed so the
// fixtures are deterministic for a given day.
func SampleSnapshot(now time.Time) Snapshot {
	today := core.DateOf(now)
	day := 24 * time.Hour

	expense := func(id, amount, category, note string, daysAgo int) core.Expense {
		return core.Expense{
			ID:        id,
			Amount:    core.MustMoney(amount),
			Category:  category,
			Note:      note,
			Date:      today.AddDays(-daysAgo),
			CreatedAt: now.Add(-time.Duration(daysAgo) * day).UTC(),
		}
	}
	topUp := func(id, amount, note string, daysAgo int) core.TopUp {
		return core.TopUp{
			ID:        id,
			Amount:    core.MustMoney(amount),
			Note:      note,
			Date:      today.AddDays(-daysAgo),
			CreatedAt: now.Add(-time.Duration(daysAgo) * day).UTC(),
		}
	}
	borrow := func(id string, typ core.BorrowType, person, amount, note string, daysAgo int) core.BorrowRecord {
		return core.BorrowRecord{
			ID:         id,
			Type:       typ,
			PersonName: person,
			Amount:     core.MustMoney(amount),
			Note:       note,
			Date:       today.AddDays(-daysAgo),
			CreatedAt:  now.Add(-time.Duration(daysAgo) * day).UTC(),
			Status:     core.Pending,
		}
	}

	budget := func(category, limit string) core.BudgetItem {
		return core.BudgetItem{Category: category, Limit: core.MustMoney(limit)}
	}

	return Snapshot{
		Expenses: []core.Expense{
			expense("s1", "12.50", "Food", "Lunch at deli", 0),
			expense("s2", "45.00", "Household", "Cleaning supplies", 0),
			expense("s3", "8.99", "Entertainment", "Movie streaming", 0),
			expense("s4", "35.00", "Travel", "Uber ride", 0),
			expense("s5", "22.75", "Food", "Grocery run", 1),
			expense("s6", "150.00", "Health", "Pharmacy prescription", 1),
			expense("s7", "60.00", "Entertainment", "Concert tickets", 2),
			expense("s8", "18.50", "Food", "Coffee and pastry", 2),
		},
		Budgets: []core.BudgetItem{
			budget("Food", "400"),
			budget("Household", "300"),
			budget("Travel", "200"),
			budget("Entertainment", "150"),
			budget("Health", "250"),
			budget("Other", "100"),
		},
		TopUps: []core.TopUp{
			topUp("st1", "1500", "Monthly salary", 3),
			topUp("st2", "500", "Freelance payment", 0),
		},
		Borrows: []core.BorrowRecord{
			borrow("sb1", core.Lent, "Alex", "150", "Concert tickets advance", 2),
			borrow("sb2", core.Borrowed, "Jordan", "200", "Rent share", 4),
		},
		Categories:   slices.Clone(DefaultCategories),
		TopUpPresets: slices.Clone(DefaultTopUpPresets),
	}
}
