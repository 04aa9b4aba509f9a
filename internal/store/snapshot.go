// Package store holds the in-memory ledger: expenses, budgets, top-ups,
// borrow records and the two name registries.
package store

import (
	"slices"

	"expensetrack/internal/core"
)

const (
	MaxCategories   = 15
	MaxTopUpPresets = 10

	// DefaultTopUpNote replaces a blank top-up note.
	DefaultTopUpNote = "Top Up"
)

// DefaultCategories is the registry a fresh install starts with.
var DefaultCategories = []string{"Food", "Household", "Travel", "Entertainment", "Health", "Other"}

var DefaultTopUpPresets = []string{"Salary", "Freelance", "Gift", "Refund"}

// Snapshot is the complete ledger state. Collections are newest-first.
type Snapshot struct {
	Expenses     []core.Expense      `json:"expenses"`
	Budgets      []core.BudgetItem   `json:"budgets"`
	TopUps       []core.TopUp        `json:"topUps"`
	Borrows      []core.BorrowRecord `json:"borrows"`
	Categories   []string            `json:"categories"`
	TopUpPresets []string            `json:"topUpPresets"`
}

// DefaultSnapshot returns an empty ledger with the default registries and one
// zero-limit budget per category.
func DefaultSnapshot() Snapshot {
	cats := slices.Clone(DefaultCategories)
	return Snapshot{
		Expenses:     []core.Expense{},
		Budgets:      SyncBudgets(cats, nil),
		TopUps:       []core.TopUp{},
		Borrows:      []core.BorrowRecord{},
		Categories:   cats,
		TopUpPresets: slices.Clone(DefaultTopUpPresets),
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Expenses:     cloneSlice(s.Expenses),
		Budgets:      cloneSlice(s.Budgets),
		TopUps:       cloneSlice(s.TopUps),
		Borrows:      cloneSlice(s.Borrows),
		Categories:   cloneSlice(s.Categories),
		TopUpPresets: cloneSlice(s.TopUpPresets),
	}
	for i, r := range out.Borrows {
		if r.SettledDate != nil {
			d := *r.SettledDate
			out.Borrows[i].SettledDate = &d
		}
	}
	return out
}

// cloneSlice keeps nil and empty distinct so a round trip compares equal.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
