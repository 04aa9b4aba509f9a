package store

import "expensetrack/internal/core"

// SyncBudgets derives the budget list from the category registry: one item
// per category in registry order, reusing an existing limit when present and
// 0 otherwise. Budgets whose category is no longer registered are dropped.
//
// The result depends only on the registry and the limits keyed by category,
// so applying it twice yields the same list.
func SyncBudgets(categories []string, budgets []core.BudgetItem) []core.BudgetItem {
	limits := make(map[string]core.Money, len(budgets))
	for _, b := range budgets {
		if _, seen := limits[b.Category]; !seen {
			limits[b.Category] = b.Limit
		}
	}
	out := make([]core.BudgetItem, 0, len(categories))
	for _, c := range categories {
		out = append(out, core.BudgetItem{Category: c, Limit: limits[c]})
	}
	return out
}
