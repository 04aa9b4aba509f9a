package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// Window is an inclusive date range used to select expenses.
type Window struct {
	Period Period `json:"period"`
	Label  string `json:"label"`
	Start  Date   `json:"start"`
	End    Date   `json:"end"`
}

// BudgetStatus is spend-vs-limit for one budget over a calendar month.
type BudgetStatus struct {
	Category    string  `json:"category"`
	Limit       Money   `json:"limit"`
	Spent       Money   `json:"spent"`
	Remaining   Money   `json:"remaining"`
	Utilization float64 `json:"utilization"`
	OverBudget  bool    `json:"overBudget"`
}

// Overview is the dashboard summary derived from the ledger.
type Overview struct {
	Today           Date           `json:"today"`
	TodayTotal      Money          `json:"todayTotal"`
	TopCategory     string         `json:"topCategory,omitempty"`
	TopCategorySum  Money          `json:"topCategorySum"`
	TotalSpent      Money          `json:"totalSpent"`
	TotalToppedUp   Money          `json:"totalToppedUp"`
	Balance         Money          `json:"balance"`
	PendingLent     Money          `json:"pendingLent"`
	PendingBorrowed Money          `json:"pendingBorrowed"`
	NetBorrow       Money          `json:"netBorrow"`
	Month           Window         `json:"month"`
	Budgets         []BudgetStatus `json:"budgets"`
}

// WindowFor returns the rolling window for a report period:
// daily = today..today, weekly = today-7d..today, monthly = today-30d..today.
func WindowFor(p Period, today Date) (Window, error) {
	switch p {
	case Daily:
		return Window{Period: p, Label: "Today", Start: today, End: today}, nil
	case Weekly:
		return Window{Period: p, Label: "This Week", Start: today.AddDays(-7), End: today}, nil
	case Monthly:
		return Window{Period: p, Label: "This Month", Start: today.AddDays(-30), End: today}, nil
	default:
		return Window{}, p.Validate()
	}
}

// CalendarMonth returns the first..last day of today's calendar month.
func CalendarMonth(today Date) Window {
	start := NewDate(today.Year(), int(today.Month()), 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return Window{Period: Monthly, Label: today.Format("January 2006"), Start: start, End: end}
}

func (w Window) Contains(d Date) bool {
	return d.Between(w.Start, w.End)
}

// PeriodExpenses filters expenses dated within [start, end], preserving order.
func PeriodExpenses(expenses []Expense, start, end Date) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Date.Between(start, end) {
			out = append(out, e)
		}
	}
	return out
}

func TotalSpent(expenses []Expense) Money {
	var sum Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

func TotalToppedUp(topUps []TopUp) Money {
	var sum Money
	for _, t := range topUps {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Balance may be negative.
func Balance(topUps []TopUp, expenses []Expense) Money {
	return TotalToppedUp(topUps).Sub(TotalSpent(expenses))
}

// CategoryTotals groups by category string, not registry membership, so
// deleted categories still aggregate. Sorted descending by amount; ties keep
// first-encountered order.
func CategoryTotals(expenses []Expense) []CategoryAmount {
	index := map[string]int{}
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Amount.Cmp(out[b].Amount) > 0
	})
	return out
}

// TopCategory returns the highest-spend category, if any.
func TopCategory(expenses []Expense) (CategoryAmount, bool) {
	totals := CategoryTotals(expenses)
	if len(totals) == 0 {
		return CategoryAmount{}, false
	}
	return totals[0], true
}

// BudgetUtilization is spent/limit*100, or 0 when the limit is unset.
// The result is not clamped.
func BudgetUtilization(spent, limit Money) float64 {
	if !limit.IsPositive() {
		return 0
	}
	f, _ := spent.Amount.Div(limit.Amount).Mul(hundred.Amount).Float64()
	return f
}

var hundred = MustMoney("100")

// BudgetStatuses computes spend-vs-limit for each budget within the given
// window, in budget order.
func BudgetStatuses(budgets []BudgetItem, expenses []Expense, month Window) []BudgetStatus {
	spent := map[string]Money{}
	for _, e := range PeriodExpenses(expenses, month.Start, month.End) {
		spent[e.Category] = spent[e.Category].Add(e.Amount)
	}
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		s := spent[b.Category]
		out = append(out, BudgetStatus{
			Category:    b.Category,
			Limit:       b.Limit,
			Spent:       s,
			Remaining:   b.Limit.Sub(s),
			Utilization: BudgetUtilization(s, b.Limit),
			OverBudget:  b.Limit.IsPositive() && s.Cmp(b.Limit) > 0,
		})
	}
	return out
}

// PendingTotals sums pending lent and borrowed amounts; settled records are excluded.
func PendingTotals(borrows []BorrowRecord) (lent, borrowed Money) {
	for _, r := range borrows {
		if !r.IsPending() {
			continue
		}
		switch r.Type {
		case Lent:
			lent = lent.Add(r.Amount)
		case Borrowed:
			borrowed = borrowed.Add(r.Amount)
		}
	}
	return lent, borrowed
}

// NetBorrowBalance is pending lent minus pending borrowed. Negative means the
// user owes others.
func NetBorrowBalance(borrows []BorrowRecord) Money {
	lent, borrowed := PendingTotals(borrows)
	return lent.Sub(borrowed)
}

// Summarize builds the dashboard overview for the given day.
func Summarize(expenses []Expense, topUps []TopUp, borrows []BorrowRecord, budgets []BudgetItem, today Date) Overview {
	todays := PeriodExpenses(expenses, today, today)
	lent, borrowed := PendingTotals(borrows)
	month := CalendarMonth(today)

	o := Overview{
		Today:           today,
		TodayTotal:      TotalSpent(todays),
		TotalSpent:      TotalSpent(expenses),
		TotalToppedUp:   TotalToppedUp(topUps),
		PendingLent:     lent,
		PendingBorrowed: borrowed,
		NetBorrow:       lent.Sub(borrowed),
		Month:           month,
		Budgets:         BudgetStatuses(budgets, expenses, month),
	}
	o.Balance = o.TotalToppedUp.Sub(o.TotalSpent)
	if top, ok := TopCategory(todays); ok {
		o.TopCategory = top.Name
		o.TopCategorySum = top.Amount
	}
	return o
}
