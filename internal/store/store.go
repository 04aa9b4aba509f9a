package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensetrack/internal/core"
)

// CategoryRemoval reports the outcome of RemoveCategory. Pending is set when
// the category still has dependent expenses and the caller must confirm.
type CategoryRemoval struct {
	Category   string `json:"category"`
	Dependents int    `json:"dependents"`
	Pending    bool   `json:"pending"`
	Removed    bool   `json:"removed"`
}

// Store applies validated mutations to a Snapshot. It does no locking; the
// owner serializes access.
type Store struct {
	snap  Snapshot
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock overrides the time source used for createdAt stamps and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the ID generator.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(snap Snapshot, opts ...Option) *Store {
	s := &Store{
		snap:  snap.Clone(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day according to the store clock.
func (s *Store) Today() core.Date {
	return core.DateOf(s.now())
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	return s.snap.Clone()
}

// Replace swaps the whole state for a copy of snap.
func (s *Store) Replace(snap Snapshot) {
	s.snap = snap.Clone()
}

// AddExpense prepends a new expense. A zero date means today.
func (s *Store) AddExpense(amount core.Money, category, note string, date core.Date) (core.Expense, error) {
	amount = amount.Rounded()
	if date.IsZero() {
		date = s.Today()
	}
	e := core.Expense{
		Amount:   amount,
		Category: strings.TrimSpace(category),
		Note:     strings.TrimSpace(note),
		Date:     date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = s.newID()
	e.CreatedAt = s.now().UTC()
	s.snap.Expenses = prepend(s.snap.Expenses, e)
	return e, nil
}

// UpdateExpense replaces amount and note; id, category and date are kept.
func (s *Store) UpdateExpense(id string, amount core.Money, note string) (core.Expense, error) {
	amount = amount.Rounded()
	if err := amount.Validate(); err != nil {
		return core.Expense{}, err
	}
	for i := range s.snap.Expenses {
		if s.snap.Expenses[i].ID != id {
			continue
		}
		s.snap.Expenses[i].Amount = amount
		s.snap.Expenses[i].Note = strings.TrimSpace(note)
		return s.snap.Expenses[i], nil
	}
	return core.Expense{}, fmt.Errorf("expense %q: %w", id, core.ErrNotFound)
}

// RemoveExpense is idempotent and reports whether a row was removed.
func (s *Store) RemoveExpense(id string) bool {
	var removed bool
	s.snap.Expenses, removed = removeByID(s.snap.Expenses, id, func(e core.Expense) string { return e.ID })
	return removed
}

// AddTopUp prepends a top-up. A blank note becomes DefaultTopUpNote.
func (s *Store) AddTopUp(amount core.Money, note string, date core.Date) (core.TopUp, error) {
	amount = amount.Rounded()
	if date.IsZero() {
		date = s.Today()
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = DefaultTopUpNote
	}
	t := core.TopUp{Amount: amount, Note: note, Date: date}
	if err := t.Validate(); err != nil {
		return core.TopUp{}, err
	}
	t.ID = s.newID()
	t.CreatedAt = s.now().UTC()
	s.snap.TopUps = prepend(s.snap.TopUps, t)
	return t, nil
}

// AddBorrowRecord prepends a pending borrow record.
func (s *Store) AddBorrowRecord(typ core.BorrowType, person string, amount core.Money, note string, date core.Date) (core.BorrowRecord, error) {
	amount = amount.Rounded()
	if date.IsZero() {
		date = s.Today()
	}
	r := core.BorrowRecord{
		Type:       typ,
		PersonName: strings.TrimSpace(person),
		Amount:     amount,
		Note:       strings.TrimSpace(note),
		Date:       date,
		Status:     core.Pending,
	}
	if err := r.Validate(); err != nil {
		return core.BorrowRecord{}, err
	}
	r.ID = s.newID()
	r.CreatedAt = s.now().UTC()
	s.snap.Borrows = prepend(s.snap.Borrows, r)
	return r, nil
}

// SettleBorrowRecord moves a pending record to settled, stamping today.
// Settled or unknown records are left alone; the transition is one-way.
func (s *Store) SettleBorrowRecord(id string) bool {
	for i := range s.snap.Borrows {
		r := &s.snap.Borrows[i]
		if r.ID != id || !r.IsPending() {
			continue
		}
		today := s.Today()
		r.Status = core.Settled
		r.SettledDate = &today
		return true
	}
	return false
}

func (s *Store) RemoveBorrowRecord(id string) bool {
	var removed bool
	s.snap.Borrows, removed = removeByID(s.snap.Borrows, id, func(r core.BorrowRecord) string { return r.ID })
	return removed
}

// AddCategory appends a category and re-derives budgets.
func (s *Store) AddCategory(name string) (string, error) {
	cats, added, err := addName(s.snap.Categories, name, MaxCategories)
	if err != nil {
		return "", fmt.Errorf("add category: %w", err)
	}
	s.snap.Categories = cats
	s.snap.Budgets = SyncBudgets(s.snap.Categories, s.snap.Budgets)
	return added, nil
}

// RemoveCategory removes a category from the registry. When expenses still
// reference it and confirmed is false, nothing changes and the result is
// marked Pending with the dependent count. Expenses are never rewritten.
func (s *Store) RemoveCategory(name string, confirmed bool) (CategoryRemoval, error) {
	i := indexName(s.snap.Categories, strings.TrimSpace(name))
	if i < 0 {
		return CategoryRemoval{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	res := CategoryRemoval{Category: s.snap.Categories[i], Dependents: s.countDependents(s.snap.Categories[i])}
	if res.Dependents > 0 && !confirmed {
		res.Pending = true
		return res, nil
	}
	s.snap.Categories, res.Removed = removeName(s.snap.Categories, res.Category)
	s.snap.Budgets = SyncBudgets(s.snap.Categories, s.snap.Budgets)
	return res, nil
}

func (s *Store) countDependents(category string) int {
	n := 0
	for _, e := range s.snap.Expenses {
		if strings.EqualFold(e.Category, category) {
			n++
		}
	}
	return n
}

func (s *Store) AddTopUpPreset(name string) (string, error) {
	presets, added, err := addName(s.snap.TopUpPresets, name, MaxTopUpPresets)
	if err != nil {
		return "", fmt.Errorf("add preset: %w", err)
	}
	s.snap.TopUpPresets = presets
	return added, nil
}

func (s *Store) RemoveTopUpPreset(name string) bool {
	var removed bool
	s.snap.TopUpPresets, removed = removeName(s.snap.TopUpPresets, name)
	return removed
}

// SetBudgetLimit sets the monthly limit for a registered category. Zero unsets it.
func (s *Store) SetBudgetLimit(category string, limit core.Money) (core.BudgetItem, error) {
	limit = limit.Rounded()
	if limit.IsNegative() {
		return core.BudgetItem{}, core.ErrInvalidAmount
	}
	for i := range s.snap.Budgets {
		if strings.EqualFold(s.snap.Budgets[i].Category, strings.TrimSpace(category)) {
			s.snap.Budgets[i].Limit = limit
			return s.snap.Budgets[i], nil
		}
	}
	return core.BudgetItem{}, fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
}

func prepend[T any](items []T, v T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, v)
	return append(out, items...)
}

func removeByID[T any](items []T, id string, idOf func(T) string) ([]T, bool) {
	out := items[:0:0]
	removed := false
	for _, it := range items {
		if idOf(it) == id {
			removed = true
			continue
		}
		out = append(out, it)
	}
	if !removed {
		return items, false
	}
	return out, true
}
