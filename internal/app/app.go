// Package app owns the ledger: it serializes mutations, persists them unless
// sample data is showing, and runs agent requests with per-surface busy flags.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"expensetrack/internal/agent"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/metrics"
	"expensetrack/internal/persistence"
	"expensetrack/internal/store"
)

var (
	// ErrBusy is returned when a request is already in flight on the same surface.
	ErrBusy          = errors.New("request already in progress")
	ErrEmptyQuestion = errors.New("empty question")
	ErrNoAgent       = errors.New("no agent configured")
)

type App struct {
	mu      sync.Mutex
	store   *store.Store
	mode    DataMode
	persist *persistence.Adapter

	agent        agent.Client
	agentID      string
	agentTimeout time.Duration

	reportBusy *semaphore.Weighted
	chatBusy   *semaphore.Weighted
	lastReport *ReportResult
	chat       []ChatMessage

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

type Option func(*App)

func WithLogger(l *slog.Logger) Option { return func(a *App) { a.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(a *App) { a.metrics = m } }
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }
func WithIDs(newID func() string) Option { return func(a *App) { a.newID = newID } }

// WithAgent sets the agent transport and the identifier sent with every request.
func WithAgent(c agent.Client, agentID string) Option {
	return func(a *App) {
		a.agent = c
		a.agentID = agentID
	}
}

// WithAgentTimeout bounds every agent call. Zero leaves only the caller's
// context in charge.
func WithAgentTimeout(d time.Duration) Option {
	return func(a *App) { a.agentTimeout = d }
}

// New builds an App holding the default ledger. Call Load to read persisted state.
func New(persist *persistence.Adapter, opts ...Option) *App {
	a := &App{
		mode:       RealMode{},
		persist:    persist,
		reportBusy: semaphore.NewWeighted(1),
		chatBusy:   semaphore.NewWeighted(1),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	storeOpts := []store.Option{store.WithClock(a.now)}
	if a.newID != nil {
		storeOpts = append(storeOpts, store.WithIDs(a.newID))
	}
	a.store = store.New(store.DefaultSnapshot(), storeOpts...)
	return a
}

// Load replaces the ledger with persisted state and returns to real mode.
func (a *App) Load(ctx context.Context) {
	snap := a.persist.Load(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.store.Replace(snap)
	a.mode = RealMode{}
	a.metrics.SetSampleMode(false)
}

// State is the full ledger as shown to clients.
type State struct {
	Mode string `json:"mode"`
	store.Snapshot
}

func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{Mode: a.mode.Name(), Snapshot: a.store.Snapshot()}
}

func (a *App) Summary() core.Overview {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.store.Snapshot()
	return core.Summarize(s.Expenses, s.TopUps, s.Borrows, s.Budgets, a.store.Today())
}

func (a *App) Mode() DataMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// SetSampleMode swaps fixtures in or restores the saved ledger. It reports
// whether the mode changed; asking for the current mode does nothing.
func (a *App) SetSampleMode(ctx context.Context, on bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch m := a.mode.(type) {
	case RealMode:
		if !on {
			return false
		}
		a.mode = SampleMode{SavedReal: a.store.Snapshot()}
		a.store.Replace(store.SampleSnapshot(a.now()))
	case SampleMode:
		if on {
			return false
		}
		a.store.Replace(m.SavedReal)
		a.mode = RealMode{}
		a.persistLocked(ctx)
	}

	a.metrics.SetSampleMode(on)
	a.logger.InfoContext(ctx, "Data mode changed", applog.FieldMode, a.mode.Name())
	return true
}

// persistLocked writes the ledger unless sample data is showing. Failures are
// logged by the adapter and never reach the caller.
func (a *App) persistLocked(ctx context.Context) {
	if isSample(a.mode) {
		return
	}
	a.persist.Save(ctx, a.store.Snapshot())
}

// mutate runs fn under the lock, records the outcome and persists on success.
func mutate[T any](ctx context.Context, a *App, entity, op string, fn func(*store.Store) (T, error)) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, err := fn(a.store)
	a.metrics.Mutation(entity, op, err)
	if err != nil {
		a.logger.DebugContext(ctx, "Mutation rejected",
			applog.FieldOperation, op, "entity", entity, applog.FieldError, err)
		return v, err
	}
	a.persistLocked(ctx)
	return v, nil
}

// found turns a boolean store result into ErrNotFound.
func found(ok bool) (struct{}, error) {
	if !ok {
		return struct{}{}, core.ErrNotFound
	}
	return struct{}{}, nil
}

func (a *App) AddExpense(ctx context.Context, amount core.Money, category, note string, date core.Date) (core.Expense, error) {
	return mutate(ctx, a, "expense", applog.OpCreate, func(s *store.Store) (core.Expense, error) {
		return s.AddExpense(amount, category, note, date)
	})
}

func (a *App) UpdateExpense(ctx context.Context, id string, amount core.Money, note string) (core.Expense, error) {
	return mutate(ctx, a, "expense", applog.OpUpdate, func(s *store.Store) (core.Expense, error) {
		return s.UpdateExpense(id, amount, note)
	})
}

func (a *App) RemoveExpense(ctx context.Context, id string) error {
	_, err := mutate(ctx, a, "expense", applog.OpDelete, func(s *store.Store) (struct{}, error) {
		return found(s.RemoveExpense(id))
	})
	return err
}

func (a *App) AddTopUp(ctx context.Context, amount core.Money, note string, date core.Date) (core.TopUp, error) {
	return mutate(ctx, a, "topup", applog.OpCreate, func(s *store.Store) (core.TopUp, error) {
		return s.AddTopUp(amount, note, date)
	})
}

func (a *App) AddBorrowRecord(ctx context.Context, typ core.BorrowType, person string, amount core.Money, note string, date core.Date) (core.BorrowRecord, error) {
	return mutate(ctx, a, "borrow", applog.OpCreate, func(s *store.Store) (core.BorrowRecord, error) {
		return s.AddBorrowRecord(typ, person, amount, note, date)
	})
}

func (a *App) SettleBorrowRecord(ctx context.Context, id string) error {
	_, err := mutate(ctx, a, "borrow", applog.OpSettle, func(s *store.Store) (struct{}, error) {
		return found(s.SettleBorrowRecord(id))
	})
	return err
}

func (a *App) RemoveBorrowRecord(ctx context.Context, id string) error {
	_, err := mutate(ctx, a, "borrow", applog.OpDelete, func(s *store.Store) (struct{}, error) {
		return found(s.RemoveBorrowRecord(id))
	})
	return err
}

func (a *App) AddCategory(ctx context.Context, name string) (string, error) {
	return mutate(ctx, a, "category", applog.OpCreate, func(s *store.Store) (string, error) {
		return s.AddCategory(name)
	})
}

// RemoveCategory removes a category; see store.Store.RemoveCategory for the
// confirmation rule. A pending removal changes nothing, so it is neither
// persisted nor counted as a mutation.
func (a *App) RemoveCategory(ctx context.Context, name string, confirmed bool) (store.CategoryRemoval, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.store.RemoveCategory(name, confirmed)
	if err == nil && res.Pending {
		a.logger.DebugContext(ctx, "Category removal awaits confirmation",
			applog.FieldCategory, res.Category, "dependents", res.Dependents)
		return res, nil
	}
	a.metrics.Mutation("category", applog.OpDelete, err)
	if err != nil {
		a.logger.DebugContext(ctx, "Mutation rejected",
			applog.FieldOperation, applog.OpDelete, "entity", "category", applog.FieldError, err)
		return res, err
	}
	a.persistLocked(ctx)
	return res, nil
}

func (a *App) AddTopUpPreset(ctx context.Context, name string) (string, error) {
	return mutate(ctx, a, "preset", applog.OpCreate, func(s *store.Store) (string, error) {
		return s.AddTopUpPreset(name)
	})
}

func (a *App) RemoveTopUpPreset(ctx context.Context, name string) error {
	_, err := mutate(ctx, a, "preset", applog.OpDelete, func(s *store.Store) (struct{}, error) {
		return found(s.RemoveTopUpPreset(name))
	})
	return err
}

func (a *App) SetBudgetLimit(ctx context.Context, category string, limit core.Money) (core.BudgetItem, error) {
	return mutate(ctx, a, "budget", applog.OpUpdate, func(s *store.Store) (core.BudgetItem, error) {
		return s.SetBudgetLimit(category, limit)
	})
}
