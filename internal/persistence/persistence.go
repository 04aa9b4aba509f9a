// Package persistence maps the ledger snapshot onto durable key-value storage.
//
// Every collection lives under its own key as a JSON array and is read and
// written independently: a corrupt or failing key never affects the others.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/metrics"
	"expensetrack/internal/storage"
	"expensetrack/internal/store"
)

// Storage keys.
const (
	KeyExpenses     = "expensetrack_expenses"
	KeyBudgets      = "expensetrack_budgets"
	KeyTopUps       = "expensetrack_topups"
	KeyCategories   = "expensetrack_categories"
	KeyTopUpPresets = "expensetrack_topup_presets"
	KeyBorrows      = "expensetrack_borrows"

	// KeyLegacyBalance held a single scalar balance before top-ups existed.
	KeyLegacyBalance = "expensetrack_balance"

	MigratedTopUpNote = "Initial balance"
)

// Keys lists the collection keys in save order.
var Keys = []string{KeyExpenses, KeyBudgets, KeyTopUps, KeyCategories, KeyTopUpPresets, KeyBorrows}

type Adapter struct {
	kv      storage.KV
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

type Option func(*Adapter)

func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(a *Adapter) { a.metrics = m } }
func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }
func WithIDs(newID func() string) Option { return func(a *Adapter) { a.newID = newID } }

func New(kv storage.KV, opts ...Option) *Adapter {
	a := &Adapter{
		kv:     kv,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads every collection, falling back to defaults per key, migrates the
// legacy balance when needed and re-derives budgets from the registry.
func (a *Adapter) Load(ctx context.Context) store.Snapshot {
	snap := store.DefaultSnapshot()

	loadKey(ctx, a, KeyExpenses, &snap.Expenses, validExpense)
	loadKey(ctx, a, KeyBudgets, &snap.Budgets, validBudget)
	topUpsPresent := loadKey(ctx, a, KeyTopUps, &snap.TopUps, validTopUp)
	loadKey(ctx, a, KeyBorrows, &snap.Borrows, validBorrow)

	var names []string
	if loadKey(ctx, a, KeyCategories, &names, nil) && names != nil {
		snap.Categories = capNames(store.NormalizeNames(names), store.MaxCategories)
	}
	names = nil
	if loadKey(ctx, a, KeyTopUpPresets, &names, nil) && names != nil {
		snap.TopUpPresets = capNames(store.NormalizeNames(names), store.MaxTopUpPresets)
	}

	switch {
	case !topUpsPresent:
		if t, ok := a.migrateLegacyBalance(ctx); ok {
			snap.TopUps = []core.TopUp{t}
		}
	case len(snap.TopUps) > 0:
		a.dropSupersededBalance(ctx)
	}

	snap.Budgets = store.SyncBudgets(snap.Categories, snap.Budgets)

	a.logger.InfoContext(ctx, "Ledger loaded",
		applog.FieldOperation, applog.OpLoad,
		"expenses", len(snap.Expenses),
		"topups", len(snap.TopUps),
		"borrows", len(snap.Borrows),
		"categories", len(snap.Categories))
	return snap
}

// loadKey decodes the array under key into dst, dropping elements that fail
// valid. It reports whether the key exists in storage (or could not be read),
// regardless of whether its payload was usable.
func loadKey[T any](ctx context.Context, a *Adapter, key string, dst *[]T, valid func(T) error) bool {
	raw, err := a.kv.Get(ctx, key)
	if storage.IsNotFound(err) {
		return false
	}
	if err != nil {
		a.logger.WarnContext(ctx, "Storage read failed, using default",
			applog.FieldKey, key, applog.FieldError, err)
		a.metrics.PersistenceFailure(key, "get")
		return true
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		a.logger.WarnContext(ctx, "Stored value is not an array, using default", applog.FieldKey, key)
		return true
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		a.logger.WarnContext(ctx, "Stored value is not valid JSON, using default",
			applog.FieldKey, key, applog.FieldError, err)
		return true
	}

	out := make([]T, 0, len(items))
	skipped := 0
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			skipped++
			continue
		}
		if valid != nil && valid(v) != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	if skipped > 0 {
		a.logger.WarnContext(ctx, "Dropped malformed stored entries", applog.FieldKey, key, "skipped", skipped)
	}
	*dst = out
	return true
}

// migrateLegacyBalance converts a positive legacy balance into one top-up.
// The legacy key is removed only after the top-up key was written, so a
// failed write leaves the migration to be retried on the next load.
func (a *Adapter) migrateLegacyBalance(ctx context.Context) (core.TopUp, bool) {
	raw, err := a.kv.Get(ctx, KeyLegacyBalance)
	if err != nil {
		if !storage.IsNotFound(err) {
			a.logger.WarnContext(ctx, "Legacy balance read failed", applog.FieldError, err)
		}
		return core.TopUp{}, false
	}

	amount, ok := parseLegacyBalance(string(raw))
	if !ok {
		return core.TopUp{}, false
	}

	now := a.now()
	t := core.TopUp{
		ID:        a.newID(),
		Amount:    amount,
		Note:      MigratedTopUpNote,
		Date:      core.DateOf(now),
		CreatedAt: now.UTC(),
	}

	if err := a.write(ctx, KeyTopUps, []core.TopUp{t}); err != nil {
		a.logger.WarnContext(ctx, "Legacy balance migration deferred", applog.FieldError, err)
		return t, true
	}
	if err := a.kv.Delete(ctx, KeyLegacyBalance); err != nil {
		a.logger.WarnContext(ctx, "Legacy balance key not removed", applog.FieldError, err)
		a.metrics.PersistenceFailure(KeyLegacyBalance, "delete")
	}
	a.logger.InfoContext(ctx, "Legacy balance migrated to top-up",
		applog.FieldOperation, applog.OpMigrate, applog.FieldAmount, amount.Fixed())
	return t, true
}

// dropSupersededBalance removes a legacy balance left behind by a migration
// whose top-up write failed and was later persisted by Save.
func (a *Adapter) dropSupersededBalance(ctx context.Context) {
	if _, err := a.kv.Get(ctx, KeyLegacyBalance); err != nil {
		return
	}
	if err := a.kv.Delete(ctx, KeyLegacyBalance); err != nil {
		a.logger.WarnContext(ctx, "Legacy balance key not removed", applog.FieldError, err)
		a.metrics.PersistenceFailure(KeyLegacyBalance, "delete")
		return
	}
	a.logger.InfoContext(ctx, "Superseded legacy balance removed", applog.FieldOperation, applog.OpMigrate)
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseLegacyBalance reads the numeric prefix of the stored value, like the
// browser's parseFloat did. Only finite amounts that stay positive at cent
// precision qualify.
func parseLegacyBalance(s string) (core.Money, bool) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	num := leadingNumber.FindString(strings.TrimSpace(s))
	if num == "" {
		return core.Money{}, false
	}
	if _, err := strconv.ParseFloat(num, 64); err != nil {
		return core.Money{}, false
	}
	m, err := core.ParseMoney(strings.TrimPrefix(num, "+"))
	if err != nil {
		return core.Money{}, false
	}
	return m, true
}

// Save writes every collection under its own key. Failures are logged and
// counted but never stop the remaining keys. It returns the number of keys
// that failed.
func (a *Adapter) Save(ctx context.Context, snap store.Snapshot) int {
	a.metrics.PersistenceSave()
	values := map[string]any{
		KeyExpenses:     nonNil(snap.Expenses),
		KeyBudgets:      nonNil(snap.Budgets),
		KeyTopUps:       nonNil(snap.TopUps),
		KeyCategories:   nonNil(snap.Categories),
		KeyTopUpPresets: nonNil(snap.TopUpPresets),
		KeyBorrows:      nonNil(snap.Borrows),
	}

	failures := 0
	for _, key := range Keys {
		if err := a.write(ctx, key, values[key]); err != nil {
			failures++
			a.logger.ErrorContext(ctx, "Persisting collection failed",
				applog.FieldOperation, applog.OpSave, applog.FieldKey, key, applog.FieldError, err)
		}
	}
	if failures > 0 {
		a.logger.WarnContext(ctx, "Ledger partially saved", applog.FieldFailures, failures)
	}
	return failures
}

func (a *Adapter) write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		a.metrics.PersistenceFailure(key, "encode")
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.kv.Set(ctx, key, data); err != nil {
		a.metrics.PersistenceFailure(key, "set")
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func capNames(names []string, limit int) []string {
	if len(names) > limit {
		return names[:limit]
	}
	return names
}

func validExpense(e core.Expense) error { return e.Validate() }
func validBudget(b core.BudgetItem) error { return b.Validate() }
func validTopUp(t core.TopUp) error { return t.Validate() }
func validBorrow(r core.BorrowRecord) error { return r.Validate() }
