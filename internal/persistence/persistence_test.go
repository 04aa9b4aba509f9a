package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetrack/internal/core"
	"expensetrack/internal/storage"
	"expensetrack/internal/storage/memory"
	"expensetrack/internal/store"
)

var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// flakyKV fails reads or writes for selected keys.
type flakyKV struct {
	*memory.Store
	failGet map[string]bool
	failSet map[string]bool
	sets    []string
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Store: memory.New(), failGet: map[string]bool{}, failSet: map[string]bool{}}
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet[key] {
		return nil, errors.New("io error")
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets = append(f.sets, key)
	if f.failSet[key] {
		return errors.New("quota exceeded")
	}
	return f.Store.Set(ctx, key, value)
}

func newAdapter(kv storage.KV) *Adapter {
	return New(kv,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return testNow }),
		WithIDs(func() string { return "migrated-1" }),
	)
}

func put(t *testing.T, kv storage.KV, key, value string) {
	t.Helper()
	require.NoError(t, kv.Set(context.Background(), key, []byte(value)))
}

func TestLoadEmptyStoreUsesDefaults(t *testing.T) {
	snap := newAdapter(memory.New()).Load(context.Background())
	assert.Equal(t, store.DefaultSnapshot(), snap)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	a := newAdapter(kv)

	s := store.New(store.DefaultSnapshot(), store.WithClock(func() time.Time { return testNow }))
	_, err := s.AddExpense(core.MustMoney("12.5"), "Food", "lunch", core.Date{})
	require.NoError(t, err)
	_, err = s.AddTopUp(core.MustMoney("100"), "", core.Date{})
	require.NoError(t, err)
	r, err := s.AddBorrowRecord(core.Lent, "Sam", core.MustMoney("20"), "", core.Date{})
	require.NoError(t, err)
	s.SettleBorrowRecord(r.ID)
	_, err = s.AddCategory("Pets")
	require.NoError(t, err)
	_, err = s.SetBudgetLimit("Food", core.MustMoney("400"))
	require.NoError(t, err)

	require.Zero(t, a.Save(ctx, s.Snapshot()))
	assert.Equal(t, []string{
		KeyBorrows, KeyBudgets, KeyCategories, KeyExpenses, KeyTopUpPresets, KeyTopUps,
	}, kv.Keys())

	raw, err := kv.Get(ctx, KeyExpenses)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":12.5`)
	assert.Contains(t, string(raw), `"date":"2026-10-19"`)

	got := a.Load(ctx)
	want := s.Snapshot()
	require.Len(t, got.Expenses, 1)
	assert.Equal(t, want.Expenses[0].ID, got.Expenses[0].ID)
	assert.True(t, want.Expenses[0].Amount.Equal(got.Expenses[0].Amount))
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, "400", got.Budgets[0].Limit.String())
	require.Len(t, got.Borrows, 1)
	require.NotNil(t, got.Borrows[0].SettledDate)
	assert.Equal(t, core.Settled, got.Borrows[0].Status)
	assert.Equal(t, store.DefaultTopUpNote, got.TopUps[0].Note)
}

func TestLoadIsolatesCorruptKeys(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	put(t, kv, KeyExpenses, `{not json`)
	put(t, kv, KeyBudgets, `{"category":"Food"}`)
	put(t, kv, KeyCategories, `null`)
	put(t, kv, KeyTopUps, `[{"id":"t1","amount":50,"note":"x","date":"2026-10-01","createdAt":"2026-10-01T10:00:00Z"}]`)
	kv.failGet[KeyBorrows] = true

	snap := newAdapter(kv).Load(ctx)

	assert.Empty(t, snap.Expenses)
	assert.Equal(t, store.DefaultCategories, snap.Categories)
	assert.Len(t, snap.Budgets, len(store.DefaultCategories))
	assert.Empty(t, snap.Borrows)
	require.Len(t, snap.TopUps, 1, "healthy key still loads")
	assert.Equal(t, "50.00", snap.TopUps[0].Amount.Fixed())
}

func TestLoadSkipsMalformedElements(t *testing.T) {
	kv := memory.New()
	put(t, kv, KeyExpenses, `[
		{"id":"a","amount":10,"category":"Food","note":"","date":"2026-10-01","createdAt":"2026-10-01T00:00:00Z"},
		{"id":"b","amount":-3,"category":"Food","note":"","date":"2026-10-01","createdAt":"2026-10-01T00:00:00Z"},
		"garbage",
		{"id":"c","amount":4,"category":"","note":"","date":"2026-10-01","createdAt":"2026-10-01T00:00:00Z"}
	]`)

	snap := newAdapter(kv).Load(context.Background())
	require.Len(t, snap.Expenses, 1)
	assert.Equal(t, "a", snap.Expenses[0].ID)
}

func TestLoadDropsInconsistentBorrows(t *testing.T) {
	kv := memory.New()
	put(t, kv, KeyBorrows, `[
		{"id":"ok","type":"lent","personName":"Sam","amount":20,"date":"2026-10-01","status":"pending"},
		{"id":"done","type":"lent","personName":"Sam","amount":5,"date":"2026-10-01","status":"settled","settledDate":"2026-10-05"},
		{"id":"unknown","type":"lent","personName":"Sam","amount":20,"date":"2026-10-01","status":"cancelled"},
		{"id":"nostatus","type":"lent","personName":"Sam","amount":20,"date":"2026-10-01"},
		{"id":"dated","type":"lent","personName":"Sam","amount":20,"date":"2026-10-01","status":"pending","settledDate":"2026-10-05"},
		{"id":"undated","type":"borrowed","personName":"Ana","amount":20,"date":"2026-10-01","status":"settled"}
	]`)

	snap := newAdapter(kv).Load(context.Background())
	require.Len(t, snap.Borrows, 2)
	assert.Equal(t, "ok", snap.Borrows[0].ID)
	assert.Equal(t, "done", snap.Borrows[1].ID)
}

func TestLoadResyncsBudgets(t *testing.T) {
	kv := memory.New()
	put(t, kv, KeyCategories, `["Food","Pets","food"]`)
	put(t, kv, KeyBudgets, `[{"category":"Orphan","limit":10},{"category":"Food","limit":250}]`)

	snap := newAdapter(kv).Load(context.Background())
	assert.Equal(t, []string{"Food", "Pets"}, snap.Categories)
	require.Len(t, snap.Budgets, 2)
	assert.Equal(t, "Food", snap.Budgets[0].Category)
	assert.Equal(t, "250", snap.Budgets[0].Limit.String())
	assert.Equal(t, "Pets", snap.Budgets[1].Category)
	assert.True(t, snap.Budgets[1].Limit.IsZero())
}

func TestLegacyBalanceMigration(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	put(t, kv, KeyLegacyBalance, `250.5`)

	a := newAdapter(kv)
	snap := a.Load(ctx)
	require.Len(t, snap.TopUps, 1)
	tu := snap.TopUps[0]
	assert.Equal(t, "migrated-1", tu.ID)
	assert.Equal(t, "250.50", tu.Amount.Fixed())
	assert.Equal(t, MigratedTopUpNote, tu.Note)
	assert.Equal(t, "2026-10-19", tu.Date.String())

	_, err := kv.Get(ctx, KeyLegacyBalance)
	assert.ErrorIs(t, err, storage.ErrNotFound, "legacy key removed")

	raw, err := kv.Get(ctx, KeyTopUps)
	require.NoError(t, err)
	var stored []core.TopUp
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)

	// Second load finds the top-up key and does not migrate again.
	again := a.Load(ctx)
	assert.Len(t, again.TopUps, 1)
}

func TestLegacyBalanceIgnoredWhenTopUpsExist(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	put(t, kv, KeyLegacyBalance, `900`)
	put(t, kv, KeyTopUps, `[]`)

	snap := newAdapter(kv).Load(ctx)
	assert.Empty(t, snap.TopUps)
	_, err := kv.Get(ctx, KeyLegacyBalance)
	assert.NoError(t, err, "legacy key left alone")
}

func TestLegacyBalanceKeptWhenTopUpWriteFails(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	put(t, kv, KeyLegacyBalance, `"300"`)
	kv.failSet[KeyTopUps] = true

	snap := newAdapter(kv).Load(ctx)
	require.Len(t, snap.TopUps, 1)

	_, err := kv.Get(ctx, KeyLegacyBalance)
	assert.NoError(t, err, "legacy key survives a failed migration write")
}

func TestLegacyBalanceRemovedAfterDeferredMigration(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	put(t, kv, KeyLegacyBalance, `300`)
	kv.failSet[KeyTopUps] = true

	a := newAdapter(kv)
	snap := a.Load(ctx)
	require.Len(t, snap.TopUps, 1)

	kv.failSet[KeyTopUps] = false
	require.Zero(t, a.Save(ctx, snap))

	again := a.Load(ctx)
	require.Len(t, again.TopUps, 1)
	assert.Equal(t, "300.00", again.TopUps[0].Amount.Fixed())
	_, err := kv.Get(ctx, KeyLegacyBalance)
	assert.ErrorIs(t, err, storage.ErrNotFound, "superseded legacy key removed")

	third := a.Load(ctx)
	assert.Len(t, third.TopUps, 1, "no second migration")
}

func TestParseLegacyBalance(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100.00", true},
		{`"42.129"`, "42.13", true},
		{"  7.5abc", "7.50", true},
		{"0", "", false},
		{"-20", "", false},
		{"abc", "", false},
		{"1e999", "", false},
		{"0.004", "", false},
		{"+5", "5.00", true},
		{"2.5e2", "250.00", true},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseLegacyBalance(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got.Fixed(), tc.in)
		}
	}
}

func TestSaveIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	kv.failSet[KeyBudgets] = true
	kv.failSet[KeyCategories] = true

	failures := newAdapter(kv).Save(ctx, store.DefaultSnapshot())
	assert.Equal(t, 2, failures)
	assert.Len(t, kv.sets, len(Keys), "every key attempted")

	raw, err := kv.Get(ctx, KeyExpenses)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))
	_, err = kv.Get(ctx, KeyBudgets)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
