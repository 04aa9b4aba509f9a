package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetrack/internal/agent"
	"expensetrack/internal/app"
	"expensetrack/internal/cache"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/metrics"
	"expensetrack/internal/persistence"
	"expensetrack/internal/storage"
	"expensetrack/internal/storage/memory"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fakeAgent struct {
	result agent.Result
	err    error
}

func (f fakeAgent) Send(ctx context.Context, prompt, agentID string) (agent.Result, error) {
	return f.result, f.err
}

func success(result string) agent.Result {
	return agent.Result{
		Success:  true,
		Response: &agent.Response{Status: agent.StatusSuccess, Result: json.RawMessage(result)},
	}
}

type testServer struct {
	*Server
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, client agent.Client, opts ...Option) testServer {
	t.Helper()
	appOpts := []app.Option{app.WithClock(clock), app.WithIDs(sequentialIDs())}
	if client != nil {
		appOpts = append(appOpts, app.WithAgent(client, "tester"))
	}
	a := app.New(persistence.New(memory.New(), persistence.WithClock(clock)), appOpts...)
	a.Load(context.Background())

	m := metrics.New()
	logger := applog.New(applog.Config{Output: io.Discard})
	srv := NewServer(":0", a, append([]Option{WithMetrics(m), WithLogger(logger)}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, metrics: m}
}

func (s testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(applog.RequestIDHeader))
	assert.Equal(t, map[string]any{"status": "ok", "mode": "real"}, decode(t, rec))

	rec = srv.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `expensetrack_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(applog.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(applog.RequestIDHeader))
}

func TestHealthReportsCacheStats(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewCached(memory.New(), cache.NewLRUCache[[]byte](10, time.Minute))
	require.NoError(t, kv.Set(ctx, "k", []byte(`[]`)))
	_, err := kv.Get(ctx, "k")
	require.NoError(t, err)

	srv := newTestServer(t, nil, WithCacheStats(kv.Stats))
	rec := srv.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats, ok := decode(t, rec)["cache"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, 1.0, stats["size"])
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/expenses", `{"amount":"12.50","category":"Food","note":"Lunch"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "id-1", created["id"])
	assert.Equal(t, "2026-10-19", created["date"])
	assert.Equal(t, 12.5, created["amount"])

	rec = srv.do(http.MethodPut, "/api/expenses/id-1", `{"amount":20,"note":"Dinner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, 20.0, updated["amount"])
	assert.Equal(t, "Dinner", updated["note"])
	assert.Equal(t, "Food", updated["category"])

	rec = srv.do(http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20.0, decode(t, rec)["todayTotal"])

	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodDelete, "/api/expenses/id-1", "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodDelete, "/api/expenses/id-1", "").Code)

	var state app.State
	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/state", "").Body.Bytes(), &state))
	assert.Empty(t, state.Expenses)
	assert.Equal(t, "real", state.Mode)
}

func TestAmountsRoundedOnEntry(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/expenses", `{"amount":12.345,"category":"Food"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 12.35, decode(t, rec)["amount"])

	rec = srv.do(http.MethodPut, "/api/budgets/Food", `{"limit":"99.999"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 100.0, decode(t, rec)["limit"])
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"zero amount", http.MethodPost, "/api/expenses", `{"amount":0,"category":"Food"}`, http.StatusUnprocessableEntity},
		{"sub-cent amount", http.MethodPost, "/api/expenses", `{"amount":0.004,"category":"Food"}`, http.StatusUnprocessableEntity},
		{"sub-cent top-up", http.MethodPost, "/api/topups", `{"amount":"0.004"}`, http.StatusUnprocessableEntity},
		{"missing category", http.MethodPost, "/api/expenses", `{"amount":5}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/expenses", `{"amount":5,"category":"Food","date":"2026-13-01"}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/expenses", `{"amount":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/topups", ``, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/topups", `{"amount":5} {}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/expenses/nope", `{"amount":5}`, http.StatusNotFound},
		{"borrow type", http.MethodPost, "/api/borrows", `{"type":"gift","personName":"Sam","amount":5}`, http.StatusUnprocessableEntity},
		{"borrow person", http.MethodPost, "/api/borrows", `{"type":"lent","personName":" ","amount":5}`, http.StatusUnprocessableEntity},
		{"settle unknown", http.MethodPost, "/api/borrows/nope/settle", ``, http.StatusNotFound},
		{"duplicate category", http.MethodPost, "/api/categories", `{"name":"food"}`, http.StatusUnprocessableEntity},
		{"empty category", http.MethodPost, "/api/categories", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"unknown category", http.MethodDelete, "/api/categories/Nope", ``, http.StatusNotFound},
		{"bad confirm", http.MethodDelete, "/api/categories/Food?confirm=maybe", ``, http.StatusBadRequest},
		{"unknown preset", http.MethodDelete, "/api/presets/Nope", ``, http.StatusNotFound},
		{"unknown budget", http.MethodPut, "/api/budgets/Nope", `{"limit":10}`, http.StatusNotFound},
		{"negative budget", http.MethodPut, "/api/budgets/Food", `{"limit":-1}`, http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPatch, "/api/expenses", `{}`, http.StatusMethodNotAllowed},
	}
	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusMethodNotAllowed {
				assert.NotEmpty(t, decode(t, rec)["error"])
			}
		})
	}
}

func TestCategoryRemovalNeedsConfirmation(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/expenses", `{"amount":5,"category":"Food"}`).Code)

	rec := srv.do(http.MethodDelete, "/api/categories/Food", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	pending := decode(t, rec)
	assert.Equal(t, true, pending["pending"])
	assert.Equal(t, 1.0, pending["dependents"])

	rec = srv.do(http.MethodDelete, "/api/categories/Food?confirm=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["removed"])

	var state app.State
	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/state", "").Body.Bytes(), &state))
	assert.NotContains(t, state.Categories, "Food")
	require.Len(t, state.Expenses, 1)
	assert.Equal(t, "Food", state.Expenses[0].Category)
	for _, b := range state.Budgets {
		assert.NotEqual(t, "Food", b.Category)
	}
}

func TestCategoryAndBudget(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/categories", `{"name":"  Pets "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Pets", decode(t, rec)["name"])

	rec = srv.do(http.MethodPut, "/api/budgets/pets", `{"limit":"80"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	budget := decode(t, rec)
	assert.Equal(t, "Pets", budget["category"])
	assert.Equal(t, 80.0, budget["limit"])
}

func TestTopUpsAndPresets(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/topups", `{"amount":100,"date":"2026-10-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	topUp := decode(t, rec)
	assert.Equal(t, "2026-10-01", topUp["date"])
	assert.NotEmpty(t, topUp["note"])

	rec = srv.do(http.MethodPost, "/api/presets", `{"name":"Bonus"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodDelete, "/api/presets/Bonus", "").Code)

	rec = srv.do(http.MethodGet, "/api/summary", "")
	assert.Equal(t, 100.0, decode(t, rec)["balance"])
}

func TestBorrowLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/borrows", `{"type":"lent","personName":"Sam","amount":"40"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	assert.Equal(t, 40.0, decode(t, srv.do(http.MethodGet, "/api/summary", ""))["pendingLent"])

	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodPost, "/api/borrows/"+id+"/settle", "").Code)
	assert.Equal(t, 0.0, decode(t, srv.do(http.MethodGet, "/api/summary", ""))["pendingLent"])

	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodDelete, "/api/borrows/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodDelete, "/api/borrows/"+id, "").Code)
}

func TestSampleModeSwitch(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/expenses", `{"amount":5,"category":"Food"}`).Code)

	rec := srv.do(http.MethodPut, "/api/sample-mode", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"mode": "sample", "changed": true}, decode(t, rec))

	rec = srv.do(http.MethodPut, "/api/sample-mode", `{"enabled":true}`)
	assert.Equal(t, false, decode(t, rec)["changed"])

	var state app.State
	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/state", "").Body.Bytes(), &state))
	assert.Equal(t, "sample", state.Mode)
	assert.Greater(t, len(state.Expenses), 1)

	rec = srv.do(http.MethodPut, "/api/sample-mode", `{"enabled":false}`)
	assert.Equal(t, map[string]any{"mode": "real", "changed": true}, decode(t, rec))

	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/state", "").Body.Bytes(), &state))
	require.Len(t, state.Expenses, 1)
	assert.Equal(t, "id-1", state.Expenses[0].ID)
}

func TestReportAndChat(t *testing.T) {
	srv := newTestServer(t, fakeAgent{result: success(`{"summary":"Steady week.","chat_answer":"You spent 5.","total_spent":5}`)})

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/api/reports/latest", "").Code)

	rec := srv.do(http.MethodPost, "/api/reports", `{"period":"weekly"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report app.ReportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, core.NewDate(2026, 10, 12), report.Window.Start)
	require.NotNil(t, report.Reply.Report)
	assert.Equal(t, "Steady week.", *report.Reply.Report.Summary)

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/reports/latest", "").Code)

	rec = srv.do(http.MethodPost, "/api/chat", `{"question":"How much did I spend?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg := decode(t, rec)
	assert.Equal(t, app.RoleAgent, msg["role"])
	assert.Equal(t, "You spent 5.", msg["content"])

	var history []app.ChatMessage
	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/chat", "").Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, app.RoleUser, history[0].Role)
	assert.Equal(t, "How much did I spend?", history[0].Content)
}

func TestAgentErrors(t *testing.T) {
	tests := []struct {
		name      string
		client    agent.Client
		target    string
		body      string
		status    int
		message   string
		retryable bool
	}{
		{"no agent", nil, "/api/reports", `{"period":"daily"}`, http.StatusServiceUnavailable, "no agent configured", false},
		{"invalid period", fakeAgent{}, "/api/reports", `{"period":"yearly"}`, http.StatusUnprocessableEntity, "", false},
		{"empty question", fakeAgent{}, "/api/chat", `{"question":"   "}`, http.StatusUnprocessableEntity, "empty question", false},
		{"transport failure", fakeAgent{err: errors.New("connection refused")}, "/api/chat", `{"question":"hi"}`,
			http.StatusBadGateway, agent.NetworkErrorMessage, true},
		{"agent failure", fakeAgent{result: agent.Result{Error: "quota exceeded"}}, "/api/reports", `{"period":"monthly"}`,
			http.StatusBadGateway, "quota exceeded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.client)
			rec := srv.do(http.MethodPost, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.message != "" {
				assert.Contains(t, body.Error, tt.message)
			}
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestFailedChatIsRecorded(t *testing.T) {
	srv := newTestServer(t, fakeAgent{err: errors.New("timeout")})
	require.Equal(t, http.StatusBadGateway, srv.do(http.MethodPost, "/api/chat", `{"question":"hi"}`).Code)

	var history []app.ChatMessage
	require.NoError(t, json.Unmarshal(srv.do(http.MethodGet, "/api/chat", "").Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, agent.NetworkErrorMessage, history[1].Content)
}

func TestAgentRateLimit(t *testing.T) {
	srv := newTestServer(t, fakeAgent{result: success(`"ok"`)}, WithAgentRateLimit(1))

	require.Equal(t, http.StatusOK, srv.do(http.MethodPost, "/api/chat", `{"question":"one"}`).Code)
	rec := srv.do(http.MethodPost, "/api/chat", `{"question":"two"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, rec)["error"], "rate limit")

	// other routes are not limited
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/chat", "").Code)
	assert.Contains(t, srv.do(http.MethodGet, "/metrics", "").Body.String(), "expensetrack_http_rate_limited_total 1")
}

func TestSuspiciousRequestsAreCounted(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(http.MethodGet, "/api/state?file=../../etc/passwd", "")
	assert.Equal(t, int64(1), srv.detector.Flagged())
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", core.ErrDuplicate), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", core.ErrLimitExceeded), http.StatusUnprocessableEntity},
		{fmt.Errorf("expense %q: %w", "x", core.ErrNotFound), http.StatusNotFound},
		{app.ErrBusy, http.StatusConflict},
		{&requestError{errors.New("bad")}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			errorResponse(tt.err).Write(rec)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Lunch\twith Sam", sanitizeInput("  Lunch\twith\x00 Sam\x07 "))
	assert.Equal(t, "", sanitizeInput(" \x01 "))
}
