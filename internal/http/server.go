package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensetrack/internal/app"
	"expensetrack/internal/cache"
	applog "expensetrack/internal/log"
	"expensetrack/internal/metrics"
	"expensetrack/internal/middleware/ratelimit"
	"expensetrack/internal/middleware/security"
)

// Server is the JSON API over one App.
type Server struct {
	http.Server
	app      *app.App
	logger   *applog.Logger
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	detector *security.Detector

	cacheStats func() cache.Stats

	agentRate    int
	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *applog.Logger) Option       { return func(s *Server) { s.logger = l } }
func WithMetrics(m *metrics.Metrics) Option     { return func(s *Server) { s.metrics = m } }
func WithDetector(d *security.Detector) Option { return func(s *Server) { s.detector = d } }

// WithCacheStats reports storage cache counters on the health endpoint.
func WithCacheStats(stats func() cache.Stats) Option {
	return func(s *Server) { s.cacheStats = stats }
}

// WithAgentRateLimit caps report and chat requests per client per minute.
func WithAgentRateLimit(perMinute int) Option {
	return func(s *Server) { s.agentRate = perMinute }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Shutdown releases the rate limiter.
func NewServer(addr string, a *app.App, opts ...Option) *Server {
	s := &Server{app: a, agentRate: 20}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.FromContext(context.Background())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	if s.detector == nil {
		s.detector = security.NewDetector()
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{Requests: s.agentRate, Window: time.Minute})

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.detector.Middleware(s.onSuspicious)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.AccessLog(s.detector.ExtractClientIP)(handler)
	handler = applog.RequestIDMiddleware(handler)
	handler = applog.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	handle := func(pattern string, h http.HandlerFunc, mw ...func(http.Handler) http.Handler) {
		var handler http.Handler = h
		for _, m := range mw {
			handler = m(handler)
		}
		mux.Handle(pattern, s.instrument(pattern, handler))
	}

	handle("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	handle("GET /api/state", s.handleState)
	handle("GET /api/summary", s.handleSummary)

	handle("POST /api/expenses", s.handleCreateExpense)
	handle("PUT /api/expenses/{id}", s.handleUpdateExpense)
	handle("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	handle("POST /api/topups", s.handleCreateTopUp)

	handle("POST /api/borrows", s.handleCreateBorrow)
	handle("POST /api/borrows/{id}/settle", s.handleSettleBorrow)
	handle("DELETE /api/borrows/{id}", s.handleDeleteBorrow)

	handle("POST /api/categories", s.handleCreateCategory)
	handle("DELETE /api/categories/{name}", s.handleDeleteCategory)
	handle("POST /api/presets", s.handleCreatePreset)
	handle("DELETE /api/presets/{name}", s.handleDeletePreset)
	handle("PUT /api/budgets/{category}", s.handleSetBudget)

	handle("PUT /api/sample-mode", s.handleSampleMode)

	handle("POST /api/reports", s.handleGenerateReport, limited)
	handle("GET /api/reports/latest", s.handleLatestReport)
	handle("POST /api/chat", s.handleAsk, limited)
	handle("GET /api/chat", s.handleChatHistory)
}

// instrument counts responses per route pattern.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.metrics.HTTPRequest(pattern, r.Method, rw.status)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

func (s *Server) onSuspicious(r *http.Request, reason string) {
	s.metrics.SuspiciousRequest()
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
		"reason", reason,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
}

type healthResponse struct {
	Status string       `json:"status"`
	Mode   string       `json:"mode"`
	Cache  *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Mode: s.app.Mode().Name()}
	if s.cacheStats != nil {
		stats := s.cacheStats()
		resp.Cache = &stats
	}
	NewJSONResponse().Body(resp).Write(w)
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the rate limiter. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
