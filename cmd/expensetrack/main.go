package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetrack/internal/app"
	"expensetrack/internal/backend"
	"expensetrack/internal/cache"
	"expensetrack/internal/cli"
	apphttp "expensetrack/internal/http"
	applog "expensetrack/internal/log"
	"expensetrack/internal/metrics"
	"expensetrack/internal/persistence"
	"expensetrack/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting expensetrack", applog.FieldOperation, applog.OpStartup)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.StartCleanup(time.Minute)

	ctx := context.Background()
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger, caches)

	storageRes, err := factory.CreateStorage(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// The agent is optional: without one the ledger still works and agent
	// routes answer 503.
	appOpts := []app.Option{
		app.WithLogger(logger.WithComponent(applog.ComponentApp).Logger),
		app.WithMetrics(m),
		app.WithAgentTimeout(cfg.AgentTimeout),
	}
	agentRes, err := factory.CreateAgent(ctx, backendCfg)
	if err != nil {
		logger.Warn("Agent unavailable, reports and chat are disabled",
			applog.FieldTransport, cfg.AgentBackend,
			applog.FieldError, err)
	} else {
		appOpts = append(appOpts, app.WithAgent(agentRes.Client, cfg.AgentID))
	}

	adapter := persistence.New(storageRes.KV,
		persistence.WithLogger(logger.WithComponent(applog.ComponentStorage).Logger),
		persistence.WithMetrics(m))
	ledger := app.New(adapter, appOpts...)
	ledger.Load(ctx)

	srvOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithMetrics(m),
		apphttp.WithAgentRateLimit(cfg.AgentRateLimit),
	}
	if cached, ok := storageRes.KV.(*storage.Cached); ok {
		srvOpts = append(srvOpts, apphttp.WithCacheStats(cached.Stats))
	}
	srv := apphttp.NewServer(":"+cfg.Port, ledger, srvOpts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.AgentTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if agentRes != nil && agentRes.Cleanup != nil {
			if err := agentRes.Cleanup(); err != nil {
				logger.Warn("Agent cleanup failed", applog.FieldError, err)
			}
		}
		if storageRes.Cleanup != nil {
			if err := storageRes.Cleanup(); err != nil {
				logger.Warn("Storage cleanup failed", applog.FieldError, err)
			}
		}
	})

	logger.Info("Listening",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"agent_backend", cfg.AgentBackend,
		applog.FieldMode, ledger.Mode().Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
}
