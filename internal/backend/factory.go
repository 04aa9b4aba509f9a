package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expensetrack/internal/agent"
	"expensetrack/internal/amqp"
	"expensetrack/internal/cache"
	"expensetrack/internal/storage"
	"expensetrack/internal/storage/memory"
	"expensetrack/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	caches *cache.Manager
}

// NewFactory creates a new backend factory. Storage caches are registered
// with caches when it is non-nil.
func NewFactory(logger *slog.Logger, caches *cache.Manager) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		caches: caches,
	}
}

// CreateStorage implements Factory.CreateStorage
func (f *DefaultFactory) CreateStorage(ctx context.Context, config Config) (*StorageResult, error) {
	if !config.Storage.IsValid() {
		return nil, fmt.Errorf("invalid storage type: %s", config.Storage)
	}

	var (
		kv      storage.KV
		cleanup CleanupFunc
	)
	switch config.Storage {
	case SQLiteStorage:
		store, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		kv, cleanup = store, store.Close
		f.logger.Info("Initialized SQLite storage", "db_path", config.SQLiteDBPath)
	case MemoryStorage:
		if config.SeedDir != "" {
			kv = memory.NewFromDir(config.SeedDir)
		} else {
			kv = memory.New()
		}
		f.logger.Info("Initialized memory storage", "seed_dir", config.SeedDir)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage)
	}

	if config.CacheSize > 0 {
		lru := cache.NewLRUCache[[]byte](config.CacheSize, config.CacheTTL)
		if f.caches != nil {
			f.caches.Register("storage", lru)
		}
		kv = storage.NewCached(kv, lru)
		f.logger.Info("Enabled storage cache", "size", config.CacheSize, "ttl", config.CacheTTL)
	}

	return &StorageResult{KV: kv, Cleanup: cleanup}, nil
}

// CreateAgent implements Factory.CreateAgent
func (f *DefaultFactory) CreateAgent(ctx context.Context, config Config) (*AgentResult, error) {
	if !config.Agent.IsValid() {
		return nil, fmt.Errorf("invalid agent type: %s", config.Agent)
	}

	switch config.Agent {
	case HTTPAgent:
		f.logger.Info("Initialized HTTP agent transport", "endpoint", config.AgentEndpoint)
		return &AgentResult{Client: agent.NewHTTPClient(config.AgentEndpoint, config.AgentTimeout)}, nil

	case GeminiAgent:
		client, err := agent.NewGeminiClient(ctx, config.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		f.logger.Info("Initialized Gemini agent transport")
		return &AgentResult{Client: client}, nil

	case AMQPAgent:
		rpc, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP agent transport",
			"exchange", config.AMQPExchange,
			"queue", config.AgentQueue)
		return &AgentResult{
			Client:  agent.NewAMQPClient(rpc, config.AgentQueue),
			Cleanup: rpc.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported agent type: %s", config.Agent)
	}
}
