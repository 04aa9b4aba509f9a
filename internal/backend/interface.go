package backend

import (
	"context"
	"time"

	"expensetrack/internal/agent"
	"expensetrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StorageResult contains the key-value store and optional cleanup function
type StorageResult struct {
	KV      storage.KV
	Cleanup CleanupFunc
}

// AgentResult contains the agent transport and optional cleanup function
type AgentResult struct {
	Client  agent.Client
	Cleanup CleanupFunc
}

// Factory creates storage and agent backends based on configuration
type Factory interface {
	CreateStorage(ctx context.Context, config Config) (*StorageResult, error)
	CreateAgent(ctx context.Context, config Config) (*AgentResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Storage StorageType
	Agent   AgentType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	SeedDir string

	// Read cache in front of storage; zero size disables it
	CacheSize int
	CacheTTL  time.Duration

	// Agent transports
	AgentEndpoint string
	AgentTimeout  time.Duration
	GeminiAPIKey  string
	AMQPURL       string
	AMQPExchange  string
	AgentQueue    string
}

// StorageType represents the type of key-value store
type StorageType string

const (
	SQLiteStorage StorageType = "sqlite"
	MemoryStorage StorageType = "memory"
)

// String implements fmt.Stringer
func (st StorageType) String() string {
	return string(st)
}

// IsValid returns true if the storage type is valid
func (st StorageType) IsValid() bool {
	switch st {
	case SQLiteStorage, MemoryStorage:
		return true
	default:
		return false
	}
}

// AgentType represents the agent transport
type AgentType string

const (
	HTTPAgent   AgentType = "http"
	GeminiAgent AgentType = "gemini"
	AMQPAgent   AgentType = "amqp"
)

func (at AgentType) String() string {
	return string(at)
}

func (at AgentType) IsValid() bool {
	switch at {
	case HTTPAgent, GeminiAgent, AMQPAgent:
		return true
	default:
		return false
	}
}
