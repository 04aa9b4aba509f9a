package backend

import (
	"fmt"

	"expensetrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Storage: StorageType(appConfig.DataBackend),
		Agent:   AgentType(appConfig.AgentBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedDir:      appConfig.SeedDir,

		CacheSize: appConfig.CacheSize,
		CacheTTL:  appConfig.CacheTTL,

		AgentEndpoint: appConfig.AgentEndpoint,
		AgentTimeout:  appConfig.AgentTimeout,
		GeminiAPIKey:  appConfig.GeminiAPIKey,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AgentQueue:    appConfig.AgentQueue,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Storage.IsValid() {
		return fmt.Errorf("invalid storage type: %s", c.Storage)
	}
	if !c.Agent.IsValid() {
		return fmt.Errorf("invalid agent type: %s", c.Agent)
	}

	if c.Storage == SQLiteStorage && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite storage")
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when caching is enabled")
	}

	switch c.Agent {
	case HTTPAgent:
		if c.AgentEndpoint == "" {
			return fmt.Errorf("agent endpoint is required for http agent")
		}
	case GeminiAgent:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("Gemini API key is required for gemini agent")
		}
	case AMQPAgent:
		if c.AMQPURL == "" || c.AMQPExchange == "" {
			return fmt.Errorf("AMQP URL and exchange are required for amqp agent")
		}
	}

	return nil
}
