package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RedisConfig contains Redis settings for the session/context store
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for the Redis client
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig contains PostgreSQL settings for the knowledge store
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DSN returns the pgx connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// LLMConfig contains generation backend settings
type LLMConfig struct {
	Endpoint        string  `mapstructure:"endpoint"`         // chat completions URL
	EmbedEndpoint   string  `mapstructure:"embed_endpoint"`   // embeddings URL
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`            // conversational model
	ExtractionModel string  `mapstructure:"extraction_model"` // structured extraction model
	EmbeddingModel  string  `mapstructure:"embedding_model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	TimeoutMS       int     `mapstructure:"timeout_ms"` // generation timeout
}

// Timeout returns the generation timeout as a duration
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// BrokerConfig contains brokerage gateway settings
type BrokerConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	DataURL   string `mapstructure:"data_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	// Rate limiting and circuit breaking for the broker API
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BreakerMinReqs    uint32  `mapstructure:"breaker_min_requests"`
	BreakerRatio      float64 `mapstructure:"breaker_failure_ratio"`
	BreakerOpenSecs   int     `mapstructure:"breaker_open_seconds"`
}

// Timeout returns the broker call timeout as a duration
func (c BrokerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// GatewayConfig contains the portfolio/ledger gateway settings
type GatewayConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout returns the gateway call timeout as a duration
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// AdvisorConfig contains decision-pipeline settings
type AdvisorConfig struct {
	// DefaultSymbol is the broad-market proxy used when no ticker can be
	// resolved from the message. Deployment-chosen, not a business rule.
	DefaultSymbol    string `mapstructure:"default_symbol"`
	ContextTTLSecs   int    `mapstructure:"context_ttl_seconds"`
	SessionTTLHours  int    `mapstructure:"session_ttl_hours"`
	HistoryTurns     int    `mapstructure:"history_turns"`
	TransactionLimit int    `mapstructure:"transaction_limit"`
	KnowledgeTopK    int    `mapstructure:"knowledge_top_k"`
}

// ContextTTL returns the context cache TTL as a duration
func (c AdvisorConfig) ContextTTL() time.Duration {
	return time.Duration(c.ContextTTLSecs) * time.Second
}

// SessionTTL returns the session expiry as a duration
func (c AdvisorConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("IRIS")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "iris-advisor")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "iris")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// LLM defaults
	v.SetDefault("llm.endpoint", "http://localhost:11434/v1/chat/completions")
	v.SetDefault("llm.embed_endpoint", "http://localhost:11434/v1/embeddings")
	v.SetDefault("llm.model", "qwen2.5:14b")
	v.SetDefault("llm.extraction_model", "qwen2.5:14b")
	v.SetDefault("llm.embedding_model", "all-minilm")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout_ms", 60000)

	// Broker defaults
	v.SetDefault("broker.base_url", "https://broker-api.sandbox.alpaca.markets/v1")
	v.SetDefault("broker.data_url", "https://data.alpaca.markets/v2")
	v.SetDefault("broker.timeout_ms", 10000)
	v.SetDefault("broker.requests_per_second", 3.0)
	v.SetDefault("broker.breaker_min_requests", 5)
	v.SetDefault("broker.breaker_failure_ratio", 0.6)
	v.SetDefault("broker.breaker_open_seconds", 30)

	// Gateway defaults
	v.SetDefault("gateway.base_url", "http://iris-api-gateway:8080")
	v.SetDefault("gateway.timeout_ms", 5000)

	// Advisor defaults
	v.SetDefault("advisor.default_symbol", "SPY")
	v.SetDefault("advisor.context_ttl_seconds", 300)
	v.SetDefault("advisor.session_ttl_hours", 168)
	v.SetDefault("advisor.history_turns", 10)
	v.SetDefault("advisor.transaction_limit", 1000)
	v.SetDefault("advisor.knowledge_top_k", 2)
}

// Validate checks configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %f", c.LLM.Temperature)
	}
	if c.Advisor.ContextTTLSecs <= 0 {
		return fmt.Errorf("context TTL must be positive, got %d", c.Advisor.ContextTTLSecs)
	}
	if c.Advisor.HistoryTurns <= 0 {
		return fmt.Errorf("history turns must be positive, got %d", c.Advisor.HistoryTurns)
	}
	if c.Advisor.TransactionLimit <= 0 {
		return fmt.Errorf("transaction limit must be positive, got %d", c.Advisor.TransactionLimit)
	}
	if c.Advisor.KnowledgeTopK <= 0 {
		return fmt.Errorf("knowledge top-k must be positive, got %d", c.Advisor.KnowledgeTopK)
	}
	return nil
}
