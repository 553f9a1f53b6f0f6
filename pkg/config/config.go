package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Refinement configuration
	Refinement RefinementConfig `mapstructure:"refinement"`

	// Validation thresholds
	Validation ValidationConfig `mapstructure:"validation"`

	// Advice configuration
	Advice AdviceConfig `mapstructure:"advice"`

	// History (update log) configuration
	History HistoryConfig `mapstructure:"history"`

	// Persistence configuration
	Persist PersistConfig `mapstructure:"persist"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// RefinementConfig bounds the autopoietic loop
type RefinementConfig struct {
	MaxRefinements      int `mapstructure:"max_refinements"`
	MaxCycles           int `mapstructure:"max_cycles"`
	BridgeEdgesPerCycle int `mapstructure:"bridge_edges_per_cycle"`
}

// ValidationConfig holds the invariant thresholds
type ValidationConfig struct {
	TargetEta      float64 `mapstructure:"target_eta"`
	MaxIsolation   float64 `mapstructure:"max_isolation"`
	MinClustering  float64 `mapstructure:"min_clustering"`
	GrowthExponent float64 `mapstructure:"growth_exponent"`
}

// AdviceConfig configures the gap-advice collaborator
type AdviceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // in seconds
}

// HistoryConfig configures the update log
type HistoryConfig struct {
	Path       string `mapstructure:"path"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`

	// WindowSeconds is the co-occurrence window for correlation learning.
	WindowSeconds int `mapstructure:"window_seconds"`
}

// PersistConfig configures graph snapshot persistence
type PersistConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Refinement defaults
	viper.SetDefault("refinement.max_refinements", 10)
	viper.SetDefault("refinement.max_cycles", 10)
	viper.SetDefault("refinement.bridge_edges_per_cycle", 5)

	// Validation defaults
	viper.SetDefault("validation.target_eta", 4.0)
	viper.SetDefault("validation.max_isolation", 0.2)
	viper.SetDefault("validation.min_clustering", 0.3)
	viper.SetDefault("validation.growth_exponent", 1.5)

	// Advice defaults
	viper.SetDefault("advice.enabled", false)
	viper.SetDefault("advice.model", "gpt-4o-mini")
	viper.SetDefault("advice.timeout", 30)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// History defaults
	viper.SetDefault("history.in_memory", false)
	viper.SetDefault("history.sync_writes", false)
	viper.SetDefault("history.window_seconds", 3600)

	// Persistence defaults
	viper.SetDefault("persist.enabled", false)
	viper.SetDefault("persist.uri", "bolt://localhost:7687")
	viper.SetDefault("persist.database", "neo4j")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("history.path", fmt.Sprintf("%s/.strata/updates", home))
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.strata/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Advice.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Advice.BaseURL = baseURL
	}

	// Persistence credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Persist.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Persist.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Persist.Password = pass
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// History settings
	if path := os.Getenv("STRATA_HISTORY_PATH"); path != "" {
		config.History.Path = path
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
