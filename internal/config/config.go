// Package config assembles the engine's typed configuration from
// environment variables, following the teacher's getEnvOrDefault family
// (config/config.go) rather than a config-file format.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration object, wired at Supervisor startup.
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Logging    LoggingConfig
	Binance    BinanceConfig
	Vault      VaultConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Reconcile  ReconcileConfig
	Strategy   StrategyConfig
	MarketData MarketDataConfig
	OpenAIKey  string
}

// DatabaseConfig holds Postgres connection settings (spec.md §6.3).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ServerConfig holds the Gateway's HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	ProductionMode  bool
	ShutdownTimeout time.Duration
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level       string
	Output      string
	JSONFormat  bool
	IncludeFile bool
}

// BinanceConfig holds the Binance REST endpoints (credentials come from
// Vault, never the environment — see internal/vaultcreds).
type BinanceConfig struct {
	MainnetBaseURL string
	TestnetBaseURL string
	MockMode       bool
}

// VaultConfig configures the credential store.
type VaultConfig struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string
	SecretPath string
}

// RedisConfig configures the optional position-read accelerator.
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
}

// StorageConfig configures the JSON file mirror.
type StorageConfig struct {
	Dir string
}

// ReconcileConfig configures periodic reconciliation.
type ReconcileConfig struct {
	IntervalMinutes int
	GhostThresholdTestnet float64
	GhostThresholdMainnet float64
}

// StrategyConfig configures the periodic live-KPI refresh.
type StrategyConfig struct {
	RefreshIntervalMinutes int
	BatchSize              int
	InterBatchPause        time.Duration
}

// MarketDataConfig configures cache cleanup cadence.
type MarketDataConfig struct {
	KlineCacheCleanupInterval time.Duration
}

// Load builds a Config from the environment, matching the teacher's
// applyEnvOverrides pattern (config/config.go), first loading a local
// .env file if present (ignored when absent, matching the standard
// godotenv idiom — deployments set real env vars instead).
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		Name:     getEnvOrDefault("DB_NAME", "sentinel"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	cfg.Server = ServerConfig{
		Host:            getEnvOrDefault("WEB_HOST", "0.0.0.0"),
		Port:            getEnvIntOrDefault("WEB_PORT", 8088),
		ProductionMode:  getEnvOrDefault("PRODUCTION_MODE", "false") == "true",
		ShutdownTimeout: getEnvDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:       getEnvOrDefault("LOG_LEVEL", "INFO"),
		Output:      getEnvOrDefault("LOG_OUTPUT", "stdout"),
		JSONFormat:  getEnvOrDefault("LOG_JSON", "true") == "true",
		IncludeFile: getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true",
	}

	cfg.Binance = BinanceConfig{
		MainnetBaseURL: getEnvOrDefault("BINANCE_BASE_URL", "https://api.binance.com"),
		TestnetBaseURL: getEnvOrDefault("BINANCE_TESTNET_BASE_URL", "https://testnet.binance.vision"),
		MockMode:       getEnvOrDefault("MOCK_MODE", "false") == "true",
	}

	cfg.Vault = VaultConfig{
		Enabled:    getEnvOrDefault("VAULT_ENABLED", "false") == "true",
		Address:    getEnvOrDefault("VAULT_ADDR", "http://localhost:8200"),
		Token:      getEnvOrDefault("VAULT_TOKEN", ""),
		MountPath:  getEnvOrDefault("VAULT_MOUNT_PATH", "secret"),
		SecretPath: getEnvOrDefault("VAULT_SECRET_PATH", "sentinel/binance-keys"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  getEnvOrDefault("REDIS_ENABLED", "false") == "true",
		Address:  getEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       getEnvIntOrDefault("REDIS_DB", 0),
		PoolSize: getEnvIntOrDefault("REDIS_POOL_SIZE", 10),
	}

	cfg.Storage = StorageConfig{
		Dir: getEnvOrDefault("STORAGE_DIR", "storage"),
	}

	cfg.Reconcile = ReconcileConfig{
		IntervalMinutes:       getEnvIntOrDefault("RECONCILE_INTERVAL_MINUTES", 15),
		GhostThresholdTestnet: getEnvFloatOrDefault("GHOST_THRESHOLD_TESTNET", 0.01),
		GhostThresholdMainnet: getEnvFloatOrDefault("GHOST_THRESHOLD_MAINNET", 0.05),
	}

	cfg.Strategy = StrategyConfig{
		RefreshIntervalMinutes: getEnvIntOrDefault("STRATEGY_REFRESH_INTERVAL_MINUTES", 5),
		BatchSize:              getEnvIntOrDefault("STRATEGY_REFRESH_BATCH_SIZE", 10),
		InterBatchPause:        getEnvDurationOrDefault("STRATEGY_REFRESH_BATCH_PAUSE", 100*time.Millisecond),
	}

	cfg.MarketData = MarketDataConfig{
		KlineCacheCleanupInterval: getEnvDurationOrDefault("KLINE_CACHE_CLEANUP_INTERVAL", 2*time.Minute),
	}

	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
