package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration, loaded once at start-up and
// passed by reference to every component that needs it.
type Config struct {
	Port    int
	DevMode bool

	DatabasePath string

	// Broker (KIS-style OAuth client-credentials)
	BrokerBaseURL      string
	BrokerIsSimulated  bool
	BrokerAppKey       string
	BrokerAppSecret    string
	BrokerAccountNo    string // 10 digits: CANO(8) + product code(2)
	BrokerWSBaseURL    string
	TokenCachePath     string
	StrategyStatePath  string
	TickerSnapshotPath string

	// Backup (R2/S3-compatible)
	BackupBucket    string
	BackupRegion    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string

	// Notifier
	WebhookURL string

	LogLevel string
}

// Load reads configuration from environment variables, falling back to a
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnvAsInt("PORT", 8090),
		DevMode: getEnvAsBool("DEV_MODE", false),

		DatabasePath: getEnv("DATABASE_PATH", "./data/trading.db"),

		BrokerBaseURL:     getEnv("BROKER_BASE_URL", "https://openapivts.koreainvestment.com:29443"),
		BrokerIsSimulated: getEnvAsBool("BROKER_IS_SIMULATED", true),
		BrokerAppKey:      getEnv("BROKER_APP_KEY", ""),
		BrokerAppSecret:   getEnv("BROKER_APP_SECRET", ""),
		BrokerAccountNo:   getEnv("BROKER_ACCOUNT_NO", ""),
		BrokerWSBaseURL:   getEnv("BROKER_WS_BASE_URL", "ws://ops.koreainvestment.com:31000"),

		TokenCachePath:     getEnv("TOKEN_CACHE_PATH", "./data/token_cache.json"),
		StrategyStatePath:  getEnv("STRATEGY_STATE_PATH", "./data/strategy_state.json"),
		TickerSnapshotPath: getEnv("TICKER_SNAPSHOT_PATH", "./data/ticker_state.msgpack"),

		BackupBucket:    getEnv("BACKUP_BUCKET", ""),
		BackupRegion:    getEnv("BACKUP_REGION", "auto"),
		BackupEndpoint:  getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_SECRET_KEY", ""),

		WebhookURL: getEnv("NOTIFIER_WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration. Broker credentials are
// intentionally optional here (SPEC_FULL's "fatal config" error class):
// the engine should still boot with read-only paths working when they are
// absent, surfacing structured failures only when an order is attempted.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
