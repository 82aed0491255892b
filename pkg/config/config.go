package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Engine accounts
	AdminAccount    string
	CustodyAccount  string
	TreasuryAccount string
	PlatformAccount string
	RebatePool      string
	RecoveryAccount string

	// Relayers permitted to trigger automatic settlement
	RelayerAllowlist []string

	// Settlement
	SettlementLockPeriod time.Duration

	// Events
	EventBufferSize int

	// Read-side cache
	CacheTTL      time.Duration
	CacheMaxItems int64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Engine accounts
		AdminAccount:    os.Getenv("ADMIN_ACCOUNT"),
		CustodyAccount:  getEnvOrDefault("CUSTODY_ACCOUNT", "custody"),
		TreasuryAccount: getEnvOrDefault("TREASURY_ACCOUNT", "treasury"),
		PlatformAccount: getEnvOrDefault("PLATFORM_ACCOUNT", "platform"),
		RebatePool:      getEnvOrDefault("REBATE_POOL_ACCOUNT", "rebate-pool"),
		RecoveryAccount: getEnvOrDefault("RECOVERY_ACCOUNT", "recovery"),

		RelayerAllowlist: getListOrDefault("RELAYER_ALLOWLIST", nil),

		// Settlement defaults
		SettlementLockPeriod: getDurationOrDefault("SETTLEMENT_LOCK_PERIOD", 72*time.Hour),

		// Event defaults
		EventBufferSize: getIntOrDefault("EVENT_BUFFER_SIZE", 1024),

		// Cache defaults
		CacheTTL:      getDurationOrDefault("CACHE_TTL", 5*time.Second),
		CacheMaxItems: int64(getIntOrDefault("CACHE_MAX_ITEMS", 10000)),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "settle"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "settle"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "settle"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.AdminAccount == "" {
		return fmt.Errorf("ADMIN_ACCOUNT cannot be empty")
	}

	if c.CustodyAccount == "" {
		return fmt.Errorf("CUSTODY_ACCOUNT cannot be empty")
	}

	if c.TreasuryAccount == "" {
		return fmt.Errorf("TREASURY_ACCOUNT cannot be empty")
	}

	if c.SettlementLockPeriod < 0 {
		return fmt.Errorf("SETTLEMENT_LOCK_PERIOD cannot be negative, got %s", c.SettlementLockPeriod)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
