package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"stakehub/database"
	"stakehub/domain/entities"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32 // 0 keeps the pgx default

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated)
	NATSEnabled bool

	// Redis configuration, empty disables the sweep leader lock
	RedisURL string

	// Accrual sweep configuration
	SweepHour int // Hour in UTC when the daily stake sweep runs (0-23)

	// Withdrawal bounds
	WithdrawalMin decimal.Decimal
	WithdrawalMax decimal.Decimal

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// RateSchedule returns the rate and threshold schedule the engines run with.
// A fresh copy is returned each call so callers cannot mutate shared state.
func (c *Config) RateSchedule() entities.RateSchedule {
	return entities.DefaultRateSchedule()
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		NATSEnabled: getEnvWithDefault("NATS_ENABLED", "true") == "true",

		RedisURL: os.Getenv("REDIS_URL"),

		SweepHour: 0,

		WithdrawalMin: decimal.NewFromInt(10),
		WithdrawalMax: decimal.NewFromInt(50000),

		OTelEnabled:              getEnvWithDefault("OTEL_ENABLED", "false") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "stakehub"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelExportIntervalMillis: 60000,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if hour := os.Getenv("SWEEP_HOUR"); hour != "" {
		parsed, err := strconv.Atoi(hour)
		if err != nil || parsed < 0 || parsed > 23 {
			return nil, fmt.Errorf("SWEEP_HOUR must be an integer between 0 and 23, got %q", hour)
		}
		config.SweepHour = parsed
	}
	if maxConns := os.Getenv("DATABASE_MAX_CONNS"); maxConns != "" {
		parsed, err := strconv.ParseInt(maxConns, 10, 32)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("DATABASE_MAX_CONNS must be a positive integer, got %q", maxConns)
		}
		config.DatabaseMaxConns = int32(parsed)
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MILLIS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}
	if minAmount := os.Getenv("WITHDRAWAL_MIN"); minAmount != "" {
		parsed, err := decimal.NewFromString(minAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid WITHDRAWAL_MIN: %w", err)
		}
		config.WithdrawalMin = parsed
	}
	if maxAmount := os.Getenv("WITHDRAWAL_MAX"); maxAmount != "" {
		parsed, err := decimal.NewFromString(maxAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid WITHDRAWAL_MAX: %w", err)
		}
		config.WithdrawalMax = parsed
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.WithdrawalMin.GreaterThan(config.WithdrawalMax) {
			return nil, fmt.Errorf("WITHDRAWAL_MIN (%s) exceeds WITHDRAWAL_MAX (%s)", config.WithdrawalMin, config.WithdrawalMax)
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:      "test",
		NATSEnabled:      false,
		SweepHour:        0,
		WithdrawalMin:    decimal.NewFromInt(10),
		WithdrawalMax:    decimal.NewFromInt(50000),
		OTelExporterType: "none",
		LogLevel:         "debug",
	}
}
