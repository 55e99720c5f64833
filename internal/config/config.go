package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultProgramID is the Saros DLMM program on mainnet
const DefaultProgramID = "1qbkdrr3z4ryLA7pZykqxvxWPoeifcVKo6ZG9CfkvVE"

// Config holds all configuration for lbscout
type Config struct {
	// RPC configuration
	RPCEndpoints []string
	RPCRateLimit float64
	RPCBurst     int
	ProgramID    string

	// Cache backend configuration
	CacheBackend string
	CachePath    string
	RedisURL     string

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// Scan configuration
	ScanBatchSize      int
	ScanBatchDelay     time.Duration
	ScanMaxAttempts    int
	ScanRetryDelay     time.Duration
	DustThreshold      decimal.Decimal
	EnrichConcurrency  int
	DirectoryBatchSize int

	// Logging configuration
	LogLevel string

	// Metrics configuration
	MetricsPort string
}

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	cfg := Config{
		ProgramID:    getEnv("PROGRAM_ID", DefaultProgramID),
		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", BackendFile)),
		CachePath:    getEnv("CACHE_PATH", defaultCachePath()),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBUser:       getEnv("DB_USER", ""),
		DBPassword:   getEnv("DB_PASSWORD", ""),
		DBName:       getEnv("DB_NAME", ""),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBSSLMode:    getEnv("DB_SSL_MODE", "disable"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		MetricsPort:  getEnv("METRICS_PORT", ""),
	}

	// Parse RPC endpoints
	rpcEndpointsStr := getEnv("RPC_ENDPOINTS", "")
	if rpcEndpointsStr == "" {
		return cfg, fmt.Errorf("RPC_ENDPOINTS environment variable is required")
	}
	for _, endpoint := range strings.Split(rpcEndpointsStr, ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			cfg.RPCEndpoints = append(cfg.RPCEndpoints, endpoint)
		}
	}

	var err error
	cfg.RPCRateLimit, err = parseFloatEnv("RPC_RATE_LIMIT", 2.0)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_RATE_LIMIT: %w", err)
	}

	cfg.RPCBurst, err = parseIntEnv("RPC_BURST", 5)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_BURST: %w", err)
	}

	// Parse scan configuration
	cfg.ScanBatchSize, err = parseIntEnv("SCAN_BATCH_SIZE", 5)
	if err != nil {
		return cfg, fmt.Errorf("invalid SCAN_BATCH_SIZE: %w", err)
	}

	cfg.ScanBatchDelay, err = parseDurationMsEnv("SCAN_BATCH_DELAY", 0)
	if err != nil {
		return cfg, fmt.Errorf("invalid SCAN_BATCH_DELAY: %w", err)
	}

	cfg.ScanMaxAttempts, err = parseIntEnv("SCAN_MAX_ATTEMPTS", 3)
	if err != nil {
		return cfg, fmt.Errorf("invalid SCAN_MAX_ATTEMPTS: %w", err)
	}

	cfg.ScanRetryDelay, err = parseDurationMsEnv("SCAN_RETRY_DELAY", 2500*time.Millisecond)
	if err != nil {
		return cfg, fmt.Errorf("invalid SCAN_RETRY_DELAY: %w", err)
	}

	cfg.DustThreshold, err = decimal.NewFromString(getEnv("DUST_THRESHOLD", "1"))
	if err != nil {
		return cfg, fmt.Errorf("invalid DUST_THRESHOLD: %w", err)
	}

	cfg.EnrichConcurrency, err = parseIntEnv("ENRICH_CONCURRENCY", 8)
	if err != nil {
		return cfg, fmt.Errorf("invalid ENRICH_CONCURRENCY: %w", err)
	}

	cfg.DirectoryBatchSize, err = parseIntEnv("DIRECTORY_BATCH_SIZE", 10)
	if err != nil {
		return cfg, fmt.Errorf("invalid DIRECTORY_BATCH_SIZE: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid
func (c Config) validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}

	if c.RPCRateLimit <= 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must be positive")
	}

	if c.RPCBurst < 1 {
		return fmt.Errorf("RPC_BURST must be at least 1")
	}

	if c.ProgramID == "" {
		return fmt.Errorf("PROGRAM_ID is required")
	}

	switch c.CacheBackend {
	case BackendFile:
		if c.CachePath == "" {
			return fmt.Errorf("CACHE_PATH is required for the file cache backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	case BackendPostgres:
		if c.DBName == "" {
			return fmt.Errorf("DB_NAME is required for the postgres cache backend")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND: %s (must be one of: file, memory, redis, postgres)", c.CacheBackend)
	}

	if c.ScanBatchSize < 1 || c.ScanBatchSize > 50 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be between 1 and 50")
	}

	if c.ScanBatchDelay < 0 {
		return fmt.Errorf("SCAN_BATCH_DELAY must not be negative")
	}

	if c.ScanMaxAttempts < 1 {
		return fmt.Errorf("SCAN_MAX_ATTEMPTS must be at least 1")
	}

	if c.ScanRetryDelay < 0 {
		return fmt.Errorf("SCAN_RETRY_DELAY must not be negative")
	}

	if c.DustThreshold.IsNegative() {
		return fmt.Errorf("DUST_THRESHOLD must not be negative")
	}

	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1")
	}

	if c.DirectoryBatchSize < 1 {
		return fmt.Errorf("DIRECTORY_BATCH_SIZE must be at least 1")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// Persistent reports whether cached state outlives the process
func (c Config) Persistent() bool {
	return c.CacheBackend != BackendMemory
}

// defaultCachePath places the cache file in the user's cache directory
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".lbscout", "cache.json")
	}
	return filepath.Join(dir, "lbscout", "cache.json")
}

// DSN builds the Postgres connection string from the DB_* settings
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(str, 64)
}

// parseDurationMsEnv reads a duration given in milliseconds
func parseDurationMsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	ms, err := strconv.Atoi(str)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
