package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"RPC_ENDPOINTS",
	"RPC_RATE_LIMIT",
	"RPC_BURST",
	"PROGRAM_ID",
	"CACHE_BACKEND",
	"CACHE_PATH",
	"REDIS_URL",
	"DB_NAME",
	"SCAN_BATCH_SIZE",
	"SCAN_BATCH_DELAY",
	"SCAN_MAX_ATTEMPTS",
	"SCAN_RETRY_DELAY",
	"DUST_THRESHOLD",
	"ENRICH_CONCURRENCY",
	"DIRECTORY_BATCH_SIZE",
	"LOG_LEVEL",
	"METRICS_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults with only RPC endpoints", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com, https://rpc.ankr.com/solana")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"https://api.mainnet-beta.solana.com", "https://rpc.ankr.com/solana"}, cfg.RPCEndpoints)
		assert.Equal(t, DefaultProgramID, cfg.ProgramID)
		assert.Equal(t, BackendFile, cfg.CacheBackend)
		assert.True(t, cfg.Persistent())
		assert.True(t, strings.HasSuffix(cfg.CachePath, filepath.Join("lbscout", "cache.json")))
		assert.Equal(t, 5, cfg.ScanBatchSize)
		assert.Equal(t, time.Duration(0), cfg.ScanBatchDelay)
		assert.Equal(t, 3, cfg.ScanMaxAttempts)
		assert.Equal(t, 2500*time.Millisecond, cfg.ScanRetryDelay)
		assert.Equal(t, "1", cfg.DustThreshold.String())
		assert.Equal(t, 10, cfg.DirectoryBatchSize)
		assert.Equal(t, 2.0, cfg.RPCRateLimit)
		assert.Equal(t, 5, cfg.RPCBurst)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.devnet.solana.com")
		t.Setenv("CACHE_BACKEND", "Redis")
		t.Setenv("SCAN_BATCH_SIZE", "10")
		t.Setenv("SCAN_BATCH_DELAY", "250")
		t.Setenv("DUST_THRESHOLD", "0.5")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("METRICS_PORT", "9100")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, BackendRedis, cfg.CacheBackend)
		assert.Equal(t, 10, cfg.ScanBatchSize)
		assert.Equal(t, 250*time.Millisecond, cfg.ScanBatchDelay)
		assert.Equal(t, "0.5", cfg.DustThreshold.String())
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "9100", cfg.MetricsPort)
	})

	t.Run("missing required environment variables", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "RPC_ENDPOINTS environment variable is required")
	})

	t.Run("batch size out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("SCAN_BATCH_SIZE", "0")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "SCAN_BATCH_SIZE must be between 1 and 50")
	})

	t.Run("invalid integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("SCAN_MAX_ATTEMPTS", "three")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SCAN_MAX_ATTEMPTS")
	})

	t.Run("postgres backend needs a database name", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("CACHE_BACKEND", "postgres")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DB_NAME is required")
	})

	t.Run("memory backend is not persistent", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("CACHE_BACKEND", "memory")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Persistent())
	})

	t.Run("file backend uses CACHE_PATH", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("CACHE_PATH", "/tmp/lbscout-test/cache.json")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/lbscout-test/cache.json", cfg.CachePath)
	})

	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("CACHE_BACKEND", "sqlite")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid CACHE_BACKEND")
	})

	t.Run("invalid log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
		t.Setenv("LOG_LEVEL", "verbose")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid LOG_LEVEL")
	})
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("LBSCOUT_TEST_VAR")
	assert.Equal(t, "default", getEnv("LBSCOUT_TEST_VAR", "default"))

	t.Setenv("LBSCOUT_TEST_VAR", "set")
	assert.Equal(t, "set", getEnv("LBSCOUT_TEST_VAR", "default"))
}

func TestDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "lb", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=lb port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
