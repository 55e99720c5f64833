package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/lbscout/internal/config"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/services"
)

func setAppEnv(t *testing.T, backend string) string {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "state", "cache.json")
	t.Setenv("RPC_ENDPOINTS", "http://127.0.0.1:1")
	t.Setenv("CACHE_BACKEND", backend)
	t.Setenv("CACHE_PATH", cachePath)
	t.Setenv("METRICS_PORT", "")
	t.Setenv("LOG_LEVEL", "error")
	return cachePath
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestNewAppDefaultsToPersistentCache(t *testing.T) {
	cachePath := setAppEnv(t, "")
	ctx := context.Background()

	first, err := newApp(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, first.cfg.CacheBackend)
	assert.Equal(t, cachePath, first.cfg.CachePath)

	pools := []models.PoolSummary{
		{Address: "pool01", BaseSymbol: "SOL", QuoteSymbol: "USDC", Liquidity: decimal.NewFromInt(1000)},
	}
	require.NoError(t, kvstore.SetJSON(ctx, first.store, services.PoolsKey, pools))
	first.Close()

	second, err := newApp(missingEnvFile(t))
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.directory.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "pool01", loaded[0].Address)
	assert.True(t, loaded[0].Liquidity.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, second.requirePersistentCache("positions"))
}

func TestRequirePersistentCache(t *testing.T) {
	t.Run("memory backend is refused", func(t *testing.T) {
		setAppEnv(t, config.BackendMemory)

		a, err := newApp(missingEnvFile(t))
		require.NoError(t, err)
		defer a.Close()

		err = a.requirePersistentCache("positions")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "positions")
		assert.Contains(t, err.Error(), "CACHE_BACKEND")
	})

	t.Run("file backend is accepted", func(t *testing.T) {
		setAppEnv(t, config.BackendFile)

		a, err := newApp(missingEnvFile(t))
		require.NoError(t, err)
		defer a.Close()

		assert.NoError(t, a.requirePersistentCache("dashboard"))
	})
}
