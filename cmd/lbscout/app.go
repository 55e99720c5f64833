package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/config"
	"github.com/wnt/lbscout/internal/database"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/logger"
	"github.com/wnt/lbscout/internal/reconcile"
	"github.com/wnt/lbscout/internal/rpc"
	"github.com/wnt/lbscout/internal/scanner"
	"github.com/wnt/lbscout/internal/services"
	"github.com/wnt/lbscout/internal/solana"
	"github.com/wnt/lbscout/internal/utils"
	"github.com/wnt/lbscout/internal/worker"
)

const (
	rateLimitCooldown = 30 * time.Second
	ownerMintsTTL     = time.Minute
)

// app holds the wired components shared by every command
type app struct {
	cfg    config.Config
	logger zerolog.Logger

	store     kvstore.Store
	pool      *rpc.Pool
	chain     *solana.Client
	directory *services.PoolDirectory
	cache     *reconcile.Cache
	userPools *services.UserPools
	activity  *services.ActivityLog
	dashboard *services.Dashboard
	manager   *worker.Manager

	metricsServer *http.Server
	closers       []func() error
}

func newApp(envFile string) (*app, error) {
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger.New(cfg.LogLevel),
	}
	if envErr != nil {
		a.logger.Debug().Str("env_file", envFile).Msg("No .env file found, using environment variables")
	}

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	a.pool, err = rpc.NewPool(cfg.RPCEndpoints, cfg.RPCRateLimit, cfg.RPCBurst, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create RPC pool: %w", err)
	}
	caller := rpc.NewCaller(a.pool, rateLimitCooldown, a.logger)

	a.chain, err = solana.NewClient(caller, cfg.ProgramID, ownerMintsTTL, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create chain client: %w", err)
	}

	tokens := services.NewTokenResolver(a.chain, utils.NewHTTPClient(utils.WithTimeout(10*time.Second)), a.logger)
	a.directory = services.NewPoolDirectory(a.store, a.chain, tokens, cfg.DirectoryBatchSize, a.logger)
	enricher := services.NewPositionEnricher(a.chain, tokens, cfg.EnrichConcurrency, a.logger)

	scan := scanner.New(a.chain, enricher, scanner.Options{
		BatchSize:     cfg.ScanBatchSize,
		BatchDelay:    cfg.ScanBatchDelay,
		DustThreshold: cfg.DustThreshold,
		Retry: scanner.RetryPolicy{
			MaxAttempts: cfg.ScanMaxAttempts,
			Backoff:     scanner.LinearBackoff(cfg.ScanRetryDelay),
			Retryable:   rpc.IsRateLimited,
		},
	}, a.logger)

	a.cache = reconcile.NewCache(a.store, a.logger)
	a.userPools = services.NewUserPools(a.store, a.logger)
	a.activity = services.NewActivityLog(a.store, a.logger)
	a.dashboard = services.NewDashboard(a.cache, a.chain, a.directory, a.userPools, a.activity)
	a.manager = worker.NewManager(a.directory, scan, a.cache, a.pool, a.logger)

	a.startMetricsServer()

	a.logger.Debug().
		Str("cache_backend", cfg.CacheBackend).
		Int("rpc_endpoints", len(cfg.RPCEndpoints)).
		Str("program_id", cfg.ProgramID).
		Msg("lbscout initialized")

	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.CacheBackend {
	case config.BackendRedis:
		store, err := kvstore.NewRedisStore(a.cfg.RedisURL, a.logger)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case config.BackendPostgres:
		db, err := database.Connect(a.cfg.DSN())
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		a.store = kvstore.NewGormStore(db)
		a.closers = append(a.closers, sqlDB.Close)
	case config.BackendMemory:
		a.store = kvstore.NewMemoryStore()
	default:
		store, err := kvstore.NewFileStore(a.cfg.CachePath)
		if err != nil {
			return err
		}
		a.store = store
	}
	return nil
}

// requirePersistentCache rejects commands that only read cached state when
// the cache does not outlive the process
func (a *app) requirePersistentCache(command string) error {
	if a.cfg.Persistent() {
		return nil
	}
	return fmt.Errorf("%s reads cached state, which the %s cache backend does not keep between runs; set CACHE_BACKEND to file, redis or postgres", command, a.cfg.CacheBackend)
}

func (a *app) startMetricsServer() {
	if a.cfg.MetricsPort == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              ":" + a.cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info().Str("port", a.cfg.MetricsPort).Msg("Serving metrics")
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Close stops background work and releases the store
func (a *app) Close() {
	if a.manager != nil {
		_ = a.manager.Stop()
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}
