package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wnt/lbscout/internal/logger"
	"github.com/wnt/lbscout/internal/metrics"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/rpc"
	"github.com/wnt/lbscout/internal/utils"
	"golang.org/x/sync/errgroup"
)

// ErrNoPoolDirectory is returned when a scan is requested before the pool directory exists
var ErrNoPoolDirectory = errors.New("pool directory not loaded")

// ChainClient lists the positions an owner holds in one pool
type ChainClient interface {
	GetPositionsForOwner(ctx context.Context, pool, owner string) ([]models.RawPosition, error)
}

// OwnerCache is implemented by chain clients that memoize per-owner lookups.
// The scanner drops the owner's entry before each scan.
type OwnerCache interface {
	InvalidateOwner(owner string)
}

// Enricher turns raw positions into enriched ones
type Enricher interface {
	Enrich(ctx context.Context, raws []models.RawPosition) []models.EnrichedPosition
}

// Options tunes a Scanner
type Options struct {
	BatchSize     int
	BatchDelay    time.Duration
	DustThreshold decimal.Decimal
	Retry         RetryPolicy
	Sleep         Sleeper
}

// Scanner discovers a wallet's positions across the pool directory
type Scanner struct {
	chain    ChainClient
	enricher Enricher
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a scanner. Zero-valued options fall back to batches of 5,
// the default retry policy and real sleeping.
func New(chain ChainClient, enricher Enricher, opts Options, logger zerolog.Logger) *Scanner {
	if opts.BatchSize < 1 {
		opts.BatchSize = 5
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	opts.Retry = opts.Retry.withDefaults()

	return &Scanner{
		chain:    chain,
		enricher: enricher,
		opts:     opts,
		logger:   logger.With().Str("component", "scanner").Logger(),
		now:      time.Now,
	}
}

// SelectPools returns the pools a scan in the given mode visits.
// Pools with liquidity above dust have liquidity; the rest do not.
func SelectPools(pools []models.PoolSummary, mode models.ScanMode, dust decimal.Decimal) ([]models.PoolSummary, error) {
	switch mode {
	case models.ScanFull:
		return pools, nil
	case models.ScanWithLiquidity:
		return utils.Filter(pools, func(p models.PoolSummary) bool {
			return p.Liquidity.GreaterThan(dust)
		}), nil
	case models.ScanWithoutLiquidity:
		return utils.Filter(pools, func(p models.PoolSummary) bool {
			return p.Liquidity.LessThanOrEqual(dust)
		}), nil
	}
	return nil, fmt.Errorf("unknown scan mode: %q", mode)
}

// PoolError records a pool that could not be scanned
type PoolError struct {
	Pool     string
	Attempts int
	Err      error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s failed after %d attempt(s): %v", e.Pool, e.Attempts, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

type poolOutcome struct {
	positions []models.RawPosition
	attempts  int
	err       error
}

// Scan checks every selected pool for positions owned by owner and enriches what it finds.
// Pools that keep failing are reported in FailedPools rather than failing the scan.
// A nil pools slice means no directory is available.
func (s *Scanner) Scan(ctx context.Context, pools []models.PoolSummary, owner string, mode models.ScanMode, onProgress func(models.Progress)) (models.ScanResult, error) {
	if pools == nil {
		return models.ScanResult{}, ErrNoPoolDirectory
	}

	candidates, err := SelectPools(pools, mode, s.opts.DustThreshold)
	if err != nil {
		return models.ScanResult{}, err
	}
	candidates = utils.Dedupe(candidates, func(p models.PoolSummary) string { return p.Address })

	result := models.ScanResult{
		ScanID:            uuid.New().String(),
		Mode:              mode,
		EnrichedPositions: []models.EnrichedPosition{},
		FailedPools:       []string{},
		StartedAt:         s.now(),
	}
	log := logger.WithWallet(logger.WithScan(s.logger, result.ScanID, string(mode)), owner)

	if oc, ok := s.chain.(OwnerCache); ok {
		oc.InvalidateOwner(owner)
	}

	log.Info().
		Int("pools", len(candidates)).
		Int("directory_size", len(pools)).
		Msg("Starting position scan")

	var raws []models.RawPosition
	total := len(candidates)
	processed := 0

	batches := utils.Chunk(candidates, s.opts.BatchSize)
	for n, batch := range batches {
		if err := ctx.Err(); err != nil {
			return models.ScanResult{}, err
		}

		outcomes := make([]poolOutcome, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, pool := range batch {
			i, pool := i, pool
			g.Go(func() error {
				outcomes[i] = s.scanPool(gctx, pool.Address, owner)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("processed", processed).Msg("Scan cancelled")
			return models.ScanResult{}, err
		}

		for i, outcome := range outcomes {
			address := batch[i].Address
			if outcome.err != nil {
				metrics.RecordPoolScan("failed")
				result.FailedPools = append(result.FailedPools, address)
				poolLogger := logger.WithPool(log, address)
				poolLogger.Warn().
					Err(&PoolError{Pool: address, Attempts: outcome.attempts, Err: outcome.err}).
					Bool("rate_limited", rpc.IsRateLimited(outcome.err)).
					Msg("Failed to scan pool")
				continue
			}
			metrics.RecordPoolScan("success")
			raws = append(raws, outcome.positions...)
		}

		processed += len(batch)
		if onProgress != nil {
			onProgress(models.Progress{
				Message:   fmt.Sprintf("Scanning pools %d-%d of %d", processed-len(batch)+1, processed, total),
				Processed: processed,
				Total:     total,
				ETA:       utils.EstimateRemaining(s.now().Sub(result.StartedAt), processed, total),
			})
		}

		if n < len(batches)-1 && s.opts.BatchDelay > 0 {
			if err := s.opts.Sleep(ctx, s.opts.BatchDelay); err != nil {
				return models.ScanResult{}, err
			}
		}
	}

	raws = utils.Dedupe(raws, func(p models.RawPosition) string { return p.PositionMint })
	if len(raws) > 0 {
		result.EnrichedPositions = s.enricher.Enrich(ctx, raws)
	}

	sort.Strings(result.FailedPools)
	result.PoolsScanned = total
	result.RawPositions = len(raws)
	result.Duration = s.now().Sub(result.StartedAt)
	metrics.RecordScan(string(mode), result.Duration.Seconds())

	log.Info().
		Int("pools_scanned", result.PoolsScanned).
		Int("failed_pools", len(result.FailedPools)).
		Int("raw_positions", result.RawPositions).
		Int("enriched_positions", len(result.EnrichedPositions)).
		Dur("duration", result.Duration).
		Str("outcome", string(result.Outcome())).
		Msg("Position scan finished")

	return result, nil
}

// scanPool reads one pool, retrying only errors the policy deems retryable
func (s *Scanner) scanPool(ctx context.Context, pool, owner string) poolOutcome {
	policy := s.opts.Retry
	var err error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		var positions []models.RawPosition
		positions, err = s.chain.GetPositionsForOwner(ctx, pool, owner)
		if err == nil {
			return poolOutcome{positions: positions, attempts: attempt}
		}
		if !policy.Retryable(err) || attempt == policy.MaxAttempts {
			return poolOutcome{attempts: attempt, err: err}
		}

		metrics.RecordScanRetry()
		delay := policy.Backoff(attempt)
		s.logger.Debug().
			Err(err).
			Str("pool", pool).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Rate limited, retrying pool")

		if serr := s.opts.Sleep(ctx, delay); serr != nil {
			return poolOutcome{attempts: attempt, err: serr}
		}
	}
	return poolOutcome{attempts: policy.MaxAttempts, err: err}
}
