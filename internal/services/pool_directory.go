package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/solana"
	"github.com/wnt/lbscout/internal/utils"
	"golang.org/x/sync/errgroup"
)

// PoolsKey is the store key holding the pool directory
const PoolsKey = "cachedPools"

// PoolSource enumerates and reads pools on chain
type PoolSource interface {
	ListPoolAddresses(ctx context.Context) ([]string, error)
	GetPoolAccount(ctx context.Context, address string) (models.PoolDetails, error)
	GetPoolReserves(ctx context.Context, pool models.PoolDetails) (models.PoolReserves, error)
}

// PoolDirectory fetches, caches and serves the list of known pools
type PoolDirectory struct {
	store     kvstore.Store
	chain     PoolSource
	tokens    TokenLookup
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPoolDirectory creates a directory that refreshes batchSize pools at a time
func NewPoolDirectory(store kvstore.Store, chain PoolSource, tokens TokenLookup, batchSize int, logger zerolog.Logger) *PoolDirectory {
	if batchSize < 1 {
		batchSize = 10
	}
	return &PoolDirectory{
		store:     store,
		chain:     chain,
		tokens:    tokens,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "pool_directory").Logger(),
		now:       time.Now,
	}
}

// Load returns the cached directory, or nil when none is cached.
// A malformed entry is discarded and treated as absent.
func (d *PoolDirectory) Load(ctx context.Context) ([]models.PoolSummary, error) {
	var pools []models.PoolSummary
	found, err := kvstore.GetJSON(ctx, d.store, PoolsKey, &pools)
	if !found {
		return nil, err
	}
	if err == nil {
		for _, pool := range pools {
			if err = pool.Validate(); err != nil {
				err = fmt.Errorf("pool %q: %w", pool.Address, err)
				break
			}
		}
	}
	if err != nil {
		d.logger.Warn().Err(err).Msg("Discarding malformed pool directory")
		if rmErr := d.store.Remove(ctx, PoolsKey); rmErr != nil {
			return nil, rmErr
		}
		return nil, nil
	}
	if pools == nil {
		pools = []models.PoolSummary{}
	}
	return pools, nil
}

// Get returns the cached directory, refreshing it when absent or when forced
func (d *PoolDirectory) Get(ctx context.Context, forceRefresh bool, onProgress func(models.Progress)) ([]models.PoolSummary, error) {
	if !forceRefresh {
		pools, err := d.Load(ctx)
		if err != nil {
			return nil, err
		}
		if pools != nil {
			return pools, nil
		}
	}
	return d.Refresh(ctx, onProgress)
}

// Refresh enumerates every pool, fetches its summary in batches and persists the result.
// Pools that fail to load are skipped.
func (d *PoolDirectory) Refresh(ctx context.Context, onProgress func(models.Progress)) ([]models.PoolSummary, error) {
	addresses, err := d.chain.ListPoolAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	addresses = utils.Dedupe(addresses, func(s string) string { return s })

	d.logger.Info().Int("pools", len(addresses)).Msg("Refreshing pool directory")

	start := d.now()
	total := len(addresses)
	processed := 0
	pools := make([]models.PoolSummary, 0, total)

	for _, batch := range utils.Chunk(addresses, d.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results := make([]*models.PoolSummary, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, address := range batch {
			i, address := i, address
			g.Go(func() error {
				summary, err := d.summarize(gctx, address)
				if err != nil {
					d.logger.Warn().Err(err).Str("pool", address).Msg("Failed to process pool")
					return nil
				}
				results[i] = &summary
				return nil
			})
		}
		_ = g.Wait()

		for _, summary := range results {
			if summary != nil {
				pools = append(pools, *summary)
			}
		}

		processed += len(batch)
		if onProgress != nil {
			onProgress(models.Progress{
				Message:   fmt.Sprintf("Fetching pool details... (%d/%d)", processed, total),
				Processed: processed,
				Total:     total,
				ETA:       utils.EstimateRemaining(d.now().Sub(start), processed, total),
			})
		}
	}

	if err := kvstore.SetJSON(ctx, d.store, PoolsKey, pools); err != nil {
		return nil, fmt.Errorf("failed to persist pool directory: %w", err)
	}

	d.logger.Info().
		Int("pools", len(pools)).
		Int("skipped", total-len(pools)).
		Dur("duration", d.now().Sub(start)).
		Msg("Pool directory refreshed")

	return pools, nil
}

func (d *PoolDirectory) summarize(ctx context.Context, address string) (models.PoolSummary, error) {
	details, err := d.chain.GetPoolAccount(ctx, address)
	if err != nil {
		return models.PoolSummary{}, err
	}

	base, err := d.tokens.Resolve(ctx, details.TokenMintX)
	if err != nil {
		return models.PoolSummary{}, err
	}
	quote, err := d.tokens.Resolve(ctx, details.TokenMintY)
	if err != nil {
		return models.PoolSummary{}, err
	}

	reserves, err := d.chain.GetPoolReserves(ctx, details)
	if err != nil {
		return models.PoolSummary{}, err
	}

	return models.PoolSummary{
		Address:      address,
		BaseSymbol:   base.Symbol,
		QuoteSymbol:  quote.Symbol,
		BaseLogoURI:  base.LogoURI,
		QuoteLogoURI: quote.LogoURI,
		Price:        PriceFromBinID(details.BinStep, details.ActiveID, base.Decimals, quote.Decimals),
		Liquidity:    reserves.Base.Add(reserves.Quote),
	}, nil
}

// PriceFromBinID converts a bin id to a quote-per-base price adjusted for token decimals.
// Prices that overflow or underflow float64 are reported as zero.
func PriceFromBinID(binStep uint16, activeID int32, baseDecimals, quoteDecimals uint8) decimal.Decimal {
	exponent := float64(int64(activeID) - solana.BinIDOffset)
	price := math.Pow(1+float64(binStep)/10000, exponent) * math.Pow10(int(baseDecimals)-int(quoteDecimals))
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(price)
}
