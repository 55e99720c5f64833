package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/metrics"
	"github.com/wnt/lbscout/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PoolReader reads a pool's current state
type PoolReader interface {
	GetPoolAccount(ctx context.Context, address string) (models.PoolDetails, error)
}

// PositionEnricher joins raw positions with pool state and token metadata
type PositionEnricher struct {
	pools       PoolReader
	tokens      TokenLookup
	concurrency int
	logger      zerolog.Logger
}

// NewPositionEnricher creates an enricher running at most concurrency lookups at once
func NewPositionEnricher(pools PoolReader, tokens TokenLookup, concurrency int, logger zerolog.Logger) *PositionEnricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PositionEnricher{
		pools:       pools,
		tokens:      tokens,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "position_enricher").Logger(),
	}
}

// poolPass memoizes pool reads, successful or not, for one Enrich call
type poolPass struct {
	reader  PoolReader
	flight  singleflight.Group
	mutex   sync.Mutex
	details map[string]models.PoolDetails
	errs    map[string]error
}

func (p *poolPass) get(ctx context.Context, address string) (models.PoolDetails, error) {
	p.mutex.Lock()
	if d, ok := p.details[address]; ok {
		p.mutex.Unlock()
		return d, nil
	}
	if err, ok := p.errs[address]; ok {
		p.mutex.Unlock()
		return models.PoolDetails{}, err
	}
	p.mutex.Unlock()

	v, err, _ := p.flight.Do(address, func() (interface{}, error) {
		d, err := p.reader.GetPoolAccount(ctx, address)
		p.mutex.Lock()
		if err != nil {
			p.errs[address] = err
		} else {
			p.details[address] = d
		}
		p.mutex.Unlock()
		return d, err
	})
	if err != nil {
		return models.PoolDetails{}, err
	}
	return v.(models.PoolDetails), nil
}

// Enrich enriches every raw position it can. A position whose pool or tokens
// cannot be read is dropped and logged; the rest are returned sorted by key.
func (e *PositionEnricher) Enrich(ctx context.Context, raws []models.RawPosition) []models.EnrichedPosition {
	pass := &poolPass{
		reader:  e.pools,
		details: make(map[string]models.PoolDetails),
		errs:    make(map[string]error),
	}

	results := make([]*models.EnrichedPosition, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			enriched, err := e.enrichOne(gctx, pass, raw)
			if err != nil {
				metrics.RecordEnrichment("dropped")
				e.logger.Warn().
					Err(err).
					Str("position_mint", raw.PositionMint).
					Str("pool", raw.PoolAddress).
					Msg("Failed to enrich position")
				return nil
			}
			metrics.RecordEnrichment("success")
			results[i] = &enriched
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.EnrichedPosition, 0, len(raws))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e *PositionEnricher) enrichOne(ctx context.Context, pass *poolPass, raw models.RawPosition) (models.EnrichedPosition, error) {
	details, err := pass.get(ctx, raw.PoolAddress)
	if err != nil {
		return models.EnrichedPosition{}, fmt.Errorf("pool read: %w", err)
	}

	base, err := e.tokens.Resolve(ctx, details.TokenMintX)
	if err != nil {
		return models.EnrichedPosition{}, fmt.Errorf("base token: %w", err)
	}
	quote, err := e.tokens.Resolve(ctx, details.TokenMintY)
	if err != nil {
		return models.EnrichedPosition{}, fmt.Errorf("quote token: %w", err)
	}

	return models.EnrichedPosition{
		Key:         raw.PositionMint,
		Position:    raw,
		PoolDetails: details,
		BaseToken:   base,
		QuoteToken:  quote,
		PoolAddress: raw.PoolAddress,
	}, nil
}
