// Package reconcile merges scan results into the per-wallet position cache.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/logger"
	"github.com/wnt/lbscout/internal/metrics"
	"github.com/wnt/lbscout/internal/models"
)

// ErrEmptyWallet is returned for cache operations without a wallet
var ErrEmptyWallet = errors.New("wallet address is required")

// PositionsKey is the store key holding a wallet's cached positions
func PositionsKey(wallet string) string {
	return "cachedEnrichedPositions_" + wallet
}

// Merge returns previous with every incoming position inserted or overwritten by mint.
// Neither argument is modified.
func Merge(previous map[string]models.EnrichedPosition, incoming []models.EnrichedPosition) map[string]models.EnrichedPosition {
	merged := make(map[string]models.EnrichedPosition, len(previous)+len(incoming))
	for k, v := range previous {
		merged[k] = v
	}
	for _, p := range incoming {
		merged[p.Position.PositionMint] = p
	}
	return merged
}

// Sorted returns the positions ordered by key
func Sorted(positions map[string]models.EnrichedPosition) []models.EnrichedPosition {
	out := make([]models.EnrichedPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Cache is the persisted per-wallet position map
type Cache struct {
	store  kvstore.Store
	logger zerolog.Logger
	locks  sync.Map
}

// NewCache creates a position cache on top of store
func NewCache(store kvstore.Store, logger zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger.With().Str("component", "position_cache").Logger(),
	}
}

func (c *Cache) lock(wallet string) func() {
	m, _ := c.locks.LoadOrStore(wallet, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// Load returns the wallet's cached positions keyed by mint.
// A malformed entry, or one holding any invalid position, is removed and read as empty.
func (c *Cache) Load(ctx context.Context, wallet string) (map[string]models.EnrichedPosition, error) {
	if wallet == "" {
		return nil, ErrEmptyWallet
	}
	return c.load(ctx, wallet)
}

func (c *Cache) load(ctx context.Context, wallet string) (map[string]models.EnrichedPosition, error) {
	key := PositionsKey(wallet)
	positions := make(map[string]models.EnrichedPosition)

	var entries []models.EnrichedPosition
	found, err := kvstore.GetJSON(ctx, c.store, key, &entries)
	if !found {
		return positions, err
	}
	if err == nil {
		for _, p := range entries {
			if err = p.Validate(); err != nil {
				err = fmt.Errorf("position %q: %w", p.Key, err)
				break
			}
			positions[p.Key] = p
		}
	}
	if err != nil {
		walletLogger := logger.WithWallet(c.logger, wallet)
		walletLogger.Warn().Err(err).Msg("Discarding malformed position cache")
		if rmErr := c.store.Remove(ctx, key); rmErr != nil {
			return nil, fmt.Errorf("failed to discard position cache: %w", rmErr)
		}
		return make(map[string]models.EnrichedPosition), nil
	}
	return positions, nil
}

// List returns the wallet's cached positions sorted by key
func (c *Cache) List(ctx context.Context, wallet string) ([]models.EnrichedPosition, error) {
	positions, err := c.Load(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return Sorted(positions), nil
}

// MergeAndPersist folds a scan result into the wallet's cache and stores it.
// A full rescan replaces the cache with exactly the scan's positions.
func (c *Cache) MergeAndPersist(ctx context.Context, wallet string, result models.ScanResult, full bool) (map[string]models.EnrichedPosition, error) {
	if wallet == "" {
		return nil, ErrEmptyWallet
	}
	unlock := c.lock(wallet)
	defer unlock()

	previous := map[string]models.EnrichedPosition{}
	if !full {
		var err error
		if previous, err = c.load(ctx, wallet); err != nil {
			return nil, err
		}
	}

	merged := Merge(previous, result.EnrichedPositions)
	if err := c.save(ctx, wallet, merged); err != nil {
		return nil, err
	}

	walletLogger := logger.WithWallet(c.logger, wallet)
	walletLogger.Info().
		Str("scan_id", result.ScanID).
		Bool("full", full).
		Int("previous", len(previous)).
		Int("incoming", len(result.EnrichedPositions)).
		Int("cached", len(merged)).
		Msg("Position cache updated")

	return merged, nil
}

// Remove deletes one position from the wallet's cache. It reports whether the mint was cached.
func (c *Cache) Remove(ctx context.Context, wallet, mint string) (bool, error) {
	if wallet == "" {
		return false, ErrEmptyWallet
	}
	unlock := c.lock(wallet)
	defer unlock()

	positions, err := c.load(ctx, wallet)
	if err != nil {
		return false, err
	}
	if _, ok := positions[mint]; !ok {
		return false, nil
	}
	delete(positions, mint)

	if err := c.save(ctx, wallet, positions); err != nil {
		return false, err
	}
	walletLogger := logger.WithWallet(c.logger, wallet)
	walletLogger.Info().Str("position_mint", mint).Msg("Position removed from cache")
	return true, nil
}

func (c *Cache) save(ctx context.Context, wallet string, positions map[string]models.EnrichedPosition) error {
	if err := kvstore.SetJSON(ctx, c.store, PositionsKey(wallet), Sorted(positions)); err != nil {
		return fmt.Errorf("failed to persist positions: %w", err)
	}
	metrics.SetCachedPositions(wallet, len(positions))
	return nil
}
