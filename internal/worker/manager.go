package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/logger"
	"github.com/wnt/lbscout/internal/models"
	"golang.org/x/sync/errgroup"
)

// ErrScanInProgress is returned when a wallet already has a scan running
var ErrScanInProgress = errors.New("scan already in progress for wallet")

// Directory provides the cached pool directory
type Directory interface {
	Load(ctx context.Context) ([]models.PoolSummary, error)
	Refresh(ctx context.Context, onProgress func(models.Progress)) ([]models.PoolSummary, error)
}

// PositionScanner scans pools for a wallet's positions
type PositionScanner interface {
	Scan(ctx context.Context, pools []models.PoolSummary, owner string, mode models.ScanMode, onProgress func(models.Progress)) (models.ScanResult, error)
}

// PositionCache persists scan results per wallet
type PositionCache interface {
	MergeAndPersist(ctx context.Context, wallet string, result models.ScanResult, full bool) (map[string]models.EnrichedPosition, error)
}

// EndpointHealth reports how many RPC endpoints are usable
type EndpointHealth interface {
	GetHealthyEndpointCount() int
}

// Request describes one scan run
type Request struct {
	Wallet string
	Mode   models.ScanMode
	// Full clears the wallet's cache before merging and scans every pool
	Full bool
	// RefreshPools rebuilds the pool directory before scanning
	RefreshPools bool
	OnProgress   func(models.Progress)
}

// Manager serializes scans per wallet and runs periodic watch scans
type Manager struct {
	directory Directory
	scanner   PositionScanner
	cache     PositionCache
	endpoints EndpointHealth
	logger    zerolog.Logger

	mutex    sync.Mutex
	inFlight map[string]time.Time
	watching int

	ctx     context.Context
	cancel  context.CancelFunc
	eg      *errgroup.Group
	stopped bool
}

// NewManager creates a scan manager. endpoints may be nil.
func NewManager(directory Directory, scanner PositionScanner, cache PositionCache, endpoints EndpointHealth, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)

	return &Manager{
		directory: directory,
		scanner:   scanner,
		cache:     cache,
		endpoints: endpoints,
		logger:    logger.With().Str("component", "scan_manager").Logger(),
		inFlight:  make(map[string]time.Time),
		ctx:       egCtx,
		cancel:    cancel,
		eg:        eg,
	}
}

func (m *Manager) acquire(wallet string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, busy := m.inFlight[wallet]; busy {
		return false
	}
	m.inFlight[wallet] = time.Now()
	return true
}

func (m *Manager) release(wallet string) {
	m.mutex.Lock()
	delete(m.inFlight, wallet)
	m.mutex.Unlock()
}

// Run loads the pool directory, scans the wallet and merges the result into its cache
func (m *Manager) Run(ctx context.Context, req Request) (models.ScanResult, error) {
	if req.Wallet == "" {
		return models.ScanResult{}, errors.New("wallet address is required")
	}
	if !m.acquire(req.Wallet) {
		return models.ScanResult{}, ErrScanInProgress
	}
	defer m.release(req.Wallet)

	mode := req.Mode
	if mode == "" {
		mode = models.ScanWithLiquidity
	}
	if req.Full {
		mode = models.ScanFull
	}

	walletLogger := logger.WithWallet(m.logger, req.Wallet)

	var pools []models.PoolSummary
	var err error
	if req.RefreshPools {
		pools, err = m.directory.Refresh(ctx, req.OnProgress)
	} else {
		pools, err = m.directory.Load(ctx)
	}
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("failed to load pool directory: %w", err)
	}

	result, err := m.scanner.Scan(ctx, pools, req.Wallet, mode, req.OnProgress)
	if err != nil {
		return models.ScanResult{}, err
	}

	cached, err := m.cache.MergeAndPersist(ctx, req.Wallet, result, req.Full)
	if err != nil {
		return result, fmt.Errorf("failed to persist scan result: %w", err)
	}

	walletLogger.Info().
		Str("scan_id", result.ScanID).
		Str("mode", string(mode)).
		Bool("full", req.Full).
		Int("found", len(result.EnrichedPositions)).
		Int("cached", len(cached)).
		Int("failed_pools", len(result.FailedPools)).
		Msg("Scan run completed")

	return result, nil
}

// EnsureDirectory returns the pool directory, building it when none is cached or when forced
func (m *Manager) EnsureDirectory(ctx context.Context, force bool, onProgress func(models.Progress)) ([]models.PoolSummary, error) {
	if !force {
		pools, err := m.directory.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pool directory: %w", err)
		}
		if pools != nil {
			return pools, nil
		}
		m.logger.Info().Msg("No pool directory cached, building it")
	}

	pools, err := m.directory.Refresh(ctx, onProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh pool directory: %w", err)
	}
	return pools, nil
}

// InFlight returns the wallets currently being scanned
func (m *Manager) InFlight() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	wallets := make([]string, 0, len(m.inFlight))
	for w := range m.inFlight {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// StartWatch rescans every wallet on each interval tick until Stop is called.
// The first scan runs immediately.
func (m *Manager) StartWatch(wallets []string, interval time.Duration, mode models.ScanMode) error {
	if len(wallets) == 0 {
		return errors.New("no wallets to watch")
	}
	if interval <= 0 {
		return fmt.Errorf("invalid watch interval: %s", interval)
	}

	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return errors.New("manager is stopped")
	}
	m.watching += len(wallets)
	m.mutex.Unlock()

	m.logger.Info().
		Strs("wallets", wallets).
		Dur("interval", interval).
		Str("mode", string(mode)).
		Msg("Starting watch")

	for _, wallet := range wallets {
		wallet := wallet
		m.eg.Go(func() error {
			return m.watchWallet(wallet, interval, mode)
		})
	}
	return nil
}

func (m *Manager) watchWallet(wallet string, interval time.Duration, mode models.ScanMode) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.runWatchScan(wallet, mode)

		select {
		case <-m.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) runWatchScan(wallet string, mode models.ScanMode) {
	_, err := m.Run(m.ctx, Request{Wallet: wallet, Mode: mode})
	walletLogger := logger.WithWallet(m.logger, wallet)
	switch {
	case err == nil:
	case errors.Is(err, ErrScanInProgress):
		walletLogger.Debug().Msg("Skipping watch tick, scan still running")
	case errors.Is(err, context.Canceled):
	default:
		walletLogger.Error().Err(err).Msg("Watch scan failed")
	}
}

// Stop cancels watch loops and waits for running scans to finish
func (m *Manager) Stop() error {
	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return nil
	}
	m.stopped = true
	m.mutex.Unlock()

	m.logger.Info().Msg("Stopping scan manager...")
	m.cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.eg.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Error().Err(err).Msg("Error during scan manager shutdown")
		}
	case <-time.After(30 * time.Second):
		m.logger.Warn().Msg("Scan manager shutdown timed out")
	}

	m.logger.Info().Msg("Scan manager stopped")
	return nil
}

// Stats is a snapshot of the manager's activity
type Stats struct {
	InFlight         []string `json:"inFlight"`
	Watching         int      `json:"watching"`
	HealthyEndpoints int      `json:"healthyEndpoints"`
}

// GetStats returns current manager statistics
func (m *Manager) GetStats() Stats {
	stats := Stats{InFlight: m.InFlight(), HealthyEndpoints: -1}

	m.mutex.Lock()
	stats.Watching = m.watching
	m.mutex.Unlock()

	if m.endpoints != nil {
		stats.HealthyEndpoints = m.endpoints.GetHealthyEndpointCount()
	}
	return stats
}
