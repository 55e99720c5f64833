package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolsScanned tracks per-pool scan outcomes
	PoolsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbscout_pools_scanned_total",
			Help: "The total number of pools scanned for positions",
		},
		[]string{"status"}, // success, failed
	)

	// ScanRetries tracks retries caused by rate limiting
	ScanRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lbscout_scan_retries_total",
		Help: "The total number of rate-limited pool reads that were retried",
	})

	// ScanSeconds tracks time taken by a full scan pass
	ScanSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lbscout_scan_seconds",
			Help:    "Time taken to scan a wallet in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"mode"},
	)

	// PositionsEnriched tracks enrichment outcomes
	PositionsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbscout_positions_enriched_total",
			Help: "The total number of positions enriched",
		},
		[]string{"status"}, // success, dropped
	)

	// RPCRequestsTotal tracks RPC requests by status
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbscout_rpc_requests_total",
			Help: "The total number of RPC requests",
		},
		[]string{"method", "status"},
	)

	// CacheOperations tracks key-value store operations
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbscout_cache_operations_total",
			Help: "The total number of cache operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// RPCEndpointHealth tracks RPC endpoint health
	RPCEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lbscout_rpc_endpoint_health",
			Help: "Health status of RPC endpoints (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// CachedPositions tracks the number of positions held per wallet after a merge
	CachedPositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lbscout_cached_positions",
			Help: "Number of positions in a wallet's cache",
		},
		[]string{"wallet"},
	)
)

// RecordPoolScan records the outcome of scanning one pool
func RecordPoolScan(status string) {
	PoolsScanned.WithLabelValues(status).Inc()
}

// RecordScanRetry records a rate-limit retry
func RecordScanRetry() {
	ScanRetries.Inc()
}

// RecordScan records the time taken by a scan
func RecordScan(mode string, duration float64) {
	ScanSeconds.WithLabelValues(mode).Observe(duration)
}

// RecordEnrichment records the outcome of enriching one position
func RecordEnrichment(status string) {
	PositionsEnriched.WithLabelValues(status).Inc()
}

// RecordRPCRequest records an RPC request with the given status
func RecordRPCRequest(method, status string) {
	RPCRequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordCacheOperation records a key-value store operation
func RecordCacheOperation(backend, operation, status string) {
	CacheOperations.WithLabelValues(backend, operation, status).Inc()
}

// SetRPCEndpointHealth sets the health status of an RPC endpoint
func SetRPCEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	RPCEndpointHealth.WithLabelValues(endpoint).Set(value)
}

// SetCachedPositions records the cache size for a wallet
func SetCachedPositions(wallet string, count int) {
	CachedPositions.WithLabelValues(wallet).Set(float64(count))
}
