package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/metrics"
)

// ErrRateLimited marks errors caused by an endpoint refusing requests for rate reasons
var ErrRateLimited = errors.New("rate limited")

var statusTooManyRequests = regexp.MustCompile(`\b429\b`)

// IsRateLimited reports whether err is a rate-limit rejection.
// Errors coming straight from the RPC library are recognised by their status text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	return statusTooManyRequests.MatchString(msg) || strings.Contains(msg, http.StatusText(http.StatusTooManyRequests))
}

// Caller runs RPC calls against the pool, tracking endpoint health
type Caller struct {
	pool     *Pool
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewCaller creates a caller. Rate-limited endpoints cool down for the given duration.
func NewCaller(pool *Pool, cooldown time.Duration, logger zerolog.Logger) *Caller {
	return &Caller{
		pool:     pool,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "rpc_caller").Logger(),
	}
}

// Do picks an endpoint and runs fn against its client.
// A rate-limited failure is returned wrapping ErrRateLimited.
func (c *Caller) Do(ctx context.Context, method string, fn func(ctx context.Context, client *solanarpc.Client) error) error {
	client, endpoint, err := c.pool.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to get RPC client: %w", err)
	}

	startTime := time.Now()
	err = fn(ctx, client)
	duration := time.Since(startTime)

	if err == nil {
		metrics.RecordRPCRequest(method, "success")
		c.pool.MarkHealthy(endpoint)
		return nil
	}

	switch {
	case IsRateLimited(err):
		c.handleRateLimit(endpoint, method)
		return fmt.Errorf("%w by %s: %w", ErrRateLimited, endpoint, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordRPCRequest(method, "cancelled")
	case errors.Is(err, solanarpc.ErrNotFound) || isRPCError(err):
		// The endpoint answered; the failure is about the request.
		metrics.RecordRPCRequest(method, "rpc_error")
	default:
		c.handleError(endpoint, method, err, duration)
	}

	return err
}

func isRPCError(err error) bool {
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr)
}

// handleError marks the endpoint as unhealthy on transport errors
func (c *Caller) handleError(endpoint, method string, err error, duration time.Duration) {
	c.logger.Error().
		Err(err).
		Str("endpoint", endpoint).
		Str("method", method).
		Dur("duration", duration).
		Msg("RPC request failed")

	c.pool.MarkUnhealthy(endpoint)
	metrics.RecordRPCRequest(method, "error")
}

// handleRateLimit handles rate limiting by setting cooldown
func (c *Caller) handleRateLimit(endpoint, method string) {
	c.logger.Warn().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Rate limited by endpoint")

	c.pool.SetCooldown(endpoint, c.cooldown)
	metrics.RecordRPCRequest(method, "rate_limited")
}
