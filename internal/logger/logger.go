package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates and configures a new zerolog logger
func New(logLevel string) zerolog.Logger {
	return NewWithWriter(logLevel, os.Stderr)
}

// NewWithWriter creates a logger writing to w. Console output is used when LOG_FORMAT=console.
func NewWithWriter(logLevel string, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("LOG_FORMAT") == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "lbscout").
		Logger()
}

// WithWallet adds wallet address to logger context
func WithWallet(logger zerolog.Logger, wallet string) zerolog.Logger {
	return logger.With().Str("wallet", wallet).Logger()
}

// WithPool adds pool address to logger context
func WithPool(logger zerolog.Logger, pool string) zerolog.Logger {
	return logger.With().Str("pool", pool).Logger()
}

// WithScan adds scan ID and mode to logger context
func WithScan(logger zerolog.Logger, scanID, mode string) zerolog.Logger {
	return logger.With().Str("scan_id", scanID).Str("mode", mode).Logger()
}

// WithRPCEndpoint adds RPC endpoint to logger context
func WithRPCEndpoint(logger zerolog.Logger, endpoint string) zerolog.Logger {
	return logger.With().Str("rpc_endpoint", endpoint).Logger()
}
