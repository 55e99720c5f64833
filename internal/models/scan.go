package models

import (
	"fmt"
	"strings"
	"time"
)

// ScanMode selects which pools from the directory a scan visits
type ScanMode string

const (
	ScanWithLiquidity    ScanMode = "withLiquidity"
	ScanWithoutLiquidity ScanMode = "withoutLiquidity"
	ScanFull             ScanMode = "full"
)

// ParseScanMode parses a scan mode name, case-insensitively
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "withliquidity", "with-liquidity", "liquid":
		return ScanWithLiquidity, nil
	case "withoutliquidity", "without-liquidity", "dust":
		return ScanWithoutLiquidity, nil
	case "full", "all":
		return ScanFull, nil
	}
	return "", fmt.Errorf("unknown scan mode: %q", s)
}

// ScanOutcome summarizes how a scan finished
type ScanOutcome string

const (
	OutcomeComplete             ScanOutcome = "complete"
	OutcomeCompleteWithFailures ScanOutcome = "complete_with_failures"
)

// ScanResult is the output of one scan pass
type ScanResult struct {
	ScanID            string             `json:"scanId"`
	Mode              ScanMode           `json:"mode"`
	EnrichedPositions []EnrichedPosition `json:"enrichedPositions"`
	FailedPools       []string           `json:"failedPools"`
	PoolsScanned      int                `json:"poolsScanned"`
	RawPositions      int                `json:"rawPositions"`
	StartedAt         time.Time          `json:"startedAt"`
	Duration          time.Duration      `json:"duration"`
}

// Outcome reports whether any pool failed during the scan
func (r ScanResult) Outcome() ScanOutcome {
	if len(r.FailedPools) > 0 {
		return OutcomeCompleteWithFailures
	}
	return OutcomeComplete
}

// Progress is emitted after each scan batch
type Progress struct {
	Message   string
	Processed int
	Total     int
	ETA       time.Duration
}
