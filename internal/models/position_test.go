package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enriched(lower, upper, active int32, shares ...string) EnrichedPosition {
	return EnrichedPosition{
		Key: "mint",
		Position: RawPosition{
			PositionMint:    "mint",
			PoolAddress:     "pool",
			LowerBinID:      lower,
			UpperBinID:      upper,
			LiquidityShares: shares,
		},
		PoolDetails: PoolDetails{ActiveID: active},
		BaseToken:   TokenInfo{MintAddress: "base", Symbol: "SOL"},
		QuoteToken:  TokenInfo{MintAddress: "quote", Symbol: "USDC"},
		PoolAddress: "pool",
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		position EnrichedPosition
		want     PositionStatus
	}{
		{"active inside range", enriched(100, 110, 105, "10", "0"), StatusActive},
		{"out of range above", enriched(100, 110, 111, "10"), StatusOutOfRange},
		{"empty even when in range", enriched(100, 110, 105, "0", "0"), StatusEmpty},
		{"lower bound inclusive", enriched(100, 110, 100, "1"), StatusActive},
		{"upper bound inclusive", enriched(100, 110, 110, "1"), StatusActive},
		{"out of range below", enriched(100, 110, 99, "1"), StatusOutOfRange},
		{"no shares is empty", enriched(100, 110, 105), StatusEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.position.Status())
		})
	}
}

func TestTotalLiquidity(t *testing.T) {
	p := RawPosition{LiquidityShares: []string{
		"340282366920938463463374607431768211455",
		"1",
		"garbage",
	}}

	assert.Equal(t, "340282366920938463463374607431768211456", p.TotalLiquidity().String())
	assert.False(t, p.IsEmpty())
}

func TestEnrichedPositionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, enriched(1, 2, 1, "5").Validate())
	})

	t.Run("key mismatch", func(t *testing.T) {
		e := enriched(1, 2, 1, "5")
		e.Key = "other"
		assert.Error(t, e.Validate())
	})

	t.Run("inverted range", func(t *testing.T) {
		assert.Error(t, enriched(5, 2, 1, "5").Validate())
	})

	t.Run("negative share", func(t *testing.T) {
		assert.Error(t, enriched(1, 2, 1, "-5").Validate())
	})

	t.Run("missing token metadata", func(t *testing.T) {
		e := enriched(1, 2, 1, "5")
		e.QuoteToken.MintAddress = ""
		assert.Error(t, e.Validate())
	})
}

func TestParseScanMode(t *testing.T) {
	mode, err := ParseScanMode("withLiquidity")
	require.NoError(t, err)
	assert.Equal(t, ScanWithLiquidity, mode)

	mode, err = ParseScanMode(" FULL ")
	require.NoError(t, err)
	assert.Equal(t, ScanFull, mode)

	mode, err = ParseScanMode("without-liquidity")
	require.NoError(t, err)
	assert.Equal(t, ScanWithoutLiquidity, mode)

	_, err = ParseScanMode("sideways")
	assert.Error(t, err)
}

func TestScanResultOutcome(t *testing.T) {
	assert.Equal(t, OutcomeComplete, ScanResult{}.Outcome())
	assert.Equal(t, OutcomeCompleteWithFailures, ScanResult{FailedPools: []string{"p"}}.Outcome())
}
