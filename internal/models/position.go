package models

import (
	"errors"
	"fmt"
	"math/big"
)

// PositionStatus is the derived state of a position relative to its pool
type PositionStatus string

const (
	StatusActive     PositionStatus = "active"
	StatusOutOfRange PositionStatus = "out_of_range"
	StatusEmpty      PositionStatus = "empty"
)

// RawPosition is a position account as read from chain, before enrichment
type RawPosition struct {
	PositionMint    string   `json:"positionMint"`
	Position        string   `json:"position"`
	PoolAddress     string   `json:"pair"`
	LowerBinID      int32    `json:"lowerBinId"`
	UpperBinID      int32    `json:"upperBinId"`
	LiquidityShares []string `json:"liquidityShares"`
}

// TotalLiquidity sums the per-bin liquidity shares. Unparseable shares count as zero.
func (p RawPosition) TotalLiquidity() *big.Int {
	total := new(big.Int)
	for _, s := range p.LiquidityShares {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			continue
		}
		total.Add(total, v)
	}
	return total
}

// IsEmpty reports whether the position holds no liquidity
func (p RawPosition) IsEmpty() bool {
	return p.TotalLiquidity().Sign() == 0
}

// InRange reports whether activeID falls inside the position's bin range, inclusive
func (p RawPosition) InRange(activeID int32) bool {
	return p.LowerBinID <= activeID && activeID <= p.UpperBinID
}

// Validate performs structural checks on a raw position
func (p RawPosition) Validate() error {
	if p.PositionMint == "" {
		return errors.New("position mint is required")
	}
	if p.PoolAddress == "" {
		return errors.New("pool address is required")
	}
	if p.LowerBinID > p.UpperBinID {
		return fmt.Errorf("lower bin %d above upper bin %d", p.LowerBinID, p.UpperBinID)
	}
	for i, s := range p.LiquidityShares {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return fmt.Errorf("liquidity share %d is not an integer: %q", i, s)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("liquidity share %d is negative", i)
		}
	}
	return nil
}

// EnrichedPosition joins a raw position with its pool state and token metadata
type EnrichedPosition struct {
	Key         string      `json:"key"`
	Position    RawPosition `json:"position"`
	PoolDetails PoolDetails `json:"poolDetails"`
	BaseToken   TokenInfo   `json:"baseToken"`
	QuoteToken  TokenInfo   `json:"quoteToken"`
	PoolAddress string      `json:"poolAddress"`
}

// Status derives the position status. Empty takes precedence over range checks.
func (e EnrichedPosition) Status() PositionStatus {
	if e.Position.IsEmpty() {
		return StatusEmpty
	}
	if e.Position.InRange(e.PoolDetails.ActiveID) {
		return StatusActive
	}
	return StatusOutOfRange
}

// PairSymbol returns the "BASE/QUOTE" label of the position's pool
func (e EnrichedPosition) PairSymbol() string {
	return e.BaseToken.Symbol + "/" + e.QuoteToken.Symbol
}

// Validate checks that a cached enriched position is structurally sound
func (e EnrichedPosition) Validate() error {
	if e.Key == "" {
		return errors.New("key is required")
	}
	if e.Key != e.Position.PositionMint {
		return fmt.Errorf("key %s does not match position mint %s", e.Key, e.Position.PositionMint)
	}
	if err := e.Position.Validate(); err != nil {
		return fmt.Errorf("position %s: %w", e.Key, err)
	}
	if e.PoolAddress == "" {
		return fmt.Errorf("position %s: pool address is required", e.Key)
	}
	if e.BaseToken.MintAddress == "" || e.QuoteToken.MintAddress == "" {
		return fmt.Errorf("position %s: token metadata is incomplete", e.Key)
	}
	return nil
}
