package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PoolSummary is a directory entry describing a pool with summary stats
type PoolSummary struct {
	Address      string          `json:"address"`
	BaseSymbol   string          `json:"baseSymbol"`
	QuoteSymbol  string          `json:"quoteSymbol"`
	BaseLogoURI  string          `json:"baseLogoURI,omitempty"`
	QuoteLogoURI string          `json:"quoteLogoURI,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Liquidity    decimal.Decimal `json:"liquidity"`
}

// Validate performs structural checks on a cached pool summary
func (p PoolSummary) Validate() error {
	if p.Address == "" {
		return errors.New("pool address is required")
	}
	if p.BaseSymbol == "" || p.QuoteSymbol == "" {
		return errors.New("pool symbols are required")
	}
	if p.Liquidity.IsNegative() {
		return errors.New("pool liquidity is negative")
	}
	return nil
}

// PoolDetails is the subset of the pair account needed for status and enrichment
type PoolDetails struct {
	Address    string `json:"address"`
	ActiveID   int32  `json:"activeId"`
	BinStep    uint16 `json:"binStep"`
	TokenMintX string `json:"tokenMintX"`
	TokenMintY string `json:"tokenMintY"`
}

// PoolReserves holds the raw token balances of a pair's vaults
type PoolReserves struct {
	Base  decimal.Decimal
	Quote decimal.Decimal
}
