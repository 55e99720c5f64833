package services

import "github.com/wnt/lbscout/internal/models"

var knownTokens = []models.TokenInfo{
	{
		MintAddress: "So11111111111111111111111111111111111111112",
		Symbol:      "SOL",
		Name:        "Wrapped SOL",
		Decimals:    9,
	},
	{
		MintAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Symbol:      "USDC",
		Name:        "USD Coin",
		Decimals:    6,
	},
	{
		MintAddress: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
		Symbol:      "USDT",
		Name:        "USDT",
		Decimals:    6,
	},
	{
		MintAddress: "SarosY6Vscao718M4A778z4CGtvcwcGef5M9MEH1LGL",
		Symbol:      "SAROS",
		Name:        "Saros",
		Decimals:    6,
	},
}
