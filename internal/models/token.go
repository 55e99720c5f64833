package models

// TokenInfo holds display metadata for a token mint
type TokenInfo struct {
	MintAddress string `json:"mintAddress"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name,omitempty"`
	Decimals    uint8  `json:"decimals"`
	LogoURI     string `json:"logoURI,omitempty"`
}
