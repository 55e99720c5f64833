package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/solana"
	"github.com/wnt/lbscout/internal/utils"
	"golang.org/x/sync/singleflight"
)

// MetadataSource reads on-chain token metadata
type MetadataSource interface {
	GetTokenMetadata(ctx context.Context, mint string) (solana.TokenMetadata, error)
}

// TokenLookup resolves a mint to display metadata
type TokenLookup interface {
	Resolve(ctx context.Context, mint string) (models.TokenInfo, error)
}

// offChainMetadata is the JSON document referenced by a metadata URI
type offChainMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image"`
}

// TokenResolver resolves token metadata, memoizing results for the process lifetime
type TokenResolver struct {
	chain  MetadataSource
	http   *utils.HTTPClient
	known  map[string]models.TokenInfo
	cache  map[string]models.TokenInfo
	mutex  sync.RWMutex
	flight singleflight.Group
	logger zerolog.Logger
}

// NewTokenResolver creates a resolver. http may be nil to skip off-chain JSON.
func NewTokenResolver(chain MetadataSource, http *utils.HTTPClient, logger zerolog.Logger) *TokenResolver {
	known := make(map[string]models.TokenInfo, len(knownTokens))
	for _, token := range knownTokens {
		known[token.MintAddress] = token
	}

	return &TokenResolver{
		chain:  chain,
		http:   http,
		known:  known,
		cache:  make(map[string]models.TokenInfo),
		logger: logger.With().Str("component", "token_resolver").Logger(),
	}
}

// Resolve returns metadata for mint. Known tokens and memoized results skip the network.
// A mint without Metaplex metadata falls back to its decimals and an abbreviated symbol.
func (r *TokenResolver) Resolve(ctx context.Context, mint string) (models.TokenInfo, error) {
	if mint == "" {
		return models.TokenInfo{}, errors.New("mint address cannot be empty")
	}

	if info, ok := r.known[mint]; ok {
		return info, nil
	}

	r.mutex.RLock()
	info, ok := r.cache[mint]
	r.mutex.RUnlock()
	if ok {
		return info, nil
	}

	v, err, _ := r.flight.Do(mint, func() (interface{}, error) {
		info, err := r.fetch(ctx, mint)
		if err != nil {
			return nil, err
		}
		r.mutex.Lock()
		r.cache[mint] = info
		r.mutex.Unlock()
		return info, nil
	})
	if err != nil {
		return models.TokenInfo{}, err
	}
	return v.(models.TokenInfo), nil
}

func (r *TokenResolver) fetch(ctx context.Context, mint string) (models.TokenInfo, error) {
	md, err := r.chain.GetTokenMetadata(ctx, mint)
	if err != nil {
		return models.TokenInfo{}, fmt.Errorf("failed to resolve token %s: %w", mint, err)
	}

	info := models.TokenInfo{
		MintAddress: mint,
		Symbol:      abbreviate(mint),
		Decimals:    md.Decimals,
	}

	if !md.HasMetadata {
		r.logger.Debug().Str("mint", mint).Msg("Token has no metadata, using fallback symbol")
		return info, nil
	}

	if md.Symbol != "" {
		info.Symbol = md.Symbol
	}
	info.Name = md.Name

	if md.URI == "" || r.http == nil {
		return info, nil
	}

	resp, err := r.http.Get(ctx, md.URI, nil)
	if err != nil {
		r.logger.Warn().Err(err).Str("mint", mint).Msg("Could not load off-chain metadata")
		return info, nil
	}

	var doc offChainMetadata
	if err := resp.DecodeJSON(&doc); err != nil {
		r.logger.Warn().Err(err).Str("mint", mint).Msg("Invalid off-chain metadata")
		return info, nil
	}

	switch {
	case doc.Symbol != "":
		info.Symbol = doc.Symbol
	case doc.Name != "" && md.Symbol == "":
		info.Symbol = doc.Name
	}
	if doc.Name != "" {
		info.Name = doc.Name
	}
	info.LogoURI = doc.Image

	return info, nil
}

// abbreviate shortens a mint address to its first four characters
func abbreviate(mint string) string {
	if len(mint) <= 4 {
		return mint + "..."
	}
	return mint[:4] + "..."
}
