package services

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/solana"
)

var errBoom = errors.New("boom")

type fakeMetadata struct {
	mutex sync.Mutex
	data  map[string]solana.TokenMetadata
	errs  map[string]error
	calls map[string]int
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		data:  make(map[string]solana.TokenMetadata),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeMetadata) GetTokenMetadata(_ context.Context, mint string) (solana.TokenMetadata, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls[mint]++
	if err, ok := f.errs[mint]; ok {
		return solana.TokenMetadata{}, err
	}
	return f.data[mint], nil
}

// fakeTokens resolves any mint to a fixed symbol unless told to fail
type fakeTokens struct {
	fail map[string]bool
}

func (f fakeTokens) Resolve(_ context.Context, mint string) (models.TokenInfo, error) {
	if f.fail[mint] {
		return models.TokenInfo{}, errBoom
	}
	return models.TokenInfo{MintAddress: mint, Symbol: "T" + mint, Decimals: 6}, nil
}

type fakeChain struct {
	mutex     sync.Mutex
	addresses []string
	pools     map[string]models.PoolDetails
	poolErrs  map[string]error
	reserves  map[string]models.PoolReserves
	reads     map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		pools:    make(map[string]models.PoolDetails),
		poolErrs: make(map[string]error),
		reserves: make(map[string]models.PoolReserves),
		reads:    make(map[string]int),
	}
}

func (f *fakeChain) addPool(address, mintX, mintY string, activeID int32, base, quote int64) {
	f.addresses = append(f.addresses, address)
	f.pools[address] = models.PoolDetails{
		Address:    address,
		ActiveID:   activeID,
		BinStep:    1,
		TokenMintX: mintX,
		TokenMintY: mintY,
	}
	f.reserves[address] = models.PoolReserves{Base: decimal.NewFromInt(base), Quote: decimal.NewFromInt(quote)}
}

func (f *fakeChain) ListPoolAddresses(context.Context) ([]string, error) {
	return f.addresses, nil
}

func (f *fakeChain) GetPoolAccount(_ context.Context, address string) (models.PoolDetails, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.reads[address]++
	if err, ok := f.poolErrs[address]; ok {
		return models.PoolDetails{}, err
	}
	d, ok := f.pools[address]
	if !ok {
		return models.PoolDetails{}, solana.ErrAccountNotFound
	}
	return d, nil
}

func (f *fakeChain) GetPoolReserves(_ context.Context, pool models.PoolDetails) (models.PoolReserves, error) {
	return f.reserves[pool.Address], nil
}

func (f *fakeChain) readCount(address string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.reads[address]
}

func rawPosition(mint, pool string, lower, upper int32, shares ...string) models.RawPosition {
	return models.RawPosition{
		PositionMint:    mint,
		Position:        "acct-" + mint,
		PoolAddress:     pool,
		LowerBinID:      lower,
		UpperBinID:      upper,
		LiquidityShares: shares,
	}
}

func enrichedPosition(mint, pool string, active, lower, upper int32, shares ...string) models.EnrichedPosition {
	return models.EnrichedPosition{
		Key:         mint,
		Position:    rawPosition(mint, pool, lower, upper, shares...),
		PoolDetails: models.PoolDetails{Address: pool, ActiveID: active},
		BaseToken:   models.TokenInfo{MintAddress: "x", Symbol: "SOL"},
		QuoteToken:  models.TokenInfo{MintAddress: "y", Symbol: "USDC"},
		PoolAddress: pool,
	}
}
