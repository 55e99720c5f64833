package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/solana"
)

func TestPoolDirectoryRefresh(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain()
	for i, address := range []string{"p1", "p2", "p3", "p4", "p5"} {
		chain.addPool(address, "x"+address, "y"+address, solana.BinIDOffset, int64(i), 10)
	}
	chain.addresses = append(chain.addresses, "p1")
	chain.poolErrs["p3"] = errBoom

	store := kvstore.NewMemoryStore()
	dir := NewPoolDirectory(store, chain, fakeTokens{}, 2, zerolog.Nop())

	var progress []models.Progress
	pools, err := dir.Refresh(ctx, func(p models.Progress) { progress = append(progress, p) })
	require.NoError(t, err)

	require.Len(t, pools, 4)
	assert.Equal(t, []string{"p1", "p2", "p4", "p5"}, []string{pools[0].Address, pools[1].Address, pools[2].Address, pools[3].Address})
	assert.Equal(t, "Txp1", pools[0].BaseSymbol)
	assert.Equal(t, "10", pools[0].Liquidity.String())
	assert.Equal(t, "11", pools[1].Liquidity.String())
	assert.True(t, pools[0].Price.Equal(PriceFromBinID(1, solana.BinIDOffset, 6, 6)))

	require.Len(t, progress, 3)
	assert.Equal(t, 5, progress[2].Processed)
	assert.Equal(t, 5, progress[2].Total)
	assert.Equal(t, time.Duration(0), progress[2].ETA)

	cached, err := dir.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 4)
}

func TestPoolDirectoryLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		dir := NewPoolDirectory(kvstore.NewMemoryStore(), newFakeChain(), fakeTokens{}, 10, zerolog.Nop())
		pools, err := dir.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, pools)
	})

	t.Run("malformed json is discarded", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, PoolsKey, "[{"))
		dir := NewPoolDirectory(store, newFakeChain(), fakeTokens{}, 10, zerolog.Nop())

		pools, err := dir.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, pools)
		_, ok, _ := store.Get(ctx, PoolsKey)
		assert.False(t, ok)
	})

	t.Run("structurally invalid entry is discarded", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, PoolsKey, `[{"address":"","baseSymbol":"A","quoteSymbol":"B","price":"1","liquidity":"1"}]`))
		dir := NewPoolDirectory(store, newFakeChain(), fakeTokens{}, 10, zerolog.Nop())

		pools, err := dir.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, pools)
	})
}

func TestPoolDirectoryGet(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain()
	chain.addPool("p1", "x", "y", solana.BinIDOffset, 1, 1)

	dir := NewPoolDirectory(kvstore.NewMemoryStore(), chain, fakeTokens{}, 10, zerolog.Nop())

	pools, err := dir.Get(ctx, false, nil)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, 1, chain.readCount("p1"))

	_, err = dir.Get(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.readCount("p1"), "cached directory should be reused")

	_, err = dir.Get(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, chain.readCount("p1"))
}

func TestPriceFromBinID(t *testing.T) {
	assert.Equal(t, "1", PriceFromBinID(10, solana.BinIDOffset, 6, 6).String())
	assert.Equal(t, "1000", PriceFromBinID(10, solana.BinIDOffset, 9, 6).String())
	assert.Equal(t, "1.001", PriceFromBinID(10, solana.BinIDOffset+1, 6, 6).String())

	down := PriceFromBinID(100, solana.BinIDOffset-1, 6, 6)
	assert.True(t, down.LessThan(PriceFromBinID(100, solana.BinIDOffset, 6, 6)))

	assert.True(t, PriceFromBinID(100, 0, 6, 6).IsZero())
}
