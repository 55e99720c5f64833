package solana

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/lbscout/internal/models"
)

func testKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func buildPair(binStep uint8, activeID uint32, mintX, mintY solana.PublicKey) []byte {
	data := append([]byte{}, pairDiscriminator[:]...)
	data = append(data, 255)
	data = append(data, testKey(9).Bytes()...)
	data = append(data, binStep, binStep)
	data = append(data, mintX.Bytes()...)
	data = append(data, mintY.Bytes()...)
	// static fee parameters
	data = append(data, make([]byte, 20)...)
	data = binary.LittleEndian.AppendUint32(data, activeID)
	return append(data, make([]byte, 64)...)
}

func buildPosition(pair, mint solana.PublicKey, lower, upper int32, shares map[int]*big.Int) []byte {
	data := append([]byte{}, positionDiscriminator[:]...)
	data = append(data, pair.Bytes()...)
	data = append(data, mint.Bytes()...)
	for i := 0; i < binsPerPosition; i++ {
		var le [16]byte
		if v, ok := shares[i]; ok {
			be := v.FillBytes(make([]byte, 16))
			for j := 0; j < 16; j++ {
				le[j] = be[15-j]
			}
		}
		data = append(data, le[:]...)
	}
	data = binary.LittleEndian.AppendUint32(data, uint32(lower))
	data = binary.LittleEndian.AppendUint32(data, uint32(upper))
	return append(data, make([]byte, 8)...)
}

func borshString(s string) []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(s)))
	return append(out, s...)
}

func TestDecodePair(t *testing.T) {
	mintX, mintY := testKey(1), testKey(2)
	data := buildPair(25, BinIDOffset+12, mintX, mintY)

	details, err := DecodePair(testKey(3), data)
	require.NoError(t, err)

	assert.Equal(t, testKey(3).String(), details.Address)
	assert.Equal(t, uint16(25), details.BinStep)
	assert.Equal(t, int32(BinIDOffset+12), details.ActiveID)
	assert.Equal(t, mintX.String(), details.TokenMintX)
	assert.Equal(t, mintY.String(), details.TokenMintY)
}

func TestDecodePairRejectsWrongDiscriminator(t *testing.T) {
	data := buildPair(1, 1, testKey(1), testKey(2))
	data[0] ^= 0xff

	_, err := DecodePair(testKey(3), data)
	assert.ErrorIs(t, err, ErrInvalidDiscriminator)
}

func TestDecodePairTruncated(t *testing.T) {
	_, err := DecodePair(testKey(3), pairDiscriminator[:])
	assert.Error(t, err)
}

func TestDecodePosition(t *testing.T) {
	big128, ok := new(big.Int).SetString("170141183460469231731687303715884105728", 10) // 2^127
	require.True(t, ok)

	data := buildPosition(testKey(4), testKey(5), -10, 53, map[int]*big.Int{
		0:  big.NewInt(1000),
		63: big128,
	})

	pos, err := DecodePosition(testKey(6), data)
	require.NoError(t, err)

	assert.Equal(t, testKey(5).String(), pos.PositionMint)
	assert.Equal(t, testKey(6).String(), pos.Position)
	assert.Equal(t, testKey(4).String(), pos.PoolAddress)
	assert.Equal(t, int32(-10), pos.LowerBinID)
	assert.Equal(t, int32(53), pos.UpperBinID)
	require.Len(t, pos.LiquidityShares, binsPerPosition)
	assert.Equal(t, "1000", pos.LiquidityShares[0])
	assert.Equal(t, "0", pos.LiquidityShares[1])
	assert.Equal(t, big128.String(), pos.LiquidityShares[63])
	require.NoError(t, pos.Validate())
}

func TestDecodeMetadata(t *testing.T) {
	data := []byte{4}
	data = append(data, testKey(7).Bytes()...)
	data = append(data, testKey(8).Bytes()...)
	data = append(data, borshString("Wrapped SOL\x00\x00\x00")...)
	data = append(data, borshString("SOL\x00\x00")...)
	data = append(data, borshString("https://example.com/sol.json\x00")...)
	data = append(data, make([]byte, 32)...)

	name, symbol, uri, err := DecodeMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped SOL", name)
	assert.Equal(t, "SOL", symbol)
	assert.Equal(t, "https://example.com/sol.json", uri)
}

func TestDecodeMintDecimals(t *testing.T) {
	data := make([]byte, 82)
	data[mintDecimalsOffset] = 9

	decimals, err := DecodeMintDecimals(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), decimals)

	_, err = DecodeMintDecimals(data[:10])
	assert.Error(t, err)
}

func TestDecodeTokenAccount(t *testing.T) {
	data := make([]byte, 165)
	copy(data, testKey(3).Bytes())
	binary.LittleEndian.PutUint64(data[tokenAccountAmountStart:], 1)

	mint, amount, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, testKey(3), mint)
	assert.Equal(t, uint64(1), amount)

	_, _, err = DecodeTokenAccount(data[:40])
	assert.Error(t, err)
}

func TestDerivePositionAddress(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("1qbkdrr3z4ryLA7pZykqxvxWPoeifcVKo6ZG9CfkvVE")

	a, err := DerivePositionAddress(testKey(1), program)
	require.NoError(t, err)
	again, err := DerivePositionAddress(testKey(1), program)
	require.NoError(t, err)
	b, err := DerivePositionAddress(testKey(2), program)
	require.NoError(t, err)

	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
}

func poolDetailsFor(pool, mintX, mintY solana.PublicKey) models.PoolDetails {
	return models.PoolDetails{Address: pool.String(), TokenMintX: mintX.String(), TokenMintY: mintY.String()}
}
