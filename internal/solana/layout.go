package solana

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/wnt/lbscout/internal/models"
)

// BinIDOffset is the bin id at which price equals one
const BinIDOffset = 1 << 23

const (
	binsPerPosition         = 64
	mintDecimalsOffset      = 44
	tokenAccountMintEnd     = 32
	tokenAccountAmountStart = 64
	tokenAccountAmountEnd   = 72
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidDiscriminator = errors.New("account discriminator mismatch")

	pairDiscriminator     = accountDiscriminator("Pair")
	positionDiscriminator = accountDiscriminator("Position")
)

// accountDiscriminator returns the Anchor discriminator for an account type
func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

type staticFeeParameters struct {
	BaseFactor               uint16
	FilterPeriod             uint16
	DecayPeriod              uint16
	ReductionFactor          uint16
	VariableFeeControl       uint32
	MaxVolatilityAccumulator uint32
	ProtocolShare            uint16
	Space                    [2]uint8
}

// pairLayout is the leading part of a pair account; trailing fields are not decoded
type pairLayout struct {
	Discriminator       [8]byte
	Bump                [1]uint8
	LiquidityBookConfig solana.PublicKey
	BinStep             uint8
	BinStepSeed         [1]uint8
	TokenMintX          solana.PublicKey
	TokenMintY          solana.PublicKey
	StaticFee           staticFeeParameters
	ActiveID            uint32
}

type positionLayout struct {
	Discriminator   [8]byte
	Pair            solana.PublicKey
	PositionMint    solana.PublicKey
	LiquidityShares [binsPerPosition][16]byte
	LowerBinID      int32
	UpperBinID      int32
}

// DecodePair decodes a pair account into pool details
func DecodePair(address solana.PublicKey, data []byte) (models.PoolDetails, error) {
	var pair pairLayout
	if err := bin.NewBorshDecoder(data).Decode(&pair); err != nil {
		return models.PoolDetails{}, fmt.Errorf("failed to decode pair %s: %w", address, err)
	}
	if pair.Discriminator != pairDiscriminator {
		return models.PoolDetails{}, fmt.Errorf("pair %s: %w", address, ErrInvalidDiscriminator)
	}

	return models.PoolDetails{
		Address:    address.String(),
		ActiveID:   int32(pair.ActiveID),
		BinStep:    uint16(pair.BinStep),
		TokenMintX: pair.TokenMintX.String(),
		TokenMintY: pair.TokenMintY.String(),
	}, nil
}

// DecodePosition decodes a position account
func DecodePosition(address solana.PublicKey, data []byte) (models.RawPosition, error) {
	var pos positionLayout
	if err := bin.NewBorshDecoder(data).Decode(&pos); err != nil {
		return models.RawPosition{}, fmt.Errorf("failed to decode position %s: %w", address, err)
	}
	if pos.Discriminator != positionDiscriminator {
		return models.RawPosition{}, fmt.Errorf("position %s: %w", address, ErrInvalidDiscriminator)
	}

	shares := make([]string, binsPerPosition)
	for i, raw := range pos.LiquidityShares {
		shares[i] = u128LE(raw).String()
	}

	return models.RawPosition{
		PositionMint:    pos.PositionMint.String(),
		Position:        address.String(),
		PoolAddress:     pos.Pair.String(),
		LowerBinID:      pos.LowerBinID,
		UpperBinID:      pos.UpperBinID,
		LiquidityShares: shares,
	}, nil
}

// DecodeMetadata extracts name, symbol and uri from a Metaplex metadata account
func DecodeMetadata(data []byte) (name, symbol, uri string, err error) {
	dec := bin.NewBorshDecoder(data)
	// key, update authority and mint precede the data fields
	if _, err := dec.ReadNBytes(1 + 32 + 32); err != nil {
		return "", "", "", fmt.Errorf("failed to decode metadata header: %w", err)
	}

	fields := make([]string, 3)
	for i := range fields {
		length, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to decode metadata field %d: %w", i, err)
		}
		raw, err := dec.ReadNBytes(int(length))
		if err != nil {
			return "", "", "", fmt.Errorf("failed to decode metadata field %d: %w", i, err)
		}
		fields[i] = trimPadding(string(raw))
	}
	return fields[0], fields[1], fields[2], nil
}

// DecodeMintDecimals reads the decimals byte of an SPL mint account
func DecodeMintDecimals(data []byte) (uint8, error) {
	if len(data) <= mintDecimalsOffset {
		return 0, fmt.Errorf("mint account too short: %d bytes", len(data))
	}
	return data[mintDecimalsOffset], nil
}

// DecodeTokenAccount reads the mint and amount of an SPL token account
func DecodeTokenAccount(data []byte) (solana.PublicKey, uint64, error) {
	if len(data) < tokenAccountAmountEnd {
		return solana.PublicKey{}, 0, fmt.Errorf("token account too short: %d bytes", len(data))
	}
	mint := solana.PublicKeyFromBytes(data[:tokenAccountMintEnd])
	amount := binary.LittleEndian.Uint64(data[tokenAccountAmountStart:tokenAccountAmountEnd])
	return mint, amount, nil
}

func u128LE(raw [16]byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = raw[15-i]
	}
	return new(big.Int).SetBytes(be)
}

func trimPadding(s string) string {
	return strings.TrimSpace(string(bytes.TrimRight([]byte(s), "\x00")))
}
