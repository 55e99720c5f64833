package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/rpc"
	"golang.org/x/sync/singleflight"
)

var (
	// Token2022ProgramID owns the position NFTs
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	// MetadataProgramID is the Metaplex token metadata program
	MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// maxMultipleAccounts is the getMultipleAccounts key limit
const maxMultipleAccounts = 100

// TokenMetadata is the on-chain view of a token mint
type TokenMetadata struct {
	Mint        string
	Decimals    uint8
	HasMetadata bool
	Name        string
	Symbol      string
	URI         string
}

// Client reads DLMM program state through the RPC pool
type Client struct {
	caller    *rpc.Caller
	programID solana.PublicKey
	logger    zerolog.Logger

	ownerTTL    time.Duration
	ownerMints  map[string]ownerEntry
	ownerMutex  sync.Mutex
	ownerFlight singleflight.Group
	now         func() time.Time
}

type ownerEntry struct {
	mints     []solana.PublicKey
	fetchedAt time.Time
}

// NewClient creates a chain client for the given DLMM program.
// The owner's position NFTs are cached for ownerTTL so a scan reads them once.
func NewClient(caller *rpc.Caller, programID string, ownerTTL time.Duration, logger zerolog.Logger) (*Client, error) {
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID %q: %w", programID, err)
	}

	return &Client{
		caller:     caller,
		programID:  pid,
		logger:     logger.With().Str("component", "chain_client").Logger(),
		ownerTTL:   ownerTTL,
		ownerMints: make(map[string]ownerEntry),
		now:        time.Now,
	}, nil
}

// GetPositionsForOwner returns the owner's positions in the given pool
func (c *Client) GetPositionsForOwner(ctx context.Context, pool, owner string) ([]models.RawPosition, error) {
	poolKey, err := solana.PublicKeyFromBase58(pool)
	if err != nil {
		return nil, fmt.Errorf("invalid pool address %q: %w", pool, err)
	}

	mints, err := c.positionMints(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(mints) == 0 {
		return nil, nil
	}

	addresses := make([]solana.PublicKey, 0, len(mints))
	for _, mint := range mints {
		addr, err := DerivePositionAddress(mint, c.programID)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}

	accounts, err := c.getMultipleAccounts(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions for pool %s: %w", pool, err)
	}

	var positions []models.RawPosition
	for i, data := range accounts {
		if data == nil {
			continue
		}
		pos, err := DecodePosition(addresses[i], data)
		if err != nil {
			c.logger.Debug().Err(err).Str("account", addresses[i].String()).Msg("Skipping undecodable position")
			continue
		}
		if pos.PoolAddress == poolKey.String() {
			positions = append(positions, pos)
		}
	}

	return positions, nil
}

// InvalidateOwner drops the cached position NFT list of owner
func (c *Client) InvalidateOwner(owner string) {
	c.ownerMutex.Lock()
	delete(c.ownerMints, owner)
	c.ownerMutex.Unlock()
}

// positionMints returns the mints of NFTs held by owner, cached per owner
func (c *Client) positionMints(ctx context.Context, owner string) ([]solana.PublicKey, error) {
	c.ownerMutex.Lock()
	entry, ok := c.ownerMints[owner]
	c.ownerMutex.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ownerTTL {
		return entry.mints, nil
	}

	v, err, _ := c.ownerFlight.Do(owner, func() (interface{}, error) {
		mints, err := c.fetchPositionMints(ctx, owner)
		if err != nil {
			return nil, err
		}
		c.ownerMutex.Lock()
		c.ownerMints[owner] = ownerEntry{mints: mints, fetchedAt: c.now()}
		c.ownerMutex.Unlock()
		return mints, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]solana.PublicKey), nil
}

func (c *Client) fetchPositionMints(ctx context.Context, owner string) ([]solana.PublicKey, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address %q: %w", owner, err)
	}

	var result *solanarpc.GetTokenAccountsResult
	err = c.caller.Do(ctx, "getTokenAccountsByOwner", func(ctx context.Context, client *solanarpc.Client) error {
		var err error
		result, err = client.GetTokenAccountsByOwner(ctx, ownerKey,
			&solanarpc.GetTokenAccountsConfig{ProgramId: Token2022ProgramID.ToPointer()},
			&solanarpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: solanarpc.CommitmentConfirmed},
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list token accounts for %s: %w", owner, err)
	}

	var mints []solana.PublicKey
	for _, acc := range result.Value {
		if acc == nil {
			continue
		}
		mint, amount, err := DecodeTokenAccount(acc.Account.Data.GetBinary())
		if err != nil {
			continue
		}
		if amount == 1 {
			mints = append(mints, mint)
		}
	}

	c.logger.Debug().Str("wallet", owner).Int("nfts", len(mints)).Msg("Loaded position NFT candidates")
	return mints, nil
}

// GetBalance returns the wallet's SOL balance in lamports
func (c *Client) GetBalance(ctx context.Context, wallet string) (uint64, error) {
	key, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}

	var result *solanarpc.GetBalanceResult
	err = c.caller.Do(ctx, "getBalance", func(ctx context.Context, client *solanarpc.Client) error {
		var err error
		result, err = client.GetBalance(ctx, key, solanarpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", wallet, err)
	}
	return result.Value, nil
}

// GetPoolAccount reads and decodes a pair account
func (c *Client) GetPoolAccount(ctx context.Context, address string) (models.PoolDetails, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return models.PoolDetails{}, fmt.Errorf("invalid pool address %q: %w", address, err)
	}

	data, err := c.getAccount(ctx, key)
	if err != nil {
		return models.PoolDetails{}, fmt.Errorf("failed to fetch pool %s: %w", address, err)
	}

	return DecodePair(key, data)
}

// GetTokenMetadata reads a mint and its Metaplex metadata account in one request
func (c *Client) GetTokenMetadata(ctx context.Context, mint string) (TokenMetadata, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}

	metadataKey, err := DeriveMetadataAddress(mintKey)
	if err != nil {
		return TokenMetadata{}, err
	}

	accounts, err := c.getMultipleAccounts(ctx, []solana.PublicKey{mintKey, metadataKey})
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to fetch token %s: %w", mint, err)
	}
	if accounts[0] == nil {
		return TokenMetadata{}, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}

	decimals, err := DecodeMintDecimals(accounts[0])
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("mint %s: %w", mint, err)
	}

	md := TokenMetadata{Mint: mint, Decimals: decimals}
	if accounts[1] == nil {
		return md, nil
	}

	name, symbol, uri, err := DecodeMetadata(accounts[1])
	if err != nil {
		c.logger.Debug().Err(err).Str("mint", mint).Msg("Ignoring undecodable metadata")
		return md, nil
	}
	md.HasMetadata = true
	md.Name, md.Symbol, md.URI = name, symbol, uri
	return md, nil
}

// ListPoolAddresses returns every pair account owned by the program
func (c *Client) ListPoolAddresses(ctx context.Context) ([]string, error) {
	zero := uint64(0)
	var accounts solanarpc.GetProgramAccountsResult
	err := c.caller.Do(ctx, "getProgramAccounts", func(ctx context.Context, client *solanarpc.Client) error {
		var err error
		accounts, err = client.GetProgramAccountsWithOpts(ctx, c.programID, &solanarpc.GetProgramAccountsOpts{
			Commitment: solanarpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
			DataSlice:  &solanarpc.DataSlice{Offset: &zero, Length: &zero},
			Filters: []solanarpc.RPCFilter{
				{Memcmp: &solanarpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(pairDiscriminator[:])}},
			},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	seen := make(map[string]bool, len(accounts))
	addresses := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		addr := acc.Pubkey.String()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// GetPoolReserves sums the pair's token balances for each side, in raw units
func (c *Client) GetPoolReserves(ctx context.Context, pool models.PoolDetails) (models.PoolReserves, error) {
	base, err := c.ownerBalance(ctx, pool.Address, pool.TokenMintX)
	if err != nil {
		return models.PoolReserves{}, err
	}
	quote, err := c.ownerBalance(ctx, pool.Address, pool.TokenMintY)
	if err != nil {
		return models.PoolReserves{}, err
	}
	return models.PoolReserves{Base: base, Quote: quote}, nil
}

func (c *Client) ownerBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	var result *solanarpc.GetTokenAccountsResult
	err = c.caller.Do(ctx, "getTokenAccountsByOwner", func(ctx context.Context, client *solanarpc.Client) error {
		var err error
		result, err = client.GetTokenAccountsByOwner(ctx, ownerKey,
			&solanarpc.GetTokenAccountsConfig{Mint: mintKey.ToPointer()},
			&solanarpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: solanarpc.CommitmentConfirmed},
		)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read reserve %s of %s: %w", mint, owner, err)
	}

	total := decimal.Zero
	for _, acc := range result.Value {
		if acc == nil {
			continue
		}
		_, amount, err := DecodeTokenAccount(acc.Account.Data.GetBinary())
		if err != nil {
			continue
		}
		total = total.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0))
	}
	return total, nil
}

func (c *Client) getAccount(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	var resp *solanarpc.GetAccountInfoResult
	err := c.caller.Do(ctx, "getAccountInfo", func(ctx context.Context, client *solanarpc.Client) error {
		var err error
		resp, err = client.GetAccountInfoWithOpts(ctx, key, &solanarpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: solanarpc.CommitmentConfirmed,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, solanarpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if resp == nil || resp.Value == nil {
		return nil, ErrAccountNotFound
	}
	return resp.Value.Data.GetBinary(), nil
}

// getMultipleAccounts fetches account data in chunks; missing accounts are nil
func (c *Client) getMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([][]byte, error) {
	out := make([][]byte, 0, len(keys))
	for start := 0; start < len(keys); start += maxMultipleAccounts {
		end := start + maxMultipleAccounts
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		var resp *solanarpc.GetMultipleAccountsResult
		err := c.caller.Do(ctx, "getMultipleAccounts", func(ctx context.Context, client *solanarpc.Client) error {
			var err error
			resp, err = client.GetMultipleAccountsWithOpts(ctx, chunk, &solanarpc.GetMultipleAccountsOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: solanarpc.CommitmentConfirmed,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Value) != len(chunk) {
			return nil, fmt.Errorf("getMultipleAccounts returned an unexpected number of accounts")
		}

		for _, acc := range resp.Value {
			if acc == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, acc.Data.GetBinary())
		}
	}
	return out, nil
}

// DerivePositionAddress derives the position account for a position NFT mint
func DerivePositionAddress(positionMint, programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("position"),
		positionMint.Bytes(),
	}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive position address: %w", err)
	}
	return addr, nil
}

// DeriveMetadataAddress derives the Metaplex metadata account for a mint
func DeriveMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		MetadataProgramID.Bytes(),
		mint.Bytes(),
	}, MetadataProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return addr, nil
}
