package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/kvstore"
)

// UserPoolsKey returns the store key holding the pools a wallet created
func UserPoolsKey(wallet string) string {
	return "saros_dlmm_user_pools_" + wallet
}

// UserPools tracks pools created by each wallet
type UserPools struct {
	store  kvstore.Store
	mutex  sync.Mutex
	logger zerolog.Logger
}

// NewUserPools creates a user pool registry over store
func NewUserPools(store kvstore.Store, logger zerolog.Logger) *UserPools {
	return &UserPools{
		store:  store,
		logger: logger.With().Str("component", "user_pools").Logger(),
	}
}

// Add records pool as created by wallet. Already recorded pools are left in place.
func (u *UserPools) Add(ctx context.Context, wallet, pool string) error {
	if wallet == "" || pool == "" {
		return errors.New("wallet and pool are required")
	}

	u.mutex.Lock()
	defer u.mutex.Unlock()

	existing, err := u.List(ctx, wallet)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p == pool {
			return nil
		}
	}

	if err := kvstore.SetJSON(ctx, u.store, UserPoolsKey(wallet), append([]string{pool}, existing...)); err != nil {
		return fmt.Errorf("failed to update user pools: %w", err)
	}
	return nil
}

// List returns the pools wallet created, newest first
func (u *UserPools) List(ctx context.Context, wallet string) ([]string, error) {
	if wallet == "" {
		return []string{}, nil
	}

	var pools []string
	found, err := kvstore.GetJSON(ctx, u.store, UserPoolsKey(wallet), &pools)
	if found && err != nil {
		u.logger.Warn().Err(err).Str("wallet", wallet).Msg("Ignoring malformed user pool list")
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if pools == nil {
		pools = []string{}
	}
	return pools, nil
}
