package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wnt/lbscout/internal/models"
)

// solDecimals is the number of decimal places between lamports and SOL
const solDecimals = 9

// PositionLoader loads a wallet's cached positions
type PositionLoader interface {
	Load(ctx context.Context, wallet string) (map[string]models.EnrichedPosition, error)
}

// BalanceReader reads a wallet's SOL balance in lamports
type BalanceReader interface {
	GetBalance(ctx context.Context, wallet string) (uint64, error)
}

// DashboardData is the portfolio overview for one wallet
type DashboardData struct {
	Wallet       string               `json:"wallet"`
	SOLBalance   decimal.Decimal      `json:"solBalance"`
	Positions    PositionSummary      `json:"positions"`
	CreatedPools []models.PoolSummary `json:"createdPools"`
	CreatedCount int                  `json:"createdCount"`
	Activities   []models.Activity    `json:"activities"`
}

// Dashboard assembles the portfolio overview from cached state
type Dashboard struct {
	positions PositionLoader
	balances  BalanceReader
	directory *PoolDirectory
	userPools *UserPools
	activity  *ActivityLog
}

// NewDashboard creates a dashboard. balances may be nil to skip the balance read.
func NewDashboard(positions PositionLoader, balances BalanceReader, directory *PoolDirectory, userPools *UserPools, activity *ActivityLog) *Dashboard {
	return &Dashboard{
		positions: positions,
		balances:  balances,
		directory: directory,
		userPools: userPools,
		activity:  activity,
	}
}

// Build reads only cached data plus the wallet balance; it never scans
func (d *Dashboard) Build(ctx context.Context, wallet string) (DashboardData, error) {
	data := DashboardData{Wallet: wallet}

	if d.balances != nil {
		lamports, err := d.balances.GetBalance(ctx, wallet)
		if err != nil {
			return data, fmt.Errorf("failed to read balance: %w", err)
		}
		data.SOLBalance = decimal.NewFromInt(int64(lamports)).Shift(-solDecimals)
	}

	cached, err := d.positions.Load(ctx, wallet)
	if err != nil {
		return data, fmt.Errorf("failed to load positions: %w", err)
	}
	positions := make([]models.EnrichedPosition, 0, len(cached))
	for _, p := range cached {
		positions = append(positions, p)
	}
	data.Positions = SummarizePositions(positions)

	created, err := d.userPools.List(ctx, wallet)
	if err != nil {
		return data, err
	}
	data.CreatedCount = len(created)
	data.CreatedPools = []models.PoolSummary{}

	if len(created) > 0 {
		pools, err := d.directory.Load(ctx)
		if err != nil {
			return data, err
		}
		byAddress := make(map[string]models.PoolSummary, len(pools))
		for _, p := range pools {
			byAddress[p.Address] = p
		}
		for _, address := range created {
			if p, ok := byAddress[address]; ok {
				data.CreatedPools = append(data.CreatedPools, p)
			}
		}
	}

	data.Activities, err = d.activity.List(ctx)
	if err != nil {
		return data, err
	}

	return data, nil
}
