package services

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/utils"
)

// PositionFilter selects positions by status
type PositionFilter string

const (
	FilterAll      PositionFilter = "all"
	FilterActive   PositionFilter = "active"
	FilterInactive PositionFilter = "inactive"
	FilterEmpty    PositionFilter = "empty"
)

// SortOrder orders positions by total liquidity
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// ParsePositionFilter parses a filter name; empty means all
func ParsePositionFilter(s string) (PositionFilter, error) {
	switch f := PositionFilter(strings.ToLower(s)); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterInactive, FilterEmpty:
		return f, nil
	}
	return "", fmt.Errorf("unknown position filter: %q", s)
}

// ParseSortOrder parses a sort order; empty means descending
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case "":
		return SortDesc, nil
	case SortDesc, SortAsc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order: %q", s)
}

// PositionQuery describes a view over cached positions
type PositionQuery struct {
	Filter PositionFilter
	Search string
	Sort   SortOrder
}

// QueryPositions filters, searches and sorts positions.
// Search matches the BASE/QUOTE pair symbol or the pool address, case-insensitively.
func QueryPositions(positions []models.EnrichedPosition, q PositionQuery) []models.EnrichedPosition {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := utils.Filter(positions, func(p models.EnrichedPosition) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.PairSymbol()), search) &&
			!strings.Contains(strings.ToLower(p.PoolAddress), search) {
			return false
		}

		switch q.Filter {
		case FilterActive:
			return p.Status() == models.StatusActive
		case FilterInactive:
			return p.Status() == models.StatusOutOfRange
		case FilterEmpty:
			return p.Status() == models.StatusEmpty
		}
		return true
	})

	liquidity := make(map[string]*big.Int, len(out))
	for _, p := range out {
		liquidity[p.Key] = p.Position.TotalLiquidity()
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := liquidity[out[i].Key], liquidity[out[j].Key]
		if c := a.Cmp(b); c != 0 {
			if q.Sort == SortAsc {
				return c < 0
			}
			return c > 0
		}
		return out[i].Key < out[j].Key
	})

	return out
}

// PositionSummary counts positions by status
type PositionSummary struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	OutOfRange int `json:"outOfRange"`
	Empty      int `json:"empty"`
}

// SummarizePositions counts positions by derived status
func SummarizePositions(positions []models.EnrichedPosition) PositionSummary {
	summary := PositionSummary{Total: len(positions)}
	for _, p := range positions {
		switch p.Status() {
		case models.StatusActive:
			summary.Active++
		case models.StatusOutOfRange:
			summary.OutOfRange++
		case models.StatusEmpty:
			summary.Empty++
		}
	}
	return summary
}
