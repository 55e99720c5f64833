package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/lbscout/internal/models"
)

func viewFixture() []models.EnrichedPosition {
	sol := enrichedPosition("m-active", "PoolSOL", 5, 0, 10, "300")
	small := enrichedPosition("m-small", "PoolSOL", 5, 0, 10, "20")
	out := enrichedPosition("m-out", "PoolBONK", 50, 0, 10, "100")
	out.BaseToken.Symbol = "BONK"
	empty := enrichedPosition("m-empty", "PoolBONK", 5, 0, 10, "0")
	empty.BaseToken.Symbol = "BONK"
	return []models.EnrichedPosition{small, out, sol, empty}
}

func keys(positions []models.EnrichedPosition) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.Key
	}
	return out
}

func TestQueryPositionsFilter(t *testing.T) {
	positions := viewFixture()

	assert.Equal(t, []string{"m-active", "m-out", "m-small", "m-empty"}, keys(QueryPositions(positions, PositionQuery{Filter: FilterAll, Sort: SortDesc})))
	assert.Equal(t, []string{"m-active", "m-small"}, keys(QueryPositions(positions, PositionQuery{Filter: FilterActive})))
	assert.Equal(t, []string{"m-out"}, keys(QueryPositions(positions, PositionQuery{Filter: FilterInactive})))
	assert.Equal(t, []string{"m-empty"}, keys(QueryPositions(positions, PositionQuery{Filter: FilterEmpty})))
}

func TestQueryPositionsSortAscending(t *testing.T) {
	got := QueryPositions(viewFixture(), PositionQuery{Sort: SortAsc})
	assert.Equal(t, []string{"m-empty", "m-small", "m-out", "m-active"}, keys(got))
}

func TestQueryPositionsSearch(t *testing.T) {
	positions := viewFixture()

	assert.Equal(t, []string{"m-out", "m-empty"}, keys(QueryPositions(positions, PositionQuery{Search: "bonk/usdc"})))
	assert.Equal(t, []string{"m-active", "m-small"}, keys(QueryPositions(positions, PositionQuery{Search: "poolsol"})))
	assert.Empty(t, QueryPositions(positions, PositionQuery{Search: "nothing"}))
}

func TestSummarizePositions(t *testing.T) {
	summary := SummarizePositions(viewFixture())
	assert.Equal(t, PositionSummary{Total: 4, Active: 2, OutOfRange: 1, Empty: 1}, summary)
}

func TestParseViewOptions(t *testing.T) {
	f, err := ParsePositionFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParsePositionFilter("Inactive")
	require.NoError(t, err)
	assert.Equal(t, FilterInactive, f)

	_, err = ParsePositionFilter("stale")
	assert.Error(t, err)

	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortDesc, o)

	_, err = ParseSortOrder("random")
	assert.Error(t, err)
}
