package leaderboard

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/ledger/stub"
	"github.com/arjunamarcelino/velobid/go/internal/models"
)

func stat(addr string, bids uint64, spend int64) models.UserStat {
	return models.UserStat{Address: addr, TotalBids: bids, TotalSpend: big.NewInt(spend)}
}

func addresses(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Address)
	}
	return out
}

func newAggregator(stats []models.UserStat, cfg Config) (*Aggregator, *stub.Ledger) {
	clock := clockwork.NewFakeClock()
	l := stub.New(clock)
	l.UserStatsOrder = stats
	return NewAggregator(l, clock, cfg), l
}

func TestLoadRanksBothMetrics(t *testing.T) {
	a, _ := newAggregator([]models.UserStat{
		stat("a", 2, 50),
		stat("b", 0, 0),
		stat("c", 5, 10),
		stat("d", 2, 70),
		stat("e", 1, 0),
		stat("f", 9, 20),
	}, DefaultConfig())

	board, err := a.Load(context.Background())
	require.NoError(t, err)

	// a and d tie on bids; ledger order keeps a first
	assert.Equal(t, []string{"f", "c", "a"}, addresses(board.ByBids.Head))
	assert.Equal(t, []string{"d", "e"}, addresses(board.ByBids.Tail))

	assert.Equal(t, []string{"d", "a", "f"}, addresses(board.BySpend.Head))
	assert.Equal(t, []string{"c"}, addresses(board.BySpend.Tail))
}

func TestHeadAndTailPartitionFilteredSet(t *testing.T) {
	stats := []models.UserStat{
		stat("a", 1, 1), stat("b", 3, 3), stat("c", 0, 0), stat("d", 7, 7),
		stat("e", 3, 3), stat("f", 2, 2), stat("g", 4, 4),
	}
	a, _ := newAggregator(stats, DefaultConfig())

	board, err := a.Load(context.Background())
	require.NoError(t, err)

	for _, r := range []Ranking{board.ByBids, board.BySpend} {
		assert.LessOrEqual(t, len(r.Head), 3)
		all := r.Entries()
		assert.Len(t, all, 6)

		seen := make(map[string]bool)
		for i, e := range all {
			assert.False(t, seen[e.Address], "duplicate %s", e.Address)
			seen[e.Address] = true
			assert.Equal(t, i+1, e.Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, all[i-1].TotalBids, e.TotalBids)
			}
		}
		assert.False(t, seen["c"])
	}
}

func TestFewerThanHeadSize(t *testing.T) {
	a, _ := newAggregator([]models.UserStat{stat("a", 1, 1)}, DefaultConfig())

	board, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, board.ByBids.Head, 1)
	assert.Empty(t, board.ByBids.Tail)
}

func TestMaxEntriesCap(t *testing.T) {
	var stats []models.UserStat
	for i := 1; i <= 25; i++ {
		stats = append(stats, stat(string(rune('a'+i)), uint64(i), int64(i)))
	}
	a, _ := newAggregator(stats, Config{HeadSize: 3, MaxEntries: 20})

	board, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, board.ByBids.Entries(), 20)
	assert.Equal(t, uint64(25), board.ByBids.Head[0].TotalBids)
}

func TestLoadFailureReturnsNoBoard(t *testing.T) {
	a, l := newAggregator(nil, DefaultConfig())
	l.UserStatsErr = errors.New("timeout")

	board, err := a.Load(context.Background())
	assert.Nil(t, board)
	assert.ErrorIs(t, err, ledger.ErrRemoteRead)
}

func TestEntriesCarryDisplayFields(t *testing.T) {
	spend, _ := new(big.Int).SetString("1500000000000000000", 10)
	addr := "0x1234567890abcdef1234567890abcdef12345678"
	a, _ := newAggregator([]models.UserStat{{Address: addr, TotalBids: 1, TotalSpend: spend}}, DefaultConfig())

	board, err := a.Load(context.Background())
	require.NoError(t, err)
	e := board.BySpend.Head[0]
	assert.Equal(t, "1.5", e.SpendDisplay.String())
	assert.Equal(t, models.ShortAddress(addr), e.DisplayName)
}
