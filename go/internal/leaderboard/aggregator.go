// Package leaderboard ranks participants by bid count and by total spend.
package leaderboard

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

type Config struct {
	HeadSize int
	// MaxEntries caps each ranking after sorting. Zero keeps every qualifying entry.
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{
		HeadSize:   3,
		MaxEntries: 0,
	}
}

// Entry is one ranked participant.
type Entry struct {
	Rank         int             `json:"rank"`
	Address      string          `json:"address"`
	DisplayName  string          `json:"display_name"`
	TotalBids    uint64          `json:"total_bids"`
	TotalSpend   *big.Int        `json:"total_spend"`
	SpendDisplay decimal.Decimal `json:"spend_display"`
}

// Ranking is one metric's ordered entries, split so the head can be shown apart.
type Ranking struct {
	Head []Entry `json:"head"`
	Tail []Entry `json:"tail"`
}

// Entries returns head followed by tail.
func (r Ranking) Entries() []Entry {
	out := make([]Entry, 0, len(r.Head)+len(r.Tail))
	out = append(out, r.Head...)
	return append(out, r.Tail...)
}

// Board holds both rankings from one read.
type Board struct {
	ByBids    Ranking   `json:"by_bids"`
	BySpend   Ranking   `json:"by_spend"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Aggregator loads the participant table and ranks it.
type Aggregator struct {
	reader ledger.Reader
	clock  clockwork.Clock
	config Config
}

func NewAggregator(reader ledger.Reader, clock clockwork.Clock, cfg Config) *Aggregator {
	if cfg.HeadSize <= 0 {
		cfg.HeadSize = DefaultConfig().HeadSize
	}
	return &Aggregator{reader: reader, clock: clock, config: cfg}
}

// Load reads every participant once and ranks them. A failed read returns an
// ErrRemoteRead and no partial board.
func (a *Aggregator) Load(ctx context.Context) (*Board, error) {
	stats, err := a.reader.ReadAllUserStats(ctx)
	if err != nil {
		err = ledger.ReadError("read all user stats", err)
		log.Warn().Err(err).Msg("leaderboard load failed")
		return nil, err
	}

	board := &Board{
		ByBids: Rank(stats, func(s models.UserStat) bool { return s.TotalBids > 0 },
			func(x, y models.UserStat) bool { return x.TotalBids > y.TotalBids }, a.config),
		BySpend: Rank(stats, func(s models.UserStat) bool { return s.TotalSpend != nil && s.TotalSpend.Sign() > 0 },
			func(x, y models.UserStat) bool { return x.TotalSpend.Cmp(y.TotalSpend) > 0 }, a.config),
		FetchedAt: a.clock.Now(),
	}

	log.Debug().
		Int("participants", len(stats)).
		Int("by_bids", len(board.ByBids.Head)+len(board.ByBids.Tail)).
		Int("by_spend", len(board.BySpend.Head)+len(board.BySpend.Tail)).
		Msg("leaderboard loaded")

	return board, nil
}

// Rank keeps the stats accepted by keep, sorts them with higher (stable, so
// ties keep ledger order), applies the cap and splits off the head.
func Rank(stats []models.UserStat, keep func(models.UserStat) bool, higher func(x, y models.UserStat) bool, cfg Config) Ranking {
	filtered := make([]models.UserStat, 0, len(stats))
	for _, s := range stats {
		if keep(s) {
			filtered = append(filtered, s)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return higher(filtered[i], filtered[j])
	})

	if cfg.MaxEntries > 0 && len(filtered) > cfg.MaxEntries {
		filtered = filtered[:cfg.MaxEntries]
	}

	entries := make([]Entry, len(filtered))
	for i, s := range filtered {
		spend := new(big.Int)
		if s.TotalSpend != nil {
			spend.Set(s.TotalSpend)
		}
		entries[i] = Entry{
			Rank:         i + 1,
			Address:      s.Address,
			DisplayName:  models.ShortAddress(s.Address),
			TotalBids:    s.TotalBids,
			TotalSpend:   spend,
			SpendDisplay: units.ToDisplay(spend),
		}
	}

	head := cfg.HeadSize
	if head > len(entries) {
		head = len(entries)
	}
	return Ranking{
		Head: entries[:head:head],
		Tail: entries[head:],
	}
}
