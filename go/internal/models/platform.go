package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PlatformSnapshot holds the aggregate platform counters read from the ledger.
// AverageBidValue is already in display units.
type PlatformSnapshot struct {
	TotalAuctionCount       uint64          `json:"total_auction_count"`
	TotalActiveAuctionCount uint64          `json:"total_active_auction_count"`
	TotalBidders            uint64          `json:"total_bidders"`
	TotalBidCount           uint64          `json:"total_bid_count"`
	TotalVolumeBid          *big.Int        `json:"total_volume_bid"`
	HighestBid              *big.Int        `json:"highest_bid"`
	HighestBidder           string          `json:"highest_bidder,omitempty"`
	AverageBidValue         decimal.Decimal `json:"average_bid_value"`
	TotalUsers              uint64          `json:"total_users"`
	FetchedAt               time.Time       `json:"fetched_at"`
}

// UpcomingCount is the number of auctions that are not currently active.
func (p PlatformSnapshot) UpcomingCount() uint64 {
	if p.TotalActiveAuctionCount >= p.TotalAuctionCount {
		return 0
	}
	return p.TotalAuctionCount - p.TotalActiveAuctionCount
}

// Clone returns a deep copy safe to hand to readers.
func (p *PlatformSnapshot) Clone() *PlatformSnapshot {
	c := *p
	c.TotalVolumeBid = copyInt(p.TotalVolumeBid)
	c.HighestBid = copyInt(p.HighestBid)
	return &c
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
