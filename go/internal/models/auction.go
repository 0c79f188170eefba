package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ZeroAddress is what the ledger returns for an unset address slot.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// AuctionState is the client-derived lifecycle state of an auction.
type AuctionState string

const (
	AuctionStateActive           AuctionState = "ACTIVE"
	AuctionStateEndedUnfinalized AuctionState = "ENDED_UNFINALIZED"
	AuctionStateEndedFinalized   AuctionState = "ENDED_FINALIZED"
)

// AuctionRecord is a read-through copy of one ledger auction.
// Monetary amounts are in the ledger's smallest unit.
type AuctionRecord struct {
	AuctionID      uint64    `json:"auction_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	EndTime        time.Time `json:"end_time"`
	StartingBid    *big.Int  `json:"starting_bid"`
	HighestBid     *big.Int  `json:"highest_bid"`
	HighestBidder  string    `json:"highest_bidder,omitempty"` // empty when nobody has bid
	Ended          bool      `json:"ended"`
	Winner         string    `json:"winner,omitempty"`
	TotalVolumeBid *big.Int  `json:"total_volume_bid"`
	Beneficiary    string    `json:"beneficiary"`
}

// State derives the lifecycle state at now. An auction past its end time stays
// EndedUnfinalized until a ledger read shows ended=true.
func (a AuctionRecord) State(now time.Time) AuctionState {
	switch {
	case a.Ended:
		return AuctionStateEndedFinalized
	case !now.Before(a.EndTime):
		return AuctionStateEndedUnfinalized
	default:
		return AuctionStateActive
	}
}

// NeedsFinalize reports whether the auction is past its end time but not yet
// closed on the ledger.
func NeedsFinalize(a AuctionRecord, now time.Time) bool {
	return a.State(now) == AuctionStateEndedUnfinalized
}

// DisplayedPrice is the higher of the starting bid and the current highest bid.
func (a AuctionRecord) DisplayedPrice() *big.Int {
	start := orZero(a.StartingBid)
	high := orZero(a.HighestBid)
	if high.Cmp(start) > 0 {
		return new(big.Int).Set(high)
	}
	return new(big.Int).Set(start)
}

// Clone returns a copy whose amounts share no memory with a.
func (a AuctionRecord) Clone() AuctionRecord {
	c := a
	c.StartingBid = copyInt(a.StartingBid)
	c.HighestBid = copyInt(a.HighestBid)
	c.TotalVolumeBid = copyInt(a.TotalVolumeBid)
	return c
}

// HasBidder reports whether a highest bidder is set.
func (a AuctionRecord) HasBidder() bool {
	return a.HighestBidder != ""
}

// TimeLeft renders the remaining time as "<h>h <m>m", or "Ended".
func TimeLeft(endTime, now time.Time) string {
	diff := endTime.Sub(now)
	if diff <= 0 {
		return "Ended"
	}
	secs := int64(diff / time.Second)
	return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
}

// NormalizeAddress maps the ledger's zero address to the empty string.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.EqualFold(addr, ZeroAddress) {
		return ""
	}
	return addr
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
