// Package platform reads aggregate platform counters from the ledger.
package platform

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

// Fetcher performs one-shot platform reads and keeps the last good snapshot.
type Fetcher struct {
	reader ledger.Reader
	clock  clockwork.Clock

	mu     sync.RWMutex
	latest *models.PlatformSnapshot
}

func NewFetcher(reader ledger.Reader, clock clockwork.Clock) *Fetcher {
	return &Fetcher{
		reader: reader,
		clock:  clock,
	}
}

// Fetch issues a single platform read. On failure the previous snapshot is
// retained and an ErrRemoteRead is returned for the caller to log.
func (f *Fetcher) Fetch(ctx context.Context) (*models.PlatformSnapshot, error) {
	stats, err := f.reader.ReadPlatformStats(ctx)
	if err != nil {
		return nil, ledger.ReadError("read platform stats", err)
	}

	snap := &models.PlatformSnapshot{
		TotalAuctionCount:       stats.TotalAuction,
		TotalActiveAuctionCount: stats.TotalActiveAuction,
		TotalBidders:            stats.TotalBidders,
		TotalBidCount:           stats.TotalBid,
		TotalVolumeBid:          stats.TotalVolumeBid,
		HighestBid:              stats.HighestBid,
		HighestBidder:           stats.HighestBidder,
		AverageBidValue:         units.ToDisplay(stats.AverageBidValue),
		TotalUsers:              stats.TotalUsers,
		FetchedAt:               f.clock.Now(),
	}

	f.mu.Lock()
	f.latest = snap
	f.mu.Unlock()

	log.Debug().
		Uint64("total_auctions", snap.TotalAuctionCount).
		Uint64("active_auctions", snap.TotalActiveAuctionCount).
		Msg("platform snapshot fetched")

	return snap.Clone(), nil
}

// Latest returns a copy of the last good snapshot, or nil if none was fetched yet.
func (f *Fetcher) Latest() *models.PlatformSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return nil
	}
	return f.latest.Clone()
}

// TotalAuctionCount returns the auction count from the last good snapshot.
// ok is false when no snapshot has been fetched.
func (f *Fetcher) TotalAuctionCount() (count uint64, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return 0, false
	}
	return f.latest.TotalAuctionCount, true
}

// AuctionCount refreshes the snapshot and returns its auction count. When the
// read fails it falls back to the last good count; ok is false only when no
// snapshot has ever been fetched.
func (f *Fetcher) AuctionCount(ctx context.Context) (count uint64, ok bool) {
	snap, err := f.Fetch(ctx)
	if err == nil {
		return snap.TotalAuctionCount, true
	}
	if count, ok = f.TotalAuctionCount(); ok {
		log.Warn().Err(err).Uint64("total_auctions", count).Msg("platform read failed, using last known auction count")
		return count, true
	}
	log.Warn().Err(err).Msg("auction count unknown")
	return 0, false
}
