package models

import (
	"sort"
	"time"
)

// CategorizedView is one synchronization cycle's published result.
// A published view is never mutated; every publish replaces it whole.
type CategorizedView struct {
	Generation uint64          `json:"generation"`
	SyncedAt   time.Time       `json:"synced_at"`
	Active     []AuctionRecord `json:"active"`
	Past       []AuctionRecord `json:"past"`
	All        []AuctionRecord `json:"all"`
}

// Categorize builds a view from records in ledger resolution order.
// Active is ascending by end time, Past is descending; ties keep resolution order.
func Categorize(records []AuctionRecord, generation uint64, syncedAt time.Time) CategorizedView {
	all := make([]AuctionRecord, len(records))
	copy(all, records)

	active := make([]AuctionRecord, 0, len(all))
	past := make([]AuctionRecord, 0, len(all))
	for _, rec := range all {
		if rec.Ended {
			past = append(past, rec)
		} else {
			active = append(active, rec)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].EndTime.Before(active[j].EndTime)
	})
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].EndTime.After(past[j].EndTime)
	})

	return CategorizedView{
		Generation: generation,
		SyncedAt:   syncedAt,
		Active:     active,
		Past:       past,
		All:        all,
	}
}

// Clone returns a deep copy: neither its slices nor its amounts share memory with v.
func (v CategorizedView) Clone() CategorizedView {
	return CategorizedView{
		Generation: v.Generation,
		SyncedAt:   v.SyncedAt,
		Active:     cloneRecords(v.Active),
		Past:       cloneRecords(v.Past),
		All:        cloneRecords(v.All),
	}
}

func cloneRecords(records []AuctionRecord) []AuctionRecord {
	if records == nil {
		return nil
	}
	out := make([]AuctionRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// Find returns the record with the given id from All.
func (v CategorizedView) Find(auctionID uint64) (AuctionRecord, bool) {
	for _, rec := range v.All {
		if rec.AuctionID == auctionID {
			return rec, true
		}
	}
	return AuctionRecord{}, false
}
