package viewgateway

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

// EventType names a message pushed to websocket clients.
type EventType string

const (
	EventTypeAuctionsUpdated EventType = "auctions.updated"
	EventTypeNotification    EventType = "notification"
)

// Event is the envelope of every websocket message.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AuctionDTO is an auction record rendered for display.
type AuctionDTO struct {
	AuctionID      uint64              `json:"auction_id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	EndTime        time.Time           `json:"end_time"`
	TimeLeft       string              `json:"time_left"`
	State          models.AuctionState `json:"state"`
	StartingBid    string              `json:"starting_bid"`
	HighestBid     string              `json:"highest_bid"`
	DisplayedPrice string              `json:"displayed_price"`
	HighestBidder  string              `json:"highest_bidder,omitempty"`
	Winner         string              `json:"winner,omitempty"`
	Beneficiary    string              `json:"beneficiary"`
	TotalVolumeBid string              `json:"total_volume_bid"`
}

// ViewDTO is one published view rendered for display.
type ViewDTO struct {
	Generation uint64       `json:"generation"`
	SyncedAt   time.Time    `json:"synced_at"`
	Active     []AuctionDTO `json:"active"`
	Past       []AuctionDTO `json:"past"`
	All        []AuctionDTO `json:"all"`
}

// PlatformDTO is the platform snapshot rendered for display.
type PlatformDTO struct {
	TotalAuctions       uint64    `json:"total_auctions"`
	ActiveAuctions      uint64    `json:"active_auctions"`
	UpcomingAuctions    uint64    `json:"upcoming_auctions"`
	TotalBidders        uint64    `json:"total_bidders"`
	TotalBids           uint64    `json:"total_bids"`
	TotalVolumeBid      string    `json:"total_volume_bid"`
	HighestBid          string    `json:"highest_bid"`
	HighestBidder       string    `json:"highest_bidder,omitempty"`
	AverageBidValue     string    `json:"average_bid_value"`
	AverageBidFormatted string    `json:"average_bid_formatted"`
	TotalUsers          uint64    `json:"total_users"`
	FetchedAt           time.Time `json:"fetched_at"`
}

func newAuctionDTO(rec models.AuctionRecord, now time.Time) AuctionDTO {
	return AuctionDTO{
		AuctionID:      rec.AuctionID,
		Name:           rec.Name,
		Description:    rec.Description,
		EndTime:        rec.EndTime,
		TimeLeft:       models.TimeLeft(rec.EndTime, now),
		State:          rec.State(now),
		StartingBid:    units.Format(rec.StartingBid),
		HighestBid:     units.Format(rec.HighestBid),
		DisplayedPrice: units.Format(rec.DisplayedPrice()),
		HighestBidder:  rec.HighestBidder,
		Winner:         rec.Winner,
		Beneficiary:    rec.Beneficiary,
		TotalVolumeBid: units.Format(rec.TotalVolumeBid),
	}
}

func newAuctionDTOs(records []models.AuctionRecord, now time.Time) []AuctionDTO {
	out := make([]AuctionDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, newAuctionDTO(rec, now))
	}
	return out
}

func newViewDTO(view models.CategorizedView, now time.Time) ViewDTO {
	return ViewDTO{
		Generation: view.Generation,
		SyncedAt:   view.SyncedAt,
		Active:     newAuctionDTOs(view.Active, now),
		Past:       newAuctionDTOs(view.Past, now),
		All:        newAuctionDTOs(view.All, now),
	}
}

func newPlatformDTO(snap *models.PlatformSnapshot, symbol string) PlatformDTO {
	return PlatformDTO{
		TotalAuctions:       snap.TotalAuctionCount,
		ActiveAuctions:      snap.TotalActiveAuctionCount,
		UpcomingAuctions:    snap.UpcomingCount(),
		TotalBidders:        snap.TotalBidders,
		TotalBids:           snap.TotalBidCount,
		TotalVolumeBid:      units.Format(snap.TotalVolumeBid),
		HighestBid:          units.Format(snap.HighestBid),
		HighestBidder:       snap.HighestBidder,
		AverageBidValue:     units.FormatDecimal(snap.AverageBidValue),
		AverageBidFormatted: units.FormatDecimal(snap.AverageBidValue) + " " + symbol,
		TotalUsers:          snap.TotalUsers,
		FetchedAt:           snap.FetchedAt,
	}
}

// NewViewEvent wraps a published view.
func NewViewEvent(view models.CategorizedView, clock clockwork.Clock) *Event {
	now := clock.Now()
	return &Event{
		Type:      EventTypeAuctionsUpdated,
		Timestamp: now,
		Payload:   newViewDTO(view, now),
	}
}

// NewNotificationEvent wraps a user notification.
func NewNotificationEvent(n notify.Notification, clock clockwork.Clock) *Event {
	return &Event{
		Type:      EventTypeNotification,
		Timestamp: clock.Now(),
		Payload:   n,
	}
}
