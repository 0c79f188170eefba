// Package notify delivers user-facing notifications and peer invalidation events.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one user-facing message.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	AuctionID uint64    `json:"auction_id,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds a notification stamped with at, normally the caller's clock.Now().
func New(kind Kind, title, message string, at time.Time) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: at.UTC(),
	}
}

// Notifier delivers notifications. Delivery failures are the notifier's to log.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) {
	event := log.Info()
	if n.Kind == KindError {
		event = log.Warn()
	}
	event.
		Str("notification_id", n.ID.String()).
		Str("kind", string(n.Kind)).
		Uint64("auction_id", n.AuctionID).
		Str("tx_hash", n.TxHash).
		Msgf("%s: %s", n.Title, n.Message)
}
