package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Invalidator requests a fresh synchronization cycle.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// InvalidationSubscriber invalidates local views when a peer announces a ledger change.
type InvalidationSubscriber struct {
	nc          *nats.Conn
	subject     string
	sourceID    string
	invalidator Invalidator
	sub         *nats.Subscription
}

// NewInvalidationSubscriber ignores events whose source is sourceID.
func NewInvalidationSubscriber(nc *nats.Conn, subject, sourceID string, invalidator Invalidator) *InvalidationSubscriber {
	return &InvalidationSubscriber{
		nc:          nc,
		subject:     subject,
		sourceID:    sourceID,
		invalidator: invalidator,
	}
}

func (s *InvalidationSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	log.Info().Str("subject", s.subject).Msg("listening for peer invalidations")
	return nil
}

func (s *InvalidationSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *InvalidationSubscriber) handle(ctx context.Context, data []byte) {
	var event InvalidationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Warn().Err(err).Str("subject", s.subject).Msg("dropping malformed invalidation event")
		return
	}
	if event.Source == s.sourceID {
		return
	}

	log.Debug().
		Str("source", event.Source).
		Str("reason", event.Reason).
		Uint64("auction_id", event.AuctionID).
		Msg("peer invalidation received")
	s.invalidator.Invalidate(ctx)
}
