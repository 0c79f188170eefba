package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection and subject settings.
type NATSConfig struct {
	URL                 string
	NotificationSubject string
	InvalidationSubject string
	MaxReconnects       int
	ReconnectWait       time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:                 nats.DefaultURL,
		NotificationSubject: "auctions.notifications",
		InvalidationSubject: "auctions.invalidate",
		MaxReconnects:       -1, // Infinite
		ReconnectWait:       2 * time.Second,
	}
}

// Connect opens a NATS connection with reconnect logging.
func Connect(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// InvalidationEvent tells peers that the ledger changed and views should resync.
type InvalidationEvent struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	AuctionID uint64    `json:"auction_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSNotifier publishes notifications and invalidation events.
type NATSNotifier struct {
	nc       *nats.Conn
	config   NATSConfig
	sourceID string
}

func NewNATSNotifier(nc *nats.Conn, cfg NATSConfig, sourceID string) *NATSNotifier {
	if sourceID == "" {
		sourceID = uuid.NewString()
	}
	return &NATSNotifier{nc: nc, config: cfg, sourceID: sourceID}
}

// SourceID identifies events published by this process.
func (p *NATSNotifier) SourceID() string {
	return p.sourceID
}

func (p *NATSNotifier) Notify(_ context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notification")
		return
	}
	if err := p.nc.Publish(p.config.NotificationSubject, data); err != nil {
		log.Error().Err(err).Str("subject", p.config.NotificationSubject).Msg("failed to publish notification")
	}
}

// PublishInvalidation announces a ledger change to peer processes.
func (p *NATSNotifier) PublishInvalidation(reason string, auctionID uint64) error {
	data, err := json.Marshal(InvalidationEvent{
		Source:    p.sourceID,
		Reason:    reason,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := p.nc.Publish(p.config.InvalidationSubject, data); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}
