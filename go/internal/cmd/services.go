package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/config"
	"github.com/arjunamarcelino/velobid/go/internal/engine"
	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/ledger/rpcclient"
	"github.com/arjunamarcelino/velobid/go/internal/ledger/stub"
	"github.com/arjunamarcelino/velobid/go/internal/listing"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
	"github.com/arjunamarcelino/velobid/go/internal/viewgateway"
)

type Services struct {
	App        *engine.App
	Gateway    *viewgateway.Service
	Subscriber *notify.InvalidationSubscriber

	closers []func()
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Ledger gateway → optional store and bus → engine → view gateway
	clock := clockwork.NewRealClock()
	services := &Services{}

	gw, err := setupLedger(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}

	var opts []engine.Option
	if cfg.Database.Enabled {
		store, closeDB, err := setupDatabase(ctx, cfg.Database.Config)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, closeDB)
		opts = append(opts, engine.WithStore(store))
	}

	var nc *nats.Conn
	var publisher *notify.NATSNotifier
	if cfg.NATSEnabled() {
		natsCfg := cfg.NATSConfig()
		nc, err = notify.Connect(natsCfg)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, nc.Close)
		publisher = notify.NewNATSNotifier(nc, natsCfg, uuid.NewString())
		opts = append(opts, engine.WithNotifiers(publisher), engine.WithPeers(publisher))
		log.Info().Str("url", natsCfg.URL).Str("source_id", publisher.SourceID()).Msg("connected to NATS")
	}

	services.App = engine.New(gw, clock, cfg.Engine(), opts...)

	if nc != nil {
		services.Subscriber = notify.NewInvalidationSubscriber(nc, cfg.NATS.InvalidationSubject, publisher.SourceID(), services.App)
	}

	gatewayCfg := viewgateway.DefaultConfig()
	gatewayCfg.TokenSymbol = cfg.TokenSymbol
	services.Gateway = viewgateway.NewService(gatewayCfg, services.App, clock)

	return services, nil
}

func setupLedger(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (ledger.Gateway, error) {
	switch cfg.Ledger.Mode {
	case config.LedgerModeRPC:
		log.Info().Str("url", cfg.Ledger.RPCURL).Msg("using JSON-RPC ledger")
		return rpcclient.New(cfg.Ledger.RPCURL,
			rpcclient.WithClock(clock),
			rpcclient.WithTimeout(cfg.Ledger.Timeout),
			rpcclient.WithMaxRetries(cfg.Ledger.MaxRetries),
			rpcclient.WithPollInterval(cfg.Ledger.PollInterval),
		), nil

	case config.LedgerModeStub:
		l := stub.New(clock)
		if cfg.Ledger.SeedFile != "" {
			seeds, err := listing.LoadSeeds(cfg.Ledger.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("failed to seed in-memory ledger: %w", err)
			}
			res := listing.CreateSeeds(ctx, l, seeds)
			log.Info().Int("created", res.Created).Int("failed", res.Failed).Msg("seeded in-memory ledger")
		}
		log.Warn().Msg("using in-memory ledger; state is lost on restart")
		return l, nil

	default:
		return nil, fmt.Errorf("unknown ledger mode %q", cfg.Ledger.Mode)
	}
}
