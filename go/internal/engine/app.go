// Package engine wires the platform fetcher, registry synchronizer, workflows
// and session into one application and owns view invalidation.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/bidding"
	"github.com/arjunamarcelino/velobid/go/internal/leaderboard"
	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/listing"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
	"github.com/arjunamarcelino/velobid/go/internal/platform"
	"github.com/arjunamarcelino/velobid/go/internal/registry"
	"github.com/arjunamarcelino/velobid/go/internal/session"
	"github.com/arjunamarcelino/velobid/go/internal/snapshotstore"
)

type Config struct {
	Registry    registry.Config
	Leaderboard leaderboard.Config
	Bidding     bidding.Config
	Listing     listing.Config
}

func DefaultConfig() Config {
	return Config{
		Registry:    registry.DefaultConfig(),
		Leaderboard: leaderboard.DefaultConfig(),
		Bidding:     bidding.DefaultConfig(),
		Listing:     listing.DefaultConfig(),
	}
}

// PeerAnnouncer tells other processes that this one changed the ledger.
type PeerAnnouncer interface {
	PublishInvalidation(reason string, auctionID uint64) error
}

// Option configures App.
type Option func(*App)

// WithStore enables warm start from and persistence to store.
func WithStore(store snapshotstore.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithNotifiers adds notifiers next to the in-process hub.
func WithNotifiers(notifiers ...notify.Notifier) Option {
	return func(a *App) {
		a.notifiers = append(a.notifiers, notifiers...)
	}
}

// WithPeers announces local ledger changes through peers.
func WithPeers(peers PeerAnnouncer) Option {
	return func(a *App) {
		a.peers = peers
	}
}

// App is the running engine.
type App struct {
	Fetcher     *platform.Fetcher
	Registry    *registry.Synchronizer
	Bids        *bidding.Workflow
	Listings    *listing.Workflow
	Leaderboard *leaderboard.Aggregator
	Sessions    *session.Manager
	Hub         *notify.Hub

	store     snapshotstore.Store
	notifiers []notify.Notifier
	peers     PeerAnnouncer
	notifier  notify.Notifier
	clock     clockwork.Clock

	unsubscribeSessions func()
}

func New(gw ledger.Gateway, clock clockwork.Clock, cfg Config, opts ...Option) *App {
	a := &App{Hub: notify.NewHub(), clock: clock}
	for _, opt := range opts {
		opt(a)
	}

	notifier := notify.Multi(append([]notify.Notifier{notify.LogNotifier{}, a.Hub}, a.notifiers...))
	a.notifier = notifier

	a.Fetcher = platform.NewFetcher(gw, clock)
	a.Sessions = session.NewManager(gw)
	a.Registry = registry.New(gw, gw, a.Fetcher, a.store, clock, cfg.Registry)
	a.Leaderboard = leaderboard.NewAggregator(gw, clock, cfg.Leaderboard)
	a.Bids = bidding.NewWorkflow(gw, a.Sessions, notifier, localChange{app: a, reason: "bid"}, clock, cfg.Bidding)
	a.Listings = listing.NewWorkflow(gw, a.Sessions, notifier, localChange{app: a, reason: "create"}, clock, cfg.Listing)
	return a
}

// Start starts the registry cadence and announces wallet session changes.
// Every cycle refreshes the platform snapshot before reading auctions.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.Start(ctx); err != nil {
		return fmt.Errorf("start registry: %w", err)
	}
	a.unsubscribeSessions = a.Sessions.Subscribe(a.sessionChanged)
	return nil
}

// Stop cancels the registry cadence and waits for in-flight work to drain.
func (a *App) Stop() error {
	if a.unsubscribeSessions != nil {
		a.unsubscribeSessions()
		a.unsubscribeSessions = nil
	}
	if err := a.Registry.Stop(); err != nil && !errors.Is(err, registry.ErrNotRunning) {
		return err
	}
	a.Registry.Wait()
	return nil
}

func (a *App) sessionChanged(id session.Identity, connected bool) {
	n := notify.New(notify.KindInfo, "Wallet disconnected", models.ShortAddress(id.Address), a.clock.Now())
	if connected {
		n = notify.New(notify.KindInfo, "Wallet connected",
			fmt.Sprintf("%s on chain %d", models.ShortAddress(id.Address), id.ChainID), a.clock.Now())
	}
	a.notifier.Notify(context.Background(), n)
}

// Invalidate requests one immediate registry cycle, which also refreshes the platform snapshot.
func (a *App) Invalidate(context.Context) {
	a.Registry.Invalidate()
}

// View returns the current published view.
func (a *App) View() (models.CategorizedView, bool) {
	return a.Registry.View()
}

// LatestPlatform returns the last good platform snapshot, or nil before the first fetch.
func (a *App) LatestPlatform() *models.PlatformSnapshot {
	return a.Fetcher.Latest()
}

// SubscribeViews forwards every published view to fn.
func (a *App) SubscribeViews(fn func(models.CategorizedView)) (unsubscribe func()) {
	return a.Registry.Subscribe(fn)
}

// SubscribeNotifications forwards every user notification to fn.
func (a *App) SubscribeNotifications(fn func(notify.Notification)) (unsubscribe func()) {
	return a.Hub.Subscribe(fn)
}

// Connect sets the wallet identity used for bids and auction creation.
func (a *App) Connect(ctx context.Context, address string, chainID uint64) (session.Identity, error) {
	return a.Sessions.Connect(ctx, address, chainID)
}

// Disconnect clears the wallet identity.
func (a *App) Disconnect() {
	a.Sessions.Disconnect()
}

// CurrentSession returns the connected wallet identity.
func (a *App) CurrentSession() (session.Identity, bool) {
	return a.Sessions.Current()
}

// PlaceBid bids on an auction from the current view, using its displayed price
// as the local floor.
func (a *App) PlaceBid(ctx context.Context, auctionID uint64, amount string) (*ledger.Receipt, error) {
	view, _ := a.Registry.View()
	rec, ok := view.Find(auctionID)
	if !ok {
		err := fmt.Errorf("%w: %d", bidding.ErrUnknownAuction, auctionID)
		log.Warn().Err(err).Msg("bid on auction outside current view")
		return nil, err
	}
	return a.Bids.PlaceBid(ctx, auctionID, amount, rec.DisplayedPrice())
}

// CreateAuction submits a new auction.
func (a *App) CreateAuction(ctx context.Context, form listing.Form) (*ledger.Receipt, error) {
	return a.Listings.Create(ctx, form)
}

// LoadLeaderboard reads and ranks all participants.
func (a *App) LoadLeaderboard(ctx context.Context) (*leaderboard.Board, error) {
	return a.Leaderboard.Load(ctx)
}

// localChange invalidates this process and announces the change to peers.
type localChange struct {
	app    *App
	reason string
}

func (c localChange) Invalidate(ctx context.Context) {
	c.app.Invalidate(ctx)
	if c.app.peers == nil {
		return
	}
	if err := c.app.peers.PublishInvalidation(c.reason, 0); err != nil {
		log.Warn().Err(err).Str("reason", c.reason).Msg("failed to announce invalidation to peers")
	}
}
