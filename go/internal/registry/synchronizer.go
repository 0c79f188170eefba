// Package registry keeps a categorized view of the live auction set in sync
// with the ledger and finalizes auctions whose end time has passed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/snapshotstore"
)

type Config struct {
	Interval       time.Duration
	PageOffset     uint64
	PageSize       uint64
	MaxConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Interval:       30 * time.Second,
		PageOffset:     0,
		PageSize:       10,
		MaxConcurrency: 8,
	}
}

// CountSource reports the platform's total auction count. ok is false when unknown.
type CountSource interface {
	AuctionCount(ctx context.Context) (count uint64, ok bool)
}

// Finalizer closes auctions on the ledger.
type Finalizer interface {
	FinalizeAuction(ctx context.Context, id uint64) error
}

// Synchronizer runs the poll-resolve-reconcile-publish cycle.
type Synchronizer struct {
	reader    ledger.Reader
	finalizer Finalizer
	counts    CountSource
	store     snapshotstore.Store
	clock     clockwork.Clock
	config    Config

	// generation is the last generation handed to a cycle.
	generation atomic.Uint64

	// publishMu serializes publish, subscriber delivery and persistence.
	publishMu sync.Mutex
	viewMu    sync.RWMutex
	view      *models.CategorizedView
	stopped   bool

	subsMu sync.Mutex
	subs   map[uuid.UUID]func(models.CategorizedView)

	invalidate chan struct{}

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// inflight tracks cycles and finalize calls so Wait can drain them.
	inflight sync.WaitGroup
}

// New creates a synchronizer. counts and store may be nil: without counts the
// zero-count guard is skipped, without store there is no warm start.
func New(reader ledger.Reader, finalizer Finalizer, counts CountSource, store snapshotstore.Store, clock clockwork.Clock, cfg Config) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	return &Synchronizer{
		reader:     reader,
		finalizer:  finalizer,
		counts:     counts,
		store:      store,
		clock:      clock,
		config:     cfg,
		subs:       make(map[uuid.UUID]func(models.CategorizedView)),
		invalidate: make(chan struct{}, 1),
	}
}

// Start publishes any stored view, runs one cycle immediately and then one per interval.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	s.viewMu.Lock()
	s.stopped = false
	s.viewMu.Unlock()

	s.warmStart(ctx)

	s.wg.Add(1)
	go s.run(ctx, stopChan)

	log.Info().
		Dur("interval", s.config.Interval).
		Uint64("page_size", s.config.PageSize).
		Msg("registry synchronizer started")

	return nil
}

// Stop cancels the cadence. Cycles already in flight run to completion but do not publish.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	stopChan := s.stopChan
	s.mu.Unlock()

	s.viewMu.Lock()
	s.stopped = true
	s.viewMu.Unlock()

	close(stopChan)
	s.wg.Wait()

	log.Info().Msg("registry synchronizer stopped")
	return nil
}

// Wait blocks until in-flight cycles and finalize calls have returned.
func (s *Synchronizer) Wait() {
	s.inflight.Wait()
}

// Invalidate requests one extra cycle as soon as possible without resetting the
// regular cadence. Requests made while one is already pending are coalesced.
func (s *Synchronizer) Invalidate() {
	select {
	case s.invalidate <- struct{}{}:
	default:
	}
}

// View returns a copy of the last published view. ok is false before the first publish.
func (s *Synchronizer) View() (view models.CategorizedView, ok bool) {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	if s.view == nil {
		return models.CategorizedView{}, false
	}
	return s.view.Clone(), true
}

// Subscribe registers fn to receive every published view. The returned func unsubscribes.
func (s *Synchronizer) Subscribe(fn func(models.CategorizedView)) (unsubscribe func()) {
	id := uuid.New()
	s.subsMu.Lock()
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Synchronizer) run(ctx context.Context, stopChan <-chan struct{}) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sync immediately on start
	s.spawn(ctx, "start")

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		case <-ticker.Chan():
			s.spawn(ctx, "interval")
		case <-s.invalidate:
			s.spawn(ctx, "invalidate")
		}
	}
}

// spawn runs one cycle in the background. The cycle is detached from ctx
// cancellation so in-flight reads complete; publish decides whether to keep the result.
func (s *Synchronizer) spawn(ctx context.Context, trigger string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.Sync(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("trigger", trigger).Msg("sync cycle failed, keeping previous view")
		}
	}()
}

// Sync runs a single cycle and publishes its view unless a newer cycle already
// published or the synchronizer was stopped. A failed id listing returns an
// ErrRemoteRead and leaves the published view unchanged.
func (s *Synchronizer) Sync(ctx context.Context) error {
	gen := s.generation.Add(1)

	if s.counts != nil {
		count, ok := s.counts.AuctionCount(ctx)
		if !ok || count == 0 {
			log.Debug().Uint64("generation", gen).Bool("count_known", ok).Msg("no auctions, skipping cycle")
			return nil
		}
	}

	ids, err := s.reader.ListAuctionIDs(ctx, s.config.PageOffset, s.config.PageSize)
	if err != nil {
		return ledger.ReadError("list auction ids", err)
	}

	records, failed := s.resolve(ctx, ids)
	if len(failed) > 0 {
		log.Warn().
			Err(fmt.Errorf("%w: %d of %d ids", ErrPartialResolution, len(failed), len(ids))).
			Uints64("failed_ids", failed).
			Uint64("generation", gen).
			Msg("omitting unresolved auctions from this cycle")
	}

	now := s.clock.Now()
	s.finalizeStale(ctx, records, now)

	view := models.Categorize(records, gen, now)
	if !s.publish(ctx, view) {
		log.Debug().Uint64("generation", gen).Msg("discarding stale cycle result")
		return nil
	}

	log.Debug().
		Uint64("generation", gen).
		Int("active", len(view.Active)).
		Int("past", len(view.Past)).
		Msg("published auction view")

	return nil
}

// resolve reads every id concurrently. Records come back in id order with
// failures omitted.
func (s *Synchronizer) resolve(ctx context.Context, ids []uint64) ([]models.AuctionRecord, []uint64) {
	results := make([]*models.AuctionRecord, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := s.reader.ReadAuction(ctx, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]models.AuctionRecord, 0, len(ids))
	var failed []uint64
	for i, rec := range results {
		if rec == nil {
			if errs[i] != nil {
				log.Debug().Err(errs[i]).Uint64("auction_id", ids[i]).Msg("auction read failed")
			}
			failed = append(failed, ids[i])
			continue
		}
		records = append(records, *rec)
	}
	return records, failed
}

// finalizeStale issues one finalize call per stale auction without waiting for it.
func (s *Synchronizer) finalizeStale(ctx context.Context, records []models.AuctionRecord, now time.Time) {
	if s.finalizer == nil {
		return
	}
	seen := make(map[uint64]struct{}, len(records))
	for _, rec := range records {
		if !models.NeedsFinalize(rec, now) {
			continue
		}
		if _, dup := seen[rec.AuctionID]; dup {
			continue
		}
		seen[rec.AuctionID] = struct{}{}

		s.inflight.Add(1)
		go func(id uint64) {
			defer s.inflight.Done()
			if err := s.finalizer.FinalizeAuction(context.WithoutCancel(ctx), id); err != nil {
				log.Warn().Err(err).Uint64("auction_id", id).Msg("finalize auction failed")
				return
			}
			log.Info().Uint64("auction_id", id).Msg("finalize requested for ended auction")
		}(rec.AuctionID)
	}
}

// publish swaps in view if it is newer than the current one, notifies
// subscribers and saves it.
func (s *Synchronizer) publish(ctx context.Context, view models.CategorizedView) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if !s.swap(view) {
		return false
	}
	s.deliver(view)
	s.persist(ctx, view)
	return true
}

// swap installs a copy of view unless the synchronizer is stopped or already
// holds a view of the same or a later generation.
func (s *Synchronizer) swap(view models.CategorizedView) bool {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if s.stopped || (s.view != nil && view.Generation <= s.view.Generation) {
		return false
	}
	published := view.Clone()
	s.view = &published
	return true
}

func (s *Synchronizer) deliver(view models.CategorizedView) {
	s.subsMu.Lock()
	subs := make([]func(models.CategorizedView), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(view.Clone())
	}
}

func (s *Synchronizer) persist(ctx context.Context, view models.CategorizedView) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveView(ctx, view); err != nil {
		log.Warn().Err(err).Uint64("generation", view.Generation).Msg("failed to save view")
	}
}

// warmStart publishes the stored view as generation 0 so any cycle supersedes
// it. The view came from the store, so it is delivered but not saved again.
func (s *Synchronizer) warmStart(ctx context.Context) {
	if s.store == nil {
		return
	}
	view, err := s.store.LoadView(ctx)
	if err != nil {
		if !errors.Is(err, snapshotstore.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to load saved view")
		}
		return
	}

	view.Generation = 0
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if !s.swap(view) {
		return
	}
	s.deliver(view)

	log.Info().Int("auctions", len(view.All)).Msg("published saved view")
}
