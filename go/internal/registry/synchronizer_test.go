package registry

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/ledger/stub"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/snapshotstore"
)

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fixedCount struct {
	count atomic.Uint64
	known atomic.Bool
}

func newFixedCount(n uint64) *fixedCount {
	c := &fixedCount{}
	c.count.Store(n)
	c.known.Store(true)
	return c
}

func (c *fixedCount) AuctionCount(context.Context) (uint64, bool) {
	return c.count.Load(), c.known.Load()
}

func auction(id uint64, end time.Time, ended bool) models.AuctionRecord {
	return models.AuctionRecord{
		AuctionID:   id,
		Name:        "lot",
		EndTime:     end,
		StartingBid: big.NewInt(1),
		Ended:       ended,
	}
}

func newTestSync(t *testing.T, l *stub.Ledger, counts CountSource, store snapshotstore.Store, clock clockwork.Clock) *Synchronizer {
	t.Helper()
	s := New(l, l, counts, store, clock, DefaultConfig())
	t.Cleanup(func() {
		_ = s.Stop()
		s.Wait()
	})
	return s
}

func subscribeGenerations(s *Synchronizer) <-chan uint64 {
	ch := make(chan uint64, 16)
	s.Subscribe(func(v models.CategorizedView) {
		ch <- v.Generation
	})
	return ch
}

func waitGeneration(t *testing.T, ch <-chan uint64) uint64 {
	t.Helper()
	select {
	case gen := <-ch:
		return gen
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
		return 0
	}
}

func ids(records []models.AuctionRecord) []uint64 {
	out := make([]uint64, 0, len(records))
	for _, r := range records {
		out = append(out, r.AuctionID)
	}
	return out
}

func TestSyncSkipsWhenPlatformHasNoAuctions(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, newFixedCount(0), nil, clock)

	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, 0, l.CallCount(stub.MethodListAuctionIDs))
	_, ok := s.View()
	assert.False(t, ok)
}

func TestSyncSkipsWhenCountUnknown(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	counts := newFixedCount(3)
	counts.known.Store(false)
	s := newTestSync(t, l, counts, nil, clock)

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, 0, l.CallCount(stub.MethodListAuctionIDs))
}

func TestSyncCategorizesAndOrders(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	// ids are listed newest first: 6, 5, 4, 3, 2, 1
	l.AddAuction(auction(1, base.Add(-3*time.Hour), true))
	l.AddAuction(auction(2, base.Add(3*time.Hour), false))
	l.AddAuction(auction(3, base.Add(-1*time.Hour), true))
	l.AddAuction(auction(4, base.Add(1*time.Hour), false))
	l.AddAuction(auction(5, base.Add(-1*time.Hour), true))
	l.AddAuction(auction(6, base.Add(2*time.Hour), false))
	s := newTestSync(t, l, newFixedCount(6), nil, clock)

	require.NoError(t, s.Sync(context.Background()))

	view, ok := s.View()
	require.True(t, ok)
	assert.Equal(t, []uint64{6, 5, 4, 3, 2, 1}, ids(view.All))
	assert.Equal(t, []uint64{4, 6, 2}, ids(view.Active))
	// 5 and 3 end together; resolution order puts 5 first
	assert.Equal(t, []uint64{5, 3, 1}, ids(view.Past))
	assert.Equal(t, uint64(1), view.Generation)
	assert.True(t, view.SyncedAt.Equal(base))
}

func TestSyncReadsOnlyFirstPage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	for id := uint64(1); id <= 12; id++ {
		l.AddAuction(auction(id, base.Add(time.Duration(id)*time.Minute), false))
	}
	s := newTestSync(t, l, newFixedCount(12), nil, clock)

	require.NoError(t, s.Sync(context.Background()))

	view, _ := s.View()
	assert.Len(t, view.All, 10)
	assert.Equal(t, uint64(12), view.All[0].AuctionID)
	assert.Equal(t, 10, l.CallCount(stub.MethodReadAuction))
}

func TestSyncFinalizesStaleAuctionsOncePerCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(-time.Minute), false))
	l.AddAuction(auction(2, base.Add(-time.Hour), true))
	l.AddAuction(auction(3, base.Add(time.Hour), false))
	l.AddAuction(auction(4, base, false))
	s := newTestSync(t, l, newFixedCount(4), nil, clock)

	require.NoError(t, s.Sync(context.Background()))
	s.Wait()

	assert.Equal(t, 1, l.FinalizeCount(1))
	assert.Equal(t, 0, l.FinalizeCount(2))
	assert.Equal(t, 0, l.FinalizeCount(3))
	assert.Equal(t, 1, l.FinalizeCount(4))

	// The finalize was not awaited, so the first view still shows 1 under its previous bucket.
	view, _ := s.View()
	assert.Contains(t, ids(view.Active), uint64(1))

	require.NoError(t, s.Sync(context.Background()))
	s.Wait()

	view, _ = s.View()
	assert.Contains(t, ids(view.Past), uint64(1))
	assert.Contains(t, ids(view.Past), uint64(4))
	assert.Equal(t, 1, l.FinalizeCount(1))
}

func TestFinalizeFailureIsRetriedNextCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(-time.Minute), false))
	l.FinalizeErr = errors.New("gas estimation failed")
	s := newTestSync(t, l, newFixedCount(1), nil, clock)

	require.NoError(t, s.Sync(context.Background()))
	s.Wait()
	require.NoError(t, s.Sync(context.Background()))
	s.Wait()

	assert.Equal(t, 2, l.FinalizeCount(1))
	view, ok := s.View()
	require.True(t, ok)
	assert.Equal(t, uint64(2), view.Generation)
}

func TestPartialResolutionOmitsFailedRecord(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	l.AddAuction(auction(2, base.Add(2*time.Hour), false))
	l.AddAuction(auction(3, base.Add(3*time.Hour), false))
	l.SetAuctionErr(2, errors.New("rpc timeout"))
	s := newTestSync(t, l, newFixedCount(3), nil, clock)

	require.NoError(t, s.Sync(context.Background()))
	view, _ := s.View()
	assert.Equal(t, []uint64{3, 1}, ids(view.All))

	l.SetAuctionErr(2, nil)
	require.NoError(t, s.Sync(context.Background()))
	view, _ = s.View()
	assert.Equal(t, []uint64{3, 2, 1}, ids(view.All))
}

func TestListFailureKeepsPreviousView(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, newFixedCount(1), nil, clock)

	require.NoError(t, s.Sync(context.Background()))
	before, _ := s.View()

	l.Configure(func(l *stub.Ledger) { l.ListErr = errors.New("connection refused") })
	err := s.Sync(context.Background())
	assert.ErrorIs(t, err, ledger.ErrRemoteRead)

	after, ok := s.View()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestOlderCycleNeverOverwritesNewer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))

	release := make(chan struct{})
	var blocked atomic.Bool
	l.Hook = func(_ context.Context, method string) {
		if method == stub.MethodListAuctionIDs && blocked.CompareAndSwap(false, true) {
			<-release
		}
	}
	s := newTestSync(t, l, newFixedCount(1), nil, clock)
	published := subscribeGenerations(s)

	slow := make(chan error, 1)
	go func() { slow <- s.Sync(context.Background()) }()
	require.Eventually(t, blocked.Load, time.Second, time.Millisecond)

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, uint64(2), waitGeneration(t, published))

	close(release)
	require.NoError(t, <-slow)

	view, _ := s.View()
	assert.Equal(t, uint64(2), view.Generation)
	assert.Empty(t, published)
}

func TestStopDiscardsInFlightCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))

	release := make(chan struct{})
	entered := make(chan struct{})
	l.Hook = func(_ context.Context, method string) {
		if method == stub.MethodListAuctionIDs {
			close(entered)
			<-release
		}
	}
	s := New(l, l, newFixedCount(1), nil, clock, DefaultConfig())
	published := subscribeGenerations(s)

	require.NoError(t, s.Start(context.Background()))
	<-entered
	require.NoError(t, s.Stop())

	close(release)
	s.Wait()

	assert.Equal(t, 1, l.CallCount(stub.MethodReadAuction))
	_, ok := s.View()
	assert.False(t, ok)
	assert.Empty(t, published)
}

func TestCadenceRunsOneCyclePerInterval(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, nil, nil, clock)
	published := subscribeGenerations(s)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, uint64(1), waitGeneration(t, published))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(29 * time.Second)
	assert.Never(t, func() bool { return len(published) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	assert.Equal(t, uint64(2), waitGeneration(t, published))
	assert.Equal(t, 2, l.CallCount(stub.MethodListAuctionIDs))
}

func TestInvalidateRunsExtraCycleWithoutResettingCadence(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, nil, nil, clock)
	published := subscribeGenerations(s)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, uint64(1), waitGeneration(t, published))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(20 * time.Second)
	s.Invalidate()
	assert.Equal(t, uint64(2), waitGeneration(t, published))

	// The regular tick still lands 30s after start, not 30s after the invalidation.
	clock.Advance(10 * time.Second)
	assert.Equal(t, uint64(3), waitGeneration(t, published))
	assert.Equal(t, 3, l.CallCount(stub.MethodListAuctionIDs))
}

func TestInvalidateCoalescesPendingRequests(t *testing.T) {
	s := New(stub.New(clockwork.NewFakeClock()), nil, nil, nil, clockwork.NewFakeClock(), DefaultConfig())

	s.Invalidate()
	s.Invalidate()
	s.Invalidate()

	assert.Len(t, s.invalidate, 1)
}

func TestWarmStartPublishesSavedViewUntilFirstCycle(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(base)
	store := snapshotstore.NewMemory()
	saved := models.Categorize([]models.AuctionRecord{auction(9, base.Add(time.Hour), false)}, 41, base.Add(-time.Hour))
	require.NoError(t, store.SaveView(ctx, saved))

	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	counts := newFixedCount(0)
	s := newTestSync(t, l, counts, store, clock)
	gens := subscribeGenerations(s)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, uint64(0), waitGeneration(t, gens))
	view, ok := s.View()
	require.True(t, ok)
	assert.Equal(t, uint64(0), view.Generation)
	assert.Equal(t, []uint64{9}, ids(view.All))

	counts.count.Store(1)
	require.NoError(t, s.Sync(ctx))

	view, _ = s.View()
	assert.Equal(t, []uint64{1}, ids(view.All))
	assert.Greater(t, view.Generation, uint64(0))

	stored, err := store.LoadView(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids(stored.All))
}

func TestSubscribersReceiveCopiesAndCanUnsubscribe(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, nil, nil, clock)

	var calls atomic.Int32
	unsubscribe := s.Subscribe(func(v models.CategorizedView) {
		calls.Add(1)
		v.All[0].Name = "tampered"
	})

	require.NoError(t, s.Sync(ctx))
	view, _ := s.View()
	assert.Equal(t, "lot", view.All[0].Name)

	unsubscribe()
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishedAmountsSurviveConsumerMutation(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(base)
	l := stub.New(clock)
	l.AddAuction(auction(1, base.Add(time.Hour), false))
	s := newTestSync(t, l, nil, nil, clock)

	s.Subscribe(func(v models.CategorizedView) {
		v.All[0].HighestBid.SetInt64(500)
		v.Active[0].TotalVolumeBid.SetInt64(500)
	})
	require.NoError(t, s.Sync(ctx))

	first, ok := s.View()
	require.True(t, ok)
	first.All[0].StartingBid.SetInt64(999)

	second, _ := s.View()
	assert.Equal(t, "1", second.All[0].StartingBid.String())
	assert.Equal(t, "1", second.All[0].HighestBid.String())
	assert.Equal(t, "0", second.Active[0].TotalVolumeBid.String())
	assert.Equal(t, "1", second.Active[0].DisplayedPrice().String())
}

func TestStartTwiceFails(t *testing.T) {
	clock := clockwork.NewFakeClockAt(base)
	s := newTestSync(t, stub.New(clock), newFixedCount(0), nil, clock)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}
