package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.calls++
}

func TestMultiDeliversToAllInOrder(t *testing.T) {
	var got []string
	m := Multi{
		Func(func(_ context.Context, n Notification) { got = append(got, "first:"+n.Title) }),
		nil,
		Func(func(_ context.Context, n Notification) { got = append(got, "second:"+n.Title) }),
	}

	m.Notify(context.Background(), New(KindSuccess, "Bid placed", "ok", at))

	assert.Equal(t, []string{"first:Bid placed", "second:Bid placed"}, got)
}

func TestNewAssignsUniqueIDsAndGivenTime(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))
	a := New(KindInfo, "a", "", at)
	b := New(KindInfo, "b", "", at)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.CreatedAt.Equal(at))
	assert.Equal(t, time.UTC, a.CreatedAt.Location())
}

func TestInvalidationSubscriberIgnoresOwnEvents(t *testing.T) {
	inv := &countingInvalidator{}
	s := NewInvalidationSubscriber(nil, "auctions.invalidate", "self", inv)

	own, err := json.Marshal(InvalidationEvent{Source: "self", Reason: "bid"})
	require.NoError(t, err)
	peer, err := json.Marshal(InvalidationEvent{Source: "peer", Reason: "bid", AuctionID: 3})
	require.NoError(t, err)

	s.handle(context.Background(), own)
	s.handle(context.Background(), []byte("{not json"))
	s.handle(context.Background(), peer)

	assert.Equal(t, 1, inv.calls)
}

func TestLogNotifierDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		LogNotifier{}.Notify(context.Background(), New(KindError, "Bid failed", "reverted", at))
	})
}

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	h := NewHub()
	var got []string
	unsubscribe := h.Subscribe(func(n Notification) { got = append(got, n.Title) })

	h.Notify(context.Background(), New(KindInfo, "one", "", at))
	unsubscribe()
	h.Notify(context.Background(), New(KindInfo, "two", "", at))

	assert.Equal(t, []string{"one"}, got)
}
