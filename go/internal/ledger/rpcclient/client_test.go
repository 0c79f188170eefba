package rpcclient

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
)

type relayFunc func(method string, params []json.RawMessage) (interface{}, *rpcError, int)

// fakeRelay serves JSON-RPC requests through fn and records call counts per method.
type fakeRelay struct {
	mu    sync.Mutex
	calls map[string]int
	fn    relayFunc
}

func newFakeRelay(t *testing.T, fn relayFunc) (*fakeRelay, *httptest.Server) {
	t.Helper()
	r := &fakeRelay{calls: make(map[string]int), fn: fn}
	srv := httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(srv.Close)
	return r, srv
}

func (r *fakeRelay) serve(w http.ResponseWriter, req *http.Request) {
	var in struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.calls[in.Method]++
	r.mu.Unlock()

	result, rpcErr, status := r.fn(in.Method, in.Params)
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	out := map[string]interface{}{"jsonrpc": "2.0", "id": in.ID}
	if rpcErr != nil {
		out["error"] = rpcErr
	} else {
		out["result"] = result
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (r *fakeRelay) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func newTestClient(url string) *Client {
	return New(url,
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithPollInterval(time.Millisecond),
	)
}

func TestReadPlatformStats(t *testing.T) {
	_, srv := newFakeRelay(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError, int) {
		require.Equal(t, MethodPlatformStats, method)
		return platformStatsResult{
			TotalAuction:       5,
			TotalActiveAuction: 2,
			TotalBidders:       3,
			TotalBid:           9,
			TotalVolumeBid:     "4500000000000000000",
			HighestBid:         "2000000000000000000",
			HighestBidder:      models.ZeroAddress,
			AverageBidValue:    "500000000000000000",
			TotalUsers:         4,
		}, nil, 0
	})

	stats, err := newTestClient(srv.URL).ReadPlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.TotalAuction)
	assert.Equal(t, uint64(2), stats.TotalActiveAuction)
	assert.Equal(t, "4500000000000000000", stats.TotalVolumeBid.String())
	assert.Equal(t, "500000000000000000", stats.AverageBidValue.String())
	assert.Empty(t, stats.HighestBidder)
}

func TestReadAuction(t *testing.T) {
	end := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, srv := newFakeRelay(t, func(method string, params []json.RawMessage) (interface{}, *rpcError, int) {
		var id uint64
		require.NoError(t, json.Unmarshal(params[0], &id))
		if id == 404 {
			return nil, nil, 0
		}
		return auctionResult{
			AuctionID:      id,
			Name:           "Lamp",
			EndTime:        end.Unix(),
			StartingBid:    "1000000000000000000",
			HighestBid:     "0",
			HighestBidder:  models.ZeroAddress,
			Winner:         models.ZeroAddress,
			TotalVolumeBid: "0",
			Beneficiary:    "0xabc",
		}, nil, 0
	})
	c := newTestClient(srv.URL)

	rec, err := c.ReadAuction(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.AuctionID)
	assert.Equal(t, "Lamp", rec.Name)
	assert.True(t, rec.EndTime.Equal(end))
	assert.Empty(t, rec.HighestBidder)
	assert.Empty(t, rec.Winner)
	assert.Equal(t, "1000000000000000000", rec.DisplayedPrice().String())

	_, err = c.ReadAuction(context.Background(), 404)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestReadAllUserStats(t *testing.T) {
	var mismatch atomic.Bool
	_, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		if mismatch.Load() {
			return userStatsResult{Addresses: []string{"0xa"}, TotalBids: []uint64{}, TotalSpends: []string{"1"}}, nil, 0
		}
		return userStatsResult{
			Addresses:   []string{"0xa", "0xb"},
			TotalBids:   []uint64{2, 0},
			TotalSpends: []string{"30", "0"},
		}, nil, 0
	})
	c := newTestClient(srv.URL)

	stats, err := c.ReadAllUserStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "0xa", stats[0].Address)
	assert.Equal(t, uint64(2), stats[0].TotalBids)
	assert.Equal(t, "30", stats[0].TotalSpend.String())

	mismatch.Store(true)
	_, err = c.ReadAllUserStats(context.Background())
	assert.Error(t, err)
}

func TestReadsRetryTransportFailures(t *testing.T) {
	var mu sync.Mutex
	failures := 2
	relay, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, nil, http.StatusBadGateway
		}
		return []uint64{3, 2, 1}, nil, 0
	})

	ids, err := newTestClient(srv.URL).ListAuctionIDs(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2, 1}, ids)
	assert.Equal(t, 3, relay.count(MethodGetAuctions))
}

func TestReadsGiveUpAfterMaxRetries(t *testing.T) {
	relay, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		return nil, nil, http.StatusInternalServerError
	})

	_, err := New(srv.URL, WithRetryDelay(time.Millisecond), WithMaxRetries(2)).ListAuctionIDs(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, relay.count(MethodGetAuctions))
}

func TestWritesAreNotRetried(t *testing.T) {
	relay, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		return nil, nil, http.StatusBadGateway
	})

	_, err := newTestClient(srv.URL).SubmitBid(context.Background(), "0xa", 1, big.NewInt(5), big.NewInt(5))
	require.Error(t, err)
	assert.Equal(t, 1, relay.count(MethodBid))
}

func TestSubmitBidRevertMapsToErrReverted(t *testing.T) {
	_, srv := newFakeRelay(t, func(method string, params []json.RawMessage) (interface{}, *rpcError, int) {
		var p bidParams
		require.NoError(t, json.Unmarshal(params[0], &p))
		assert.Equal(t, "5", p.Amount)
		assert.Equal(t, "5", p.Value)
		return nil, &rpcError{Code: codeExecutionReverted, Message: "execution reverted: bid too low"}, 0
	})

	_, err := newTestClient(srv.URL).SubmitBid(context.Background(), "0xa", 1, big.NewInt(5), big.NewInt(5))
	assert.ErrorIs(t, err, ledger.ErrReverted)
}

func TestOtherRPCErrorsAreNotReverts(t *testing.T) {
	_, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		return nil, &rpcError{Code: -32000, Message: "nonce too low"}, 0
	})

	_, err := newTestClient(srv.URL).SubmitBid(context.Background(), "0xa", 1, big.NewInt(5), big.NewInt(5))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrReverted)
}

func TestAwaitSettlementPollsUntilReceipt(t *testing.T) {
	var mu sync.Mutex
	pending := 2
	relay, srv := newFakeRelay(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError, int) {
		switch method {
		case MethodCreateAuction:
			return "0xfeed", nil, 0
		case MethodGetReceipt:
			mu.Lock()
			defer mu.Unlock()
			if pending > 0 {
				pending--
				return nil, nil, 0
			}
			return receiptResult{TransactionHash: "0xfeed", Status: 1, BlockNumber: 12}, nil, 0
		}
		return nil, &rpcError{Code: -32601, Message: "method not found"}, 0
	})
	c := newTestClient(srv.URL)

	handle, err := c.CreateAuction(context.Background(), "0xa", ledger.CreateAuctionRequest{
		Name:        "Lamp",
		Duration:    2 * time.Minute,
		StartingBid: big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", handle.Hash)

	receipt, err := c.AwaitSettlement(context.Background(), handle)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(12), receipt.BlockNumber)
	assert.Equal(t, 3, relay.count(MethodGetReceipt))
}

func TestAwaitSettlementHonorsContext(t *testing.T) {
	_, srv := newFakeRelay(t, func(string, []json.RawMessage) (interface{}, *rpcError, int) {
		return nil, nil, 0
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).AwaitSettlement(ctx, ledger.TxHandle{Hash: "0x1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
