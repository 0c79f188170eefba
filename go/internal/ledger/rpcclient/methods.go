package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

// Relay method names.
const (
	MethodPlatformStats = "auction_platformStats"
	MethodGetAuctions   = "auction_getAuctions"
	MethodGetAuction    = "auction_getAuction"
	MethodAllUserStats  = "auction_allUserStats"
	MethodIsRegistered  = "auction_isRegistered"
	MethodEndAuction    = "auction_endAuction"
	MethodBid           = "auction_bid"
	MethodCreateAuction = "auction_createAuction"
	MethodRegisterUser  = "auction_registerUser"
	MethodGetReceipt    = "auction_getTransactionReceipt"
)

// Amounts travel as base-10 strings of smallest units.
type platformStatsResult struct {
	TotalAuction       uint64 `json:"totalAuction"`
	TotalActiveAuction uint64 `json:"totalActiveAuction"`
	TotalBidders       uint64 `json:"totalBidders"`
	TotalBid           uint64 `json:"totalBid"`
	TotalVolumeBid     string `json:"totalVolumeBid"`
	HighestBid         string `json:"highestBid"`
	HighestBidder      string `json:"highestBidder"`
	AverageBidValue    string `json:"averageBidValue"`
	TotalUsers         uint64 `json:"totalUsers"`
}

type auctionResult struct {
	AuctionID      uint64 `json:"auctionId"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	EndTime        int64  `json:"endTime"`
	StartingBid    string `json:"startingBid"`
	HighestBid     string `json:"highestBid"`
	HighestBidder  string `json:"highestBidder"`
	Ended          bool   `json:"ended"`
	Winner         string `json:"winner"`
	TotalVolumeBid string `json:"totalVolumeBid"`
	Beneficiary    string `json:"beneficiary"`
}

// userStatsResult mirrors the contract's parallel-array return.
type userStatsResult struct {
	Addresses   []string `json:"addresses"`
	TotalBids   []uint64 `json:"totalBids"`
	TotalSpends []string `json:"totalSpends"`
}

type bidParams struct {
	From      string `json:"from"`
	AuctionID uint64 `json:"auctionId"`
	Amount    string `json:"amount"`
	Value     string `json:"value"`
}

type createAuctionParams struct {
	From        string `json:"from"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    int64  `json:"duration"`
	StartingBid string `json:"startingBid"`
}

type receiptResult struct {
	TransactionHash string `json:"transactionHash"`
	Status          uint64 `json:"status"`
	BlockNumber     uint64 `json:"blockNumber"`
}

// ReadPlatformStats implements ledger.Reader.
func (c *Client) ReadPlatformStats(ctx context.Context) (*ledger.PlatformStats, error) {
	var res platformStatsResult
	if err := c.call(ctx, MethodPlatformStats, nil, &res); err != nil {
		return nil, err
	}

	amounts, err := parseAmounts(res.TotalVolumeBid, res.HighestBid, res.AverageBidValue)
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	return &ledger.PlatformStats{
		TotalAuction:       res.TotalAuction,
		TotalActiveAuction: res.TotalActiveAuction,
		TotalBidders:       res.TotalBidders,
		TotalBid:           res.TotalBid,
		TotalVolumeBid:     amounts[0],
		HighestBid:         amounts[1],
		HighestBidder:      models.NormalizeAddress(res.HighestBidder),
		AverageBidValue:    amounts[2],
		TotalUsers:         res.TotalUsers,
	}, nil
}

// ListAuctionIDs implements ledger.Reader.
func (c *Client) ListAuctionIDs(ctx context.Context, offset, limit uint64) ([]uint64, error) {
	var ids []uint64
	if err := c.call(ctx, MethodGetAuctions, []interface{}{offset, limit}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ReadAuction implements ledger.Reader.
func (c *Client) ReadAuction(ctx context.Context, id uint64) (*models.AuctionRecord, error) {
	var res *auctionResult
	if err := c.call(ctx, MethodGetAuction, []interface{}{id}, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("auction %d: %w", id, ledger.ErrNotFound)
	}

	amounts, err := parseAmounts(res.StartingBid, res.HighestBid, res.TotalVolumeBid)
	if err != nil {
		return nil, fmt.Errorf("auction %d: %w", id, err)
	}
	return &models.AuctionRecord{
		AuctionID:      res.AuctionID,
		Name:           res.Name,
		Description:    res.Description,
		EndTime:        time.Unix(res.EndTime, 0).UTC(),
		StartingBid:    amounts[0],
		HighestBid:     amounts[1],
		HighestBidder:  models.NormalizeAddress(res.HighestBidder),
		Ended:          res.Ended,
		Winner:         models.NormalizeAddress(res.Winner),
		TotalVolumeBid: amounts[2],
		Beneficiary:    res.Beneficiary,
	}, nil
}

// ReadAllUserStats implements ledger.Reader.
func (c *Client) ReadAllUserStats(ctx context.Context) ([]models.UserStat, error) {
	var res userStatsResult
	if err := c.call(ctx, MethodAllUserStats, nil, &res); err != nil {
		return nil, err
	}
	if len(res.TotalBids) != len(res.Addresses) || len(res.TotalSpends) != len(res.Addresses) {
		return nil, fmt.Errorf("user stats: mismatched column lengths %d/%d/%d",
			len(res.Addresses), len(res.TotalBids), len(res.TotalSpends))
	}

	stats := make([]models.UserStat, 0, len(res.Addresses))
	for i, addr := range res.Addresses {
		spend, err := units.ParseSmallest(res.TotalSpends[i])
		if err != nil {
			return nil, fmt.Errorf("user stats %s: %w", addr, err)
		}
		stats = append(stats, models.UserStat{
			Address:    addr,
			TotalBids:  res.TotalBids[i],
			TotalSpend: spend,
		})
	}
	return stats, nil
}

// IsRegistered implements ledger.Reader.
func (c *Client) IsRegistered(ctx context.Context, address string) (bool, error) {
	var ok bool
	if err := c.call(ctx, MethodIsRegistered, []interface{}{address}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// FinalizeAuction implements ledger.Writer. The relay treats already-ended
// auctions as a no-op.
func (c *Client) FinalizeAuction(ctx context.Context, id uint64) error {
	var hash string
	return c.send(ctx, MethodEndAuction, []interface{}{id}, &hash)
}

// SubmitBid implements ledger.Writer.
func (c *Client) SubmitBid(ctx context.Context, from string, id uint64, amount, fundedValue *big.Int) (ledger.TxHandle, error) {
	var hash string
	err := c.send(ctx, MethodBid, []interface{}{bidParams{
		From:      from,
		AuctionID: id,
		Amount:    amount.String(),
		Value:     fundedValue.String(),
	}}, &hash)
	if err != nil {
		return ledger.TxHandle{}, err
	}
	return ledger.TxHandle{Hash: hash}, nil
}

// CreateAuction implements ledger.Writer.
func (c *Client) CreateAuction(ctx context.Context, from string, req ledger.CreateAuctionRequest) (ledger.TxHandle, error) {
	var hash string
	err := c.send(ctx, MethodCreateAuction, []interface{}{createAuctionParams{
		From:        from,
		Name:        req.Name,
		Description: req.Description,
		Duration:    int64(req.Duration / time.Second),
		StartingBid: req.StartingBid.String(),
	}}, &hash)
	if err != nil {
		return ledger.TxHandle{}, err
	}
	return ledger.TxHandle{Hash: hash}, nil
}

// RegisterUser implements ledger.Writer.
func (c *Client) RegisterUser(ctx context.Context, address string) error {
	var hash string
	if err := c.send(ctx, MethodRegisterUser, []interface{}{address}, &hash); err != nil {
		return err
	}
	_, err := c.AwaitSettlement(ctx, ledger.TxHandle{Hash: hash})
	return err
}

// AwaitSettlement polls for the receipt of handle until it appears or ctx ends.
func (c *Client) AwaitSettlement(ctx context.Context, handle ledger.TxHandle) (*ledger.Receipt, error) {
	for {
		var res *receiptResult
		if err := c.call(ctx, MethodGetReceipt, []interface{}{handle.Hash}, &res); err != nil {
			return nil, err
		}
		if res != nil {
			return &ledger.Receipt{
				TxHash:      res.TransactionHash,
				Status:      ledger.ReceiptStatus(res.Status),
				BlockNumber: res.BlockNumber,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
}

func parseAmounts(values ...string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, s := range values {
		v, err := units.ParseSmallest(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
