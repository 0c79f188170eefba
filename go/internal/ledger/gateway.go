package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/arjunamarcelino/velobid/go/internal/models"
)

// Reader is the read side of the ledger.
type Reader interface {
	// ReadPlatformStats reads the aggregate platform counters. Amounts are smallest units.
	ReadPlatformStats(ctx context.Context) (*PlatformStats, error)

	// ListAuctionIDs returns up to limit auction ids starting at offset.
	ListAuctionIDs(ctx context.Context, offset, limit uint64) ([]uint64, error)

	// ReadAuction resolves one auction id to its full record.
	ReadAuction(ctx context.Context, id uint64) (*models.AuctionRecord, error)

	// ReadAllUserStats returns every participant's bookkeeping in ledger order.
	ReadAllUserStats(ctx context.Context) ([]models.UserStat, error)

	// IsRegistered reports whether address has registered as a user.
	IsRegistered(ctx context.Context, address string) (bool, error)
}

// Writer is the write side of the ledger. Writes are signed by the connected identity.
type Writer interface {
	// FinalizeAuction closes an auction past its end time. Duplicate calls are no-ops.
	FinalizeAuction(ctx context.Context, id uint64) error

	// SubmitBid submits a bid of amount funded with fundedValue.
	SubmitBid(ctx context.Context, from string, id uint64, amount, fundedValue *big.Int) (TxHandle, error)

	// CreateAuction submits a new auction with the given duration and starting bid.
	CreateAuction(ctx context.Context, from string, req CreateAuctionRequest) (TxHandle, error)

	// RegisterUser registers address as a platform user.
	RegisterUser(ctx context.Context, address string) error

	// AwaitSettlement blocks until the transaction is settled or ctx ends.
	AwaitSettlement(ctx context.Context, handle TxHandle) (*Receipt, error)
}

// Gateway is the full ledger surface the engine consumes.
type Gateway interface {
	Reader
	Writer
}

// PlatformStats is the raw result of ReadPlatformStats.
type PlatformStats struct {
	TotalAuction       uint64
	TotalActiveAuction uint64
	TotalBidders       uint64
	TotalBid           uint64
	TotalVolumeBid     *big.Int
	HighestBid         *big.Int
	HighestBidder      string
	AverageBidValue    *big.Int
	TotalUsers         uint64
}

// CreateAuctionRequest is the payload of CreateAuction.
type CreateAuctionRequest struct {
	Name        string
	Description string
	Duration    time.Duration
	StartingBid *big.Int
}

// TxHandle identifies a submitted, possibly pending transaction.
type TxHandle struct {
	Hash string `json:"hash"`
}

// ReceiptStatus is the settlement outcome reported by the ledger.
type ReceiptStatus uint64

const (
	ReceiptStatusReverted ReceiptStatus = 0
	ReceiptStatusSuccess  ReceiptStatus = 1
)

// Receipt is a settled transaction.
type Receipt struct {
	TxHash      string        `json:"tx_hash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber uint64        `json:"block_number"`
}

// Succeeded reports whether the ledger accepted the transaction.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}
