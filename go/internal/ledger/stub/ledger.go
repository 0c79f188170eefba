// Package stub is an in-memory ledger used by tests and by the binary's stub mode.
// It applies the same auction rules as the on-chain contract and records every call.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/models"
)

// Method names passed to Hook and CallCount.
const (
	MethodReadPlatformStats = "readPlatformStats"
	MethodListAuctionIDs    = "listAuctionIds"
	MethodReadAuction       = "readAuction"
	MethodReadAllUserStats  = "readAllUserStats"
	MethodIsRegistered      = "isRegistered"
	MethodFinalizeAuction   = "finalizeAuction"
	MethodSubmitBid         = "submitBid"
	MethodCreateAuction     = "createAuction"
	MethodRegisterUser      = "registerUser"
	MethodAwaitSettlement   = "awaitSettlement"
)

var (
	errAuctionNotOver = errors.New("auction has not reached its end time")
	errUnknownTx      = errors.New("unknown transaction")
)

// Ledger implements ledger.Gateway in memory.
type Ledger struct {
	clock clockwork.Clock

	mu         sync.Mutex
	auctions   map[uint64]*models.AuctionRecord
	order      []uint64
	users      map[string]*models.UserStat
	userOrder  []string
	registered map[string]bool
	receipts   map[string]*ledger.Receipt
	calls      map[string]int
	finalizes  map[uint64]int
	txSeq      uint64
	block      uint64

	// Failure injection. Set before use; read under mu.
	PlatformErr    error
	ListErr        error
	UserStatsErr   error
	AuctionErrs    map[uint64]error
	FinalizeErr    error
	SubmitErr      error
	SettlementErr  error
	StatsOverride  *ledger.PlatformStats
	UserStatsOrder []models.UserStat

	// Hook, when set, runs at the start of every call outside the lock.
	Hook func(ctx context.Context, method string)
}

var _ ledger.Gateway = (*Ledger)(nil)

// New creates an empty ledger driven by clock.
func New(clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{
		clock:       clock,
		auctions:    make(map[uint64]*models.AuctionRecord),
		users:       make(map[string]*models.UserStat),
		registered:  make(map[string]bool),
		receipts:    make(map[string]*ledger.Receipt),
		calls:       make(map[string]int),
		finalizes:   make(map[uint64]int),
		AuctionErrs: make(map[uint64]error),
	}
}

// AddAuction seeds an auction record. Amount fields default to zero.
func (l *Ledger) AddAuction(rec models.AuctionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := copyRecord(rec)
	if r.StartingBid == nil {
		r.StartingBid = new(big.Int)
	}
	if r.HighestBid == nil || r.HighestBid.Cmp(r.StartingBid) < 0 {
		r.HighestBid = new(big.Int).Set(r.StartingBid)
	}
	if r.TotalVolumeBid == nil {
		r.TotalVolumeBid = new(big.Int)
	}
	if _, exists := l.auctions[r.AuctionID]; !exists {
		l.order = append(l.order, r.AuctionID)
	}
	l.auctions[r.AuctionID] = r
}

// AddUserStat seeds a participant's bookkeeping.
func (l *Ledger) AddUserStat(stat models.UserStat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userStat(stat.Address).TotalBids = stat.TotalBids
	l.userStat(stat.Address).TotalSpend = new(big.Int).Set(orZero(stat.TotalSpend))
}

// Configure runs fn under the ledger lock, for changing failure injection while calls are in flight.
func (l *Ledger) Configure(fn func(l *Ledger)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l)
}

// SetAuctionErr makes ReadAuction fail for id until cleared with a nil err.
func (l *Ledger) SetAuctionErr(id uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.AuctionErrs, id)
		return
	}
	l.AuctionErrs[id] = err
}

// Auction returns a copy of the stored record.
func (l *Ledger) Auction(id uint64) (models.AuctionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.auctions[id]
	if !ok {
		return models.AuctionRecord{}, false
	}
	return *copyRecord(*rec), true
}

// CallCount returns how many times method was invoked.
func (l *Ledger) CallCount(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// FinalizeCount returns how many finalize calls id received.
func (l *Ledger) FinalizeCount(id uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finalizes[id]
}

func (l *Ledger) enter(ctx context.Context, method string) {
	l.mu.Lock()
	l.calls[method]++
	hook := l.Hook
	l.mu.Unlock()
	if hook != nil {
		hook(ctx, method)
	}
}

// ReadPlatformStats derives the platform counters from the stored auctions.
func (l *Ledger) ReadPlatformStats(ctx context.Context) (*ledger.PlatformStats, error) {
	l.enter(ctx, MethodReadPlatformStats)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.PlatformErr != nil {
		return nil, l.PlatformErr
	}
	if l.StatsOverride != nil {
		s := *l.StatsOverride
		return &s, nil
	}

	stats := &ledger.PlatformStats{
		TotalAuction:    uint64(len(l.auctions)),
		TotalVolumeBid:  new(big.Int),
		HighestBid:      new(big.Int),
		AverageBidValue: new(big.Int),
		TotalUsers:      uint64(len(l.registered)),
	}
	for _, rec := range l.auctions {
		if !rec.Ended {
			stats.TotalActiveAuction++
		}
	}
	for _, addr := range l.userOrder {
		u := l.users[addr]
		if u.TotalBids == 0 {
			continue
		}
		stats.TotalBidders++
		stats.TotalBid += u.TotalBids
		stats.TotalVolumeBid.Add(stats.TotalVolumeBid, u.TotalSpend)
	}
	for _, id := range l.order {
		rec := l.auctions[id]
		if rec.HasBidder() && rec.HighestBid.Cmp(stats.HighestBid) > 0 {
			stats.HighestBid.Set(rec.HighestBid)
			stats.HighestBidder = rec.HighestBidder
		}
	}
	if stats.TotalBid > 0 {
		stats.AverageBidValue.Quo(stats.TotalVolumeBid, new(big.Int).SetUint64(stats.TotalBid))
	}
	return stats, nil
}

// ListAuctionIDs pages ids newest first.
func (l *Ledger) ListAuctionIDs(ctx context.Context, offset, limit uint64) ([]uint64, error) {
	l.enter(ctx, MethodListAuctionIDs)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ListErr != nil {
		return nil, l.ListErr
	}

	ids := make([]uint64, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		ids = append(ids, l.order[i])
	}
	if offset >= uint64(len(ids)) {
		return []uint64{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < uint64(len(ids)) {
		ids = ids[:limit]
	}
	return ids, nil
}

// ReadAuction returns a copy of one auction.
func (l *Ledger) ReadAuction(ctx context.Context, id uint64) (*models.AuctionRecord, error) {
	l.enter(ctx, MethodReadAuction)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.AuctionErrs[id]; err != nil {
		return nil, err
	}
	rec, ok := l.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %d: %w", id, ledger.ErrNotFound)
	}
	return copyRecord(*rec), nil
}

// ReadAllUserStats returns participants in registration order, or UserStatsOrder when set.
func (l *Ledger) ReadAllUserStats(ctx context.Context) ([]models.UserStat, error) {
	l.enter(ctx, MethodReadAllUserStats)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.UserStatsErr != nil {
		return nil, l.UserStatsErr
	}
	if l.UserStatsOrder != nil {
		return append([]models.UserStat(nil), l.UserStatsOrder...), nil
	}

	stats := make([]models.UserStat, 0, len(l.userOrder))
	for _, addr := range l.userOrder {
		u := l.users[addr]
		stats = append(stats, models.UserStat{
			Address:    u.Address,
			TotalBids:  u.TotalBids,
			TotalSpend: new(big.Int).Set(u.TotalSpend),
		})
	}
	return stats, nil
}

// IsRegistered reports whether address called RegisterUser.
func (l *Ledger) IsRegistered(ctx context.Context, address string) (bool, error) {
	l.enter(ctx, MethodIsRegistered)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registered[address], nil
}

// FinalizeAuction closes an auction whose end time has passed.
func (l *Ledger) FinalizeAuction(ctx context.Context, id uint64) error {
	l.enter(ctx, MethodFinalizeAuction)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.finalizes[id]++
	if l.FinalizeErr != nil {
		return l.FinalizeErr
	}
	rec, ok := l.auctions[id]
	if !ok {
		return fmt.Errorf("auction %d: %w", id, ledger.ErrNotFound)
	}
	if rec.Ended {
		return nil
	}
	if l.clock.Now().Before(rec.EndTime) {
		return fmt.Errorf("finalize auction %d: %w", id, errAuctionNotOver)
	}
	rec.Ended = true
	rec.Winner = rec.HighestBidder
	return nil
}

// SubmitBid records a transaction; invalid bids settle as reverted.
func (l *Ledger) SubmitBid(ctx context.Context, from string, id uint64, amount, fundedValue *big.Int) (ledger.TxHandle, error) {
	l.enter(ctx, MethodSubmitBid)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SubmitErr != nil {
		return ledger.TxHandle{}, l.SubmitErr
	}

	handle := l.nextTx()
	rec, ok := l.auctions[id]
	if !ok || rec.Ended || !l.clock.Now().Before(rec.EndTime) ||
		amount == nil || fundedValue == nil || amount.Cmp(fundedValue) != 0 ||
		amount.Cmp(rec.DisplayedPrice()) <= 0 {
		l.settle(handle, ledger.ReceiptStatusReverted)
		return handle, nil
	}

	rec.HighestBid = new(big.Int).Set(amount)
	rec.HighestBidder = from
	rec.TotalVolumeBid = new(big.Int).Add(rec.TotalVolumeBid, amount)

	u := l.userStat(from)
	u.TotalBids++
	u.TotalSpend = new(big.Int).Add(u.TotalSpend, amount)

	l.settle(handle, ledger.ReceiptStatusSuccess)
	return handle, nil
}

// CreateAuction appends a new auction owned by from.
func (l *Ledger) CreateAuction(ctx context.Context, from string, req ledger.CreateAuctionRequest) (ledger.TxHandle, error) {
	l.enter(ctx, MethodCreateAuction)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SubmitErr != nil {
		return ledger.TxHandle{}, l.SubmitErr
	}

	handle := l.nextTx()
	if req.Duration <= 0 || req.StartingBid == nil || req.StartingBid.Sign() <= 0 {
		l.settle(handle, ledger.ReceiptStatusReverted)
		return handle, nil
	}

	var id uint64 = 1
	for _, existing := range l.order {
		if existing >= id {
			id = existing + 1
		}
	}
	l.auctions[id] = &models.AuctionRecord{
		AuctionID:      id,
		Name:           req.Name,
		Description:    req.Description,
		EndTime:        l.clock.Now().Add(req.Duration),
		StartingBid:    new(big.Int).Set(req.StartingBid),
		HighestBid:     new(big.Int).Set(req.StartingBid),
		TotalVolumeBid: new(big.Int),
		Beneficiary:    from,
	}
	l.order = append(l.order, id)

	l.settle(handle, ledger.ReceiptStatusSuccess)
	return handle, nil
}

// RegisterUser marks address as registered.
func (l *Ledger) RegisterUser(ctx context.Context, address string) error {
	l.enter(ctx, MethodRegisterUser)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered[address] = true
	l.userStat(address)
	return nil
}

// AwaitSettlement returns the receipt recorded at submission.
func (l *Ledger) AwaitSettlement(ctx context.Context, handle ledger.TxHandle) (*ledger.Receipt, error) {
	l.enter(ctx, MethodAwaitSettlement)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SettlementErr != nil {
		return nil, l.SettlementErr
	}
	r, ok := l.receipts[handle.Hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", handle.Hash, errUnknownTx)
	}
	receipt := *r
	return &receipt, nil
}

func (l *Ledger) nextTx() ledger.TxHandle {
	l.txSeq++
	return ledger.TxHandle{Hash: fmt.Sprintf("0x%064x", l.txSeq)}
}

func (l *Ledger) settle(handle ledger.TxHandle, status ledger.ReceiptStatus) {
	l.block++
	l.receipts[handle.Hash] = &ledger.Receipt{
		TxHash:      handle.Hash,
		Status:      status,
		BlockNumber: l.block,
	}
}

func (l *Ledger) userStat(addr string) *models.UserStat {
	u, ok := l.users[addr]
	if !ok {
		u = &models.UserStat{Address: addr, TotalSpend: new(big.Int)}
		l.users[addr] = u
		l.userOrder = append(l.userOrder, addr)
	}
	return u
}

func copyRecord(rec models.AuctionRecord) *models.AuctionRecord {
	r := rec.Clone()
	return &r
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
