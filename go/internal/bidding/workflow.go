// Package bidding validates and submits a single user bid and awaits its settlement.
package bidding

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
	"github.com/arjunamarcelino/velobid/go/internal/session"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

// Identities supplies the connected wallet that signs the bid.
type Identities interface {
	Current() (session.Identity, bool)
}

type Config struct {
	TokenSymbol string
}

func DefaultConfig() Config {
	return Config{TokenSymbol: "EDU"}
}

// Workflow places bids. It never retries: a failed bid must be resubmitted by the user.
type Workflow struct {
	writer      ledger.Writer
	identities  Identities
	notifier    notify.Notifier
	invalidator notify.Invalidator
	clock       clockwork.Clock
	config      Config
}

func NewWorkflow(writer ledger.Writer, identities Identities, notifier notify.Notifier, invalidator notify.Invalidator, clock clockwork.Clock, cfg Config) *Workflow {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Workflow{
		writer:      writer,
		identities:  identities,
		notifier:    notifier,
		invalidator: invalidator,
		clock:       clock,
		config:      cfg,
	}
}

// PlaceBid validates proposedAmount against currentDisplayedPrice (smallest
// units), submits a bid funded with exactly that amount and waits for settlement.
// Every outcome produces one notification; a confirmed bid also triggers one invalidation.
func (w *Workflow) PlaceBid(ctx context.Context, auctionID uint64, proposedAmount string, currentDisplayedPrice *big.Int) (*ledger.Receipt, error) {
	receipt, err := w.placeBid(ctx, auctionID, proposedAmount, currentDisplayedPrice)
	if err != nil {
		log.Warn().Err(err).Uint64("auction_id", auctionID).Str("amount", proposedAmount).Msg("bid failed")
		n := notify.New(notify.KindError, "Bid failed", err.Error(), w.clock.Now())
		n.AuctionID = auctionID
		if receipt != nil {
			n.TxHash = receipt.TxHash
		}
		w.notifier.Notify(ctx, n)
		return receipt, err
	}
	return receipt, nil
}

func (w *Workflow) placeBid(ctx context.Context, auctionID uint64, proposedAmount string, currentDisplayedPrice *big.Int) (*ledger.Receipt, error) {
	amount, display, err := units.ParseToSmallest(proposedAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	price := currentDisplayedPrice
	if price == nil {
		price = new(big.Int)
	}
	if amount.Cmp(price) <= 0 {
		return nil, fmt.Errorf("%w: %s %s is not above %s %s", ErrBidTooLow,
			units.FormatDecimal(display), w.config.TokenSymbol, units.Format(price), w.config.TokenSymbol)
	}

	id, ok := w.identities.Current()
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, session.ErrNotConnected)
	}

	handle, err := w.writer.SubmitBid(ctx, id.Address, auctionID, amount, new(big.Int).Set(amount))
	if err != nil {
		return nil, classify(err)
	}

	log.Info().
		Uint64("auction_id", auctionID).
		Str("tx_hash", handle.Hash).
		Str("address", id.Address).
		Msg("bid submitted, awaiting settlement")

	receipt, err := w.writer.AwaitSettlement(ctx, handle)
	if err != nil {
		return nil, classify(err)
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%w: transaction %s reverted", ErrSubmissionRejected, receipt.TxHash)
	}

	log.Info().
		Uint64("auction_id", auctionID).
		Str("tx_hash", receipt.TxHash).
		Uint64("block", receipt.BlockNumber).
		Msg("bid confirmed")

	n := notify.New(notify.KindSuccess, "Bid placed",
		fmt.Sprintf("Bid of %s %s placed on auction #%d", units.FormatDecimal(display), w.config.TokenSymbol, auctionID),
		w.clock.Now())
	n.AuctionID = auctionID
	n.TxHash = receipt.TxHash
	w.notifier.Notify(ctx, n)

	if w.invalidator != nil {
		w.invalidator.Invalidate(ctx)
	}
	return receipt, nil
}

// classify maps a gateway write error onto the bid error taxonomy.
func classify(err error) error {
	if errors.Is(err, ledger.ErrReverted) {
		return fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrTransportFailure, err)
}
