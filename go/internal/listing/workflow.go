// Package listing validates and submits new auctions.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
	"github.com/arjunamarcelino/velobid/go/internal/session"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

// Form is the user-entered auction form. Numeric fields are raw text.
type Form struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes string `json:"duration_minutes"`
	StartingBid     string `json:"starting_bid"`
}

// FieldError names one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field. It matches ErrInvalidForm.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidForm
}

// Sessions supplies the connected wallet on the required chain.
type Sessions interface {
	RequireChain(chainID uint64) (session.Identity, error)
}

type Config struct {
	ChainID     uint64
	TokenSymbol string
}

func DefaultConfig() Config {
	return Config{
		ChainID:     656476,
		TokenSymbol: "EDU",
	}
}

// Workflow creates auctions. Like bids, creations are never retried automatically.
type Workflow struct {
	writer      ledger.Writer
	sessions    Sessions
	notifier    notify.Notifier
	invalidator notify.Invalidator
	clock       clockwork.Clock
	config      Config
}

func NewWorkflow(writer ledger.Writer, sessions Sessions, notifier notify.Notifier, invalidator notify.Invalidator, clock clockwork.Clock, cfg Config) *Workflow {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Workflow{
		writer:      writer,
		sessions:    sessions,
		notifier:    notifier,
		invalidator: invalidator,
		clock:       clock,
		config:      cfg,
	}
}

// Create validates form, submits the auction and waits for settlement.
func (w *Workflow) Create(ctx context.Context, form Form) (*ledger.Receipt, error) {
	receipt, err := w.create(ctx, form)
	if err != nil {
		log.Warn().Err(err).Str("name", form.Name).Msg("auction creation failed")
		n := notify.New(notify.KindError, "Auction not created", err.Error(), w.clock.Now())
		if receipt != nil {
			n.TxHash = receipt.TxHash
		}
		w.notifier.Notify(ctx, n)
	}
	return receipt, err
}

func (w *Workflow) create(ctx context.Context, form Form) (*ledger.Receipt, error) {
	req, err := Validate(form)
	if err != nil {
		return nil, err
	}

	id, err := w.sessions.RequireChain(w.config.ChainID)
	switch {
	case errors.Is(err, session.ErrWrongChain):
		return nil, fmt.Errorf("%w: %w", ErrWrongNetwork, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	handle, err := w.writer.CreateAuction(ctx, id.Address, req)
	if err != nil {
		return nil, classify(err)
	}
	log.Info().Str("tx_hash", handle.Hash).Str("address", id.Address).Msg("auction submitted, awaiting settlement")

	receipt, err := w.writer.AwaitSettlement(ctx, handle)
	if err != nil {
		return nil, classify(err)
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%w: transaction %s reverted", ErrSubmissionRejected, receipt.TxHash)
	}

	n := notify.New(notify.KindSuccess, "Auction created",
		fmt.Sprintf("%s is live with a starting bid of %s %s", req.Name, units.Format(req.StartingBid), w.config.TokenSymbol),
		w.clock.Now())
	n.TxHash = receipt.TxHash
	w.notifier.Notify(ctx, n)

	if w.invalidator != nil {
		w.invalidator.Invalidate(ctx)
	}
	return receipt, nil
}

// Validate checks every field and converts the form into a ledger request.
func Validate(form Form) (ledger.CreateAuctionRequest, error) {
	var fields []FieldError
	req := ledger.CreateAuctionRequest{
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
	}

	if req.Name == "" {
		fields = append(fields, FieldError{Field: "name", Message: "required"})
	}
	if req.Description == "" {
		fields = append(fields, FieldError{Field: "description", Message: "required"})
	}

	minutes, err := strconv.ParseUint(strings.TrimSpace(form.DurationMinutes), 10, 32)
	if err != nil || minutes == 0 {
		fields = append(fields, FieldError{Field: "duration_minutes", Message: "must be a positive whole number of minutes"})
	} else {
		req.Duration = time.Duration(minutes*60) * time.Second
	}

	start, _, err := units.ParseToSmallest(form.StartingBid)
	switch {
	case err != nil:
		fields = append(fields, FieldError{Field: "starting_bid", Message: err.Error()})
	case start.Sign() <= 0:
		fields = append(fields, FieldError{Field: "starting_bid", Message: "must be greater than zero"})
	default:
		req.StartingBid = start
	}

	if len(fields) > 0 {
		return ledger.CreateAuctionRequest{}, &ValidationError{Fields: fields}
	}
	return req, nil
}

func classify(err error) error {
	if errors.Is(err, ledger.ErrReverted) {
		return fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrTransportFailure, err)
}
