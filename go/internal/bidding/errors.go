package bidding

import "errors"

var (
	// ErrInvalidAmount is a local validation failure: the amount is not a non-negative decimal.
	ErrInvalidAmount = errors.New("invalid bid amount")

	// ErrBidTooLow is a local validation failure: the amount does not exceed the displayed price.
	ErrBidTooLow = errors.New("bid must be higher than the current price")

	// ErrSubmissionRejected means the ledger settled the bid as reverted.
	ErrSubmissionRejected = errors.New("bid rejected by ledger")

	// ErrTransportFailure means the bid never reached settlement.
	ErrTransportFailure = errors.New("bid submission failed")

	// ErrUnknownAuction means the auction is not in the current view.
	ErrUnknownAuction = errors.New("unknown auction")
)
