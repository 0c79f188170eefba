package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteRead marks a failed or timed-out gateway read.
	ErrRemoteRead = errors.New("remote read failed")

	// ErrReverted is returned by a gateway when the ledger rejected a write on-chain.
	ErrReverted = errors.New("transaction reverted")

	// ErrNotFound is returned when the ledger has no record for an id.
	ErrNotFound = errors.New("not found")
)

// ReadError wraps err as a remote read failure of op.
func ReadError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteRead, op, err)
}
