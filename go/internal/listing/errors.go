package listing

import "errors"

var (
	ErrInvalidForm        = errors.New("invalid auction form")
	ErrWrongNetwork       = errors.New("wrong network")
	ErrSubmissionRejected = errors.New("auction creation rejected by ledger")
	ErrTransportFailure   = errors.New("auction creation failed")
)
