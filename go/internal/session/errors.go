package session

import "errors"

var (
	ErrNotConnected   = errors.New("wallet not connected")
	ErrWrongChain     = errors.New("wallet connected to wrong chain")
	ErrInvalidAddress = errors.New("invalid wallet address")
)
