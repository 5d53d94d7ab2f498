package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrUnknownExchange     = errors.New("unknown exchange")
	ErrMissingCredentials  = errors.New("missing exchange credentials")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrFeedUnavailable     = errors.New("opportunity feed unavailable")
	ErrOrderRejected       = errors.New("order rejected by exchange")
	ErrPartialExecution    = errors.New("partial execution: buy filled, sell failed")
	ErrLockHeld            = errors.New("lock already held")
)
