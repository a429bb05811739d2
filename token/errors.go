package token

import "errors"

var (
	// Configuration errors
	ErrZeroAddress = errors.New("token: zero address")
	ErrZeroAmount  = errors.New("token: zero amount")

	// Movement errors
	ErrPaused                = errors.New("token: ledger paused")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// Minting errors
	ErrMaxSupplyExceeded = errors.New("token: max supply exceeded")

	// Pause state errors
	ErrAlreadyPaused = errors.New("token: already paused")
	ErrNotPaused     = errors.New("token: not paused")
)
