package sale

import "errors"

var (
	// Configuration errors
	ErrNilLedger        = errors.New("sale: nil ledger reference")
	ErrZeroAddress      = errors.New("sale: zero address")
	ErrZeroAmount       = errors.New("sale: zero amount")
	ErrInvalidTimeRange = errors.New("sale: invalid time range")

	// Purchase errors
	ErrSaleNotActive     = errors.New("sale: not active")
	ErrSalePaused        = errors.New("sale: paused")
	ErrBelowMinimum      = errors.New("sale: below minimum purchase")
	ErrSupplyExhausted   = errors.New("sale: offered supply exhausted")
	ErrWalletLimit       = errors.New("sale: wallet limit exceeded")
	ErrLedgerPaused      = errors.New("sale: token ledger paused")
	ErrLedgerCapExceeded = errors.New("sale: token ledger supply cap exceeded")
	ErrAmountTooLarge    = errors.New("sale: amount exceeds 256-bit arithmetic range")

	// Execution errors
	ErrReentrantCall   = errors.New("sale: reentrant call")
	ErrNothingToSweep  = errors.New("sale: nothing to sweep")
	ErrConfiguredAsset = errors.New("sale: asset is part of the sale configuration")

	// Pause state errors
	ErrAlreadyPaused = errors.New("sale: already paused")
	ErrNotPaused     = errors.New("sale: not paused")
)
