package sale

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/pflow-xyz/go-crowdsale/eventlog"
	"github.com/pflow-xyz/go-crowdsale/token"
)

// Asset is the minimal surface the engine needs to move a balance it holds
// and name the asset in the audit trail.
type Asset interface {
	Transfer(from, to token.Address, amount *uint256.Int) error
	BalanceOf(addr token.Address) *uint256.Int
	Symbol() string
}

// PaymentAsset is the payment collaborator. Settlement relies on its
// transfer-with-allowance primitive: the buyer must have approved at least
// the purchase amount to the engine account beforehand.
type PaymentAsset interface {
	Asset
	TransferFrom(spender, from, to token.Address, amount *uint256.Int) error
	Decimals() uint8
}

// TokenLedger is the issued-asset collaborator. The engine layers defensive
// pre-checks on top of these queries; the ledger itself remains the
// authoritative guard for its pause switch and supply cap.
type TokenLedger interface {
	Mint(caller, to token.Address, amount *uint256.Int) error
	TotalSupply() *uint256.Int
	MaxSupply() *uint256.Int
	Paused() bool
	Decimals() uint8
}

// Config is the immutable sale configuration. Window and limit fields seed
// the mutable sale state and can later move through admin operations; every
// other field is fixed for the engine's lifetime.
type Config struct {
	Payment PaymentAsset
	Token   TokenLedger

	// Native is the native-currency ledger for bare receipts. nil disables
	// ReceiveNative.
	Native Asset

	// Account is the engine's own account: buyers grant it allowance and
	// settlement escrows through it.
	Account token.Address

	// Destination receives all raised payment.
	Destination token.Address

	// Price is payment units per whole issued token, scaled by the payment
	// asset's decimal precision.
	Price *uint256.Int

	// Offered is the total token amount for sale, in base units.
	Offered *uint256.Int

	Start time.Time
	End   time.Time

	// MinPurchase is the smallest accepted payment amount, in payment units.
	MinPurchase *uint256.Int

	// WalletCap is the most token base units a single buyer may receive.
	WalletCap *uint256.Int

	// Admin receives the default-admin role on the engine's registry.
	Admin token.Address

	// Events receives sale notifications. nil discards them.
	Events eventlog.Emitter

	// Clock drives the window predicate and event timestamps. nil uses the
	// wall clock.
	Clock clockwork.Clock
}

func (cfg *Config) validate(now time.Time) error {
	if cfg.Payment == nil || cfg.Token == nil {
		return ErrNilLedger
	}
	for name, addr := range map[string]token.Address{
		"account":     cfg.Account,
		"destination": cfg.Destination,
		"admin":       cfg.Admin,
	} {
		if addr == token.ZeroAddress {
			return fmt.Errorf("%w: %s", ErrZeroAddress, name)
		}
	}
	for name, v := range map[string]*uint256.Int{
		"price":        cfg.Price,
		"offered":      cfg.Offered,
		"min purchase": cfg.MinPurchase,
		"wallet cap":   cfg.WalletCap,
	} {
		if v == nil || v.IsZero() {
			return fmt.Errorf("%w: %s", ErrZeroAmount, name)
		}
	}
	if !cfg.Start.Before(cfg.End) {
		return fmt.Errorf("%w: start %v >= end %v", ErrInvalidTimeRange, cfg.Start, cfg.End)
	}
	if cfg.Start.Before(now) {
		return fmt.Errorf("%w: start %v precedes current time %v", ErrInvalidTimeRange, cfg.Start, now)
	}
	return nil
}
