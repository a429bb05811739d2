package sale

import (
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-crowdsale/accesscontrol"
	"github.com/pflow-xyz/go-crowdsale/eventlog"
	"github.com/pflow-xyz/go-crowdsale/token"
)

// SetWindow replaces the sale window. Restricted to the sale-admin role.
// Only start < end is required: the new window may lie entirely in the
// past, which closes the sale immediately. That flexibility is deliberate
// so an admin can correct a misconfigured window in either direction.
func (e *Engine) SetWindow(caller token.Address, start, end time.Time) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.roles.Require(string(caller), accesscontrol.RoleSaleAdmin); err != nil {
		return err
	}
	if !start.Before(end) {
		return ErrInvalidTimeRange
	}

	e.mu.Lock()
	e.start, e.end = start, end
	e.mu.Unlock()

	e.events.Emit(eventlog.New(eventlog.NameSaleWindowUpdated, string(caller), e.clock.Now(), map[string]string{
		"start": strconv.FormatInt(start.Unix(), 10),
		"end":   strconv.FormatInt(end.Unix(), 10),
	}))
	return nil
}

// SetLimits replaces the minimum purchase amount (payment units) and the
// per-wallet token cap. Restricted to the sale-admin role. Both must be
// non-zero. Lowering the wallet cap below a buyer's balance blocks further
// purchases by that buyer but never claws anything back.
func (e *Engine) SetLimits(caller token.Address, minPurchase, walletCap *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.roles.Require(string(caller), accesscontrol.RoleSaleAdmin); err != nil {
		return err
	}
	if minPurchase == nil || minPurchase.IsZero() || walletCap == nil || walletCap.IsZero() {
		return ErrZeroAmount
	}

	e.mu.Lock()
	e.minPurchase = minPurchase.Clone()
	e.walletCap = walletCap.Clone()
	e.mu.Unlock()

	e.events.Emit(eventlog.New(eventlog.NamePurchaseLimitsUpdated, string(caller), e.clock.Now(), map[string]string{
		"minPurchase": eventlog.Amount(minPurchase),
		"walletCap":   eventlog.Amount(walletCap),
	}))
	return nil
}

// Pause freezes the purchase entry point. Restricted to the pauser role.
// This is independent of the token ledger's own pause; either layer pausing
// halts purchases.
func (e *Engine) Pause(caller token.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.roles.Require(string(caller), accesscontrol.RolePauser); err != nil {
		return err
	}

	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return ErrAlreadyPaused
	}
	e.paused = true
	e.mu.Unlock()

	e.events.Emit(eventlog.New(eventlog.NamePaused, string(caller), e.clock.Now(), nil))
	return nil
}

// Unpause lifts the engine-level freeze. Restricted to the pauser role.
func (e *Engine) Unpause(caller token.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.roles.Require(string(caller), accesscontrol.RolePauser); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	e.paused = false
	e.mu.Unlock()

	e.events.Emit(eventlog.New(eventlog.NameUnpaused, string(caller), e.clock.Now(), nil))
	return nil
}

// SweepForeignAsset forwards the engine account's entire balance of a
// foreign asset to the destination account. The configured payment and
// native ledgers are rejected; sweeping only exists for assets that land on
// the engine by accident. Deliberately callable by anyone: it can only move
// funds to the fixed destination, so restricting the caller would add
// nothing.
func (e *Engine) SweepForeignAsset(caller token.Address, asset Asset) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if asset == nil {
		return ErrNilLedger
	}
	if asset == Asset(e.payment) || (e.native != nil && asset == e.native) {
		return ErrConfiguredAsset
	}
	balance := asset.BalanceOf(e.account)
	if balance.IsZero() {
		return ErrNothingToSweep
	}
	if err := asset.Transfer(e.account, e.destination, balance); err != nil {
		return err
	}

	e.events.Emit(eventlog.New(eventlog.NameForeignAssetSwept, string(caller), e.clock.Now(), map[string]string{
		"asset":  asset.Symbol(),
		"amount": eventlog.Amount(balance),
	}))
	return nil
}

// EmergencyWithdraw moves an arbitrary asset balance from the engine
// account to the caller. Restricted to the default-admin role; unlike
// SweepForeignAsset the funds leave toward the caller, hence the tighter
// gate.
func (e *Engine) EmergencyWithdraw(caller token.Address, asset Asset, amount *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.roles.Require(string(caller), accesscontrol.RoleDefaultAdmin); err != nil {
		return err
	}
	if asset == nil {
		return ErrNilLedger
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if err := asset.Transfer(e.account, caller, amount); err != nil {
		return err
	}

	e.events.Emit(eventlog.New(eventlog.NameEmergencyWithdraw, string(caller), e.clock.Now(), map[string]string{
		"asset":  asset.Symbol(),
		"amount": eventlog.Amount(amount),
	}))
	return nil
}

// ReceiveNative handles a bare native-currency receipt: a non-zero value is
// forwarded in full to the destination in the same step, so no funds ever
// rest on the engine account. A forwarding failure fails the receipt.
func (e *Engine) ReceiveNative(from token.Address, value *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if e.native == nil {
		return ErrNilLedger
	}
	if value == nil || value.IsZero() {
		return ErrZeroAmount
	}
	if err := e.native.Transfer(from, e.destination, value); err != nil {
		return err
	}

	e.events.Emit(eventlog.New(eventlog.NameNativeForwarded, string(from), e.clock.Now(), map[string]string{
		"value": eventlog.Amount(value),
	}))
	return nil
}
