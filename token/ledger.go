// Package token implements an in-memory fungible asset ledger with
// allowances, an optional hard supply cap, and a pause switch that blocks
// every balance movement. One Ledger type serves both collaborators of the
// sale engine: the capped, mintable issued asset and the payment asset.
package token

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/pflow-xyz/go-crowdsale/accesscontrol"
	"github.com/pflow-xyz/go-crowdsale/eventlog"
)

// Address identifies an account on a ledger.
type Address string

// ZeroAddress is the null account. It can never hold a balance.
const ZeroAddress Address = ""

// Config describes an immutable ledger configuration.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8

	// MaxSupply is the hard ceiling on total issued supply.
	// nil means uncapped.
	MaxSupply *uint256.Int

	// Admin receives the default-admin role on the ledger's registry.
	Admin Address

	// Events receives ledger notifications. nil discards them.
	Events eventlog.Emitter

	// Clock stamps emitted events. nil uses the wall clock.
	Clock clockwork.Clock
}

// Ledger holds fungible asset state. All mutating operations are serialized
// by an internal mutex; every balance movement passes through a single hook
// that rejects while the ledger is paused.
type Ledger struct {
	name     string
	symbol   string
	decimals uint8
	max      *uint256.Int // nil = uncapped
	roles    *accesscontrol.Registry
	events   eventlog.Emitter
	clock    clockwork.Clock

	mu         sync.RWMutex
	total      *uint256.Int
	paused     bool
	balances   map[Address]*uint256.Int
	allowances map[Address]map[Address]*uint256.Int
}

// NewLedger creates a ledger with zero supply.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Admin == ZeroAddress {
		return nil, ErrZeroAddress
	}
	roles, err := accesscontrol.NewRegistry(string(cfg.Admin))
	if err != nil {
		return nil, err
	}
	events := cfg.Events
	if events == nil {
		events = eventlog.Discard{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	var max *uint256.Int
	if cfg.MaxSupply != nil {
		if cfg.MaxSupply.IsZero() {
			return nil, ErrZeroAmount
		}
		max = cfg.MaxSupply.Clone()
	}
	return &Ledger{
		name:       cfg.Name,
		symbol:     cfg.Symbol,
		decimals:   cfg.Decimals,
		max:        max,
		roles:      roles,
		events:     events,
		clock:      clock,
		total:      new(uint256.Int),
		balances:   make(map[Address]*uint256.Int),
		allowances: make(map[Address]map[Address]*uint256.Int),
	}, nil
}

// Roles exposes the ledger's role registry for grant/revoke administration.
func (l *Ledger) Roles() *accesscontrol.Registry { return l.roles }

// Name returns the asset name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the asset symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the asset's decimal precision.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// TotalSupply returns the current issued supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total.Clone()
}

// MaxSupply returns the supply cap, or nil if the ledger is uncapped.
func (l *Ledger) MaxSupply() *uint256.Int {
	if l.max == nil {
		return nil
	}
	return l.max.Clone()
}

// Paused reports whether all balance movement is frozen.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused
}

// BalanceOf returns the balance of addr.
func (l *Ledger) BalanceOf(addr Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns the amount spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint issues amount to the given account. Restricted to the minter role.
// Fails while paused, for the zero address, for a zero amount, and whenever
// the new supply would exceed the cap. Landing exactly on the cap emits a
// one-time MaxSupplyReached notification after TokensMinted.
func (l *Ledger) Mint(caller, to Address, amount *uint256.Int) error {
	if err := l.roles.Require(string(caller), accesscontrol.RoleMinter); err != nil {
		return err
	}

	l.mu.Lock()
	if err := l.checkMove(to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(l.total, amount)
	if overflow || (l.max != nil && newTotal.Gt(l.max)) {
		l.mu.Unlock()
		return ErrMaxSupplyExceeded
	}
	l.total = newTotal
	l.credit(to, amount)
	capReached := l.max != nil && l.total.Eq(l.max)
	l.mu.Unlock()

	now := l.clock.Now()
	l.events.Emit(eventlog.New(eventlog.NameTokensMinted, string(caller), now, map[string]string{
		"to":     string(to),
		"amount": eventlog.Amount(amount),
	}))
	if capReached {
		// Supply is monotonic, so equality with the cap happens at most once.
		l.events.Emit(eventlog.New(eventlog.NameMaxSupplyReached, string(caller), now, nil))
	}
	return nil
}

// Transfer moves amount from the caller's account to another account.
func (l *Ledger) Transfer(from, to Address, amount *uint256.Int) error {
	l.mu.Lock()
	if err := l.checkMove(to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	if err := l.debit(from, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	l.credit(to, amount)
	l.mu.Unlock()

	l.events.Emit(eventlog.New(eventlog.NameTransfer, string(from), l.clock.Now(), map[string]string{
		"from":   string(from),
		"to":     string(to),
		"amount": eventlog.Amount(amount),
	}))
	return nil
}

// Approve sets spender's allowance over the owner's balance. A zero amount
// clears the allowance.
func (l *Ledger) Approve(owner, spender Address, amount *uint256.Int) error {
	if owner == ZeroAddress || spender == ZeroAddress {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = new(uint256.Int)
	}

	l.mu.Lock()
	set, ok := l.allowances[owner]
	if !ok {
		set = make(map[Address]*uint256.Int)
		l.allowances[owner] = set
	}
	set[spender] = amount.Clone()
	l.mu.Unlock()

	l.events.Emit(eventlog.New(eventlog.NameApproval, string(owner), l.clock.Now(), map[string]string{
		"owner":   string(owner),
		"spender": string(spender),
		"amount":  eventlog.Amount(amount),
	}))
	return nil
}

// TransferFrom moves amount from one account to another on the strength of
// a prior approval, consuming that much allowance.
func (l *Ledger) TransferFrom(spender, from, to Address, amount *uint256.Int) error {
	l.mu.Lock()
	if err := l.checkMove(to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	allowed, ok := l.allowances[from][spender]
	if !ok || allowed.Lt(amount) {
		l.mu.Unlock()
		return ErrInsufficientAllowance
	}
	if err := l.debit(from, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	l.credit(to, amount)
	l.allowances[from][spender] = new(uint256.Int).Sub(allowed, amount)
	l.mu.Unlock()

	l.events.Emit(eventlog.New(eventlog.NameTransfer, string(spender), l.clock.Now(), map[string]string{
		"from":    string(from),
		"to":      string(to),
		"spender": string(spender),
		"amount":  eventlog.Amount(amount),
	}))
	return nil
}

// Pause freezes all balance movement. Restricted to the pauser role.
func (l *Ledger) Pause(caller Address) error {
	if err := l.roles.Require(string(caller), accesscontrol.RolePauser); err != nil {
		return err
	}
	l.mu.Lock()
	if l.paused {
		l.mu.Unlock()
		return ErrAlreadyPaused
	}
	l.paused = true
	l.mu.Unlock()

	l.events.Emit(eventlog.New(eventlog.NamePaused, string(caller), l.clock.Now(), nil))
	return nil
}

// Unpause lifts the freeze. Restricted to the pauser role.
func (l *Ledger) Unpause(caller Address) error {
	if err := l.roles.Require(string(caller), accesscontrol.RolePauser); err != nil {
		return err
	}
	l.mu.Lock()
	if !l.paused {
		l.mu.Unlock()
		return ErrNotPaused
	}
	l.paused = false
	l.mu.Unlock()

	l.events.Emit(eventlog.New(eventlog.NameUnpaused, string(caller), l.clock.Now(), nil))
	return nil
}

// checkMove is the hook every balance change funnels through, mints
// included, so the pause switch blocks all movement. Caller holds l.mu.
func (l *Ledger) checkMove(to Address, amount *uint256.Int) error {
	if l.paused {
		return ErrPaused
	}
	if to == ZeroAddress {
		return ErrZeroAddress
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// debit removes amount from an account. Caller holds l.mu.
func (l *Ledger) debit(from Address, amount *uint256.Int) error {
	bal, ok := l.balances[from]
	if !ok || bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	return nil
}

// credit adds amount to an account. Caller holds l.mu.
func (l *Ledger) credit(to Address, amount *uint256.Int) {
	bal, ok := l.balances[to]
	if !ok {
		bal = new(uint256.Int)
	}
	l.balances[to] = new(uint256.Int).Add(bal, amount)
}
