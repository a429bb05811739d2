// Package sale implements a fixed-price token sale: buyers spend a payment
// asset and receive newly minted tokens at a deterministic conversion rate,
// inside a bounded time window, subject to a sale-wide cap and a per-wallet
// cap. Validation, settlement, and accounting commit as one unit; every
// failure is a distinct sentinel and leaves no partial state behind.
package sale

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/pflow-xyz/go-crowdsale/accesscontrol"
	"github.com/pflow-xyz/go-crowdsale/eventlog"
	"github.com/pflow-xyz/go-crowdsale/token"
)

// Engine validates purchase requests against sale state and the token
// ledger, executes settlement, and commits the accounting. All mutating
// entry points share a single execution-in-progress flag: any nested or
// concurrent mutating call is rejected with ErrReentrantCall rather than
// queued, which is the barrier against a collaborator calling back into the
// engine mid-settlement.
type Engine struct {
	payment     PaymentAsset
	ledger      TokenLedger
	native      Asset
	account     token.Address
	destination token.Address
	price       *uint256.Int
	offered     *uint256.Int
	scale       *uint256.Int // 10^tokenDecimals, fixed at construction

	roles  *accesscontrol.Registry
	events eventlog.Emitter
	clock  clockwork.Clock

	busy atomic.Bool

	mu          sync.RWMutex
	paused      bool
	start       time.Time
	end         time.Time
	minPurchase *uint256.Int
	walletCap   *uint256.Int
	raised      *uint256.Int
	sold        *uint256.Int
	accounts    map[token.Address]*userAccount
}

// userAccount accumulates a buyer's totals. Created lazily on first
// purchase; both fields only ever increase.
type userAccount struct {
	spent    *uint256.Int
	received *uint256.Int
}

// New creates a sale engine from an immutable configuration.
func New(cfg Config) (*Engine, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := cfg.validate(clock.Now()); err != nil {
		return nil, err
	}
	roles, err := accesscontrol.NewRegistry(string(cfg.Admin))
	if err != nil {
		return nil, err
	}
	events := cfg.Events
	if events == nil {
		events = eventlog.Discard{}
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(cfg.Token.Decimals())))
	return &Engine{
		payment:     cfg.Payment,
		ledger:      cfg.Token,
		native:      cfg.Native,
		account:     cfg.Account,
		destination: cfg.Destination,
		price:       cfg.Price.Clone(),
		offered:     cfg.Offered.Clone(),
		scale:       scale,
		roles:       roles,
		events:      events,
		clock:       clock,
		start:       cfg.Start,
		end:         cfg.End,
		minPurchase: cfg.MinPurchase.Clone(),
		walletCap:   cfg.WalletCap.Clone(),
		raised:      new(uint256.Int),
		sold:        new(uint256.Int),
		accounts:    make(map[token.Address]*userAccount),
	}, nil
}

// Roles exposes the engine's role registry for grant/revoke administration.
func (e *Engine) Roles() *accesscontrol.Registry { return e.roles }

// Account returns the engine's own account, the one buyers grant allowance to.
func (e *Engine) Account() token.Address { return e.account }

// enter claims the execution-in-progress flag shared by every mutating
// entry point. exit must be deferred immediately after a successful enter.
func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) exit() { e.busy.Store(false) }

// Purchase settles a buy order: it validates the request, escrows the
// payment on the engine account through the buyer's allowance, mints the
// converted token amount to the buyer, commits the counters, and forwards
// the payment to the destination. A failed mint refunds the escrow, so the
// two settlement legs either both take effect or neither does. Checks run
// in a fixed order so each violated condition surfaces as its own sentinel
// before any funds move.
func (e *Engine) Purchase(buyer token.Address, paymentAmount *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if buyer == token.ZeroAddress {
		return ErrZeroAddress
	}

	e.mu.RLock()
	if e.paused {
		e.mu.RUnlock()
		return ErrSalePaused
	}
	if !e.activeAt(e.clock.Now()) {
		e.mu.RUnlock()
		return ErrSaleNotActive
	}
	if paymentAmount == nil || paymentAmount.IsZero() {
		e.mu.RUnlock()
		return ErrZeroAmount
	}
	if paymentAmount.Lt(e.minPurchase) {
		e.mu.RUnlock()
		return ErrBelowMinimum
	}

	tokens, err := e.TokenAmount(paymentAmount)
	if err != nil {
		e.mu.RUnlock()
		return err
	}
	if tokens.IsZero() {
		e.mu.RUnlock()
		return fmt.Errorf("%w: payment converts to zero tokens", ErrZeroAmount)
	}

	newSold, overflow := new(uint256.Int).AddOverflow(e.sold, tokens)
	if overflow || newSold.Gt(e.offered) {
		e.mu.RUnlock()
		return ErrSupplyExhausted
	}

	received := new(uint256.Int)
	if acct, ok := e.accounts[buyer]; ok {
		received.Set(acct.received)
	}
	newReceived, overflow := new(uint256.Int).AddOverflow(received, tokens)
	if overflow || newReceived.Gt(e.walletCap) {
		e.mu.RUnlock()
		return ErrWalletLimit
	}

	// Defensive pre-check against the token ledger, so payment funds are
	// not moved only to have the mint fail downstream. The ledger
	// re-validates both conditions as the authoritative guard.
	if e.ledger.Paused() {
		e.mu.RUnlock()
		return ErrLedgerPaused
	}
	if max := e.ledger.MaxSupply(); max != nil {
		newIssued, overflow := new(uint256.Int).AddOverflow(e.ledger.TotalSupply(), tokens)
		if overflow || newIssued.Gt(max) {
			e.mu.RUnlock()
			return ErrLedgerCapExceeded
		}
	}
	e.mu.RUnlock()

	// Settlement escrows the payment on the engine account; a failure
	// there aborts with no side effects.
	if err := e.payment.TransferFrom(e.account, buyer, e.account, paymentAmount); err != nil {
		return fmt.Errorf("payment escrow: %w", err)
	}
	// The pre-checks above cover a conforming ledger, but the escrow
	// transfer hands control to external logic that can pause the ledger
	// or consume its cap before the mint runs. Refunding the escrow on a
	// failed mint keeps settlement all-or-nothing.
	if err := e.ledger.Mint(e.account, buyer, tokens); err != nil {
		if refundErr := e.payment.Transfer(e.account, buyer, paymentAmount); refundErr != nil {
			return fmt.Errorf("mint failed (%v), escrow refund failed: %w", err, refundErr)
		}
		return fmt.Errorf("mint after escrow: %w", err)
	}

	e.mu.Lock()
	e.raised.Add(e.raised, paymentAmount)
	e.sold.Add(e.sold, tokens)
	acct, ok := e.accounts[buyer]
	if !ok {
		acct = &userAccount{spent: new(uint256.Int), received: new(uint256.Int)}
		e.accounts[buyer] = acct
	}
	acct.spent.Add(acct.spent, paymentAmount)
	acct.received.Add(acct.received, tokens)
	e.mu.Unlock()

	e.events.Emit(eventlog.New(eventlog.NamePurchaseCompleted, string(buyer), e.clock.Now(), map[string]string{
		"buyer":       string(buyer),
		"payment":     eventlog.Amount(paymentAmount),
		"tokenAmount": eventlog.Amount(tokens),
	}))

	// The purchase is committed and the tokens are irrevocably minted; if
	// forwarding fails the escrow stays on the engine account for the
	// default admin to recover.
	if err := e.payment.Transfer(e.account, e.destination, paymentAmount); err != nil {
		return fmt.Errorf("forwarding raised payment: %w", err)
	}
	return nil
}

// TokenAmount previews how many token base units a payment amount buys:
// floor(payment * 10^tokenDecimals / price). Settlement uses this exact
// function, so previews and settlement can never disagree. Truncation
// rounds down, in the seller's favor.
func (e *Engine) TokenAmount(paymentAmount *uint256.Int) (*uint256.Int, error) {
	if paymentAmount == nil {
		return new(uint256.Int), nil
	}
	n, overflow := new(uint256.Int).MulOverflow(paymentAmount, e.scale)
	if overflow {
		return nil, ErrAmountTooLarge
	}
	return n.Div(n, e.price), nil
}

// PaymentAmount is the reverse preview: floor(tokens * price / 10^tokenDecimals).
func (e *Engine) PaymentAmount(tokenAmount *uint256.Int) (*uint256.Int, error) {
	if tokenAmount == nil {
		return new(uint256.Int), nil
	}
	n, overflow := new(uint256.Int).MulOverflow(tokenAmount, e.price)
	if overflow {
		return nil, ErrAmountTooLarge
	}
	return n.Div(n, e.scale), nil
}

// IsActive reports whether the clock currently lies inside the sale window,
// bounds inclusive.
func (e *Engine) IsActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeAt(e.clock.Now())
}

// activeAt implements the window predicate. Caller holds e.mu.
func (e *Engine) activeAt(now time.Time) bool {
	return !now.Before(e.start) && !now.After(e.end)
}

// Summary is the read-only sale overview.
type Summary struct {
	Active      bool
	Paused      bool
	Raised      *uint256.Int
	Sold        *uint256.Int
	Remaining   *uint256.Int
	Price       *uint256.Int
	Offered     *uint256.Int
	WalletCap   *uint256.Int
	MinPurchase *uint256.Int
	Start       time.Time
	End         time.Time
}

// Summarize returns a snapshot of the sale. All amounts are copies.
func (e *Engine) Summarize() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Summary{
		Active:      e.activeAt(e.clock.Now()),
		Paused:      e.paused,
		Raised:      e.raised.Clone(),
		Sold:        e.sold.Clone(),
		Remaining:   new(uint256.Int).Sub(e.offered, e.sold),
		Price:       e.price.Clone(),
		Offered:     e.offered.Clone(),
		WalletCap:   e.walletCap.Clone(),
		MinPurchase: e.minPurchase.Clone(),
		Start:       e.start,
		End:         e.end,
	}
}

// UserSummary is the read-only per-buyer overview.
type UserSummary struct {
	Spent     *uint256.Int
	Received  *uint256.Int
	Remaining *uint256.Int // personal allowance left under the wallet cap
}

// UserSummarize returns the buyer's accumulated totals. Buyers that never
// purchased report zeroes with the full cap remaining.
func (e *Engine) UserSummarize(buyer token.Address) UserSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := UserSummary{
		Spent:    new(uint256.Int),
		Received: new(uint256.Int),
	}
	if acct, ok := e.accounts[buyer]; ok {
		s.Spent.Set(acct.spent)
		s.Received.Set(acct.received)
	}
	// The cap can be lowered below an existing balance; remaining floors
	// at zero rather than going negative.
	if s.Received.Lt(e.walletCap) {
		s.Remaining = new(uint256.Int).Sub(e.walletCap, s.Received)
	} else {
		s.Remaining = new(uint256.Int)
	}
	return s
}
