package sale

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pflow-xyz/go-crowdsale/accesscontrol"
	"github.com/pflow-xyz/go-crowdsale/eventlog"
	"github.com/pflow-xyz/go-crowdsale/token"
)

func TestSetWindow(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.SetWindow(buyer1, f.start, f.end); !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Errorf("SetWindow by non-admin = %v, want ErrUnauthorized", err)
	}
	if err := f.engine.SetWindow(saleAdmin, f.end, f.start); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("inverted window = %v, want ErrInvalidTimeRange", err)
	}
	if err := f.engine.SetWindow(saleAdmin, f.start, f.start); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("empty window = %v, want ErrInvalidTimeRange", err)
	}

	// Opening the window early takes effect immediately.
	now := f.clock.Now()
	if err := f.engine.SetWindow(saleAdmin, now.Add(-time.Minute), f.end); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	if !f.engine.IsActive() {
		t.Error("sale should be active after widening the window")
	}

	events := f.log.ByName(eventlog.NameSaleWindowUpdated)
	if len(events) != 1 {
		t.Fatalf("SaleWindowUpdated events = %d, want 1", len(events))
	}
}

func TestSetWindowEntirelyInPast(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyer1, u(100_000_000))
	f.open()

	if !f.engine.IsActive() {
		t.Fatal("sale should be active")
	}

	// A window wholly behind the clock is accepted and closes the sale.
	past := f.clock.Now().Add(-2 * time.Hour)
	if err := f.engine.SetWindow(saleAdmin, past, past.Add(time.Hour)); err != nil {
		t.Fatalf("past window rejected: %v", err)
	}
	if f.engine.IsActive() {
		t.Error("sale should be inactive under a past window")
	}
	if err := f.engine.Purchase(buyer1, u(100_000_000)); !errors.Is(err, ErrSaleNotActive) {
		t.Errorf("purchase under past window = %v, want ErrSaleNotActive", err)
	}
}

func TestSetLimits(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyer1, u(100_000_000))
	f.open()

	if err := f.engine.SetLimits(buyer1, u(1), tokens18(1)); !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Errorf("SetLimits by non-admin = %v, want ErrUnauthorized", err)
	}
	if err := f.engine.SetLimits(saleAdmin, u(0), tokens18(1)); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero min = %v, want ErrZeroAmount", err)
	}
	if err := f.engine.SetLimits(saleAdmin, u(1), nil); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("nil cap = %v, want ErrZeroAmount", err)
	}

	// Raise the minimum above the buyer's intended spend.
	if err := f.engine.SetLimits(saleAdmin, u(200_000_000), tokens18(600)); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	if err := f.engine.Purchase(buyer1, u(100_000_000)); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("below raised minimum = %v, want ErrBelowMinimum", err)
	}

	if got := len(f.log.ByName(eventlog.NamePurchaseLimitsUpdated)); got != 1 {
		t.Errorf("PurchaseLimitsUpdated events = %d, want 1", got)
	}
}

func TestLoweredWalletCapFloorsRemaining(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyer1, u(100_000_000))
	f.open()

	if err := f.engine.Purchase(buyer1, u(100_000_000)); err != nil { // 500 tokens
		t.Fatalf("purchase: %v", err)
	}
	if err := f.engine.SetLimits(saleAdmin, u(1_000_000), tokens18(100)); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	us := f.engine.UserSummarize(buyer1)
	if !us.Remaining.IsZero() {
		t.Errorf("remaining = %s, want 0 when cap is below balance", us.Remaining.Dec())
	}
	// Nothing is clawed back, but further purchases are blocked.
	if !us.Received.Eq(tokens18(500)) {
		t.Errorf("received = %s, want 500 tokens", us.Received.Dec())
	}
	f.fund(t, buyer1, u(1_000_000))
	if err := f.engine.Purchase(buyer1, u(1_000_000)); !errors.Is(err, ErrWalletLimit) {
		t.Errorf("purchase above lowered cap = %v, want ErrWalletLimit", err)
	}
}

func TestSweepForeignAsset(t *testing.T) {
	f := newFixture(t)

	foreign, err := token.NewLedger(token.Config{
		Name: "Wrapped Misc", Symbol: "MISC", Decimals: 18, Admin: admin, Clock: f.clock,
	})
	if err != nil {
		t.Fatalf("foreign ledger: %v", err)
	}
	foreign.Roles().Grant(string(admin), string(admin), accesscontrol.RoleMinter)
	foreign.Mint(admin, engineAcct, u(777))

	// Anyone may sweep; funds can only reach the fixed destination.
	if err := f.engine.SweepForeignAsset(buyer2, foreign); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := foreign.BalanceOf(treasury); !got.Eq(u(777)) {
		t.Errorf("treasury foreign balance = %s, want 777", got.Dec())
	}
	if got := foreign.BalanceOf(engineAcct); !got.IsZero() {
		t.Errorf("engine foreign balance = %s, want 0", got.Dec())
	}

	// The audit trail names the swept asset.
	events := f.log.ByName(eventlog.NameForeignAssetSwept)
	if len(events) != 1 {
		t.Fatalf("ForeignAssetSwept events = %d, want 1", len(events))
	}
	if events[0].Attrs["asset"] != "MISC" || events[0].Attrs["amount"] != "777" {
		t.Errorf("event attrs = %v", events[0].Attrs)
	}

	if err := f.engine.SweepForeignAsset(buyer2, foreign); !errors.Is(err, ErrNothingToSweep) {
		t.Errorf("empty sweep = %v, want ErrNothingToSweep", err)
	}
	if err := f.engine.SweepForeignAsset(buyer2, nil); !errors.Is(err, ErrNilLedger) {
		t.Errorf("nil asset = %v, want ErrNilLedger", err)
	}
	// The configured payment ledger is not a foreign asset.
	if err := f.engine.SweepForeignAsset(buyer2, f.payment); !errors.Is(err, ErrConfiguredAsset) {
		t.Errorf("sweep of payment ledger = %v, want ErrConfiguredAsset", err)
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)

	stray, err := token.NewLedger(token.Config{
		Name: "Stray", Symbol: "STRY", Decimals: 18, Admin: admin, Clock: f.clock,
	})
	if err != nil {
		t.Fatalf("stray ledger: %v", err)
	}
	stray.Roles().Grant(string(admin), string(admin), accesscontrol.RoleMinter)
	stray.Mint(admin, engineAcct, u(1000))

	if err := f.engine.EmergencyWithdraw(saleAdmin, stray, u(100)); !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Errorf("withdraw by sale-admin = %v, want ErrUnauthorized (default-admin only)", err)
	}
	if err := f.engine.EmergencyWithdraw(admin, stray, u(0)); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero withdraw = %v, want ErrZeroAmount", err)
	}

	if err := f.engine.EmergencyWithdraw(admin, stray, u(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Unlike a sweep, the funds go to the caller.
	if got := stray.BalanceOf(admin); !got.Eq(u(100)) {
		t.Errorf("admin balance = %s, want 100", got.Dec())
	}
	events := f.log.ByName(eventlog.NameEmergencyWithdraw)
	if len(events) != 1 {
		t.Fatalf("EmergencyWithdraw events = %d, want 1", len(events))
	}
	if events[0].Attrs["asset"] != "STRY" || events[0].Attrs["amount"] != "100" {
		t.Errorf("event attrs = %v", events[0].Attrs)
	}
}

func TestReceiveNative(t *testing.T) {
	f := newFixture(t)

	native, err := token.NewLedger(token.Config{
		Name: "Native", Symbol: "ETH", Decimals: 18, Admin: admin, Clock: f.clock,
	})
	if err != nil {
		t.Fatalf("native ledger: %v", err)
	}
	native.Roles().Grant(string(admin), string(admin), accesscontrol.RoleMinter)
	native.Roles().Grant(string(admin), string(admin), accesscontrol.RolePauser)
	native.Mint(admin, buyer1, u(5000))

	engine, err := New(Config{
		Payment:     f.payment,
		Token:       f.issued,
		Native:      native,
		Account:     engineAcct,
		Destination: treasury,
		Price:       u(200000),
		Offered:     tokens18(800),
		Start:       f.clock.Now().Add(time.Hour),
		End:         f.clock.Now().Add(25 * time.Hour),
		MinPurchase: u(1_000_000),
		WalletCap:   tokens18(600),
		Admin:       admin,
		Events:      f.log,
		Clock:       f.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := engine.ReceiveNative(buyer1, u(0)); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero receipt = %v, want ErrZeroAmount", err)
	}
	if err := engine.ReceiveNative(buyer1, u(2000)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	// Forwarded in full; nothing rests on the engine account.
	if got := native.BalanceOf(treasury); !got.Eq(u(2000)) {
		t.Errorf("treasury native = %s, want 2000", got.Dec())
	}
	if got := native.BalanceOf(engineAcct); !got.IsZero() {
		t.Errorf("engine native = %s, want 0", got.Dec())
	}

	// The configured native ledger cannot be swept as a foreign asset.
	if err := engine.SweepForeignAsset(buyer1, native); !errors.Is(err, ErrConfiguredAsset) {
		t.Errorf("sweep of native ledger = %v, want ErrConfiguredAsset", err)
	}

	// If forwarding fails, the receipt fails and no funds are retained.
	native.Pause(admin)
	if err := engine.ReceiveNative(buyer1, u(1000)); !errors.Is(err, token.ErrPaused) {
		t.Errorf("receipt while native paused = %v, want ErrPaused", err)
	}
	if got := native.BalanceOf(buyer1); !got.Eq(u(3000)) {
		t.Errorf("buyer native = %s, want 3000", got.Dec())
	}

	// Engines without a native ledger refuse bare receipts.
	if err := f.engine.ReceiveNative(buyer1, u(1)); !errors.Is(err, ErrNilLedger) {
		t.Errorf("no native ledger = %v, want ErrNilLedger", err)
	}
}

func TestEnginePauseRoles(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.Pause(buyer1); !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Errorf("pause by non-pauser = %v, want ErrUnauthorized", err)
	}
	if err := f.engine.Unpause(salePauser); !errors.Is(err, ErrNotPaused) {
		t.Errorf("unpause while running = %v, want ErrNotPaused", err)
	}
	if err := f.engine.Pause(salePauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.engine.Pause(salePauser); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("double pause = %v, want ErrAlreadyPaused", err)
	}
}

func TestWindowPredicateUsesInjectedClock(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(t0)

	payment, _ := token.NewLedger(token.Config{
		Name: "USD", Symbol: "USD", Decimals: 6, Admin: admin, Clock: clock,
	})
	issued, _ := token.NewLedger(token.Config{
		Name: "T", Symbol: "T", Decimals: 18, MaxSupply: tokens18(10), Admin: admin, Clock: clock,
	})
	engine, err := New(Config{
		Payment:     payment,
		Token:       issued,
		Account:     engineAcct,
		Destination: treasury,
		Price:       u(200000),
		Offered:     tokens18(10),
		Start:       t0.Add(time.Hour),
		End:         t0.Add(2 * time.Hour),
		MinPurchase: u(1),
		WalletCap:   tokens18(10),
		Admin:       admin,
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	steps := []struct {
		advance time.Duration
		active  bool
	}{
		{0, false},               // before start
		{time.Hour, true},        // exactly at start, inclusive
		{30 * time.Minute, true}, // inside
		{30 * time.Minute, true}, // exactly at end, inclusive
		{time.Nanosecond, false}, // just past end
		{24 * time.Hour, false},  // long after
	}
	for i, step := range steps {
		clock.Advance(step.advance)
		if got := engine.IsActive(); got != step.active {
			t.Errorf("step %d: IsActive = %v, want %v", i, got, step.active)
		}
	}
}
