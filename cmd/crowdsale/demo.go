package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/pflow-xyz/go-crowdsale/accesscontrol"
	"github.com/pflow-xyz/go-crowdsale/eventlog"
	"github.com/pflow-xyz/go-crowdsale/sale"
	"github.com/pflow-xyz/go-crowdsale/token"
)

// demo runs a scripted sale on a deterministic clock: three buyers, a few
// rejected attempts, a pause window, and a foreign-asset sweep, then prints
// the sale summary and the audit trail statistics.
func demo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	journalPath := fs.String("journal", "", "SQLite journal file for the event stream (optional)")
	verbose := fs.Bool("verbose", false, "Log every notification as it is emitted")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale demo [options]

Run a scripted fixed-price sale end to end.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	log := eventlog.NewLog()
	sinks := eventlog.Tee{log}
	if *verbose {
		sinks = append(sinks, eventlog.NewLoggerSink(logger))
	}
	if *journalPath != "" {
		journal, err := eventlog.OpenJournal(*journalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
		defer func() {
			if err := journal.Err(); err != nil {
				logger.Warn().Err(err).Msg("journal write failure")
			}
		}()
	}

	const (
		admin    = token.Address("admin")
		engineID = token.Address("sale-engine")
		treasury = token.Address("treasury")
	)

	usdt := func(whole uint64) *uint256.Int {
		return new(uint256.Int).Mul(uint256.NewInt(whole), uint256.NewInt(1_000_000))
	}
	crwd := func(whole uint64) *uint256.Int {
		scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
		return new(uint256.Int).Mul(uint256.NewInt(whole), scale)
	}

	payment, err := token.NewLedger(token.Config{
		Name: "Tether USD", Symbol: "USDT", Decimals: 6,
		Admin: admin, Events: sinks, Clock: clock,
	})
	if err != nil {
		return err
	}
	issued, err := token.NewLedger(token.Config{
		Name: "Crowd Token", Symbol: "CRWD", Decimals: 18,
		MaxSupply: crwd(1_000_000),
		Admin:     admin, Events: sinks, Clock: clock,
	})
	if err != nil {
		return err
	}

	start := clock.Now().Add(time.Hour)
	engine, err := sale.New(sale.Config{
		Payment:     payment,
		Token:       issued,
		Account:     engineID,
		Destination: treasury,
		Price:       uint256.NewInt(200_000), // 0.20 USDT per CRWD
		Offered:     crwd(500_000),
		Start:       start,
		End:         start.Add(72 * time.Hour),
		MinPurchase: usdt(10),
		WalletCap:   crwd(100_000),
		Admin:       admin,
		Events:      sinks,
		Clock:       clock,
	})
	if err != nil {
		return err
	}

	// Wire the roles: the engine account mints on settlement, the admin
	// doubles as pauser and payment minter for the script.
	grants := []struct {
		reg  *accesscontrol.Registry
		who  token.Address
		role accesscontrol.Role
	}{
		{issued.Roles(), engineID, accesscontrol.RoleMinter},
		{engine.Roles(), admin, accesscontrol.RolePauser},
		{payment.Roles(), admin, accesscontrol.RoleMinter},
	}
	for _, g := range grants {
		if err := g.reg.Grant(string(admin), string(g.who), g.role); err != nil {
			return err
		}
	}

	buyers := []struct {
		addr   token.Address
		budget *uint256.Int
		spend  *uint256.Int
	}{
		{"buyer-alpha", usdt(30_000), usdt(20_000)},
		{"buyer-beta", usdt(15_000), usdt(15_000)},
		{"buyer-gamma", usdt(9_000), usdt(9_000)},
	}
	for _, b := range buyers {
		if err := payment.Mint(admin, b.addr, b.budget); err != nil {
			return err
		}
		if err := payment.Approve(b.addr, engineID, b.budget); err != nil {
			return err
		}
	}

	clock.Advance(2 * time.Hour) // into the window

	for _, b := range buyers {
		preview, err := engine.TokenAmount(b.spend)
		if err != nil {
			return err
		}
		logger.Info().
			Str("buyer", string(b.addr)).
			Str("spend", b.spend.Dec()).
			Str("preview", preview.Dec()).
			Msg("purchasing")
		if err := engine.Purchase(b.addr, b.spend); err != nil {
			return err
		}
	}

	// A few rejections, all leaving state untouched.
	if err := engine.Purchase("buyer-alpha", usdt(5)); err != nil {
		logger.Info().Err(err).Msg("below-minimum attempt rejected")
	}
	if err := engine.Pause(admin); err != nil {
		return err
	}
	if err := engine.Purchase("buyer-alpha", usdt(100)); err != nil {
		logger.Info().Err(err).Msg("attempt while paused rejected")
	}
	if err := engine.Unpause(admin); err != nil {
		return err
	}
	// buyer-alpha already holds 100000 CRWD: exactly the wallet cap.
	if err := engine.Purchase("buyer-alpha", usdt(10)); err != nil {
		logger.Info().Err(err).Msg("wallet-cap attempt rejected")
	}

	// A stray asset lands on the engine account and anyone sweeps it home.
	stray, err := token.NewLedger(token.Config{
		Name: "Stray Coin", Symbol: "STRY", Decimals: 18,
		Admin: admin, Events: sinks, Clock: clock,
	})
	if err != nil {
		return err
	}
	if err := stray.Roles().Grant(string(admin), string(admin), accesscontrol.RoleMinter); err != nil {
		return err
	}
	if err := stray.Mint(admin, engineID, crwd(42)); err != nil {
		return err
	}
	if err := engine.SweepForeignAsset("buyer-gamma", stray); err != nil {
		return err
	}

	printSummary(engine, issued, payment, treasury, log)
	return nil
}

func printSummary(engine *sale.Engine, issued, payment *token.Ledger, treasury token.Address, log *eventlog.Log) {
	s := engine.Summarize()
	fmt.Println("=== Sale Summary ===")
	fmt.Printf("Active: %v  Paused: %v\n", s.Active, s.Paused)
	fmt.Printf("Raised: %s (payment units)\n", s.Raised.Dec())
	fmt.Printf("Sold: %s of %s offered\n", s.Sold.Dec(), s.Offered.Dec())
	fmt.Printf("Remaining: %s\n", s.Remaining.Dec())
	fmt.Printf("Treasury balance: %s\n", payment.BalanceOf(treasury).Dec())
	fmt.Printf("Issued supply: %s (cap %s)\n", issued.TotalSupply().Dec(), issued.MaxSupply().Dec())

	fmt.Println("\n=== Event Summary ===")
	es := log.Summarize()
	fmt.Printf("Events: %d\n", es.NumEvents)
	for _, name := range log.Names() {
		fmt.Printf("  %-24s %d\n", name, es.Counts[name])
	}
}
