package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-crowdsale/eventlog"
)

// events dumps a journal database written by a previous demo run.
func events(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	since := fs.Uint64("since", 0, "Only show events after this sequence number")
	format := fs.String("format", "text", "Output format: text, csv, or jsonl")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale events [options] <journal.db>

Display the event journal from a previous run.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected a journal path")
	}

	journal, err := eventlog.OpenJournal(fs.Arg(0))
	if err != nil {
		return err
	}
	defer journal.Close()

	recorded, err := journal.Read(*since)
	if err != nil {
		return err
	}

	switch *format {
	case "csv":
		return eventlog.WriteCSV(os.Stdout, recorded)
	case "jsonl":
		return eventlog.WriteJSONL(os.Stdout, recorded)
	case "text":
		if err := eventlog.WriteText(os.Stdout, recorded); err != nil {
			return err
		}
		fmt.Printf("%d event(s)\n", len(recorded))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", *format)
	}
}
