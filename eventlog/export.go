package eventlog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// WriteCSV renders events as CSV with a fixed header. Attrs are flattened
// into one JSON column so rows stay rectangular regardless of event shape.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "id", "name", "actor", "timestamp", "attrs"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range events {
		attrs, err := json.Marshal(e.Attrs)
		if err != nil {
			return fmt.Errorf("encoding attrs for seq %d: %w", e.Seq, err)
		}
		record := []string{
			strconv.FormatUint(e.Seq, 10),
			e.ID,
			e.Name,
			e.Actor,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(attrs),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing seq %d: %w", e.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL renders events as JSON Lines, one object per event.
func WriteJSONL(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding seq %d: %w", e.Seq, err)
		}
	}
	return nil
}

// WriteText renders events in a human-readable aligned form, attrs sorted
// by key for stable output.
func WriteText(w io.Writer, events []Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintf(w, "%6d  %s  %-24s %s", e.Seq, e.Timestamp.Format(time.RFC3339), e.Name, e.Actor); err != nil {
			return err
		}
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "  %s=%s", k, e.Attrs[k]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
