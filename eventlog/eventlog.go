// Package eventlog provides the typed notification stream emitted by the
// sale engine and the token ledger. The stream is the sole audit trail:
// every completed state change appends exactly one event.
package eventlog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Notification names.
const (
	NamePurchaseCompleted     = "PurchaseCompleted"
	NameSaleWindowUpdated     = "SaleWindowUpdated"
	NamePurchaseLimitsUpdated = "PurchaseLimitsUpdated"
	NameEmergencyWithdraw     = "EmergencyWithdraw"
	NameTokensMinted          = "TokensMinted"
	NameMaxSupplyReached      = "MaxSupplyReached"
	NamePaused                = "Paused"
	NameUnpaused              = "Unpaused"
	NameTransfer              = "Transfer"
	NameApproval              = "Approval"
	NameNativeForwarded       = "NativeForwarded"
	NameForeignAssetSwept     = "ForeignAssetSwept"
)

// Event is a single notification. Integer payloads are carried as decimal
// strings so they survive JSON round trips without precision loss.
type Event struct {
	ID        string            `json:"id"`
	Seq       uint64            `json:"seq"` // assigned by the receiving log
	Name      string            `json:"name"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// New builds an event with a fresh ID. Seq is left for the log to assign.
func New(name, actor string, ts time.Time, attrs map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Actor:     actor,
		Timestamp: ts,
		Attrs:     attrs,
	}
}

// Amount renders a 256-bit integer attribute as a decimal string.
func Amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Emitter receives events. Implementations must not mutate the event.
type Emitter interface {
	Emit(Event)
}

// Tee fans an event out to every child emitter in order.
type Tee []Emitter

func (t Tee) Emit(e Event) {
	for _, child := range t {
		child.Emit(e)
	}
}

// Discard drops every event. Useful as a default when no audit trail is wanted.
type Discard struct{}

func (Discard) Emit(Event) {}

// Log is an in-memory append-only event log.
type Log struct {
	mu     sync.RWMutex
	events []Event
	seq    uint64
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Emit appends the event, assigning the next sequence number.
func (l *Log) Emit(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of all recorded events in emission order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Last returns the most recent event, if any.
func (l *Log) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// ByName returns all events with the given name, in emission order.
func (l *Log) ByName(name string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Since returns all events with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Summary provides basic statistics about the log.
type Summary struct {
	NumEvents int
	Counts    map[string]int
	First     time.Time
	Last      time.Time
}

// Summarize computes per-name counts and the covered time range.
func (l *Log) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{
		NumEvents: len(l.events),
		Counts:    make(map[string]int),
	}
	for i, e := range l.events {
		s.Counts[e.Name]++
		if i == 0 || e.Timestamp.Before(s.First) {
			s.First = e.Timestamp
		}
		if e.Timestamp.After(s.Last) {
			s.Last = e.Timestamp
		}
	}
	return s
}

// Names returns the distinct event names seen, sorted.
func (l *Log) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range l.events {
		seen[e.Name] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
