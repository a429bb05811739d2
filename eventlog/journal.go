package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Journal persists events to a SQLite database so the audit trail survives
// process restarts. It implements Emitter; write failures are retained and
// surfaced via Err rather than interrupting the emitting operation.
type Journal struct {
	mu      sync.Mutex
	db      *sql.DB
	lastErr error
}

// OpenJournal opens (creating if needed) a journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		actor TEXT,
		timestamp DATETIME NOT NULL,
		attrs TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Emit appends the event to the journal. The journal's own sequence column
// is authoritative for replay order.
func (j *Journal) Emit(e Event) {
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		j.setErr(err)
		return
	}
	_, err = j.db.Exec(
		`INSERT INTO events (id, name, actor, timestamp, attrs) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Actor, e.Timestamp.UTC().Format(time.RFC3339Nano), string(attrs),
	)
	j.setErr(err)
}

func (j *Journal) setErr(err error) {
	if err == nil {
		return
	}
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
}

// Err returns the most recent write failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Read returns all journaled events with a sequence number greater than
// sinceSeq, in journal order.
func (j *Journal) Read(sinceSeq uint64) ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT seq, id, name, actor, timestamp, attrs FROM events WHERE seq > ? ORDER BY seq`,
		sinceSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			ts    string
			attrs sql.NullString
			actor sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Name, &actor, &ts, &attrs); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Actor = actor.String
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse journal timestamp: %w", err)
		}
		if attrs.Valid && attrs.String != "" && attrs.String != "null" {
			if err := json.Unmarshal([]byte(attrs.String), &e.Attrs); err != nil {
				return nil, fmt.Errorf("decode journal attrs: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
