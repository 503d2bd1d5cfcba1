// Package journal keeps an append-only SQLite audit of every decision the
// core emits: admission outcomes, lifecycle instructions, and protocol
// directives. The journal is observability only; lifecycle state of record
// lives with the external persistence collaborator.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// Record kinds.
const (
	KindAdmission = "admission"
	KindLifecycle = "lifecycle"
	KindProtocol  = "protocol"
)

// Record is one journaled decision. ID is a ULID, so records sort by time.
type Record struct {
	ID        string
	Kind      string
	Symbol    string
	Strategy  string
	Action    string // admission: "allow"/"deny"; lifecycle: the action verb; protocol: the level
	Reason    string
	VIX       float64
	Equity    float64
	CreatedAt time.Time
}

// Journal wraps the SQLite handle.
type Journal struct {
	db *sql.DB
}

// Open creates the database (and its parent directory) if needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// NewID returns a time-sortable decision identifier.
func NewID() string { return ulid.Make().String() }

// Append writes one record. A zero ID or timestamp is filled in.
func (j *Journal) Append(r Record) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(id, kind, symbol, strategy, action, reason, vix, equity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Symbol, r.Strategy, r.Action, r.Reason, r.VIX, r.Equity, r.CreatedAt,
	)
	return err
}

// BySymbol returns the most recent records for a symbol, newest first.
func (j *Journal) BySymbol(symbol string, limit int) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT id, kind, symbol, strategy, action, reason, vix, equity, created_at
		FROM decisions WHERE symbol = ? ORDER BY id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Day returns every record for a UTC calendar day (YYYY-MM-DD), oldest first.
func (j *Journal) Day(date string) ([]Record, error) {
	start, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	end := start.AddDate(0, 0, 1)
	rows, err := j.db.Query(`
		SELECT id, kind, symbol, strategy, action, reason, vix, equity, created_at
		FROM decisions WHERE created_at >= ? AND created_at < ? ORDER BY id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Kind, &r.Symbol, &r.Strategy, &r.Action,
			&r.Reason, &r.VIX, &r.Equity, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.db.Close() }
