package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crimson-sun/slowlog/internal/model"
)

//go:embed schema.sql
var schema string

// Entry is an archived finding.
type Entry struct {
	ID          int64
	ReportedAt  time.Time
	Environment string
	Finding     model.Finding
}

// Archive is a Notifier that inserts each finding into a SQLite database.
type Archive struct {
	conn        *sql.DB
	environment string
	now         func() time.Time
}

// New opens (or creates) the database at dbPath. Use ":memory:" in tests.
func New(dbPath, environment string) (*Archive, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("archive: set pragma: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: init schema: %w", err)
	}

	return &Archive{conn: conn, environment: environment, now: time.Now}, nil
}

// Report inserts the finding.
func (a *Archive) Report(ctx context.Context, f model.Finding) error {
	h := f.Header
	_, err := a.conn.ExecContext(ctx, `
		INSERT INTO findings (reported_at, environment, name, level, log_date, log_time, user_host,
			query_seconds, lock_seconds, rows_sent, rows_examined, query, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.now().UTC(), a.environment, f.Name, int(f.Level), h.Date, h.Time, h.UserHost,
		h.QuerySeconds, h.LockSeconds, h.RowsSent, h.RowsExamined, f.Event.Query, f.Tag,
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit findings, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.conn.QueryContext(ctx, `
		SELECT id, reported_at, environment, name, level, log_date, log_time, user_host,
			query_seconds, lock_seconds, rows_sent, rows_examined, query, tag
		FROM findings
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var level int
		h := &e.Finding.Header
		if err := rows.Scan(&e.ID, &e.ReportedAt, &e.Environment, &e.Finding.Name, &level,
			&h.Date, &h.Time, &h.UserHost, &h.QuerySeconds, &h.LockSeconds,
			&h.RowsSent, &h.RowsExamined, &e.Finding.Event.Query, &e.Finding.Tag); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		e.Finding.Level = model.ClampLevel(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByLevel returns how many archived findings exist at each level.
func (a *Archive) CountByLevel(ctx context.Context) (map[model.Level]int, error) {
	rows, err := a.conn.QueryContext(ctx, `SELECT level, COUNT(*) FROM findings GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("archive: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Level]int)
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		counts[model.ClampLevel(level)] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.conn.Close()
}
