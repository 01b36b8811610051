package memory

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) a SQLite database at the given path.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	for _, stmt := range migrations {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLiteJournal) SaveRun(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, channel, chat_id, agent, query, answer, failed, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Channel, run.ChatID, run.Agent, run.Query, run.Answer,
		run.Failed, run.Elapsed.Milliseconds(), run.CreatedAt.UTC(),
	)
	return err
}

func (j *SQLiteJournal) AppendEvent(ctx context.Context, ev RunEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, topic, payload, created_at) VALUES (?, ?, ?, ?)`,
		ev.RunID, ev.Topic, ev.Payload, ev.CreatedAt.UTC(),
	)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (j *SQLiteJournal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, channel, chat_id, agent, query, answer, failed, elapsed_ms, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var elapsedMS int64
		if err := rows.Scan(&r.ID, &r.Channel, &r.ChatID, &r.Agent, &r.Query, &r.Answer,
			&r.Failed, &elapsedMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Events returns the events of one run in publication order.
func (j *SQLiteJournal) Events(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, topic, payload, created_at FROM run_events WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.RunID, &ev.Topic, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
