// Package sqlstore persists threads in SQLite or PostgreSQL behind the
// ThreadStore interface. Events are rows keyed by (thread_id, seq); Save only
// ever inserts rows past the stored maximum, keeping the log append-only at
// the schema level.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Store is a ThreadStore over database/sql.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open routes a DSN to a database driver: "sqlite:<path>" (including
// "sqlite::memory:") opens SQLite, anything postgres-shaped opens pgx.
func Open(dsn string) (*Store, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err := sql.Open("sqlite3", strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return &Store{db: db}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return &Store{db: db, postgres: true}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unrecognized DSN %q", dsn)
	}
}

// Migrate creates the threads and events tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			thread_id TEXT NOT NULL REFERENCES threads(id),
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, seq)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if !s.postgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Create stores a new thread seeded with the given events.
func (s *Store) Create(ctx context.Context, seed ...thread.Event) (*thread.Thread, error) {
	th := thread.New(seed...)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO threads (id, created_at) VALUES (?, ?)`),
		th.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("sqlstore: create thread: %w", err)
	}
	if err := s.insertEvents(ctx, tx, th.ID, 0, th.Events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return th, nil
}

// Get loads a thread and its events by id.
func (s *Store) Get(ctx context.Context, id string) (*thread.Thread, bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM threads WHERE id = ?`), id).Scan(&exists)
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT kind, data, created_at FROM events WHERE thread_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	th := &thread.Thread{ID: id}
	for rows.Next() {
		var kind, data string
		var at time.Time
		if err := rows.Scan(&kind, &data, &at); err != nil {
			return nil, false, err
		}
		var payload any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, false, fmt.Errorf("sqlstore: corrupt event data for %s: %w", id, err)
		}
		th.Events = append(th.Events, thread.Event{
			Kind: thread.EventKind(kind), Data: payload, Timestamp: at,
		})
	}
	return th, true, rows.Err()
}

// Save inserts the events appended past the stored maximum sequence. A
// thread shorter than its stored log is a conflict.
func (s *Store) Save(ctx context.Context, th *thread.Thread) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM threads WHERE id = ?`), th.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return errmodel.New(errmodel.CategoryValidation, "not_found",
			"unknown thread "+th.ID, nil)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(seq), -1) + 1 FROM events WHERE thread_id = ?`), th.ID).Scan(&stored); err != nil {
		return err
	}
	if len(th.Events) < stored {
		return errmodel.New(errmodel.CategoryValidation, "conflict",
			"thread "+th.ID+" would lose stored events", map[string]any{
				"stored": stored, "incoming": len(th.Events),
			})
	}
	if err := s.insertEvents(ctx, tx, th.ID, stored, th.Events[stored:]); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertEvents(ctx context.Context, tx *sql.Tx, threadID string, from int, events []thread.Event) error {
	for i, ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("sqlstore: marshal event data: %w", err)
		}
		at := ev.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO events (thread_id, seq, kind, data, created_at) VALUES (?, ?, ?, ?, ?)`),
			threadID, from+i, string(ev.Kind), string(data), at); err != nil {
			return fmt.Errorf("sqlstore: insert event %d: %w", from+i, err)
		}
	}
	return nil
}
