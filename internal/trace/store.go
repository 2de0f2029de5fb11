package trace

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/scopeprobe/probe"
)

//go:embed schema.sql
var schemaSQL string

// Store persists tick observations in SQLite. It implements Sink.
//
// The database is configured with WAL mode for concurrent reads, a
// 5-second busy timeout, and a single writer connection; SQLite only
// supports one writer at a time.
type Store struct {
	db *sql.DB
}

// Open creates or opens a trace database at the given path. Idempotent:
// the schema is applied with IF NOT EXISTS guards.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect trace database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// WriteObservation implements Sink. Timestamps are stored as RFC 3339 with
// nanoseconds so read-back round-trips exactly.
func (s *Store) WriteObservation(ctx context.Context, sessionID string, obs probe.TickObservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations
		(session_id, op, op_id, model_path, selector, tick, at, candidates, matched, value, failure, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID,
		string(obs.Op),
		obs.OpID,
		obs.ModelPath,
		obs.Selector,
		obs.Tick,
		obs.At.Format(time.RFC3339Nano),
		obs.Candidates,
		obs.Matched,
		obs.Value,
		obs.Failure,
		obs.Outcome,
	)
	if err != nil {
		return fmt.Errorf("write observation: %w", err)
	}
	return nil
}

// ReadSession returns every observation of one session in emission order.
// Returns an empty slice, not nil, when the session has no rows.
func (s *Store) ReadSession(ctx context.Context, sessionID string) ([]probe.TickObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, op_id, model_path, selector, tick, at, candidates, matched, value, failure, outcome
		FROM observations
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session %q: %w", sessionID, err)
	}
	defer rows.Close()

	obs := []probe.TickObservation{}
	for rows.Next() {
		var (
			o  probe.TickObservation
			op string
			at string
		)
		if err := rows.Scan(&op, &o.OpID, &o.ModelPath, &o.Selector, &o.Tick,
			&at, &o.Candidates, &o.Matched, &o.Value, &o.Failure, &o.Outcome); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Op = probe.Op(op)
		o.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse observation timestamp %q: %w", at, err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return obs, nil
}

// Sessions lists the recorded session ids, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id
		FROM observations
		GROUP BY session_id
		ORDER BY MAX(id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
