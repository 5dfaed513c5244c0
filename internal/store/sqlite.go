package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLite stores the ledger in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			rules TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ledger (
			match_id TEXT NOT NULL REFERENCES matches(id),
			turn_index INTEGER NOT NULL,
			action_id TEXT NOT NULL,
			wire BLOB NOT NULL,
			checksum TEXT NOT NULL,
			committed_at INTEGER NOT NULL,
			PRIMARY KEY (match_id, turn_index),
			UNIQUE (match_id, action_id)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			match_id TEXT PRIMARY KEY REFERENCES matches(id),
			turn_index INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			state BLOB NOT NULL,
			tracker TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func (s *SQLite) CreateMatch(ctx context.Context, m Match) error {
	rules, err := encodeRules(m.Rules)
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO matches (id, seed, rules, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, int64(m.Seed), string(rules), toMillis(m.CreatedAt),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *SQLite) GetMatch(ctx context.Context, id string) (Match, error) {
	var (
		seed      int64
		rules     string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT seed, rules, created_at FROM matches WHERE id = ?`, id,
	).Scan(&seed, &rules, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("get match: %w", err)
	}
	r, err := decodeRules([]byte(rules))
	if err != nil {
		return Match{}, err
	}
	return Match{ID: id, Seed: uint64(seed), Rules: r, CreatedAt: fromMillis(createdAt)}, nil
}

func (s *SQLite) Append(ctx context.Context, e Entry, snap Snapshot) error {
	if err := validateAppend(e, snap); err != nil {
		return err
	}
	tracker, err := encodeTracker(snap.Tracker)
	if err != nil {
		return err
	}
	if e.CommittedAt.IsZero() {
		e.CommittedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = ?`, e.MatchID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("append: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger (match_id, turn_index, action_id, wire, checksum, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.MatchID, e.TurnIndex, e.ActionID, e.Wire, e.Checksum, toMillis(e.CommittedAt),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("append entry: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (match_id, turn_index, checksum, state, tracker)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(match_id) DO UPDATE SET
		   turn_index = excluded.turn_index,
		   checksum = excluded.checksum,
		   state = excluded.state,
		   tracker = excluded.tracker`,
		snap.MatchID, snap.TurnIndex, snap.Checksum, snap.State, string(tracker),
	)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLite) Entries(ctx context.Context, matchID string) ([]Entry, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_index, action_id, wire, checksum, committed_at
		 FROM ledger WHERE match_id = ? ORDER BY turn_index`, matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{MatchID: matchID}
		var committedAt int64
		if err := rows.Scan(&e.TurnIndex, &e.ActionID, &e.Wire, &e.Checksum, &committedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CommittedAt = fromMillis(committedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context, matchID string) (Snapshot, error) {
	snap := Snapshot{MatchID: matchID}
	var tracker string
	err := s.db.QueryRowContext(ctx,
		`SELECT turn_index, checksum, state, tracker FROM snapshots WHERE match_id = ?`, matchID,
	).Scan(&snap.TurnIndex, &snap.Checksum, &snap.State, &tracker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if snap.Tracker, err = decodeTracker([]byte(tracker)); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
