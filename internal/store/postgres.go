package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/config"
)

const uniqueViolation = "23505"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		seed BIGINT NOT NULL,
		rules JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger (
		match_id TEXT NOT NULL REFERENCES matches(id),
		turn_index INTEGER NOT NULL,
		action_id TEXT NOT NULL,
		wire BYTEA NOT NULL,
		checksum TEXT NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (match_id, turn_index),
		UNIQUE (match_id, action_id)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		match_id TEXT PRIMARY KEY REFERENCES matches(id),
		turn_index INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		state BYTEA NOT NULL,
		tracker JSONB NOT NULL
	)`,
}

// Postgres stores the ledger in PostgreSQL through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects, pings and applies the schema.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(connectCtx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	stats := pool.Stat()
	logger.Info("database connection pool initialized",
		zap.Int32("max_conns", stats.MaxConns()),
		zap.Int32("total_conns", stats.TotalConns()),
	)
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) CreateMatch(ctx context.Context, m Match) error {
	rules, err := encodeRules(m.Rules)
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO matches (id, seed, rules, created_at) VALUES ($1, $2, $3, $4)`,
		m.ID, int64(m.Seed), rules, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (p *Postgres) GetMatch(ctx context.Context, id string) (Match, error) {
	var (
		seed  int64
		rules []byte
		m     = Match{ID: id}
	)
	err := p.pool.QueryRow(ctx,
		`SELECT seed, rules, created_at FROM matches WHERE id = $1`, id,
	).Scan(&seed, &rules, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("get match: %w", err)
	}
	m.Seed = uint64(seed)
	if m.Rules, err = decodeRules(rules); err != nil {
		return Match{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (p *Postgres) Append(ctx context.Context, e Entry, snap Snapshot) error {
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

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM matches WHERE id = $1`, e.MatchID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("append: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger (match_id, turn_index, action_id, wire, checksum, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.MatchID, e.TurnIndex, e.ActionID, e.Wire, e.Checksum, e.CommittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("append entry: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (match_id, turn_index, checksum, state, tracker)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (match_id) DO UPDATE SET
		   turn_index = EXCLUDED.turn_index,
		   checksum = EXCLUDED.checksum,
		   state = EXCLUDED.state,
		   tracker = EXCLUDED.tracker`,
		snap.MatchID, snap.TurnIndex, snap.Checksum, snap.State, tracker,
	)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (p *Postgres) Entries(ctx context.Context, matchID string) ([]Entry, error) {
	if _, err := p.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT turn_index, action_id, wire, checksum, committed_at
		 FROM ledger WHERE match_id = $1 ORDER BY turn_index`, matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{MatchID: matchID}
		if err := rows.Scan(&e.TurnIndex, &e.ActionID, &e.Wire, &e.Checksum, &e.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CommittedAt = e.CommittedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (p *Postgres) LatestSnapshot(ctx context.Context, matchID string) (Snapshot, error) {
	snap := Snapshot{MatchID: matchID}
	var tracker []byte
	err := p.pool.QueryRow(ctx,
		`SELECT turn_index, checksum, state, tracker FROM snapshots WHERE match_id = $1`, matchID,
	).Scan(&snap.TurnIndex, &snap.Checksum, &snap.State, &tracker)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if snap.Tracker, err = decodeTracker(tracker); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
