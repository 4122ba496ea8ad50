// Package audit keeps the append-only trail of exit decisions and
// entry/exit failures. It is bookkeeping for operators and offline
// threshold tuning, never a blocking dependency of the trading path.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hedger/internal/types"

	_ "modernc.org/sqlite"
)

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// DecisionRecord is one exit-engine evaluation worth keeping.
type DecisionRecord struct {
	ID         int64              `json:"id"`
	PositionID string             `json:"position_id"`
	Kind       types.DecisionKind `json:"decision_kind"`
	ShouldExit bool               `json:"should_exit"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
	NetPnLPct  float64            `json:"net_pnl_pct"`
	LockLevel  float64            `json:"lock_level_pct"`
	// Profitable is filled in later by outcome tracking; nil = not yet known.
	Profitable *bool     `json:"profitable,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FailureRecord captures a partial failure and what was done about it.
type FailureRecord struct {
	ID         int64     `json:"id"`
	PositionID string    `json:"position_id"`
	Stage      string    `json:"stage"` // e.g. ENTRY_HEDGE, ENTRY_MAIN, EXIT_MAIN, EXIT_HEDGE
	Reason     string    `json:"reason"`
	Action     string    `json:"action"` // e.g. HEDGE_REVERSED, HEDGE_REVERSAL_FAILED
	CreatedAt  time.Time `json:"created_at"`
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit store: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exit_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			should_exit INTEGER NOT NULL,
			confidence REAL NOT NULL,
			reason TEXT,
			net_pnl_pct REAL,
			lock_level_pct REAL,
			profitable INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exit_decisions_position ON exit_decisions(position_id)`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			reason TEXT,
			action TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_position ON failures(position_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("audit store migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RecordDecision(ctx context.Context, positionID string, d types.ExitDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exit_decisions (position_id, kind, should_exit, confidence, reason, net_pnl_pct, lock_level_pct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		positionID, string(d.Kind), boolInt(d.ShouldExit), d.Confidence, d.Reason,
		d.NetPnLPct, d.LockLevelPct, time.Now().Unix())
	return err
}

func (s *Store) RecordFailure(ctx context.Context, rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (position_id, stage, reason, action, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.PositionID, rec.Stage, rec.Reason, rec.Action, time.Now().Unix())
	return err
}

// MarkOutcome backfills whether a position's exit decisions turned out
// profitable, once the position has closed.
func (s *Store) MarkOutcome(ctx context.Context, positionID string, profitable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE exit_decisions SET profitable = ? WHERE position_id = ? AND should_exit = 1`,
		boolInt(profitable), positionID)
	return err
}

func (s *Store) ListDecisions(ctx context.Context, positionID string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position_id, kind, should_exit, confidence, reason, net_pnl_pct, lock_level_pct, profitable, created_at
		 FROM exit_decisions WHERE position_id = ? ORDER BY id DESC LIMIT ?`,
		positionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var shouldExit int
		var profitable sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.PositionID, &rec.Kind, &shouldExit, &rec.Confidence,
			&rec.Reason, &rec.NetPnLPct, &rec.LockLevel, &profitable, &createdAt); err != nil {
			return nil, err
		}
		rec.ShouldExit = shouldExit == 1
		if profitable.Valid {
			v := profitable.Int64 == 1
			rec.Profitable = &v
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListFailures(ctx context.Context, positionID string, limit int) ([]FailureRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position_id, stage, reason, action, created_at
		 FROM failures WHERE position_id = ? ORDER BY id DESC LIMIT ?`,
		positionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FailureRecord
	for rows.Next() {
		var rec FailureRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.PositionID, &rec.Stage, &rec.Reason, &rec.Action, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
