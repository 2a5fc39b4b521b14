// Package store persists session summaries to a relational database. The
// schema is a single session_summary table with upsert-on-session_id write
// semantics; both the pure-Go sqlite driver and the pgx postgres driver are
// supported behind database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
)

// DefaultUserSessionLimit bounds SessionSummariesByUser when the caller passes
// a non-positive limit.
const DefaultUserSessionLimit = 10

// SQLStore implements counsel.SummaryStore on database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
	log    *zap.SugaredLogger
	now    func() time.Time
}

var _ counsel.SummaryStore = (*SQLStore)(nil)

// Open connects to the database named by driver ("sqlite" or "pgx") and dsn,
// and bounds the connection pool. Connections are pooled and shared across
// sessions; per-call acquisition/release is handled by database/sql.
func Open(driver, dsn string, maxOpen, maxIdle int, log *zap.SugaredLogger) (*SQLStore, error) {
	switch driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	if driver == "sqlite" {
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 30000",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("store: %s: %w", p, err)
			}
		}
	}

	return &SQLStore{db: db, driver: driver, log: log, now: time.Now}, nil
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS session_summary (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	session_id TEXT UNIQUE NOT NULL,
	summary_text TEXT NOT NULL,
	stage_completed TEXT,
	emotion_trend TEXT,
	belief_change TEXT,
	total_turns INTEGER DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS session_summary (
	id BIGSERIAL PRIMARY KEY,
	user_id VARCHAR(36) NOT NULL,
	session_id VARCHAR(36) UNIQUE NOT NULL,
	summary_text TEXT NOT NULL,
	stage_completed VARCHAR(50),
	emotion_trend TEXT,
	belief_change TEXT,
	total_turns INTEGER DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Init creates the session_summary table and its indexes if missing.
func (s *SQLStore) Init(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == "pgx" {
		schema = postgresSchema
	}
	stmts := []string{
		schema,
		"CREATE INDEX IF NOT EXISTS idx_session_summary_user_id ON session_summary(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_session_summary_created_at ON session_summary(created_at DESC)",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &counsel.PersistenceError{Op: "init", Err: err}
		}
	}
	return nil
}

// UpsertSessionSummary inserts the record, or overwrites the non-key fields
// and bumps updated_at when the session already has one. created_at is set
// only on first insert.
func (s *SQLStore) UpsertSessionSummary(ctx context.Context, rec counsel.SessionSummary) error {
	now := s.now().UTC()
	query := s.rebind(`INSERT INTO session_summary
		(user_id, session_id, summary_text, stage_completed, emotion_trend, belief_change, total_turns, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			summary_text = excluded.summary_text,
			stage_completed = excluded.stage_completed,
			emotion_trend = excluded.emotion_trend,
			belief_change = excluded.belief_change,
			total_turns = excluded.total_turns,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID,
		rec.SessionID,
		rec.SummaryText,
		rec.StageCompleted,
		rec.EmotionTrend,
		rec.BeliefChange,
		rec.TotalTurns,
		now,
		now,
	)
	if err != nil {
		return &counsel.PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

const selectColumns = `id, user_id, session_id, summary_text, stage_completed, emotion_trend, belief_change, total_turns, created_at, updated_at`

// SessionSummaryByID fetches one summary, or nil when the session has none.
func (s *SQLStore) SessionSummaryByID(ctx context.Context, sessionID string) (*counsel.SessionSummary, error) {
	query := s.rebind(`SELECT ` + selectColumns + ` FROM session_summary WHERE session_id = ?`)
	row := s.db.QueryRowContext(ctx, query, sessionID)

	var rec counsel.SessionSummary
	err := scanSummary(row.Scan, &rec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &counsel.PersistenceError{Op: "select", Err: err}
	}
	return &rec, nil
}

// SessionSummariesByUser lists a user's summaries newest first, truncated to
// limit (DefaultUserSessionLimit when limit <= 0).
func (s *SQLStore) SessionSummariesByUser(ctx context.Context, userID string, limit int) ([]counsel.SessionSummary, error) {
	if limit <= 0 {
		limit = DefaultUserSessionLimit
	}
	query := s.rebind(`SELECT ` + selectColumns + ` FROM session_summary WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, &counsel.PersistenceError{Op: "select", Err: err}
	}
	defer rows.Close()

	var out []counsel.SessionSummary
	for rows.Next() {
		var rec counsel.SessionSummary
		if err := scanSummary(rows.Scan, &rec); err != nil {
			return nil, &counsel.PersistenceError{Op: "scan", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &counsel.PersistenceError{Op: "select", Err: err}
	}
	return out, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func scanSummary(scan func(dest ...any) error, rec *counsel.SessionSummary) error {
	return scan(
		&rec.ID,
		&rec.UserID,
		&rec.SessionID,
		&rec.SummaryText,
		&rec.StageCompleted,
		&rec.EmotionTrend,
		&rec.BeliefChange,
		&rec.TotalTurns,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
}

// rebind converts ?-style placeholders to the $N form pgx expects. Queries are
// written once with ? and rebound per driver.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
