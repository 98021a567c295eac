// Package sqldb implements the session store on a SQL database via sqlx,
// with dialect support for SQLite, PostgreSQL, and MySQL. Only the SQLite
// driver is bundled; other drivers must be imported by the binary.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
	"github.com/moplabs/mopd/internal/storage/dialect"
)

const defaultListLimit = 100

// Store is a SQL implementation of storage.SessionStore.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.SessionStore = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite, postgres, mysql
	DSN    string
}

// New opens the database, runs dialect init statements, and creates the
// schema if it does not exist.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init statement: %w", err)
		}
	}

	s := &Store{db: db, dialect: d}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// NewSQLite opens a SQLite store at the given path or DSN.
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// DB returns the underlying sqlx.DB.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	problem TEXT NOT NULL,
	status TEXT NOT NULL,
	kernel_decision TEXT,
	stopped_agent TEXT,
	created_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
	)`,
		`CREATE TABLE IF NOT EXISTS stage_results (
	session_id TEXT NOT NULL,
	stage INTEGER NOT NULL,
	agent TEXT NOT NULL,
	response TEXT NOT NULL,
	tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, stage),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("schema statement: %w", err)
		}
	}
	return nil
}

// SaveSession writes the session and its stage results. Repeated saves of
// the same session replace the previous record, so terminal persistence can
// be retried without duplicating rows.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := s.dialect.UpsertClause("id", []string{
		"problem", "status", "kernel_decision", "stopped_agent", "created_at", "completed_at",
	})
	query := s.dialect.Rebind(fmt.Sprintf(
		`INSERT INTO sessions (id, problem, status, kernel_decision, stopped_agent, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) %s`, upsert))

	if _, err := tx.ExecContext(ctx, query,
		sess.ID, sess.Problem, string(sess.Status),
		nullString(string(sess.Decision)), nullString(sess.StoppedAgent),
		sess.CreatedAt, nullTime(sess.CompletedAt)); err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}

	del := s.dialect.Rebind(`DELETE FROM stage_results WHERE session_id = ?`)
	if _, err := tx.ExecContext(ctx, del, sess.ID); err != nil {
		return fmt.Errorf("clear stage results for %s: %w", sess.ID, err)
	}

	ins := s.dialect.Rebind(
		`INSERT INTO stage_results (session_id, stage, agent, response, tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, sr := range sess.StageResults {
		if _, err := tx.ExecContext(ctx, ins,
			sess.ID, sr.Stage, sr.Agent, sr.Response, sr.Tokens, sr.CreatedAt); err != nil {
			return fmt.Errorf("insert stage result %d for %s: %w", sr.Stage, sess.ID, err)
		}
	}

	return tx.Commit()
}

// GetSession loads a session with its stage results in stage order.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := s.dialect.Rebind(
		`SELECT id, problem, status, kernel_decision, stopped_agent, created_at, completed_at
		FROM sessions WHERE id = ?`)

	var (
		sess        domain.Session
		status      string
		decision    sql.NullString
		stopped     sql.NullString
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.Problem, &status, &decision, &stopped, &sess.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	sess.Status = domain.Status(status)
	if decision.Valid {
		sess.Decision = domain.Decision(decision.String)
	}
	if stopped.Valid {
		sess.StoppedAgent = stopped.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}

	results, err := s.getStageResults(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.StageResults = results

	return &sess, nil
}

func (s *Store) getStageResults(ctx context.Context, sessionID string) ([]domain.StageResult, error) {
	query := s.dialect.Rebind(
		`SELECT stage, agent, response, tokens, created_at
		FROM stage_results WHERE session_id = ?
		ORDER BY stage ASC`)

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query stage results for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var results []domain.StageResult
	for rows.Next() {
		var sr domain.StageResult
		if err := rows.Scan(&sr.Stage, &sr.Agent, &sr.Response, &sr.Tokens, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, opts storage.ListOptions) ([]*domain.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.dialect.Rebind(
		`SELECT id FROM sessions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`)

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]*domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Ping verifies database connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: strings.TrimSpace(v) != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
