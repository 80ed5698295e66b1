// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/claimsgate/internal/store"
)

// Compile-time interface checks.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = repos{}
)

// querier is satisfied by both *sql.DB and *sql.Tx so every sub-store can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	repos
	db *sql.DB
}

// Open opens (or creates) the claims database at dbPath and migrates it.
// Write transactions begin IMMEDIATE so the database write lock is taken
// before the first read inside the transaction.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &Store{repos: repos{q: db}, db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repos{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("committing transaction", err)
	}
	return nil
}

type repos struct {
	q querier
}

func (r repos) Claims() store.ClaimStore           { return &ClaimStore{q: r.q} }
func (r repos) Checkpoints() store.CheckpointStore { return &CheckpointStore{q: r.q} }
func (r repos) Decisions() store.DecisionStore     { return &DecisionStore{q: r.q} }
func (r repos) Messages() store.MessageStore       { return &MessageStore{q: r.q} }
func (r repos) Sessions() store.SessionStore       { return &SessionStore{q: r.q} }
func (r repos) Audit() store.AuditStore            { return &AuditStore{q: r.q} }
func (r repos) Transitions() store.TransitionStore { return &TransitionStore{q: r.q} }
func (r repos) Users() store.UserStore             { return &UserStore{q: r.q} }

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS claims (
	id                   TEXT PRIMARY KEY,
	owner_id             TEXT NOT NULL,
	policy_number        TEXT NOT NULL DEFAULT '',
	claim_type           TEXT NOT NULL DEFAULT '',
	amount               REAL NOT NULL DEFAULT 0,
	description          TEXT NOT NULL DEFAULT '',
	incident_date        TEXT NOT NULL DEFAULT '',
	documents_uploaded   INTEGER NOT NULL DEFAULT 0,
	status               TEXT NOT NULL CHECK (status IN
		('DRAFT','UNDER_AGENT_REVIEW','PENDING_APPROVAL','NEEDS_MORE_INFO','APPROVED','REJECTED')),
	risk_level           TEXT NOT NULL DEFAULT '',
	fraud_risk_score     REAL NOT NULL DEFAULT 0,
	metadata             TEXT NOT NULL DEFAULT '{}',
	assigned_approver_id TEXT NOT NULL DEFAULT '',
	version              INTEGER NOT NULL DEFAULT 1,
	submitted_at         TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_owner ON claims(owner_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);

CREATE TABLE IF NOT EXISTS checkpoints (
	id           TEXT PRIMARY KEY,
	claim_id     TEXT NOT NULL,
	tool_name    TEXT NOT NULL,
	continuation BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	expires_at   TEXT NOT NULL DEFAULT '',
	resolved_at  TEXT,
	outcome      TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (claim_id) REFERENCES claims(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_open ON checkpoints(claim_id) WHERE resolved_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_checkpoints_claim ON checkpoints(claim_id, created_at);

CREATE TRIGGER IF NOT EXISTS checkpoints_resolve_once BEFORE UPDATE OF resolved_at ON checkpoints
WHEN OLD.resolved_at IS NOT NULL
BEGIN SELECT RAISE(ABORT, 'checkpoint already resolved'); END;

CREATE TABLE IF NOT EXISTS decisions (
	id            TEXT PRIMARY KEY,
	claim_id      TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL UNIQUE,
	approver_id   TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	FOREIGN KEY (claim_id) REFERENCES claims(id),
	FOREIGN KEY (checkpoint_id) REFERENCES checkpoints(id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_claim ON decisions(claim_id);

CREATE TABLE IF NOT EXISTS messages (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	claim_id       TEXT,
	participant_id TEXT NOT NULL DEFAULT '',
	sender_kind    TEXT NOT NULL,
	sender_id      TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL DEFAULT '',
	payload        TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_claim ON messages(claim_id, seq);
CREATE INDEX IF NOT EXISTS idx_messages_general ON messages(participant_id, seq) WHERE claim_id IS NULL;

CREATE TABLE IF NOT EXISTS sessions (
	claim_id     TEXT PRIMARY KEY,
	position     INTEGER NOT NULL DEFAULT 0,
	pending_tool TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'active',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	FOREIGN KEY (claim_id) REFERENCES claims(id)
);

CREATE TABLE IF NOT EXISTS agent_audit (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	claim_id   TEXT NOT NULL,
	tool_name  TEXT NOT NULL,
	input      TEXT NOT NULL DEFAULT '{}',
	output     TEXT NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	attempt    INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_audit_claim ON agent_audit(claim_id, seq);

CREATE TABLE IF NOT EXISTS transitions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	claim_id    TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	trigger     TEXT NOT NULL,
	actor_id    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_claim ON transitions(claim_id, seq);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}

	for _, table := range []string{"agent_audit", "decisions", "messages", "transitions"} {
		for _, op := range []string{"UPDATE", "DELETE"} {
			trigger := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_no_%[2]s BEFORE %[2]s ON %[1]s
BEGIN SELECT RAISE(ABORT, '%[1]s is append-only'); END;`, table, op)
			if _, err := db.Exec(trigger); err != nil {
				return err
			}
		}
	}
	return nil
}

// dbErr tags a driver failure with store.ErrDatabase.
func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrDatabase, err)
}

// isConstraint reports a UNIQUE/PRIMARY KEY/CHECK violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}
