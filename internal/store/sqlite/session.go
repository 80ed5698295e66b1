// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore, one row per claim.
type SessionStore struct {
	q querier
}

func (s *SessionStore) Get(ctx context.Context, claimID string) (*store.Session, error) {
	const q = `SELECT claim_id, position, pending_tool, status, created_at, updated_at
FROM sessions WHERE claim_id = ?`

	var (
		sess             store.Session
		status           string
		created, updated string
	)
	err := s.q.QueryRowContext(ctx, q, claimID).Scan(
		&sess.ClaimID,
		&sess.Position,
		&sess.PendingTool,
		&status,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session for claim %s: %w", claimID, store.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("getting session for claim "+claimID, err)
	}

	sess.Status = store.SessionStatus(status)
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

// Save inserts or replaces the session row.
func (s *SessionStore) Save(ctx context.Context, sess *store.Session) error {
	if sess.ClaimID == "" {
		return fmt.Errorf("saving session: claim required: %w", store.ErrInvalidInput)
	}

	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.Status == "" {
		sess.Status = store.SessionStatusActive
	}

	const q = `INSERT INTO sessions (claim_id, position, pending_tool, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(claim_id) DO UPDATE SET position = excluded.position, pending_tool = excluded.pending_tool,
status = excluded.status, updated_at = excluded.updated_at`

	_, err := s.q.ExecContext(ctx, q,
		sess.ClaimID,
		sess.Position,
		sess.PendingTool,
		string(sess.Status),
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return dbErr("saving session for claim "+sess.ClaimID, err)
	}
	return nil
}
