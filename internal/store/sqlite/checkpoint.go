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

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore implements store.CheckpointStore. The partial unique index
// idx_checkpoints_open keeps at most one unresolved checkpoint per claim.
type CheckpointStore struct {
	q querier
}

const checkpointColumns = `id, claim_id, tool_name, continuation, created_at, expires_at, resolved_at, outcome`

func (s *CheckpointStore) Create(ctx context.Context, cp *store.Checkpoint) error {
	if cp.ID == "" || cp.ClaimID == "" || cp.ToolName == "" {
		return fmt.Errorf("creating checkpoint: id, claim and tool required: %w", store.ErrInvalidInput)
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	const q = `INSERT INTO checkpoints (id, claim_id, tool_name, continuation, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, q,
		cp.ID,
		cp.ClaimID,
		cp.ToolName,
		cp.Continuation,
		formatTime(cp.CreatedAt),
		formatTimePtr(cp.ExpiresAt),
	)
	if isConstraint(err) {
		return fmt.Errorf("claim %s already has an open checkpoint: %w", cp.ClaimID, store.ErrConflict)
	}
	if err != nil {
		return dbErr("creating checkpoint "+cp.ID, err)
	}
	return nil
}

func (s *CheckpointStore) Get(ctx context.Context, id string) (*store.Checkpoint, error) {
	return s.one(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE id = ?`, "checkpoint "+id, id)
}

// Open returns the unresolved checkpoint of a claim.
func (s *CheckpointStore) Open(ctx context.Context, claimID string) (*store.Checkpoint, error) {
	return s.one(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE claim_id = ? AND resolved_at IS NULL`,
		"open checkpoint for claim "+claimID, claimID)
}

// Latest returns the most recently created checkpoint of a claim, resolved or not.
func (s *CheckpointStore) Latest(ctx context.Context, claimID string) (*store.Checkpoint, error) {
	return s.one(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE claim_id = ?
ORDER BY created_at DESC, rowid DESC LIMIT 1`, "latest checkpoint for claim "+claimID, claimID)
}

// Resolve sets resolved_at only if it is still NULL.
func (s *CheckpointStore) Resolve(ctx context.Context, id string, outcome store.DecisionAction, at time.Time) (*store.Checkpoint, error) {
	const q = `UPDATE checkpoints SET resolved_at = ?, outcome = ? WHERE id = ? AND resolved_at IS NULL`

	result, err := s.q.ExecContext(ctx, q, formatTime(at), string(outcome), id)
	if err != nil {
		return nil, dbErr("resolving checkpoint "+id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, dbErr("checking rows affected for checkpoint "+id, err)
	}

	cp, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if rows == 0 {
		return cp, fmt.Errorf("checkpoint %s resolved at %s: %w", id, formatTimePtr(cp.ResolvedAt), store.ErrConflict)
	}
	return cp, nil
}

func (s *CheckpointStore) ListOpen(ctx context.Context, opts store.ListOpts) ([]*store.Checkpoint, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	return s.many(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE resolved_at IS NULL
ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?`, "listing open checkpoints", limit, opts.Offset)
}

func (s *CheckpointStore) ListByClaim(ctx context.Context, claimID string) ([]*store.Checkpoint, error) {
	return s.many(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE claim_id = ?
ORDER BY created_at ASC, rowid ASC`, "listing checkpoints for claim "+claimID, claimID)
}

func (s *CheckpointStore) one(ctx context.Context, q, what string, args ...any) (*store.Checkpoint, error) {
	cp, err := scanCheckpoint(s.q.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("getting "+what, err)
	}
	return cp, nil
}

func (s *CheckpointStore) many(ctx context.Context, q, what string, args ...any) ([]*store.Checkpoint, error) {
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr(what, err)
	}
	defer rows.Close()

	var out []*store.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, dbErr("scanning checkpoint row", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpoint(r rowScanner) (*store.Checkpoint, error) {
	var (
		cp               store.Checkpoint
		created, expires string
		resolved         sql.NullString
		outcome          string
	)
	if err := r.Scan(
		&cp.ID,
		&cp.ClaimID,
		&cp.ToolName,
		&cp.Continuation,
		&created,
		&expires,
		&resolved,
		&outcome,
	); err != nil {
		return nil, err
	}
	cp.CreatedAt = parseTime(created)
	cp.ExpiresAt = parseTimePtr(expires)
	if resolved.Valid {
		cp.ResolvedAt = parseTimePtr(resolved.String)
	}
	cp.Outcome = store.DecisionAction(outcome)
	return &cp, nil
}
