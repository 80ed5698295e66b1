// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var _ store.DecisionStore = (*DecisionStore)(nil)

// DecisionStore implements store.DecisionStore. checkpoint_id is UNIQUE so a
// checkpoint yields at most one decision.
type DecisionStore struct {
	q querier
}

func (s *DecisionStore) Create(ctx context.Context, d *store.Decision) error {
	if d.ID == "" || d.ClaimID == "" || d.CheckpointID == "" || !d.Action.Valid() {
		return fmt.Errorf("creating decision: %w", store.ErrInvalidInput)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	const q = `INSERT INTO decisions (id, claim_id, checkpoint_id, approver_id, action, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, q,
		d.ID,
		d.ClaimID,
		d.CheckpointID,
		d.ApproverID,
		string(d.Action),
		d.Reason,
		formatTime(d.CreatedAt),
	)
	if isConstraint(err) {
		return fmt.Errorf("decision for checkpoint %s: %w", d.CheckpointID, store.ErrConflict)
	}
	if err != nil {
		return dbErr("creating decision "+d.ID, err)
	}
	return nil
}

func (s *DecisionStore) ListByClaim(ctx context.Context, claimID string) ([]*store.Decision, error) {
	const q = `SELECT id, claim_id, checkpoint_id, approver_id, action, reason, created_at
FROM decisions WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`

	rows, err := s.q.QueryContext(ctx, q, claimID)
	if err != nil {
		return nil, dbErr("listing decisions for claim "+claimID, err)
	}
	defer rows.Close()

	var out []*store.Decision
	for rows.Next() {
		var (
			d       store.Decision
			action  string
			created string
		)
		if err := rows.Scan(&d.ID, &d.ClaimID, &d.CheckpointID, &d.ApproverID, &action, &d.Reason, &created); err != nil {
			return nil, dbErr("scanning decision row", err)
		}
		d.Action = store.DecisionAction(action)
		d.CreatedAt = parseTime(created)
		out = append(out, &d)
	}
	return out, rows.Err()
}
