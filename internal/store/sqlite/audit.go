// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var (
	_ store.AuditStore      = (*AuditStore)(nil)
	_ store.TransitionStore = (*TransitionStore)(nil)
)

// AuditStore implements store.AuditStore over the append-only agent_audit table.
type AuditStore struct {
	q querier
}

func (s *AuditStore) Append(ctx context.Context, e *store.AgentAuditEntry) error {
	if e.ID == "" || e.ClaimID == "" || e.ToolName == "" {
		return fmt.Errorf("appending audit entry: %w", store.ErrInvalidInput)
	}

	input, err := json.Marshal(e.Input)
	if err != nil {
		return fmt.Errorf("marshalling audit input: %w", err)
	}
	output, err := json.Marshal(e.Output)
	if err != nil {
		return fmt.Errorf("marshalling audit output: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Attempt == 0 {
		e.Attempt = 1
	}

	const q = `INSERT INTO agent_audit (id, claim_id, tool_name, input, output, status, error, attempt, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.q.ExecContext(ctx, q,
		e.ID,
		e.ClaimID,
		e.ToolName,
		string(input),
		string(output),
		string(e.Status),
		e.Error,
		e.Attempt,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return dbErr("appending audit entry "+e.ID, err)
	}
	if e.Seq, err = result.LastInsertId(); err != nil {
		return dbErr("reading audit sequence", err)
	}
	return nil
}

func (s *AuditStore) ListByClaim(ctx context.Context, claimID string) ([]*store.AgentAuditEntry, error) {
	const q = `SELECT seq, id, claim_id, tool_name, input, output, status, error, attempt, created_at
FROM agent_audit WHERE claim_id = ? ORDER BY seq ASC`

	rows, err := s.q.QueryContext(ctx, q, claimID)
	if err != nil {
		return nil, dbErr("listing audit entries for claim "+claimID, err)
	}
	defer rows.Close()

	var out []*store.AgentAuditEntry
	for rows.Next() {
		var (
			e                              store.AgentAuditEntry
			input, output, status, created string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.ClaimID, &e.ToolName, &input, &output,
			&status, &e.Error, &e.Attempt, &created); err != nil {
			return nil, dbErr("scanning audit row", err)
		}
		if err := unmarshalObject(input, &e.Input); err != nil {
			return nil, err
		}
		if err := unmarshalObject(output, &e.Output); err != nil {
			return nil, err
		}
		e.Status = store.AuditStatus(status)
		e.CreatedAt = parseTime(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// TransitionStore implements store.TransitionStore.
type TransitionStore struct {
	q querier
}

func (s *TransitionStore) Append(ctx context.Context, t *store.Transition) error {
	if t.ID == "" || t.ClaimID == "" {
		return fmt.Errorf("appending transition: %w", store.ErrInvalidInput)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	const q = `INSERT INTO transitions (id, claim_id, from_status, to_status, trigger, actor_id, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.q.ExecContext(ctx, q,
		t.ID,
		t.ClaimID,
		string(t.From),
		string(t.To),
		t.Trigger,
		t.ActorID,
		t.Reason,
		formatTime(t.CreatedAt),
	)
	if err != nil {
		return dbErr("appending transition "+t.ID, err)
	}
	if t.Seq, err = result.LastInsertId(); err != nil {
		return dbErr("reading transition sequence", err)
	}
	return nil
}

func (s *TransitionStore) ListByClaim(ctx context.Context, claimID string) ([]*store.Transition, error) {
	const q = `SELECT seq, id, claim_id, from_status, to_status, trigger, actor_id, reason, created_at
FROM transitions WHERE claim_id = ? ORDER BY seq ASC`

	rows, err := s.q.QueryContext(ctx, q, claimID)
	if err != nil {
		return nil, dbErr("listing transitions for claim "+claimID, err)
	}
	defer rows.Close()

	var out []*store.Transition
	for rows.Next() {
		var (
			t                 store.Transition
			from, to, created string
		)
		if err := rows.Scan(&t.Seq, &t.ID, &t.ClaimID, &from, &to, &t.Trigger, &t.ActorID, &t.Reason, &created); err != nil {
			return nil, dbErr("scanning transition row", err)
		}
		t.From = store.ClaimStatus(from)
		t.To = store.ClaimStatus(to)
		t.CreatedAt = parseTime(created)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func unmarshalObject(raw string, dst *map[string]any) error {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshalling audit payload: %w", err)
	}
	return nil
}
