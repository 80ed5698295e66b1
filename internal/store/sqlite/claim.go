// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var _ store.ClaimStore = (*ClaimStore)(nil)

// ClaimStore implements store.ClaimStore.
type ClaimStore struct {
	q querier
}

const claimColumns = `id, owner_id, policy_number, claim_type, amount, description, incident_date,
documents_uploaded, status, risk_level, fraud_risk_score, metadata, assigned_approver_id, version,
submitted_at, created_at, updated_at`

func (s *ClaimStore) Create(ctx context.Context, c *store.Claim) error {
	if c.ID == "" || c.OwnerID == "" {
		return fmt.Errorf("creating claim: id and owner required: %w", store.ErrInvalidInput)
	}

	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling claim metadata: %w", err)
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Version == 0 {
		c.Version = 1
	}

	const q = `INSERT INTO claims (` + claimColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.q.ExecContext(ctx, q,
		c.ID,
		c.OwnerID,
		c.PolicyNumber,
		string(c.Type),
		c.Amount,
		c.Description,
		formatTimePtr(c.IncidentDate),
		c.DocumentsUploaded,
		string(c.Status),
		string(c.RiskLevel),
		c.FraudRiskScore,
		string(meta),
		c.AssignedApproverID,
		c.Version,
		formatTimePtr(c.SubmittedAt),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if isConstraint(err) {
		return fmt.Errorf("creating claim %s: %w", c.ID, store.ErrConflict)
	}
	if err != nil {
		return dbErr("creating claim "+c.ID, err)
	}
	return nil
}

func (s *ClaimStore) Get(ctx context.Context, id string) (*store.Claim, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("getting claim "+id, err)
	}
	return c, nil
}

// Update writes every mutable column when the stored version still equals
// c.Version, then bumps c.Version.
func (s *ClaimStore) Update(ctx context.Context, c *store.Claim) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling claim metadata: %w", err)
	}

	now := time.Now()
	const q = `UPDATE claims SET policy_number = ?, claim_type = ?, amount = ?, description = ?,
incident_date = ?, documents_uploaded = ?, status = ?, risk_level = ?, fraud_risk_score = ?,
metadata = ?, assigned_approver_id = ?, submitted_at = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`

	result, err := s.q.ExecContext(ctx, q,
		c.PolicyNumber,
		string(c.Type),
		c.Amount,
		c.Description,
		formatTimePtr(c.IncidentDate),
		c.DocumentsUploaded,
		string(c.Status),
		string(c.RiskLevel),
		c.FraudRiskScore,
		string(meta),
		c.AssignedApproverID,
		formatTimePtr(c.SubmittedAt),
		formatTime(now),
		c.ID,
		c.Version,
	)
	if err != nil {
		return dbErr("updating claim "+c.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return dbErr("checking rows affected for claim "+c.ID, err)
	}
	if rows == 0 {
		if _, getErr := s.Get(ctx, c.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("claim %s version %d is stale: %w", c.ID, c.Version, store.ErrConflict)
	}

	c.Version++
	c.UpdatedAt = now
	return nil
}

func (s *ClaimStore) List(ctx context.Context, f store.ClaimFilter) ([]*store.Claim, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	q := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr("listing claims", err)
	}
	defer rows.Close()

	var claims []*store.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, dbErr("scanning claim row", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(r rowScanner) (*store.Claim, error) {
	var (
		c                                     store.Claim
		claimType, status, risk, meta         string
		incident, submitted, created, updated string
	)
	if err := r.Scan(
		&c.ID,
		&c.OwnerID,
		&c.PolicyNumber,
		&claimType,
		&c.Amount,
		&c.Description,
		&incident,
		&c.DocumentsUploaded,
		&status,
		&risk,
		&c.FraudRiskScore,
		&meta,
		&c.AssignedApproverID,
		&c.Version,
		&submitted,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}

	c.Type = store.ClaimType(claimType)
	c.Status = store.ClaimStatus(status)
	c.RiskLevel = store.RiskLevel(risk)
	c.IncidentDate = parseTimePtr(incident)
	c.SubmittedAt = parseTimePtr(submitted)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling claim metadata: %w", err)
		}
	}
	return &c, nil
}
