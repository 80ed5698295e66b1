// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/claims"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// ClaimView is the wire form of a claim.
type ClaimView struct {
	ID                 string           `json:"id"`
	OwnerID            string           `json:"owner_id"`
	PolicyNumber       string           `json:"policy_number"`
	ClaimType          string           `json:"claim_type"`
	ClaimAmount        float64          `json:"claim_amount"`
	Description        string           `json:"description"`
	IncidentDate       string           `json:"incident_date,omitempty" doc:"YYYY-MM-DD"`
	DocumentsUploaded  bool             `json:"documents_uploaded"`
	Status             string           `json:"status"`
	RiskLevel          string           `json:"risk_level,omitempty"`
	FraudRiskScore     float64          `json:"fraud_risk_score"`
	InterruptID        string           `json:"interrupt_id,omitempty" doc:"Open checkpoint while PENDING_APPROVAL"`
	InterruptReason    *InterruptReason `json:"interrupt_reason,omitempty"`
	AssignedApproverID string           `json:"assigned_approver_id,omitempty"`
	Version            int64            `json:"version"`
	SubmittedAt        *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type InterruptReason struct {
	RiskLevel string `json:"risk_level"`
	Summary   string `json:"summary"`
}

func claimView(c *store.Claim) ClaimView {
	v := ClaimView{
		ID:                 c.ID,
		OwnerID:            c.OwnerID,
		PolicyNumber:       c.PolicyNumber,
		ClaimType:          string(c.Type),
		ClaimAmount:        c.Amount,
		Description:        c.Description,
		DocumentsUploaded:  c.DocumentsUploaded,
		Status:             string(c.Status),
		RiskLevel:          string(c.RiskLevel),
		FraudRiskScore:     c.FraudRiskScore,
		InterruptID:        c.Metadata.InterruptID,
		AssignedApproverID: c.AssignedApproverID,
		Version:            c.Version,
		SubmittedAt:        c.SubmittedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.IncidentDate != nil {
		v.IncidentDate = c.IncidentDate.Format(time.DateOnly)
	}
	if r := c.Metadata.InterruptReason; r != nil {
		v.InterruptReason = &InterruptReason{RiskLevel: string(r.RiskLevel), Summary: r.Summary}
	}
	return v
}

func claimViews(cs []*store.Claim) []ClaimView {
	out := make([]ClaimView, 0, len(cs))
	for _, c := range cs {
		out = append(out, claimView(c))
	}
	return out
}

// ClaimFields is the editable part of a claim in requests.
type ClaimFields struct {
	PolicyNumber      string  `json:"policy_number,omitempty"`
	ClaimType         string  `json:"claim_type,omitempty" doc:"HEALTH, AUTO or PROPERTY"`
	ClaimAmount       float64 `json:"claim_amount,omitempty"`
	Description       string  `json:"description,omitempty"`
	IncidentDate      string  `json:"incident_date,omitempty" doc:"YYYY-MM-DD or RFC 3339"`
	DocumentsUploaded bool    `json:"documents_uploaded,omitempty"`
}

func (f ClaimFields) draft() (claims.Draft, error) {
	d := claims.Draft{
		PolicyNumber:      f.PolicyNumber,
		Type:              store.ClaimType(strings.ToUpper(strings.TrimSpace(f.ClaimType))),
		Amount:            f.ClaimAmount,
		Description:       f.Description,
		DocumentsUploaded: f.DocumentsUploaded,
	}
	if f.IncidentDate != "" {
		t, err := parseDate(f.IncidentDate)
		if err != nil {
			return d, err
		}
		d.IncidentDate = &t
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, cgerr.New(cgerr.CodeClaimValidateInvalid, "incident_date must be YYYY-MM-DD or RFC 3339",
			cgerr.Field("fields", map[string]string{"incident_date": s}))
	}
	return t, nil
}

// OutcomeView reports how far the automated review got.
type OutcomeView struct {
	Status         string   `json:"status"`
	RiskLevel      string   `json:"risk_level"`
	FraudRiskScore float64  `json:"fraud_risk_score"`
	Summary        string   `json:"summary,omitempty"`
	MissingFields  []string `json:"missing_fields,omitempty"`
	CheckpointID   string   `json:"checkpoint_id,omitempty"`
}

func outcomeView(o *agent.Outcome) *OutcomeView {
	if o == nil {
		return nil
	}
	return &OutcomeView{
		Status:         string(o.Status),
		RiskLevel:      string(o.RiskLevel),
		FraudRiskScore: o.FraudRiskScore,
		Summary:        o.Summary,
		MissingFields:  o.Missing,
		CheckpointID:   o.CheckpointID,
	}
}

type DecisionView struct {
	ID           string    `json:"id"`
	ClaimID      string    `json:"claim_id"`
	CheckpointID string    `json:"checkpoint_id"`
	ApproverID   string    `json:"approver_id"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func decisionView(d *store.Decision) DecisionView {
	return DecisionView{
		ID:           d.ID,
		ClaimID:      d.ClaimID,
		CheckpointID: d.CheckpointID,
		ApproverID:   d.ApproverID,
		Action:       string(d.Action),
		Reason:       d.Reason,
		CreatedAt:    d.CreatedAt,
	}
}

type MessageView struct {
	ID            string         `json:"id"`
	Seq           int64          `json:"seq"`
	ClaimID       string         `json:"claim_id,omitempty"`
	ParticipantID string         `json:"participant_id,omitempty"`
	SenderKind    string         `json:"sender_kind"`
	SenderID      string         `json:"sender_id,omitempty"`
	Content       string         `json:"content"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func messageView(m *store.Message) MessageView {
	return MessageView{
		ID:            m.ID,
		Seq:           m.Seq,
		ClaimID:       m.ClaimID,
		ParticipantID: m.ParticipantID,
		SenderKind:    string(m.SenderKind),
		SenderID:      m.SenderID,
		Content:       m.Content,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
	}
}

type PendingView struct {
	CheckpointID string     `json:"checkpoint_id"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Overdue      bool       `json:"overdue"`
	Claim        ClaimView  `json:"claim"`
}

func pendingView(p agent.PendingApproval) PendingView {
	return PendingView{
		CheckpointID: p.Checkpoint.ID,
		CreatedAt:    p.Checkpoint.CreatedAt,
		ExpiresAt:    p.Checkpoint.ExpiresAt,
		Overdue:      p.Overdue,
		Claim:        claimView(p.Claim),
	}
}
