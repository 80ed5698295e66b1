// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package risk classifies claims by amount and computes a display-only
// fraud-risk score.
package risk

import (
	"math"
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

const (
	DefaultMediumThreshold = 50_000.0
	DefaultHighThreshold   = 100_000.0
)

// Engine assesses claims. The zero value uses the default thresholds.
type Engine struct {
	// MediumThreshold is the smallest MEDIUM amount.
	MediumThreshold float64
	// HighThreshold is the largest MEDIUM amount; anything above is HIGH.
	HighThreshold float64
}

// Assessment is the output of Assess.
type Assessment struct {
	Level   store.RiskLevel `json:"risk_level"`
	Score   float64         `json:"fraud_risk_score"`
	Factors []string        `json:"factors,omitempty"`
}

// RequiresApproval reports whether the level must be escalated to a human.
func (a Assessment) RequiresApproval() bool {
	return a.Level == store.RiskMedium || a.Level == store.RiskHigh
}

func (e Engine) thresholds() (float64, float64) {
	medium, high := e.MediumThreshold, e.HighThreshold
	if medium <= 0 {
		medium = DefaultMediumThreshold
	}
	if high <= 0 {
		high = DefaultHighThreshold
	}
	return medium, high
}

// Level classifies amount: below medium is LOW, medium..high inclusive is
// MEDIUM, above high is HIGH.
func (e Engine) Level(amount float64) store.RiskLevel {
	medium, high := e.thresholds()
	switch {
	case amount < medium:
		return store.RiskLow
	case amount <= high:
		return store.RiskMedium
	default:
		return store.RiskHigh
	}
}

// Assess is deterministic: the same claim always yields the same assessment.
func (e Engine) Assess(c *store.Claim) Assessment {
	_, high := e.thresholds()

	var (
		score   = 0.5 * math.Min(c.Amount/(2*high), 1)
		factors []string
	)
	if c.Amount > high {
		factors = append(factors, "amount_above_high_threshold")
	}
	if len(strings.TrimSpace(c.Description)) < 20 {
		score += 0.15
		factors = append(factors, "sparse_description")
	}
	if c.IncidentDate == nil {
		score += 0.1
		factors = append(factors, "missing_incident_date")
	} else if c.SubmittedAt != nil && c.IncidentDate.After(*c.SubmittedAt) {
		score += 0.2
		factors = append(factors, "incident_after_submission")
	} else if c.SubmittedAt != nil && c.SubmittedAt.Sub(*c.IncidentDate) > 365*24*time.Hour {
		score += 0.1
		factors = append(factors, "late_report")
	}
	if !c.DocumentsUploaded {
		score += 0.05
		factors = append(factors, "no_documents")
	}

	return Assessment{
		Level:   e.Level(c.Amount),
		Score:   math.Round(math.Min(score, 1)*1000) / 1000,
		Factors: factors,
	}
}
