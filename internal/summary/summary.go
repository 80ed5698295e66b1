// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package summary phrases the text an approver sees when a claim is
// escalated. Model-backed writers always fall back to the deterministic
// template, so a provider outage never blocks a review.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Provider names accepted by New.
const (
	ProviderTemplate  = "template"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Input is what a summary is written from.
type Input struct {
	Claim      *store.Claim
	Assessment risk.Assessment
	Missing    []string
}

// Writer produces an approver-facing summary of a claim.
type Writer interface {
	Name() string
	Summarize(ctx context.Context, in Input) (string, error)
}

// Config selects and configures a writer.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint; used by tests.
	BaseURL string
	// Scanner, when set, redacts credentials from claim text sent to a
	// model-backed writer.
	Scanner *scanner.Scanner
}

// New returns the writer for cfg.Provider. Model-backed writers are wrapped
// in a Fallback to the template.
func New(cfg Config, logger *slog.Logger) (Writer, error) {
	var w Writer
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderTemplate:
		return Template{}, nil
	case ProviderGoogle:
		w, err = NewGemini(cfg)
	case ProviderAnthropic:
		w, err = NewAnthropic(cfg)
	case ProviderOpenAI:
		w, err = NewOpenAI(cfg)
	default:
		return nil, cgerr.New(cgerr.CodeSummaryProviderInvalid, "unknown summary provider "+cfg.Provider,
			cgerr.FieldProvider(cfg.Provider))
	}
	if err != nil {
		return nil, err
	}
	return NewFallback(w, logger).Redacting(cfg.Scanner), nil
}

// Template writes the fixed-format summary.
type Template struct{}

func (Template) Name() string { return ProviderTemplate }

func (Template) Summarize(_ context.Context, in Input) (string, error) {
	return templateText(in), nil
}

func templateText(in Input) string {
	c := in.Claim
	incident := "an unknown date"
	if c.IncidentDate != nil {
		incident = c.IncidentDate.Format("2006-01-02")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Claim for %s policy %s amounting to $%.2f. Incident reported on %s. Risk Level: %s.",
		typeLabel(c.Type), orUnknown(c.PolicyNumber), c.Amount, incident, in.Assessment.Level)
	if len(in.Missing) > 0 {
		fmt.Fprintf(&b, " Missing details: %s.", strings.Join(in.Missing, ", "))
	}
	if len(in.Assessment.Factors) > 0 {
		fmt.Fprintf(&b, " Risk factors: %s.", strings.Join(in.Assessment.Factors, "; "))
	}
	return b.String()
}

func typeLabel(t store.ClaimType) string {
	if t == "" {
		return "an unspecified"
	}
	return strings.ToLower(string(t))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}

const systemPrompt = "You write short summaries of insurance claims for the human approver who " +
	"must decide them. Use at most three sentences. State the amount, the claim type, the risk " +
	"level and anything missing or suspicious. Do not recommend a decision."

// prompt renders the claim facts a model-backed writer summarizes.
func prompt(in Input) string {
	c := in.Claim
	var b strings.Builder
	fmt.Fprintf(&b, "Claim type: %s\n", typeLabel(c.Type))
	fmt.Fprintf(&b, "Policy number: %s\n", orUnknown(c.PolicyNumber))
	fmt.Fprintf(&b, "Amount: %.2f\n", c.Amount)
	if c.IncidentDate != nil {
		fmt.Fprintf(&b, "Incident date: %s\n", c.IncidentDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Documents uploaded: %t\n", c.DocumentsUploaded)
	fmt.Fprintf(&b, "Risk level: %s (fraud score %.3f)\n", in.Assessment.Level, in.Assessment.Score)
	if len(in.Assessment.Factors) > 0 {
		fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(in.Assessment.Factors, "; "))
	}
	if len(in.Missing) > 0 {
		fmt.Fprintf(&b, "Missing fields: %s\n", strings.Join(in.Missing, ", "))
	}
	fmt.Fprintf(&b, "Description: %s\n", orUnknown(c.Description))
	return b.String()
}
