// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/pkg/health"
)

// DefaultCooldown is how long a failing writer is skipped before it is
// tried again.
const DefaultCooldown = 30 * time.Second

// Fallback uses the primary writer while it is healthy and the template
// otherwise.
type Fallback struct {
	primary Writer
	health  *HealthTracker
	logger  *slog.Logger
	scanner *scanner.Scanner
}

func NewFallback(primary Writer, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary: primary,
		health:  NewHealthTracker(DefaultCooldown),
		logger:  logger,
	}
}

// Redacting makes f strip credentials from claim text before it reaches
// the primary writer.
func (f *Fallback) Redacting(s *scanner.Scanner) *Fallback {
	f.scanner = s
	return f
}

func (f *Fallback) Name() string { return f.primary.Name() }

// Health exposes the primary writer's health state.
func (f *Fallback) Health() *HealthTracker { return f.health }

// Metrics reports the primary writer's availability.
func (f *Fallback) Metrics() health.Metrics {
	m := f.health.Metrics()
	m.Provider = f.primary.Name()
	return m
}

var _ health.Reporter = (*Fallback)(nil)

// Summarize never fails unless ctx is done.
func (f *Fallback) Summarize(ctx context.Context, in Input) (string, error) {
	if f.health.IsHealthy() {
		text, err := f.primary.Summarize(ctx, f.redact(ctx, in))
		text = strings.TrimSpace(text)
		switch {
		case err == nil && text != "":
			f.health.RecordSuccess()
			return text, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		}
		f.health.RecordFailure()
		f.logger.WarnContext(ctx, "summary provider failed, using template",
			slog.String("provider", f.primary.Name()),
			slog.String("claim_id", in.Claim.ID),
			slog.Any("error", err),
		)
	}
	return templateText(in), nil
}

// Reply uses the primary writer when it can answer conversations and is
// healthy. It never fails unless ctx is done.
func (f *Fallback) Reply(ctx context.Context, in ReplyInput) (string, error) {
	r, ok := f.primary.(Replier)
	if ok && f.health.IsHealthy() {
		text, err := r.Reply(ctx, f.redactReply(ctx, in))
		text = strings.TrimSpace(text)
		switch {
		case err == nil && text != "":
			f.health.RecordSuccess()
			return text, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		}
		f.health.RecordFailure()
		f.logger.WarnContext(ctx, "reply provider failed, using template",
			slog.String("provider", f.primary.Name()),
			slog.Any("error", err),
		)
	}
	return templateReply(in), nil
}

// redactReply copies what in carries upstream with credentials replaced.
func (f *Fallback) redactReply(ctx context.Context, in ReplyInput) ReplyInput {
	if f.scanner == nil {
		return in
	}
	if in.Claim != nil {
		in.Claim = f.redact(ctx, Input{Claim: in.Claim}).Claim
	}
	in.Message = f.redactText(ctx, "message", in.Message)
	history := make([]*store.Message, len(in.History))
	for i, m := range in.History {
		cp := *m
		cp.Content = f.redactText(ctx, "history", m.Content)
		history[i] = &cp
	}
	in.History = history
	return in
}

func (f *Fallback) redactText(ctx context.Context, field, text string) string {
	res, err := f.scanner.Scan(scanner.StageUpstream, text)
	if err != nil || !res.Threat() {
		return text
	}
	f.logger.InfoContext(ctx, "redacted conversation text before reply upstream",
		slog.String("field", field),
		slog.Any("rules", res.Rules()),
	)
	return scanner.Redact(res)
}

// redact returns in with a copy of the claim whose free-text fields have
// upstream matches replaced.
func (f *Fallback) redact(ctx context.Context, in Input) Input {
	if f.scanner == nil || in.Claim == nil {
		return in
	}
	c := *in.Claim
	for _, field := range []*string{&c.Description, &c.PolicyNumber} {
		res, err := f.scanner.Scan(scanner.StageUpstream, *field)
		if err != nil || !res.Threat() {
			continue
		}
		*field = scanner.Redact(res)
		f.logger.InfoContext(ctx, "redacted claim text before summary upstream",
			slog.String("claim_id", c.ID),
			slog.Any("rules", res.Rules()),
		)
	}
	in.Claim = &c
	return in
}
