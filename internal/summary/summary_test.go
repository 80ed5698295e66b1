// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func testInput() summary.Input {
	incident := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return summary.Input{
		Claim: &store.Claim{
			ID:           "clm-1",
			PolicyNumber: "POL-77",
			Type:         store.ClaimTypeAuto,
			Amount:       150000,
			Description:  "Rear-ended on the motorway, vehicle written off.",
			IncidentDate: &incident,
		},
		Assessment: risk.Assessment{Level: store.RiskHigh, Score: 0.375},
	}
}

type stubWriter struct {
	text  string
	err   error
	calls int
	last  summary.Input
}

func (s *stubWriter) Name() string { return "stub" }

func (s *stubWriter) Summarize(_ context.Context, in summary.Input) (string, error) {
	s.calls++
	s.last = in
	return s.text, s.err
}

func TestTemplate(t *testing.T) {
	text, err := summary.Template{}.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "Claim for auto policy POL-77 amounting to $150000.00. Incident reported on 2026-03-14. Risk Level: HIGH.", text)
}

func TestTemplate_MissingFields(t *testing.T) {
	in := testInput()
	in.Claim.IncidentDate = nil
	in.Claim.PolicyNumber = ""
	in.Missing = []string{"policy_number", "incident_date"}

	text, err := summary.Template{}.Summarize(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, text, "policy (unknown)")
	assert.Contains(t, text, "Incident reported on an unknown date.")
	assert.Contains(t, text, "Missing details: policy_number, incident_date.")
}

func TestFallback_UsesPrimary(t *testing.T) {
	primary := &stubWriter{text: "  model summary \n"}
	f := summary.NewFallback(primary, nil)

	text, err := f.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "model summary", text)
	assert.Equal(t, "stub", f.Name())
}

func TestFallback_TemplateOnFailure(t *testing.T) {
	primary := &stubWriter{err: errors.New("boom")}
	f := summary.NewFallback(primary, nil)

	text, err := f.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Contains(t, text, "Risk Level: HIGH.")
	assert.EqualValues(t, 1, f.Health().Failures())

	// Unhealthy writers are skipped until the cooldown passes.
	_, err = f.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
}

func TestFallback_EmptyTextIsFailure(t *testing.T) {
	f := summary.NewFallback(&stubWriter{text: "   "}, nil)

	text, err := f.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Contains(t, text, "Claim for auto policy POL-77")
	assert.False(t, f.Health().IsHealthy())
}

func TestHealthTracker_Cooldown(t *testing.T) {
	now := time.Now()
	h := summary.NewHealthTracker(10 * time.Second)
	h.SetNowFunc(func() time.Time { return now })

	h.RecordFailure()
	assert.False(t, h.IsHealthy())

	now = now.Add(11 * time.Second)
	assert.True(t, h.IsHealthy())

	h.RecordSuccess()
	assert.True(t, h.IsHealthy())
	assert.EqualValues(t, 1, h.Failures())
}

func TestHealthTracker_Metrics(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	h := summary.NewHealthTracker(10 * time.Second)
	h.SetNowFunc(func() time.Time { return now })

	m := h.Metrics()
	assert.True(t, m.Available)
	assert.Nil(t, m.LastFailureAt)

	h.RecordFailure()
	m = h.Metrics()
	assert.False(t, m.Available)
	assert.EqualValues(t, 1, m.FailureCount)
	require.NotNil(t, m.CooldownUntil)
	assert.Equal(t, now.Add(10*time.Second), *m.CooldownUntil)

	now = now.Add(11 * time.Second)
	m = h.Metrics()
	assert.True(t, m.Available)
	assert.Nil(t, m.CooldownUntil)
	require.NotNil(t, m.LastFailureAt)
}

func TestFallback_Metrics(t *testing.T) {
	f := summary.NewFallback(&stubWriter{err: errors.New("boom")}, nil)
	_, err := f.Summarize(context.Background(), testInput())
	require.NoError(t, err)

	m := f.Metrics()
	assert.Equal(t, "stub", m.Provider)
	assert.False(t, m.Available)
}

func TestNew(t *testing.T) {
	w, err := summary.New(summary.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, summary.ProviderTemplate, w.Name())

	_, err = summary.New(summary.Config{Provider: "carrier-pigeon"}, nil)
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeSummaryProviderInvalid))

	for _, p := range []string{summary.ProviderGoogle, summary.ProviderAnthropic, summary.ProviderOpenAI} {
		_, err = summary.New(summary.Config{Provider: p}, nil)
		require.Error(t, err, p)
		assert.True(t, cgerr.HasCode(err, cgerr.CodeSummaryProviderInvalid), p)
	}
}

func TestAnthropic_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "High-value auto claim."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	w, err := summary.NewAnthropic(summary.Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := w.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "High-value auto claim.", text)
}

func TestOpenAI_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4.1-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "High-value auto claim."}}]
		}`))
	}))
	defer srv.Close()

	w, err := summary.NewOpenAI(summary.Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := w.Summarize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "High-value auto claim.", text)
}

func TestFallback_RedactsUpstreamText(t *testing.T) {
	primary := &stubWriter{text: "ok"}
	f := summary.NewFallback(primary, nil).Redacting(scanner.Default())

	in := testInput()
	in.Claim.Description = "Laptop stolen, card 4111 1111 1111 1111 was in the bag"
	_, err := f.Summarize(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Laptop stolen, card [REDACTED] was in the bag", primary.last.Claim.Description)
	assert.Equal(t, "POL-77", primary.last.Claim.PolicyNumber)
	assert.Contains(t, in.Claim.Description, "4111", "caller's claim is left untouched")
}

type stubReplier struct {
	stubWriter
	lastReply summary.ReplyInput
}

func (s *stubReplier) Reply(_ context.Context, in summary.ReplyInput) (string, error) {
	s.calls++
	s.lastReply = in
	return s.text, s.err
}

func TestTemplate_ReplyForClaim(t *testing.T) {
	ctx := context.Background()
	draft := &store.Claim{ID: "clm-9", Status: store.StatusDraft}

	text, err := summary.Template{}.Reply(ctx, summary.ReplyInput{
		Claim:   draft,
		Missing: []string{"policy_number", "incident_date"},
		Message: "What else do you need?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Claim clm-9 is still a draft. Before submitting, add: policy_number, incident_date.", text)

	pending := &store.Claim{ID: "clm-9", Status: store.StatusPendingApproval, RiskLevel: store.RiskHigh}
	text, err = summary.Template{}.Reply(ctx, summary.ReplyInput{Claim: pending, Message: "Any news?"})
	require.NoError(t, err)
	assert.Equal(t, "Claim clm-9 is waiting for a human approver. Risk Level: HIGH.", text)
}

func TestTemplate_ReplyForGeneral(t *testing.T) {
	ctx := context.Background()

	text, err := summary.Template{}.Reply(ctx, summary.ReplyInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "You have no claims yet. Create a draft claim to get started.", text)

	text, err = summary.Template{}.Reply(ctx, summary.ReplyInput{Decider: true, Message: "anything for me?"})
	require.NoError(t, err)
	assert.Equal(t, "No claims are waiting for a decision.", text)

	text, err = summary.Template{}.Reply(ctx, summary.ReplyInput{
		Claims: []*store.Claim{
			{ID: "clm-1", Type: store.ClaimTypeAuto, Amount: 1200, Status: store.StatusApproved, RiskLevel: store.RiskLow},
			{ID: "clm-2", Type: store.ClaimTypeHealth, Amount: 300, Status: store.StatusDraft},
		},
		Message: "list my claims",
	})
	require.NoError(t, err)
	assert.Equal(t, "You have 2 claims:\n"+
		"- clm-1: auto claim for $1200.00, approved (risk LOW)\n"+
		"- clm-2: health claim for $300.00, still a draft", text)
}

func TestFallback_ReplyUsesReplier(t *testing.T) {
	primary := &stubReplier{stubWriter: stubWriter{text: "  Your claim is with an approver.  "}}
	f := summary.NewFallback(primary, nil)

	text, err := f.Reply(context.Background(), summary.ReplyInput{Message: "status?"})
	require.NoError(t, err)
	assert.Equal(t, "Your claim is with an approver.", text)
	assert.Equal(t, "status?", primary.lastReply.Message)
}

func TestFallback_ReplyTemplateOnFailure(t *testing.T) {
	ctx := context.Background()
	in := summary.ReplyInput{Message: "hello"}

	failing := &stubReplier{stubWriter: stubWriter{err: errors.New("quota exceeded")}}
	text, err := summary.NewFallback(failing, nil).Reply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "You have no claims yet. Create a draft claim to get started.", text)

	summarizeOnly := &stubWriter{text: "unused"}
	text, err = summary.NewFallback(summarizeOnly, nil).Reply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "You have no claims yet. Create a draft claim to get started.", text)
	assert.Zero(t, summarizeOnly.calls)
}

func TestFallback_RedactsReplyText(t *testing.T) {
	primary := &stubReplier{stubWriter: stubWriter{text: "ok"}}
	f := summary.NewFallback(primary, nil).Redacting(scanner.Default())

	history := []*store.Message{{SenderKind: store.SenderUser, Content: "my card is 4111 1111 1111 1111"}}
	_, err := f.Reply(context.Background(), summary.ReplyInput{
		History: history,
		Message: "card 4111 1111 1111 1111 was charged twice",
	})
	require.NoError(t, err)

	assert.Equal(t, "card [REDACTED] was charged twice", primary.lastReply.Message)
	assert.Equal(t, "my card is [REDACTED]", primary.lastReply.History[0].Content)
	assert.Contains(t, history[0].Content, "4111", "caller's history is left untouched")
}

func TestAnthropic_Reply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Your claim is under review."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	w, err := summary.NewAnthropic(summary.Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := w.Reply(context.Background(), summary.ReplyInput{
		Claim:   &store.Claim{ID: "clm-1", Status: store.StatusUnderAgentReview},
		Message: "Where is my claim?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your claim is under review.", text)
}
