// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package audit is the read-only projection over tool-call audit entries,
// human decisions and status transitions. It rebuilds the full trail of a
// claim and replays it for compliance review.
package audit

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/sigil-dev/claimsgate/internal/codec"
	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// EventKind distinguishes the three record types in a trail.
type EventKind string

const (
	KindToolCall   EventKind = "tool_call"
	KindDecision   EventKind = "decision"
	KindTransition EventKind = "transition"
)

// rank orders records sharing a timestamp.
func (k EventKind) rank() int {
	switch k {
	case KindToolCall:
		return 0
	case KindDecision:
		return 1
	default:
		return 2
	}
}

// Event is one entry in a claim's trail.
type Event struct {
	Kind EventKind `json:"kind" yaml:"kind"`
	ID   string    `json:"id" yaml:"id"`
	At   time.Time `json:"at" yaml:"at"`

	// Tool calls.
	Tool    string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Status  string         `json:"status,omitempty" yaml:"status,omitempty"`
	Attempt int            `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	Input   map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	Output  map[string]any `json:"output,omitempty" yaml:"output,omitempty"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`

	// Decisions.
	CheckpointID string `json:"checkpoint_id,omitempty" yaml:"checkpoint_id,omitempty"`
	Action       string `json:"action,omitempty" yaml:"action,omitempty"`

	// Decisions and transitions.
	ActorID string `json:"actor_id,omitempty" yaml:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Transitions.
	From    string `json:"from,omitempty" yaml:"from,omitempty"`
	To      string `json:"to,omitempty" yaml:"to,omitempty"`
	Trigger string `json:"trigger,omitempty" yaml:"trigger,omitempty"`

	seq int64
}

// Trail is the ordered history of one claim.
type Trail struct {
	ClaimID string            `json:"claim_id" yaml:"claim_id"`
	Status  store.ClaimStatus `json:"status" yaml:"status"`
	Events  []Event           `json:"events" yaml:"events"`
}

// Log reads trails from a store.
type Log struct {
	store store.Store
}

func New(s store.Store) *Log {
	return &Log{store: s}
}

// Trail merges the claim's audit entries, decisions and transitions ordered
// by time, then kind, then sequence.
func (l *Log) Trail(ctx context.Context, claimID string) (*Trail, error) {
	claim, err := l.store.Claims().Get(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, cgerr.CodeClaimGetNotFound, "", "claim "+claimID, cgerr.FieldClaimID(claimID))
	}

	entries, err := l.store.Audit().ListByClaim(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, "", "", "listing audit entries", cgerr.FieldClaimID(claimID))
	}
	decisions, err := l.store.Decisions().ListByClaim(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, "", "", "listing decisions", cgerr.FieldClaimID(claimID))
	}
	transitions, err := l.store.Transitions().ListByClaim(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, "", "", "listing transitions", cgerr.FieldClaimID(claimID))
	}

	events := make([]Event, 0, len(entries)+len(decisions)+len(transitions))
	for _, e := range entries {
		events = append(events, Event{
			Kind:    KindToolCall,
			ID:      e.ID,
			At:      e.CreatedAt.UTC(),
			Tool:    e.ToolName,
			Status:  string(e.Status),
			Attempt: e.Attempt,
			Input:   e.Input,
			Output:  e.Output,
			Error:   e.Error,
			seq:     e.Seq,
		})
	}
	for i, d := range decisions {
		events = append(events, Event{
			Kind:         KindDecision,
			ID:           d.ID,
			At:           d.CreatedAt.UTC(),
			CheckpointID: d.CheckpointID,
			Action:       string(d.Action),
			ActorID:      d.ApproverID,
			Reason:       d.Reason,
			seq:          int64(i),
		})
	}
	for _, t := range transitions {
		events = append(events, Event{
			Kind:    KindTransition,
			ID:      t.ID,
			At:      t.CreatedAt.UTC(),
			From:    string(t.From),
			To:      string(t.To),
			Trigger: t.Trigger,
			ActorID: t.ActorID,
			Reason:  t.Reason,
			seq:     t.Seq,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		if a.Kind != b.Kind {
			return a.Kind.rank() < b.Kind.rank()
		}
		return a.seq < b.seq
	})

	return &Trail{ClaimID: claimID, Status: claim.Status, Events: events}, nil
}

// Transitions returns only the transition events, in sequence order.
func (t *Trail) Transitions() []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Kind == KindTransition {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Replay folds the trail's transitions from DRAFT, checking every step is an
// edge of the lifecycle table, and returns the resulting status. It fails if
// the result differs from the stored status.
func Replay(t *Trail) (store.ClaimStatus, error) {
	status := store.StatusDraft
	for i, e := range t.Transitions() {
		from := store.ClaimStatus(e.From)
		if from != status {
			return status, cgerr.New(cgerr.CodeAuditReplayInvalid,
				fmt.Sprintf("transition %d starts at %s but the claim was %s", i, from, status),
				cgerr.FieldClaimID(t.ClaimID))
		}
		next, ok := lifecycle.Next(from, lifecycle.Trigger(e.Trigger))
		if !ok || string(next) != e.To {
			return status, cgerr.New(cgerr.CodeAuditReplayInvalid,
				fmt.Sprintf("transition %d (%s: %s -> %s) is not a lifecycle edge", i, e.Trigger, e.From, e.To),
				cgerr.FieldClaimID(t.ClaimID))
		}
		status = next
	}
	if status != t.Status {
		return status, cgerr.New(cgerr.CodeAuditReplayInvalid,
			fmt.Sprintf("replay ends at %s but the claim is %s", status, t.Status),
			cgerr.FieldClaimID(t.ClaimID))
	}
	return status, nil
}

// Digest is the hex BLAKE3 hash of the trail's deterministic CBOR encoding.
func Digest(t *Trail) (string, error) {
	data, err := codec.Marshal(t)
	if err != nil {
		return "", cgerr.Wrap(err, cgerr.CodeAuditDigestFailure, "encoding trail", cgerr.FieldClaimID(t.ClaimID))
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
