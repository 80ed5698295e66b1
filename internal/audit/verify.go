// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package audit

import (
	"context"
	"fmt"

	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// decisionTrigger maps a decision to the transition it must produce.
var decisionTrigger = map[string]string{
	string(store.ActionApprove):     "approve",
	string(store.ActionReject):      "reject",
	string(store.ActionRequestInfo): "request_info",
}

// Report summarises a verified trail.
type Report struct {
	ClaimID     string            `json:"claim_id" yaml:"claim_id"`
	Status      store.ClaimStatus `json:"status" yaml:"status"`
	Replayed    store.ClaimStatus `json:"replayed_status" yaml:"replayed_status"`
	ToolCalls   int               `json:"tool_calls" yaml:"tool_calls"`
	Decisions   int               `json:"decisions" yaml:"decisions"`
	Transitions int               `json:"transitions" yaml:"transitions"`
	Digest      string            `json:"digest" yaml:"digest"`
	Valid       bool              `json:"valid" yaml:"valid"`
	Problems    []string          `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// Verify replays the claim's trail and cross-checks decisions against the
// transitions they caused. Problems are reported, not returned as errors;
// the error is reserved for failures to read the trail.
func (l *Log) Verify(ctx context.Context, claimID string) (*Report, error) {
	t, err := l.Trail(ctx, claimID)
	if err != nil {
		return nil, err
	}

	r := &Report{ClaimID: claimID, Status: t.Status}
	decided := map[string]int{}
	triggered := map[string]int{}
	for _, e := range t.Events {
		switch e.Kind {
		case KindToolCall:
			r.ToolCalls++
		case KindDecision:
			r.Decisions++
			decided[decisionTrigger[e.Action]]++
		case KindTransition:
			r.Transitions++
			triggered[e.Trigger]++
		}
	}

	replayed, err := Replay(t)
	r.Replayed = replayed
	if err != nil {
		r.Problems = append(r.Problems, err.Error())
	}
	for _, trig := range []string{"approve", "reject", "request_info"} {
		if decided[trig] != triggered[trig] {
			r.Problems = append(r.Problems,
				fmt.Sprintf("%d %s decisions but %d %s transitions", decided[trig], trig, triggered[trig], trig))
		}
	}

	if r.Digest, err = Digest(t); err != nil {
		return nil, cgerr.With(err, cgerr.FieldClaimID(claimID))
	}
	r.Valid = len(r.Problems) == 0
	return r, nil
}
