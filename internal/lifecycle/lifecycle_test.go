// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

var (
	owner    = lifecycle.Actor{ID: "usr-1", Role: store.RoleUser}
	stranger = lifecycle.Actor{ID: "usr-2", Role: store.RoleUser}
	approver = lifecycle.Actor{ID: "apr-1", Role: store.RoleApprover}
	admin    = lifecycle.Actor{ID: "adm-1", Role: store.RoleAdmin}
	agent    = lifecycle.AgentActor
)

func claimIn(status store.ClaimStatus) *store.Claim {
	c := &store.Claim{ID: "c-1", OwnerID: "usr-1", Status: status}
	if status == store.StatusPendingApproval {
		c.Metadata.InterruptID = "cp-1"
		c.Metadata.InterruptReason = &store.InterruptReason{RiskLevel: store.RiskHigh, Summary: "s"}
	}
	return c
}

func TestApply_LegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from store.ClaimStatus
		ev   lifecycle.Event
		to   store.ClaimStatus
	}{
		{"submit", store.StatusDraft, lifecycle.Event{Trigger: lifecycle.TriggerSubmit, Actor: owner}, store.StatusUnderAgentReview},
		{"auto approve", store.StatusUnderAgentReview, lifecycle.Event{Trigger: lifecycle.TriggerAutoApprove, Actor: agent}, store.StatusApproved},
		{"escalate", store.StatusUnderAgentReview, lifecycle.Event{Trigger: lifecycle.TriggerEscalate, Actor: agent, CheckpointID: "cp-9"}, store.StatusPendingApproval},
		{"approve", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerApprove, Actor: approver, CheckpointID: "cp-1"}, store.StatusApproved},
		{"admin reject", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerReject, Actor: admin, CheckpointID: "cp-1", Reason: "fraud"}, store.StatusRejected},
		{"request info", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerRequestInfo, Actor: approver, CheckpointID: "cp-1", Reason: "receipts?"}, store.StatusNeedsMoreInfo},
		{"resubmit", store.StatusNeedsMoreInfo, lifecycle.Event{Trigger: lifecycle.TriggerResubmit, Actor: agent, CheckpointID: "cp-2"}, store.StatusPendingApproval},
	}

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := claimIn(tt.from)
			tr, err := lifecycle.Apply(c, tt.ev, now)
			require.NoError(t, err)
			assert.Equal(t, tt.to, c.Status)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)
			assert.Equal(t, string(tt.ev.Trigger), tr.Trigger)
			assert.Equal(t, tt.ev.Actor.ID, tr.ActorID)
			assert.Equal(t, now, tr.CreatedAt)
			assert.NotEmpty(t, tr.ID)

			// interrupt_id is set exactly while pending approval.
			assert.Equal(t, c.Status == store.StatusPendingApproval, c.Metadata.InterruptID != "")
			if c.Status != store.StatusPendingApproval {
				assert.Nil(t, c.Metadata.InterruptReason)
			}
		})
	}
}

func TestApply_EveryOtherPairIsIllegal(t *testing.T) {
	statuses := []store.ClaimStatus{
		store.StatusDraft, store.StatusUnderAgentReview, store.StatusPendingApproval,
		store.StatusNeedsMoreInfo, store.StatusApproved, store.StatusRejected,
	}
	triggers := []lifecycle.Trigger{
		lifecycle.TriggerSubmit, lifecycle.TriggerAutoApprove, lifecycle.TriggerEscalate,
		lifecycle.TriggerApprove, lifecycle.TriggerReject, lifecycle.TriggerRequestInfo, lifecycle.TriggerResubmit,
	}

	legal := 0
	for _, from := range statuses {
		for _, trig := range triggers {
			if _, ok := lifecycle.Next(from, trig); ok {
				legal++
				continue
			}
			c := claimIn(from)
			_, err := lifecycle.Apply(c, lifecycle.Event{Trigger: trig, Actor: admin, CheckpointID: "cp-x", Reason: "r"}, time.Now())
			require.Error(t, err, "%s --%s-->", from, trig)
			assert.True(t, cgerr.IsIllegalTransition(err))
			assert.Equal(t, from, c.Status, "status must not change")
			assert.Equal(t, string(from), cgerr.FieldsOf(err)["from_status"])
		}
	}
	assert.Equal(t, 7, legal)
}

func TestApply_TerminalStatesAcceptNothing(t *testing.T) {
	assert.Empty(t, lifecycle.Triggers(store.StatusApproved))
	assert.Empty(t, lifecycle.Triggers(store.StatusRejected))
	assert.Equal(t, []lifecycle.Trigger{lifecycle.TriggerApprove, lifecycle.TriggerReject, lifecycle.TriggerRequestInfo},
		lifecycle.Triggers(store.StatusPendingApproval))
}

func TestApply_Guards(t *testing.T) {
	tests := []struct {
		name    string
		from    store.ClaimStatus
		ev      lifecycle.Event
		invalid bool
	}{
		{"submit by stranger", store.StatusDraft, lifecycle.Event{Trigger: lifecycle.TriggerSubmit, Actor: stranger}, false},
		{"user approves", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerApprove, Actor: owner, CheckpointID: "cp-1"}, false},
		{"agent approves decision", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerApprove, Actor: agent, CheckpointID: "cp-1"}, false},
		{"user auto approves", store.StatusUnderAgentReview, lifecycle.Event{Trigger: lifecycle.TriggerAutoApprove, Actor: owner}, false},
		{"reject without reason", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerReject, Actor: approver, CheckpointID: "cp-1", Reason: "  "}, true},
		{"request info without question", store.StatusPendingApproval, lifecycle.Event{Trigger: lifecycle.TriggerRequestInfo, Actor: approver, CheckpointID: "cp-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := claimIn(tt.from)
			_, err := lifecycle.Apply(c, tt.ev, time.Now())
			require.Error(t, err)
			if tt.invalid {
				assert.True(t, cgerr.IsInvalidInput(err))
			} else {
				assert.True(t, cgerr.HasCode(err, cgerr.CodeClaimTransitionForbidden))
			}
			assert.Equal(t, tt.from, c.Status)
		})
	}
}

func TestApply_PendingRequiresCheckpoint(t *testing.T) {
	c := claimIn(store.StatusUnderAgentReview)
	_, err := lifecycle.Apply(c, lifecycle.Event{Trigger: lifecycle.TriggerEscalate, Actor: agent}, time.Now())
	require.Error(t, err)
	assert.True(t, cgerr.IsIllegalTransition(err))
	assert.Empty(t, c.Metadata.InterruptID)
}
