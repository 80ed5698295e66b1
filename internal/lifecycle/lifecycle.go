// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package lifecycle is the claim state machine. It validates a requested
// status change against the transition table and its guards, applies it to
// the claim, and returns the record to persist. It performs no I/O.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Trigger names the event that requests a transition.
type Trigger string

const (
	TriggerSubmit      Trigger = "submit"
	TriggerAutoApprove Trigger = "auto_approve"
	TriggerEscalate    Trigger = "escalate"
	TriggerApprove     Trigger = "approve"
	TriggerReject      Trigger = "reject"
	TriggerRequestInfo Trigger = "request_info"
	TriggerResubmit    Trigger = "resubmit"
)

// Actor is whoever causes the transition.
type Actor struct {
	ID   string
	Role store.Role
}

// AgentActor is the identity the automated review session acts under.
var AgentActor = Actor{ID: "agent", Role: store.RoleAgent}

// Event is one requested transition.
type Event struct {
	Trigger Trigger
	Actor   Actor
	Reason  string
	// CheckpointID is the checkpoint created (escalate, resubmit) or being
	// resolved (approve, reject, request_info) by this transition.
	CheckpointID string
}

type edge struct {
	from    store.ClaimStatus
	trigger Trigger
}

type rule struct {
	to    store.ClaimStatus
	guard func(c *store.Claim, ev Event) error
}

var table = map[edge]rule{
	{store.StatusDraft, TriggerSubmit}:                 {store.StatusUnderAgentReview, ownerOnly},
	{store.StatusUnderAgentReview, TriggerAutoApprove}: {store.StatusApproved, agentOnly},
	{store.StatusUnderAgentReview, TriggerEscalate}:    {store.StatusPendingApproval, checkpointCreated},
	{store.StatusPendingApproval, TriggerApprove}:      {store.StatusApproved, decider(false)},
	{store.StatusPendingApproval, TriggerReject}:       {store.StatusRejected, decider(true)},
	{store.StatusPendingApproval, TriggerRequestInfo}:  {store.StatusNeedsMoreInfo, decider(true)},
	{store.StatusNeedsMoreInfo, TriggerResubmit}:       {store.StatusPendingApproval, checkpointCreated},
}

// Next returns the target status for trigger from status, ignoring guards.
func Next(from store.ClaimStatus, trigger Trigger) (store.ClaimStatus, bool) {
	r, ok := table[edge{from, trigger}]
	return r.to, ok
}

// Triggers lists the triggers accepted in status, in a stable order.
func Triggers(from store.ClaimStatus) []Trigger {
	var out []Trigger
	for _, t := range []Trigger{TriggerSubmit, TriggerAutoApprove, TriggerEscalate,
		TriggerApprove, TriggerReject, TriggerRequestInfo, TriggerResubmit} {
		if _, ok := table[edge{from, t}]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Apply moves c along the edge selected by ev.Trigger. On success c.Status
// and the interrupt metadata are updated and the transition record is
// returned; on failure c is untouched.
//
// Entering PENDING_APPROVAL sets Metadata.InterruptID to ev.CheckpointID and
// leaving it clears the interrupt fields, so InterruptID is set exactly while
// the claim is pending approval.
func Apply(c *store.Claim, ev Event, now time.Time) (*store.Transition, error) {
	r, ok := table[edge{c.Status, ev.Trigger}]
	if !ok {
		return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal,
			fmt.Sprintf("cannot %s a claim in status %s", ev.Trigger, c.Status),
			cgerr.FieldClaimID(c.ID),
			cgerr.Field("from_status", string(c.Status)),
			cgerr.Field("trigger", string(ev.Trigger)),
		)
	}
	if err := r.guard(c, ev); err != nil {
		return nil, cgerr.With(err,
			cgerr.FieldClaimID(c.ID),
			cgerr.Field("from_status", string(c.Status)),
			cgerr.Field("to_status", string(r.to)),
			cgerr.Field("trigger", string(ev.Trigger)),
		)
	}

	from := c.Status
	c.Status = r.to
	switch {
	case r.to == store.StatusPendingApproval:
		c.Metadata.InterruptID = ev.CheckpointID
	case from == store.StatusPendingApproval:
		c.Metadata.InterruptID = ""
		c.Metadata.InterruptReason = nil
	}

	return &store.Transition{
		ID:        uuid.NewString(),
		ClaimID:   c.ID,
		From:      from,
		To:        r.to,
		Trigger:   string(ev.Trigger),
		ActorID:   ev.Actor.ID,
		Reason:    ev.Reason,
		CreatedAt: now,
	}, nil
}

func ownerOnly(c *store.Claim, ev Event) error {
	if ev.Actor.ID == "" || ev.Actor.ID != c.OwnerID {
		return cgerr.New(cgerr.CodeClaimTransitionForbidden, "only the claim owner can submit it",
			cgerr.FieldUserID(ev.Actor.ID))
	}
	return nil
}

func agentOnly(_ *store.Claim, ev Event) error {
	if ev.Actor.Role != store.RoleAgent {
		return cgerr.New(cgerr.CodeClaimTransitionForbidden, "only the review agent can auto-approve",
			cgerr.FieldUserID(ev.Actor.ID))
	}
	return nil
}

func checkpointCreated(_ *store.Claim, ev Event) error {
	if ev.Actor.Role != store.RoleAgent {
		return cgerr.New(cgerr.CodeClaimTransitionForbidden, "only the review agent can request approval",
			cgerr.FieldUserID(ev.Actor.ID))
	}
	if ev.CheckpointID == "" {
		return cgerr.New(cgerr.CodeClaimTransitionIllegal, "pending approval requires a checkpoint")
	}
	return nil
}

func decider(reasonRequired bool) func(*store.Claim, Event) error {
	return func(_ *store.Claim, ev Event) error {
		if ev.Actor.Role != store.RoleApprover && ev.Actor.Role != store.RoleAdmin {
			return cgerr.New(cgerr.CodeClaimTransitionForbidden, "approver or admin role required",
				cgerr.FieldUserID(ev.Actor.ID), cgerr.Field("role", string(ev.Actor.Role)))
		}
		if ev.CheckpointID == "" {
			return cgerr.New(cgerr.CodeClaimTransitionIllegal, "decision requires an unresolved checkpoint")
		}
		if reasonRequired && strings.TrimSpace(ev.Reason) == "" {
			return cgerr.New(cgerr.CodeClaimValidateInvalid, fmt.Sprintf("%s requires a reason", ev.Trigger))
		}
		return nil
	}
}
