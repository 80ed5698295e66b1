// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Review phases recorded in continuations.
const (
	PhaseReview   = "review"
	PhaseResubmit = "resubmit"
)

// Outcome is the result of an automated review run.
type Outcome struct {
	Status         store.ClaimStatus
	RiskLevel      store.RiskLevel
	FraudRiskScore float64
	Summary        string
	Missing        []string
	// CheckpointID is set when the claim was handed to an approver.
	CheckpointID string
}

// Reviewer is the review session. It drives the tools in a fixed order and
// resumes from checkpoints with the approver's decision.
type Reviewer struct {
	store      store.Store
	dispatcher *Dispatcher
	summarizer summary.Writer
	clock      func() time.Time
	logger     *slog.Logger
}

// Review runs the automated review of a claim that is UNDER_AGENT_REVIEW
// (first pass) or NEEDS_MORE_INFO (resubmission). The caller holds the
// claim lock.
func (r *Reviewer) Review(ctx context.Context, claimID string) (*Outcome, error) {
	claim, err := r.store.Claims().Get(ctx, claimID)
	if err != nil {
		return nil, claimStoreErr(err, claimID)
	}

	var phase string
	switch claim.Status {
	case store.StatusUnderAgentReview:
		phase = PhaseReview
	case store.StatusNeedsMoreInfo:
		phase = PhaseResubmit
	default:
		return nil, cgerr.New(cgerr.CodeClaimTransitionIllegal, "claim is not awaiting review",
			cgerr.FieldClaimID(claimID), cgerr.FieldStatus(string(claim.Status)))
	}

	args := map[string]any{"claim_id": claimID}
	validated, err := r.dispatcher.Invoke(ctx, r.call(claimID, ToolValidate, args, phase))
	if err != nil {
		return nil, err
	}
	missing := stringSlice(validated.Output["missing_fields"])

	assessed, err := r.dispatcher.Invoke(ctx, r.call(claimID, ToolAssessRisk, args, phase))
	if err != nil {
		return nil, err
	}
	assessment := risk.Assessment{
		Level:   store.RiskLevel(stringArg(assessed.Output, "risk_level")),
		Factors: stringSlice(assessed.Output["factors"]),
	}
	assessment.Score, _ = assessed.Output["fraud_risk_score"].(float64)

	if phase == PhaseReview && len(missing) == 0 && !assessment.RequiresApproval() {
		return r.autoApprove(ctx, claimID, assessment)
	}
	return r.escalate(ctx, claimID, phase, assessment, missing)
}

func (r *Reviewer) autoApprove(ctx context.Context, claimID string, a risk.Assessment) (*Outcome, error) {
	var out Outcome
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		claim, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return claimStoreErr(err, claimID)
		}
		now := r.clock()
		if _, err := applyTransition(ctx, tx, claim, lifecycle.Event{
			Trigger: lifecycle.TriggerAutoApprove,
			Actor:   lifecycle.AgentActor,
			Reason:  "complete claim assessed as low risk",
		}, now); err != nil {
			return err
		}

		text, _ := summary.Template{}.Summarize(ctx, summary.Input{Claim: claim, Assessment: a})
		msg := &store.Message{
			ClaimID:    claimID,
			SenderKind: store.SenderAgent,
			SenderID:   lifecycle.AgentActor.ID,
			Content:    "Claim approved automatically. " + text,
			Payload:    map[string]any{"type": "status", "status": string(store.StatusApproved)},
		}
		if err := appendMessage(ctx, tx, msg, now); err != nil {
			return err
		}
		if err := saveSession(ctx, tx, claimID, store.SessionStatusClosed, "", msg.Seq, now); err != nil {
			return err
		}

		out = Outcome{
			Status:         claim.Status,
			RiskLevel:      claim.RiskLevel,
			FraudRiskScore: claim.FraudRiskScore,
			Summary:        text,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "claim approved automatically",
		slog.String("claim_id", claimID),
		slog.String("risk_level", string(a.Level)),
	)
	return &out, nil
}

func (r *Reviewer) escalate(ctx context.Context, claimID, phase string, a risk.Assessment, missing []string) (*Outcome, error) {
	claim, err := r.store.Claims().Get(ctx, claimID)
	if err != nil {
		return nil, claimStoreErr(err, claimID)
	}

	text, err := r.summarizer.Summarize(ctx, summary.Input{Claim: claim, Assessment: a, Missing: missing})
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeSummaryUpstreamFailure, "writing approval summary",
			cgerr.FieldClaimID(claimID))
	}

	res, err := r.dispatcher.Invoke(ctx, r.call(claimID, ToolRequestApproval, map[string]any{
		"claim_id":       claimID,
		"summary":        text,
		"risk_level":     string(a.Level),
		"missing_fields": missing,
	}, phase))
	if err != nil {
		return nil, err
	}
	if !res.Suspended() {
		return nil, cgerr.New(cgerr.CodeAgentToolExecutionFailure, "approval request did not suspend",
			cgerr.FieldClaimID(claimID), cgerr.FieldTool(ToolRequestApproval))
	}

	claim, err = r.store.Claims().Get(ctx, claimID)
	if err != nil {
		return nil, claimStoreErr(err, claimID)
	}
	return &Outcome{
		Status:         claim.Status,
		RiskLevel:      claim.RiskLevel,
		FraudRiskScore: claim.FraudRiskScore,
		Summary:        text,
		Missing:        missing,
		CheckpointID:   res.Checkpoint.ID,
	}, nil
}

// Resume re-enters the suspended tool with the decision as its return
// value and applies the transition the decision calls for. It runs inside
// the resolving transaction.
func (r *Reviewer) Resume(ctx context.Context, tx store.Tx, cp *store.Checkpoint, cont Continuation, d *store.Decision, actor lifecycle.Actor) error {
	claim, err := tx.Claims().Get(ctx, cp.ClaimID)
	if err != nil {
		return claimStoreErr(err, cp.ClaimID)
	}
	claim.AssignedApproverID = actor.ID
	if err := tx.Claims().Update(ctx, claim); err != nil {
		return claimStoreErr(err, claim.ID)
	}

	if _, err := r.dispatcher.InvokeTx(ctx, tx, Call{
		ClaimID:      cp.ClaimID,
		Tool:         cont.ToolName,
		Args:         cont.Args,
		Actor:        actor,
		Phase:        cont.Phase,
		CheckpointID: cp.ID,
		Decision:     d,
	}); err != nil {
		return err
	}

	switch d.Action {
	case store.ActionApprove, store.ActionReject:
		claim, err := tx.Claims().Get(ctx, cp.ClaimID)
		if err != nil {
			return claimStoreErr(err, cp.ClaimID)
		}
		trigger := lifecycle.TriggerApprove
		if d.Action == store.ActionReject {
			trigger = lifecycle.TriggerReject
		}
		if _, err := applyTransition(ctx, tx, claim, lifecycle.Event{
			Trigger:      trigger,
			Actor:        actor,
			Reason:       d.Reason,
			CheckpointID: cp.ID,
		}, r.clock()); err != nil {
			return err
		}
	case store.ActionRequestInfo:
		if _, err := r.dispatcher.InvokeTx(ctx, tx, Call{
			ClaimID:      cp.ClaimID,
			Tool:         ToolRequestMoreInfo,
			Args:         map[string]any{"claim_id": cp.ClaimID, "question": d.Reason},
			Actor:        actor,
			Phase:        cont.Phase,
			CheckpointID: cp.ID,
		}); err != nil {
			return err
		}
	default:
		return cgerr.New(cgerr.CodeClaimValidateInvalid, fmt.Sprintf("unknown decision action %q", d.Action),
			cgerr.FieldCheckpointID(cp.ID))
	}

	claim, err = tx.Claims().Get(ctx, cp.ClaimID)
	if err != nil {
		return claimStoreErr(err, cp.ClaimID)
	}
	position, err := lastPosition(ctx, tx, cp.ClaimID)
	if err != nil {
		return err
	}
	status := store.SessionStatusActive
	if claim.Status.Terminal() {
		status = store.SessionStatusClosed
	}
	return saveSession(ctx, tx, cp.ClaimID, status, "", position, r.clock())
}

func (r *Reviewer) call(claimID, tool string, args map[string]any, phase string) Call {
	return Call{
		ClaimID: claimID,
		Tool:    tool,
		Args:    args,
		Actor:   lifecycle.AgentActor,
		Phase:   phase,
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
