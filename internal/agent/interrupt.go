// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/tracing"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// SuspendRequest describes the call being parked.
type SuspendRequest struct {
	// Claim is the claim as loaded in the suspending transaction. When nil
	// it is read from the transaction.
	Claim    *store.Claim
	ClaimID  string
	ToolName string
	Args     map[string]any
	Reason   store.InterruptReason
	Phase    string
}

// Resumer re-enters the review session with a human decision. It runs in
// the resolving transaction.
type Resumer interface {
	Resume(ctx context.Context, tx store.Tx, cp *store.Checkpoint, cont Continuation, d *store.Decision, actor lifecycle.Actor) error
}

type failureRecorder interface {
	RecordFailure(ctx context.Context, err error)
}

// Resolution is a human decision on a checkpoint.
type Resolution struct {
	Action store.DecisionAction
	Reason string
	Actor  lifecycle.Actor
}

// ResolveResult is the committed outcome of Resolve.
type ResolveResult struct {
	Checkpoint *store.Checkpoint
	Decision   *store.Decision
	Claim      *store.Claim
}

// PendingApproval is an open checkpoint with its claim.
type PendingApproval struct {
	Checkpoint *store.Checkpoint
	Claim      *store.Claim
	Overdue    bool
}

// InterruptController turns approval requests into durable checkpoints and
// resolves them exactly once.
type InterruptController struct {
	store      store.Store
	locks      *ClaimLocks
	resumer    Resumer
	failures   failureRecorder
	ttl        time.Duration
	maxRetries int
	clock      func() time.Time
	logger     *slog.Logger
}

// Suspend persists a checkpoint for req and moves the claim to
// PENDING_APPROVAL inside tx. It returns without waiting for the decision.
func (c *InterruptController) Suspend(ctx context.Context, tx store.Tx, req SuspendRequest) (cp *store.Checkpoint, err error) {
	claimID := req.ClaimID
	if req.Claim != nil {
		claimID = req.Claim.ID
	}
	ctx, span := tracing.Start(ctx, "interrupt.suspend",
		attribute.String("claim_id", claimID),
		attribute.String("tool", req.ToolName),
	)
	defer func() { tracing.End(span, err) }()

	claim := req.Claim
	if claim == nil {
		if claim, err = tx.Claims().Get(ctx, claimID); err != nil {
			return nil, claimStoreErr(err, claimID)
		}
	}

	open, err := tx.Checkpoints().Open(ctx, claim.ID)
	switch {
	case err == nil:
		return nil, cgerr.New(cgerr.CodeCheckpointDuplicate, "claim already has an unresolved checkpoint",
			cgerr.FieldClaimID(claim.ID), cgerr.FieldCheckpointID(open.ID))
	case !errors.Is(err, store.ErrNotFound):
		return nil, persistenceErr(err, "looking up open checkpoint", cgerr.FieldClaimID(claim.ID))
	}

	position, err := lastPosition(ctx, tx, claim.ID)
	if err != nil {
		return nil, err
	}

	data, err := EncodeContinuation(Continuation{
		ClaimID:  claim.ID,
		ToolName: req.ToolName,
		Args:     req.Args,
		Position: position,
		Phase:    req.Phase,
	})
	if err != nil {
		return nil, err
	}

	now := c.clock()
	cp = &store.Checkpoint{
		ID:           uuid.NewString(),
		ClaimID:      claim.ID,
		ToolName:     req.ToolName,
		Continuation: data,
		CreatedAt:    now,
	}
	if c.ttl > 0 {
		expires := now.Add(c.ttl)
		cp.ExpiresAt = &expires
	}
	if err := tx.Checkpoints().Create(ctx, cp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, cgerr.Wrap(err, cgerr.CodeCheckpointDuplicate, "claim already has an unresolved checkpoint",
				cgerr.FieldClaimID(claim.ID))
		}
		return nil, persistenceErr(err, "creating checkpoint", cgerr.FieldClaimID(claim.ID))
	}

	trigger := lifecycle.TriggerEscalate
	if claim.Status == store.StatusNeedsMoreInfo {
		trigger = lifecycle.TriggerResubmit
	}
	reason := req.Reason
	before := *claim
	claim.Metadata.InterruptReason = &reason
	if _, err := applyTransition(ctx, tx, claim, lifecycle.Event{
		Trigger:      trigger,
		Actor:        lifecycle.AgentActor,
		Reason:       reason.Summary,
		CheckpointID: cp.ID,
	}, now); err != nil {
		*claim = before
		return nil, err
	}

	if err := saveSession(ctx, tx, claim.ID, store.SessionStatusSuspended, req.ToolName, position, now); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "claim suspended for approval",
		slog.String("claim_id", claim.ID),
		slog.String("checkpoint_id", cp.ID),
		slog.String("risk_level", string(reason.RiskLevel)),
	)
	return cp, nil
}

// Resolve applies a human decision to checkpointID. Exactly one call per
// checkpoint succeeds; the rest fail with AlreadyResolved. The checkpoint,
// the decision, the resumed tool call and the claim status commit together.
func (c *InterruptController) Resolve(ctx context.Context, checkpointID string, r Resolution) (res *ResolveResult, err error) {
	ctx, span := tracing.Start(ctx, "interrupt.resolve",
		attribute.String("checkpoint_id", checkpointID),
		attribute.String("action", string(r.Action)),
	)
	defer func() { tracing.End(span, err) }()

	if !r.Action.Valid() {
		return nil, cgerr.New(cgerr.CodeClaimValidateInvalid, "unknown decision action "+string(r.Action),
			cgerr.FieldCheckpointID(checkpointID))
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" && r.Action != store.ActionApprove {
		return nil, cgerr.New(cgerr.CodeClaimValidateInvalid, "a reason is required to "+strings.ToLower(string(r.Action)),
			cgerr.FieldCheckpointID(checkpointID))
	}

	cp, err := c.store.Checkpoints().Get(ctx, checkpointID)
	if err != nil {
		return nil, checkpointStoreErr(err, checkpointID)
	}

	unlock := c.locks.Lock(cp.ClaimID)
	defer unlock()

	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		res, err = c.resolveOnce(ctx, cp, r)
		if err == nil {
			c.logger.InfoContext(ctx, "checkpoint resolved",
				slog.String("claim_id", cp.ClaimID),
				slog.String("checkpoint_id", cp.ID),
				slog.String("action", string(r.Action)),
				slog.String("status", string(res.Claim.Status)),
			)
			return res, nil
		}

		c.failures.RecordFailure(ctx, err)
		err = unwrapToolError(err)
		if !cgerr.IsAgentExecution(err) || ctx.Err() != nil {
			break
		}
		c.logger.WarnContext(ctx, "resume failed, retrying",
			slog.String("checkpoint_id", cp.ID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	return nil, err
}

func (c *InterruptController) resolveOnce(ctx context.Context, cp *store.Checkpoint, r Resolution) (*ResolveResult, error) {
	var res ResolveResult
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		now := c.clock()
		resolved, err := tx.Checkpoints().Resolve(ctx, cp.ID, r.Action, now)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				fields := []cgerr.Attr{cgerr.FieldCheckpointID(cp.ID), cgerr.FieldClaimID(cp.ClaimID)}
				if resolved != nil && resolved.Outcome != "" {
					fields = append(fields, cgerr.Field("outcome", string(resolved.Outcome)))
				}
				return cgerr.New(cgerr.CodeCheckpointAlreadyResolved, "checkpoint already resolved", fields...)
			}
			return checkpointStoreErr(err, cp.ID)
		}

		decision := &store.Decision{
			ID:           uuid.NewString(),
			ClaimID:      cp.ClaimID,
			CheckpointID: cp.ID,
			ApproverID:   r.Actor.ID,
			Action:       r.Action,
			Reason:       r.Reason,
			CreatedAt:    now,
		}
		if err := tx.Decisions().Create(ctx, decision); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return cgerr.Wrap(err, cgerr.CodeCheckpointAlreadyResolved, "checkpoint already decided",
					cgerr.FieldCheckpointID(cp.ID))
			}
			return persistenceErr(err, "recording decision", cgerr.FieldCheckpointID(cp.ID))
		}

		cont, err := DecodeContinuation(resolved.Continuation)
		if err != nil {
			return cgerr.With(err, cgerr.FieldCheckpointID(cp.ID))
		}
		if cont.ClaimID != cp.ClaimID {
			return cgerr.New(cgerr.CodeContinuationDecodeInvalid, "continuation belongs to another claim",
				cgerr.FieldCheckpointID(cp.ID), cgerr.FieldClaimID(cont.ClaimID))
		}

		if err := c.resumer.Resume(ctx, tx, resolved, cont, decision, r.Actor); err != nil {
			return err
		}

		claim, err := tx.Claims().Get(ctx, cp.ClaimID)
		if err != nil {
			return claimStoreErr(err, cp.ClaimID)
		}
		res = ResolveResult{Checkpoint: resolved, Decision: decision, Claim: claim}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Pending lists unresolved checkpoints, oldest first.
func (c *InterruptController) Pending(ctx context.Context, opts store.ListOpts) ([]PendingApproval, error) {
	cps, err := c.store.Checkpoints().ListOpen(ctx, opts)
	if err != nil {
		return nil, persistenceErr(err, "listing open checkpoints")
	}

	now := c.clock()
	out := make([]PendingApproval, 0, len(cps))
	for _, cp := range cps {
		claim, err := c.store.Claims().Get(ctx, cp.ClaimID)
		if err != nil {
			return nil, claimStoreErr(err, cp.ClaimID)
		}
		out = append(out, PendingApproval{
			Checkpoint: cp,
			Claim:      claim,
			Overdue:    cp.ExpiresAt != nil && now.After(*cp.ExpiresAt),
		})
	}
	return out, nil
}

func lastPosition(ctx context.Context, tx store.Tx, claimID string) (int64, error) {
	msgs, err := tx.Messages().List(ctx, claimID)
	if err != nil {
		return 0, persistenceErr(err, "reading conversation", cgerr.FieldClaimID(claimID))
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	return msgs[len(msgs)-1].Seq, nil
}
