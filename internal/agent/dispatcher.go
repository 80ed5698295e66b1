// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/tracing"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Call is one tool invocation request.
type Call struct {
	ClaimID string
	Tool    string
	Args    map[string]any
	Actor   lifecycle.Actor
	Phase   string

	// CheckpointID and Decision are set when a suspended call is re-entered
	// with the human decision as its return value.
	CheckpointID string
	Decision     *store.Decision
}

// Resumed reports whether the call carries a decision from a checkpoint.
func (c *Call) Resumed() bool {
	return c.Decision != nil
}

// Result is what the review session receives back from a call.
type Result struct {
	Tool    string
	Output  map[string]any
	AuditID string
	// Checkpoint is set when the interceptor chain suspended the call.
	Checkpoint *store.Checkpoint
}

// Suspended reports whether the call ended in a checkpoint.
func (r *Result) Suspended() bool {
	return r != nil && r.Checkpoint != nil
}

// ToolError is returned for a failed call. It carries the audit entry that
// must be appended once the failed transaction has rolled back.
type ToolError struct {
	Entry *store.AgentAuditEntry
	Err   error
}

func (e *ToolError) Error() string { return e.Err.Error() }
func (e *ToolError) Unwrap() error { return e.Err }

// Suspender persists a checkpoint for a suspended call.
type Suspender interface {
	Suspend(ctx context.Context, tx store.Tx, req SuspendRequest) (*store.Checkpoint, error)
}

// DispatcherConfig holds dependencies for Dispatcher.
type DispatcherConfig struct {
	Store        store.Store
	Registry     *Registry
	Interceptors []Interceptor
	Suspender    Suspender
	Timeout      time.Duration
	MaxRetries   int
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Dispatcher runs tool calls. Every call runs in one transaction and leaves
// exactly one audit entry: appended inside the transaction on success, or
// after rollback on failure.
type Dispatcher struct {
	store        store.Store
	registry     *Registry
	interceptors []Interceptor
	suspender    Suspender
	timeout      time.Duration
	maxRetries   int
	logger       *slog.Logger
	clock        func() time.Time

	// auditFailCount tracks consecutive out-of-transaction audit append
	// failures for escalating log levels. It resets on success.
	auditFailCount atomic.Int64
	// auditFailTotal never resets.
	auditFailTotal atomic.Int64
}

// NewDispatcher creates a Dispatcher. Store, Registry and Suspender are required.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Store == nil || cfg.Registry == nil || cfg.Suspender == nil {
		return nil, cgerr.New(cgerr.CodeAgentToolInputInvalid, "dispatcher needs a store, a registry and a suspender")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Dispatcher{
		store:        cfg.Store,
		registry:     cfg.Registry,
		interceptors: cfg.Interceptors,
		suspender:    cfg.Suspender,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		logger:       cfg.Logger,
		clock:        cfg.Clock,
	}, nil
}

// Invoke runs call in its own transaction. Agent execution failures are
// retried up to MaxRetries times; each attempt is audited separately.
func (d *Dispatcher) Invoke(ctx context.Context, call Call) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries+1; attempt++ {
		var res *Result
		err := d.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			res, err = d.invoke(ctx, tx, call, attempt)
			return err
		})
		if err == nil {
			return res, nil
		}

		d.RecordFailure(ctx, err)
		lastErr = unwrapToolError(err)
		if !cgerr.IsAgentExecution(lastErr) || ctx.Err() != nil {
			break
		}
		d.logger.WarnContext(ctx, "tool call failed, retrying",
			slog.String("tool", call.Tool),
			slog.String("claim_id", call.ClaimID),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr),
		)
	}
	return nil, lastErr
}

// InvokeTx runs call inside the caller's transaction without retrying. On
// failure the caller must roll back and then pass the error to RecordFailure.
func (d *Dispatcher) InvokeTx(ctx context.Context, tx store.Tx, call Call) (*Result, error) {
	return d.invoke(ctx, tx, call, 1)
}

// RecordFailure appends the audit entries carried by err. It is a no-op for
// errors that did not come from a tool call.
func (d *Dispatcher) RecordFailure(ctx context.Context, err error) {
	var te *ToolError
	if !errors.As(err, &te) || te.Entry == nil {
		return
	}

	if appendErr := d.store.Audit().Append(context.WithoutCancel(ctx), te.Entry); appendErr != nil {
		consecutive := d.auditFailCount.Add(1)
		cumulative := d.auditFailTotal.Add(1)
		attrs := []slog.Attr{
			slog.Any("error", appendErr),
			slog.String("tool", te.Entry.ToolName),
			slog.String("claim_id", te.Entry.ClaimID),
			slog.Int64("consecutive_failures", consecutive),
		}
		if consecutive >= auditLogEscalationThreshold {
			attrs = append(attrs, slog.Int64("total_failures", cumulative))
		}
		logAuditFailure(ctx, d.logger, consecutive, "audit store append failed", attrs...)
		return
	}
	d.auditFailCount.Store(0)
}

func (d *Dispatcher) invoke(ctx context.Context, tx store.Tx, call Call, attempt int) (res *Result, err error) {
	ctx, span := tracing.Start(ctx, "agent.tool",
		attribute.String("tool", call.Tool),
		attribute.String("claim_id", call.ClaimID),
		attribute.Int("attempt", attempt),
		attribute.Bool("resumed", call.Resumed()),
	)
	defer func() { tracing.End(span, err) }()

	entry := &store.AgentAuditEntry{
		ID:       uuid.NewString(),
		ClaimID:  call.ClaimID,
		ToolName: call.Tool,
		Input:    auditInput(call),
		Attempt:  attempt,
	}
	fail := func(cause error) error {
		entry.Status = store.AuditStatusFailed
		entry.Error = cause.Error()
		entry.CreatedAt = d.clock()
		return &ToolError{Entry: entry, Err: cause}
	}

	tool, ok := d.registry.Lookup(call.Tool)
	if !ok {
		return nil, fail(cgerr.New(cgerr.CodeAgentToolNotFound, "unknown tool "+call.Tool, cgerr.FieldTool(call.Tool)))
	}
	if err := checkInput(tool.Definition, call.Args); err != nil {
		return nil, fail(err)
	}

	claim, err := tx.Claims().Get(ctx, call.ClaimID)
	if err != nil {
		return nil, fail(claimStoreErr(err, call.ClaimID))
	}
	entry.Input["claim_status"] = string(claim.Status)

	env := &Env{Tx: tx, Claim: claim, Call: &call, Now: d.clock()}
	output, err := d.run(ctx, tool, env, call.Args)
	if err != nil {
		return nil, fail(err)
	}

	res = &Result{Tool: call.Tool, Output: output, AuditID: entry.ID}
	entry.Status = store.AuditStatusOK
	if call.Resumed() {
		entry.Status = store.AuditStatusResumed
	}
	entry.Output = maps.Clone(output)

	for _, ic := range d.interceptors {
		icErr := ic.Intercept(ctx, env, output)
		if icErr == nil {
			continue
		}

		var sig *SuspendSignal
		if !errors.As(icErr, &sig) {
			return nil, fail(classify(call.Tool, icErr))
		}

		cp, err := d.suspender.Suspend(ctx, tx, SuspendRequest{
			Claim:    env.Claim,
			ToolName: call.Tool,
			Args:     call.Args,
			Reason:   sig.Reason,
			Phase:    call.Phase,
		})
		if err != nil {
			return nil, fail(err)
		}
		res.Checkpoint = cp
		entry.Status = store.AuditStatusSuspended
		entry.Output["checkpoint_id"] = cp.ID
		break
	}

	entry.CreatedAt = d.clock()
	if err := tx.Audit().Append(ctx, entry); err != nil {
		return nil, fail(persistenceErr(err, "appending audit entry", cgerr.FieldTool(call.Tool)))
	}
	return res, nil
}

// run executes the handler under the call timeout, converting panics and
// unclassified errors into agent execution failures.
func (d *Dispatcher) run(ctx context.Context, tool Tool, env *Env, args map[string]any) (output map[string]any, err error) {
	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			output = nil
			err = cgerr.New(cgerr.CodeAgentToolExecutionFailure,
				fmt.Sprintf("tool %s panicked: %v", tool.Definition.Name, p), cgerr.FieldTool(tool.Definition.Name))
		}
	}()

	output, err = tool.Handler(execCtx, env, args)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, cgerr.Errorf(cgerr.CodeAgentToolTimeout, "tool %q execution timeout: %v", tool.Definition.Name, err)
		}
		return nil, classify(tool.Definition.Name, err)
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}

// classify keeps coded errors and turns anything else into an agent
// execution failure.
func classify(tool string, err error) error {
	if cgerr.CodeOf(err) != "" {
		return err
	}
	return cgerr.Wrapf(err, cgerr.CodeAgentToolExecutionFailure, "tool %s failed", tool)
}

func unwrapToolError(err error) error {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}

func auditInput(call Call) map[string]any {
	in := maps.Clone(call.Args)
	if in == nil {
		in = map[string]any{}
	}
	if call.Decision != nil {
		in["decision"] = map[string]any{
			"id":          call.Decision.ID,
			"action":      string(call.Decision.Action),
			"reason":      call.Decision.Reason,
			"approver_id": call.Decision.ApproverID,
		}
	}
	return in
}
