// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"fmt"

	"github.com/sigil-dev/claimsgate/internal/store"
)

// Interceptor runs after a tool handler returns and before its result is
// handed back to the review session. Returning a *SuspendSignal turns the
// call into a durable suspension; any other error fails the call.
type Interceptor interface {
	Intercept(ctx context.Context, env *Env, output map[string]any) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, env *Env, output map[string]any) error

func (f InterceptorFunc) Intercept(ctx context.Context, env *Env, output map[string]any) error {
	return f(ctx, env, output)
}

// SuspendSignal asks the dispatcher to persist a checkpoint instead of
// returning the call's result.
type SuspendSignal struct {
	Reason store.InterruptReason
}

func (s *SuspendSignal) Error() string {
	return fmt.Sprintf("suspend requested (risk %s)", s.Reason.RiskLevel)
}

// ApprovalInterceptor suspends every first-time request_approval call. A
// resumed call already carries the human decision and passes through.
func ApprovalInterceptor() Interceptor {
	return InterceptorFunc(func(_ context.Context, env *Env, output map[string]any) error {
		if env.Call.Tool != ToolRequestApproval || env.Call.Resumed() {
			return nil
		}
		level, _ := output["risk_level"].(string)
		summary, _ := output["summary"].(string)
		return &SuspendSignal{Reason: store.InterruptReason{
			RiskLevel: store.RiskLevel(level),
			Summary:   summary,
		}}
	})
}
