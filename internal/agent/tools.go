// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Tool names exposed to the review session.
const (
	ToolValidate        = "validate"
	ToolAssessRisk      = "assess_risk"
	ToolRequestApproval = "request_approval"
	ToolRequestMoreInfo = "request_more_info"
)

// ToolDefinition describes a tool's contract. InputSchema follows JSON
// Schema; only its "required" list is enforced before dispatch.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// Env is what a handler sees: the claim loaded inside the call's
// transaction and the transaction itself.
type Env struct {
	Tx    store.Tx
	Claim *store.Claim
	Call  *Call
	Now   time.Time
}

// Transition applies ev to the claim and persists the claim and the
// transition record in the call's transaction.
func (e *Env) Transition(ctx context.Context, ev lifecycle.Event) (*store.Transition, error) {
	return applyTransition(ctx, e.Tx, e.Claim, ev, e.Now)
}

// applyTransition is the only path that writes a status change.
func applyTransition(ctx context.Context, tx store.Tx, c *store.Claim, ev lifecycle.Event, now time.Time) (*store.Transition, error) {
	before := *c
	tr, err := lifecycle.Apply(c, ev, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Claims().Update(ctx, c); err != nil {
		*c = before
		return nil, claimStoreErr(err, c.ID)
	}
	if err := tx.Transitions().Append(ctx, tr); err != nil {
		return nil, persistenceErr(err, "recording transition", cgerr.FieldClaimID(c.ID))
	}
	return tr, nil
}

// Handler executes one tool call.
type Handler func(ctx context.Context, env *Env, args map[string]any) (map[string]any, error)

// Tool binds a definition to its handler.
type Tool struct {
	Definition ToolDefinition
	Handler    Handler
}

// Registry is a fixed dispatch table from tool name to handler. It is built
// once and never mutated, so lookups need no locking.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry. Duplicate or unnamed tools are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" || t.Handler == nil {
			return nil, cgerr.New(cgerr.CodeAgentToolInputInvalid, "tool needs a name and a handler")
		}
		if _, dup := r.tools[name]; dup {
			return nil, cgerr.New(cgerr.CodeAgentToolInputInvalid, "duplicate tool", cgerr.FieldTool(name))
		}
		r.tools[name] = t
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns every tool definition sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// checkInput verifies every key listed in the schema's "required" array is
// present and non-empty.
func checkInput(def ToolDefinition, args map[string]any) error {
	required, _ := def.InputSchema["required"].([]string)
	var missing []string
	for _, key := range required {
		v, ok := args[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return cgerr.New(cgerr.CodeAgentToolInputInvalid,
			fmt.Sprintf("tool %s missing required input: %s", def.Name, strings.Join(missing, ", ")),
			cgerr.FieldTool(def.Name))
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func schema(required []string, props map[string]string) map[string]any {
	properties := make(map[string]any, len(props))
	for k, typ := range props {
		properties[k] = map[string]any{"type": typ}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
