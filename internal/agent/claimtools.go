// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// ClaimTools returns the four review tools.
func ClaimTools(engine risk.Engine) []Tool {
	return []Tool{
		{
			Definition: ToolDefinition{
				Name:        ToolValidate,
				Description: "Check the claim for completeness and list missing fields.",
				InputSchema: schema([]string{"claim_id"}, map[string]string{"claim_id": "string"}),
				OutputSchema: schema([]string{"valid", "missing_fields"}, map[string]string{
					"valid": "boolean", "missing_fields": "array",
				}),
			},
			Handler: validateHandler,
		},
		{
			Definition: ToolDefinition{
				Name:        ToolAssessRisk,
				Description: "Classify the claim as LOW, MEDIUM or HIGH risk and score it.",
				InputSchema: schema([]string{"claim_id"}, map[string]string{"claim_id": "string"}),
				OutputSchema: schema([]string{"risk_level", "fraud_risk_score"}, map[string]string{
					"risk_level": "string", "fraud_risk_score": "number", "factors": "array",
				}),
			},
			Handler: assessRiskHandler(engine),
		},
		{
			Definition: ToolDefinition{
				Name:        ToolRequestApproval,
				Description: "Hand the claim to a human approver and wait for the decision.",
				InputSchema: schema([]string{"claim_id", "summary", "risk_level"}, map[string]string{
					"claim_id": "string", "summary": "string", "risk_level": "string",
				}),
				OutputSchema: schema([]string{"action"}, map[string]string{
					"action": "string", "reason": "string", "approver_id": "string",
				}),
			},
			Handler: requestApprovalHandler,
		},
		{
			Definition: ToolDefinition{
				Name:        ToolRequestMoreInfo,
				Description: "Ask the claimant for more information.",
				InputSchema: schema([]string{"claim_id", "question"}, map[string]string{
					"claim_id": "string", "question": "string",
				}),
				OutputSchema: schema([]string{"message_id"}, map[string]string{
					"message_id": "string", "message": "string",
				}),
			},
			Handler: requestMoreInfoHandler,
		},
	}
}

// MissingFields lists the required claim fields that are absent.
func MissingFields(c *store.Claim) []string {
	missing := []string{}
	if strings.TrimSpace(c.PolicyNumber) == "" {
		missing = append(missing, "policy_number")
	}
	if !c.Type.Valid() {
		missing = append(missing, "claim_type")
	}
	if c.Amount <= 0 {
		missing = append(missing, "claim_amount")
	}
	if c.IncidentDate == nil {
		missing = append(missing, "incident_date")
	}
	if strings.TrimSpace(c.Description) == "" {
		missing = append(missing, "description")
	}
	return missing
}

func validateHandler(_ context.Context, env *Env, _ map[string]any) (map[string]any, error) {
	missing := MissingFields(env.Claim)
	return map[string]any{
		"valid":          len(missing) == 0,
		"missing_fields": missing,
	}, nil
}

func assessRiskHandler(engine risk.Engine) Handler {
	return func(ctx context.Context, env *Env, _ map[string]any) (map[string]any, error) {
		a := engine.Assess(env.Claim)

		env.Claim.RiskLevel = a.Level
		env.Claim.FraudRiskScore = a.Score
		if err := env.Tx.Claims().Update(ctx, env.Claim); err != nil {
			return nil, claimStoreErr(err, env.Claim.ID)
		}

		factors := a.Factors
		if factors == nil {
			factors = []string{}
		}
		return map[string]any{
			"risk_level":        string(a.Level),
			"fraud_risk_score":  a.Score,
			"factors":           factors,
			"requires_approval": a.RequiresApproval(),
		}, nil
	}
}

// requestApprovalHandler echoes the approval request on the first call; the
// approval interceptor turns that into a checkpoint. On resume the decision
// is the return value.
func requestApprovalHandler(ctx context.Context, env *Env, args map[string]any) (map[string]any, error) {
	if d := env.Call.Decision; d != nil {
		return map[string]any{
			"action":      string(d.Action),
			"reason":      d.Reason,
			"approver_id": d.ApproverID,
			"decision_id": d.ID,
		}, nil
	}

	level := store.RiskLevel(stringArg(args, "risk_level"))
	switch level {
	case store.RiskLow, store.RiskMedium, store.RiskHigh:
	default:
		return nil, cgerr.New(cgerr.CodeAgentToolInputInvalid, "unknown risk level "+string(level),
			cgerr.FieldTool(ToolRequestApproval))
	}

	// The approver-facing summary commits or rolls back with the checkpoint.
	text := stringArg(args, "summary")
	if strings.TrimSpace(text) != "" {
		missing, _ := args["missing_fields"].([]string)
		if err := appendMessage(ctx, env.Tx, &store.Message{
			ClaimID:    env.Claim.ID,
			SenderKind: store.SenderAgent,
			SenderID:   lifecycle.AgentActor.ID,
			Content:    text,
			Payload: map[string]any{
				"type":           "summary",
				"risk_level":     string(level),
				"missing_fields": missing,
			},
		}, env.Now); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"summary":    text,
		"risk_level": string(level),
	}, nil
}

// requestMoreInfoHandler drafts the clarification message and moves the
// claim to NEEDS_MORE_INFO. No checkpoint is needed because nothing is left
// for the review session to do until the claimant resubmits.
func requestMoreInfoHandler(ctx context.Context, env *Env, args map[string]any) (map[string]any, error) {
	question := strings.TrimSpace(stringArg(args, "question"))

	if _, err := env.Transition(ctx, lifecycle.Event{
		Trigger:      lifecycle.TriggerRequestInfo,
		Actor:        env.Call.Actor,
		Reason:       question,
		CheckpointID: env.Call.CheckpointID,
	}); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:         uuid.NewString(),
		ClaimID:    env.Claim.ID,
		SenderKind: store.SenderApprover,
		SenderID:   env.Call.Actor.ID,
		Content:    "Additional information required: " + question,
		Payload: map[string]any{
			"type":     "info_request",
			"question": question,
			"status":   string(store.StatusNeedsMoreInfo),
		},
		CreatedAt: env.Now,
	}
	if err := env.Tx.Messages().Append(ctx, msg); err != nil {
		return nil, persistenceErr(err, "appending clarification message", cgerr.FieldClaimID(env.Claim.ID))
	}

	return map[string]any{
		"message_id": msg.ID,
		"message":    msg.Content,
	}, nil
}
