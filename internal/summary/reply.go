// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/store"
)

// Reply history and listing limits.
const (
	MaxReplyHistory = 20
	MaxReplyClaims  = 10
)

// ReplyInput is what a conversational reply is written from. Claim is set
// for a claim conversation; Claims for the general one.
type ReplyInput struct {
	Claim   *store.Claim
	Missing []string
	// Claims are the caller's own claims, or the claims awaiting a decision
	// when Decider is set.
	Claims  []*store.Claim
	Decider bool
	// History is the earlier conversation, oldest first.
	History []*store.Message
	Message string
}

// Replier answers a message in a claim or general conversation.
type Replier interface {
	Reply(ctx context.Context, in ReplyInput) (string, error)
}

var (
	_ Replier = Template{}
	_ Replier = (*Fallback)(nil)
	_ Replier = (*Gemini)(nil)
	_ Replier = (*Anthropic)(nil)
	_ Replier = (*OpenAI)(nil)
)

func (Template) Reply(_ context.Context, in ReplyInput) (string, error) {
	return templateReply(in), nil
}

func templateReply(in ReplyInput) string {
	if in.Claim != nil {
		return claimReply(in.Claim, in.Missing)
	}

	var b strings.Builder
	switch {
	case len(in.Claims) == 0 && in.Decider:
		b.WriteString("No claims are waiting for a decision.")
	case len(in.Claims) == 0:
		b.WriteString("You have no claims yet. Create a draft claim to get started.")
	case in.Decider:
		fmt.Fprintf(&b, "%s waiting for a decision:", countClaims(len(in.Claims)))
	default:
		fmt.Fprintf(&b, "You have %s:", countClaims(len(in.Claims)))
	}
	for _, c := range in.Claims {
		fmt.Fprintf(&b, "\n- %s: %s claim for $%.2f, %s", c.ID, typeLabel(c.Type), c.Amount, statusPhrase(c.Status))
		if c.RiskLevel != store.RiskUnset {
			fmt.Fprintf(&b, " (risk %s)", c.RiskLevel)
		}
	}
	return b.String()
}

func claimReply(c *store.Claim, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim %s is %s.", c.ID, statusPhrase(c.Status))
	switch c.Status {
	case store.StatusDraft:
		if len(missing) > 0 {
			fmt.Fprintf(&b, " Before submitting, add: %s.", strings.Join(missing, ", "))
		} else {
			b.WriteString(" It is complete and can be submitted.")
		}
	case store.StatusNeedsMoreInfo:
		b.WriteString(" Resubmit it with the requested details.")
	}
	if c.RiskLevel != store.RiskUnset {
		fmt.Fprintf(&b, " Risk Level: %s.", c.RiskLevel)
	}
	return b.String()
}

func statusPhrase(s store.ClaimStatus) string {
	switch s {
	case store.StatusDraft:
		return "still a draft"
	case store.StatusUnderAgentReview:
		return "under automated review"
	case store.StatusPendingApproval:
		return "waiting for a human approver"
	case store.StatusNeedsMoreInfo:
		return "waiting for more information"
	case store.StatusApproved:
		return "approved"
	case store.StatusRejected:
		return "rejected"
	}
	return strings.ToLower(string(s))
}

func countClaims(n int) string {
	if n == 1 {
		return "1 claim"
	}
	return fmt.Sprintf("%d claims", n)
}

const replySystemPrompt = "You are a professional insurance assistant answering a user about their " +
	"claims. Answer only from the claim facts given. Be brief. Never promise an approval and never " +
	"reveal details of claims that are not listed."

// replyPrompt renders the conversation a model-backed writer answers.
func replyPrompt(in ReplyInput) string {
	var b strings.Builder
	if in.Claim != nil {
		b.WriteString("Claim under discussion:\n")
		fmt.Fprintf(&b, "ID: %s\nStatus: %s\n", in.Claim.ID, in.Claim.Status)
		b.WriteString(prompt(Input{
			Claim:      in.Claim,
			Assessment: risk.Assessment{Level: in.Claim.RiskLevel, Score: in.Claim.FraudRiskScore},
			Missing:    in.Missing,
		}))
	}
	if len(in.Claims) > 0 {
		if in.Decider {
			b.WriteString("Claims awaiting a decision:\n")
		} else {
			b.WriteString("The user's claims:\n")
		}
		for _, c := range in.Claims {
			fmt.Fprintf(&b, "- %s: %s, %.2f, %s\n", c.ID, typeLabel(c.Type), c.Amount, c.Status)
		}
	}
	if len(in.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range in.History {
			fmt.Fprintf(&b, "%s: %s\n", m.SenderKind, m.Content)
		}
	}
	fmt.Fprintf(&b, "User message: %s\n", in.Message)
	return b.String()
}
