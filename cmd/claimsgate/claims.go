// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/server"
)

func newClaimCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "claim",
		Aliases: []string{"claims"},
		Short:   "Create, submit and decide claims on a running gateway",
	}
	cmd.AddCommand(
		newClaimListCmd(a),
		newClaimGetCmd(a),
		newClaimCreateCmd(a),
		newClaimUpdateCmd(a),
		newClaimSubmitCmd(a),
		newClaimApproveCmd(a),
		newClaimRejectCmd(a),
		newClaimRequestInfoCmd(a),
		newClaimMessagesCmd(a),
		newClaimDecisionsCmd(a),
	)
	return cmd
}

func newWhoAmICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var me struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Role string `json:"role"`
			}
			if err := a.client().getJSON(cmd.Context(), "/api/v1/me", &me); err != nil {
				return err
			}
			return render(cmd, me, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s (%s) role=%s\n", me.ID, me.Name, me.Role)
				return err
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newClaimListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List claims visible to the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			for _, name := range []string{"status", "owner"} {
				if v, _ := cmd.Flags().GetString(name); v != "" {
					q.Set(name, v)
				}
			}
			for _, name := range []string{"limit", "offset"} {
				if v, _ := cmd.Flags().GetInt(name); v > 0 {
					q.Set(name, strconv.Itoa(v))
				}
			}
			path := "/api/v1/claims"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var out struct {
				Claims []server.ClaimView `json:"claims"`
			}
			if err := a.client().getJSON(cmd.Context(), path, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printClaims(w, out.Claims) })
		},
	}
	cmd.Flags().String("status", "", "only claims in this status")
	cmd.Flags().String("owner", "", "only claims of this owner (approvers and admins)")
	cmd.Flags().Int("limit", 0, "page size")
	cmd.Flags().Int("offset", 0, "page offset")
	addOutputFlag(cmd)
	return cmd
}

func newClaimGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <claim-id>",
		Short: "Show one claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c server.ClaimView
			if err := a.client().getJSON(cmd.Context(), claimPath(args[0], ""), &c); err != nil {
				return err
			}
			return render(cmd, c, func(w io.Writer) error { return printClaim(w, c) })
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func addClaimFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "policy number")
	cmd.Flags().String("type", "", "claim type: HEALTH, AUTO or PROPERTY")
	cmd.Flags().Float64("amount", 0, "claimed amount")
	cmd.Flags().String("description", "", "what happened")
	cmd.Flags().String("incident-date", "", "incident date (YYYY-MM-DD)")
	cmd.Flags().Bool("documents", false, "supporting documents are uploaded")
}

// overlayClaimFields copies the flags the user set onto f.
func overlayClaimFields(cmd *cobra.Command, f *server.ClaimFields) {
	fl := cmd.Flags()
	if fl.Changed("policy") {
		f.PolicyNumber, _ = fl.GetString("policy")
	}
	if fl.Changed("type") {
		f.ClaimType, _ = fl.GetString("type")
	}
	if fl.Changed("amount") {
		f.ClaimAmount, _ = fl.GetFloat64("amount")
	}
	if fl.Changed("description") {
		f.Description, _ = fl.GetString("description")
	}
	if fl.Changed("incident-date") {
		f.IncidentDate, _ = fl.GetString("incident-date")
	}
	if fl.Changed("documents") {
		f.DocumentsUploaded, _ = fl.GetBool("documents")
	}
}

func newClaimCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft claim",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fields server.ClaimFields
			overlayClaimFields(cmd, &fields)

			var c server.ClaimView
			if err := a.client().postJSON(cmd.Context(), "/api/v1/claims", fields, &c); err != nil {
				return err
			}
			return render(cmd, c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created claim %s (%s)\n", c.ID, c.Status)
				return err
			})
		},
	}
	addClaimFieldFlags(cmd)
	addOutputFlag(cmd)
	return cmd
}

func newClaimUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <claim-id>",
		Short: "Edit a draft claim or one awaiting more information",
		Long: "Fetch the claim, apply the given flags and write it back. The update fails " +
			"if someone else changed the claim in between.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()

			var cur server.ClaimView
			if err := client.getJSON(cmd.Context(), claimPath(args[0], ""), &cur); err != nil {
				return err
			}
			body := struct {
				server.ClaimFields
				Version int64 `json:"version"`
			}{
				ClaimFields: server.ClaimFields{
					PolicyNumber:      cur.PolicyNumber,
					ClaimType:         cur.ClaimType,
					ClaimAmount:       cur.ClaimAmount,
					Description:       cur.Description,
					IncidentDate:      cur.IncidentDate,
					DocumentsUploaded: cur.DocumentsUploaded,
				},
				Version: cur.Version,
			}
			overlayClaimFields(cmd, &body.ClaimFields)

			var c server.ClaimView
			if err := client.putJSON(cmd.Context(), claimPath(args[0], ""), body, &c); err != nil {
				return err
			}
			return render(cmd, c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated claim %s (version %d)\n", c.ID, c.Version)
				return err
			})
		},
	}
	addClaimFieldFlags(cmd)
	addOutputFlag(cmd)
	return cmd
}

func newClaimSubmitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <claim-id>",
		Short: "Submit a claim for automated review",
		Long: "Submit a draft, or answer an information request with --info. The command " +
			"waits for the automated review and prints where the claim ended up.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, _ := cmd.Flags().GetString("info")
			body := map[string]string{}
			if info != "" {
				body["info"] = info
			}

			var out struct {
				Claim   server.ClaimView    `json:"claim"`
				Outcome *server.OutcomeView `json:"outcome"`
			}
			if err := a.client().postJSON(cmd.Context(), claimPath(args[0], "submit"), body, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "Claim %s is %s\n", out.Claim.ID, out.Claim.Status); err != nil {
					return err
				}
				if o := out.Outcome; o != nil {
					_, _ = fmt.Fprintf(w, "Risk: %s (fraud score %.2f)\n", dash(o.RiskLevel), o.FraudRiskScore)
					if o.Summary != "" {
						_, _ = fmt.Fprintln(w, o.Summary)
					}
					for _, m := range o.MissingFields {
						_, _ = fmt.Fprintf(w, "Missing: %s\n", m)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().String("info", "", "note for the reviewer, e.g. the requested information")
	addOutputFlag(cmd)
	return cmd
}

// decisionResult is the gateway's answer to approve, reject and
// request-info.
type decisionResult struct {
	Claim    server.ClaimView    `json:"claim"`
	Decision server.DecisionView `json:"decision"`
}

func printDecision(w io.Writer, r decisionResult) error {
	_, err := fmt.Fprintf(w, "Recorded %s on claim %s; claim is now %s\n", r.Decision.Action, r.Claim.ID, r.Claim.Status)
	return err
}

func newClaimApproveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <claim-id>",
		Short: "Approve a claim awaiting approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out decisionResult
			if err := a.client().putJSON(cmd.Context(), claimPath(args[0], "approve"), nil, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printDecision(w, out) })
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newClaimRejectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <claim-id>",
		Short: "Reject a claim awaiting approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			var out decisionResult
			body := map[string]string{"reason": reason}
			if err := a.client().putJSON(cmd.Context(), claimPath(args[0], "reject"), body, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printDecision(w, out) })
		},
	}
	cmd.Flags().String("reason", "", "why the claim is rejected (required)")
	addOutputFlag(cmd)
	return cmd
}

func newClaimRequestInfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request-info <claim-id>",
		Short: "Send a claim back to its owner with a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, _ := cmd.Flags().GetString("question")
			var out decisionResult
			body := map[string]string{"question": question}
			if err := a.client().putJSON(cmd.Context(), claimPath(args[0], "request-info"), body, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printDecision(w, out) })
		},
	}
	cmd.Flags().String("question", "", "what the owner should provide (required)")
	addOutputFlag(cmd)
	return cmd
}

func newClaimMessagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <claim-id>",
		Short: "Show a claim's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Messages []server.MessageView `json:"messages"`
			}
			if err := a.client().getJSON(cmd.Context(), claimPath(args[0], "messages"), &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printMessages(w, out.Messages) })
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newClaimDecisionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions <claim-id>",
		Short: "Show the approver decisions recorded for a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Decisions []server.DecisionView `json:"decisions"`
			}
			if err := a.client().getJSON(cmd.Context(), claimPath(args[0], "decisions"), &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				if len(out.Decisions) == 0 {
					_, err := fmt.Fprintln(w, "No decisions.")
					return err
				}
				for _, d := range out.Decisions {
					line := fmt.Sprintf("%s %s by %s", d.CreatedAt.Format("2006-01-02 15:04:05"), d.Action, d.ApproverID)
					if d.Reason != "" {
						line += ": " + d.Reason
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func claimPath(id, action string) string {
	p := "/api/v1/claims/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}
