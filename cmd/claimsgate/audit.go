// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/audit"
	"github.com/sigil-dev/claimsgate/internal/config"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func newAuditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and verify claim audit trails",
	}
	cmd.AddCommand(newAuditTrailCmd(a), newAuditVerifyCmd(a))
	return cmd
}

func newAuditTrailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trail <claim-id>",
		Short: "Fetch a claim's audit trail from the gateway (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Trail  *audit.Trail  `json:"trail"`
				Report *audit.Report `json:"report"`
			}
			if err := a.client().getJSON(cmd.Context(), claimPath(args[0], "audit"), &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				if out.Trail != nil {
					if err := printTrail(w, out.Trail); err != nil {
						return err
					}
				}
				if out.Report != nil {
					return printReport(w, out.Report)
				}
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newAuditVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <claim-id>",
		Short: "Replay a claim's trail directly from the data directory",
		Long: "Open the store read from the configured data directory, replay the claim's " +
			"transitions and cross-check its decisions. Exits non-zero when the trail is inconsistent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(a.v, nil)
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.StoreConfig())
			if err != nil {
				return cgerr.Errorf(cgerr.CodeCLISetupFailure, "opening store: %w", err)
			}
			defer func() { _ = s.Close() }()

			report, err := audit.New(s).Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := render(cmd, report, func(w io.Writer) error { return printReport(w, report) }); err != nil {
				return err
			}
			if !report.Valid {
				return cgerr.New(cgerr.CodeAuditReplayInvalid, "audit trail is inconsistent",
					cgerr.FieldClaimID(report.ClaimID))
			}
			return nil
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func printTrail(w io.Writer, t *audit.Trail) error {
	for _, e := range t.Events {
		var line string
		switch e.Kind {
		case audit.KindToolCall:
			line = fmt.Sprintf("tool %s %s (attempt %d)", e.Tool, e.Status, e.Attempt)
			if e.Error != "" {
				line += ": " + e.Error
			}
		case audit.KindDecision:
			line = fmt.Sprintf("decision %s by %s", e.Action, e.ActorID)
			if e.Reason != "" {
				line += ": " + e.Reason
			}
		default:
			line = fmt.Sprintf("%s -> %s (%s by %s)", e.From, e.To, e.Trigger, dash(e.ActorID))
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.At.Format("2006-01-02 15:04:05.000"), line); err != nil {
			return err
		}
	}
	return nil
}

func printReport(w io.Writer, r *audit.Report) error {
	verdict := "valid"
	if !r.Valid {
		verdict = "INVALID"
	}
	_, err := fmt.Fprintf(w, "Claim %s: %s (status %s, replayed %s)\n%d tool calls, %d decisions, %d transitions\ndigest %s\n",
		r.ClaimID, verdict, r.Status, r.Replayed, r.ToolCalls, r.Decisions, r.Transitions, r.Digest)
	if err != nil {
		return err
	}
	if len(r.Problems) > 0 {
		_, err = fmt.Fprintf(w, "problems:\n  %s\n", strings.Join(r.Problems, "\n  "))
	}
	return err
}
