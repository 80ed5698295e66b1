// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/server"
)

func newApprovalsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Work the approval queue",
	}
	cmd.AddCommand(newApprovalsPendingCmd(a))
	return cmd
}

func newApprovalsPendingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List claims waiting for a human decision, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/approvals/pending"
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
				path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
			}

			var out struct {
				Pending []server.PendingView `json:"pending"`
			}
			if err := a.client().getJSON(cmd.Context(), path, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printPending(w, out.Pending) })
		},
	}
	cmd.Flags().Int("limit", 0, "maximum number of entries")
	addOutputFlag(cmd)
	return cmd
}

func printPending(w io.Writer, ps []server.PendingView) error {
	if len(ps) == 0 {
		_, err := fmt.Fprintln(w, "Nothing is waiting for approval.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CLAIM\tCHECKPOINT\tRISK\tAMOUNT\tOWNER\tWAITING SINCE\t")
	for _, p := range ps {
		overdue := ""
		if p.Overdue {
			overdue = "overdue"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			p.Claim.ID, p.CheckpointID, dash(p.Claim.RiskLevel), p.Claim.ClaimAmount, p.Claim.OwnerID,
			p.CreatedAt.Format("2006-01-02 15:04"), overdue)
	}
	return tw.Flush()
}
