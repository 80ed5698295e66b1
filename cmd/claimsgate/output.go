// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/claimsgate/internal/server"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

// render writes v in the format chosen by --output. text is only called
// for the text format.
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	format, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch strings.ToLower(format) {
	case "", "text":
		return text(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Through JSON so the keys match the API field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	default:
		return cgerr.Errorf(cgerr.CodeCLIInputInvalid, "unknown output format %q (want text, json or yaml)", format)
	}
}

func printClaims(w io.Writer, cs []server.ClaimView) error {
	if len(cs) == 0 {
		_, err := fmt.Fprintln(w, "No claims.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tAMOUNT\tRISK\tOWNER\tUPDATED")
	for _, c := range cs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			c.ID, c.Status, dash(c.ClaimType), c.ClaimAmount, dash(c.RiskLevel), c.OwnerID,
			c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printClaim(w io.Writer, c server.ClaimView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, v string) { _, _ = fmt.Fprintf(tw, "%s:\t%s\n", k, v) }
	row("ID", c.ID)
	row("Owner", c.OwnerID)
	row("Status", c.Status)
	row("Policy", dash(c.PolicyNumber))
	row("Type", dash(c.ClaimType))
	row("Amount", fmt.Sprintf("%.2f", c.ClaimAmount))
	row("Incident date", dash(c.IncidentDate))
	row("Documents", fmt.Sprintf("%t", c.DocumentsUploaded))
	row("Risk", dash(c.RiskLevel))
	row("Fraud score", fmt.Sprintf("%.2f", c.FraudRiskScore))
	if c.InterruptID != "" {
		row("Checkpoint", c.InterruptID)
	}
	if c.InterruptReason != nil {
		row("Awaiting", c.InterruptReason.Summary)
	}
	if c.AssignedApproverID != "" {
		row("Decided by", c.AssignedApproverID)
	}
	row("Version", fmt.Sprintf("%d", c.Version))
	if c.Description != "" {
		row("Description", c.Description)
	}
	return tw.Flush()
}

func printMessages(w io.Writer, ms []server.MessageView) error {
	if len(ms) == 0 {
		_, err := fmt.Fprintln(w, "No messages.")
		return err
	}
	for _, m := range ms {
		sender := m.SenderKind
		if m.SenderID != "" {
			sender += "/" + m.SenderID
		}
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), sender, m.Content); err != nil {
			return err
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
