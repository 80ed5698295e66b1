// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/server"
)

func newMessageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Read and post conversation messages",
		Long:    "Without --claim the commands use the caller's general conversation.",
	}
	cmd.PersistentFlags().String("claim", "", "claim conversation to use")
	cmd.AddCommand(newMessageListCmd(a), newMessageSendCmd(a))
	return cmd
}

func newMessageListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/messages"
			if claimID, _ := cmd.Flags().GetString("claim"); claimID != "" {
				path += "?" + url.Values{"claim_id": {claimID}}.Encode()
			}
			var out struct {
				Messages []server.MessageView `json:"messages"`
			}
			if err := a.client().getJSON(cmd.Context(), path, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error { return printMessages(w, out.Messages) })
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newMessageSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Post a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, _ := cmd.Flags().GetString("claim")
			body := map[string]string{"content": strings.Join(args, " ")}
			if claimID != "" {
				body["claim_id"] = claimID
			}
			var out struct {
				UserMessage  server.MessageView  `json:"user_message"`
				AgentMessage *server.MessageView `json:"agent_message,omitempty"`
			}
			if err := a.client().postJSON(cmd.Context(), "/api/v1/messages", body, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "Posted message %d\n", out.UserMessage.Seq); err != nil {
					return err
				}
				if out.AgentMessage == nil {
					return nil
				}
				return printMessages(w, []server.MessageView{*out.AgentMessage})
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
