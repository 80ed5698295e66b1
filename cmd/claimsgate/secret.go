// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sigil-dev/claimsgate/internal/secrets"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute another backend.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyring()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store provider API keys and bearer tokens in the operating system keyring. " +
			"Reference them from the config file as keyring://" + secrets.DefaultService + "/<name>.",
	}
	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)
	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, read from the terminal or stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		Args:  cobra.NoArgs,
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, err := readSecretValue(cmd)
	if err != nil {
		return err
	}
	if value == "" {
		return cgerr.Errorf(cgerr.CodeCLIInputInvalid, "secret %q is empty", name)
	}

	if err := secretStoreFactory().Set(secrets.DefaultService, name, value); err != nil {
		return err
	}
	ref := secrets.Ref{Service: secrets.DefaultService, Key: name}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s; reference it as %s\n", name, ref)
	return nil
}

// readSecretValue prompts without echo on a terminal and otherwise reads the
// first line of stdin.
func readSecretValue(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Value: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", cgerr.Wrap(err, cgerr.CodeCLIInputInvalid, "reading secret")
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", cgerr.Wrap(err, cgerr.CodeCLIInputInvalid, "reading secret from stdin")
	}
	return strings.TrimSpace(line), nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().Keys(secrets.DefaultService)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if cgerr.HasCode(err, cgerr.CodeSecretNotFound) {
			return cgerr.Errorf(cgerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
