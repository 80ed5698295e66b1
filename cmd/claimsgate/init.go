// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: "Write the default claimsgate.yaml to ~/.config/claimsgate, or to --path. " +
			"An existing file is kept unless --force is given.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	cmd.Flags().String("path", "", "destination file (default ~/.config/claimsgate/claimsgate.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	written, err := config.WriteDefault(path, force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !written {
		_, _ = fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Wrote default config to %s\n", path)
	_, _ = fmt.Fprintln(out, "Add bearer tokens under auth.tokens before starting the gateway.")
	return nil
}
