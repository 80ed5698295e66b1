// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/claimsgate/internal/config"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// app carries the per-invocation viper instance to every subcommand.
type app struct {
	v *viper.Viper
}

// NewRootCmd creates the root claimsgate command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "claimsgate",
		Short:         "Claims gateway with human approval",
		Long:          "claimsgate reviews insurance claims automatically and suspends risky ones until an approver decides.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("addr", "", "gateway address for client commands (default networking.listen)")
	root.PersistentFlags().String("token", "", "bearer token for client commands (env CLAIMSGATE_TOKEN)")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(a),
		newVersionCmd(),
		newWhoAmICmd(a),
		newClaimCmd(a),
		newApprovalsCmd(a),
		newMessageCmd(a),
		newAuditCmd(a),
		newSecretCmd(),
	)

	return root
}

// initViper applies defaults, env bindings, the config file and flag
// bindings so the precedence is flag > env > file > defaults.
func (a *app) initViper(cmd *cobra.Command) error {
	v := a.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cgerr.Errorf(cgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		config.Discover(v)
		// No config file is fine; parse and permission errors are not.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cgerr.Errorf(cgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"storage.data_dir": "data-dir",
		"verbose":          "verbose",
		"client.addr":      "addr",
		"token":            "token",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return cgerr.Errorf(cgerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}
	return nil
}

// client returns a gateway client for the configured address and token.
func (a *app) client() *gatewayClient {
	addr := a.v.GetString("client.addr")
	if addr == "" {
		addr = a.v.GetString("networking.listen")
	}
	return newGatewayClient(addr, a.v.GetString("token"))
}
