// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/claimsgate/internal/config"
	"github.com/sigil-dev/claimsgate/internal/logging"
	"github.com/sigil-dev/claimsgate/internal/tracing"
)

func newStartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the claims gateway",
		Long:  "Load configuration, open the store, wire the review runtime and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  a.runStart,
	}
	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}

func (a *app) runStart(cmd *cobra.Command, _ []string) error {
	if err := a.v.BindPFlag("networking.listen", cmd.Flags().Lookup("listen")); err != nil {
		return err
	}

	cfg, err := config.FromViper(a.v, secretStoreFactory())
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: a.v.GetBool("verbose"),
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Output:         cfg.Tracing.Output,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	gw, err := WireGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Warn("closing gateway", "error", err)
		}
	}()

	logger.Info("starting claimsgate",
		"version", version,
		"listen", cfg.Networking.Listen,
		"config", cfg.Path,
		"data_dir", cfg.Storage.DataDir,
	)
	return gw.Start(ctx)
}
