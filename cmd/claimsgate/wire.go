// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/claims"
	"github.com/sigil-dev/claimsgate/internal/config"
	"github.com/sigil-dev/claimsgate/internal/identity"
	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/server"
	"github.com/sigil-dev/claimsgate/internal/store"
	_ "github.com/sigil-dev/claimsgate/internal/store/sqlite" // register sqlite backend
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
	"github.com/sigil-dev/claimsgate/pkg/health"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server  *server.Server
	Store   store.Store
	Runtime *agent.Runtime
	Claims  *claims.Service
}

// WireGateway creates all subsystems and wires them together.
func WireGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Store.
	s, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeCLISetupFailure, "opening store: %w", err)
	}
	fail := func(err error) (*Gateway, error) {
		_ = s.Close()
		return nil, err
	}

	// 2. Identities.
	validator, err := identity.NewTokenValidator(cfg.Auth.Tokens)
	if err != nil {
		return fail(cgerr.Errorf(cgerr.CodeCLISetupFailure, "configuring auth tokens: %w", err))
	}
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn("no auth tokens configured; every claim endpoint will answer 401")
	}
	if err := identity.Sync(ctx, s.Users(), validator); err != nil {
		return fail(err)
	}

	// 3. Summary writer for approval checkpoints and conversation replies.
	sc := scanner.Default()
	sumCfg := cfg.SummaryWriterConfig()
	if cfg.Scanner.RedactUpstream {
		sumCfg.Scanner = sc
	}
	writer, err := summary.New(sumCfg, logger)
	if err != nil {
		return fail(err)
	}

	// 4. Review runtime.
	rt, err := agent.NewRuntime(agent.Config{
		Store: s,
		Risk: risk.Engine{
			MediumThreshold: cfg.Risk.MediumThreshold,
			HighThreshold:   cfg.Risk.HighThreshold,
		},
		Summarizer:     writer,
		ToolTimeout:    orDisabled(cfg.Review.ToolTimeout),
		MaxToolRetries: orDisabled(cfg.Review.MaxToolRetries),
		CheckpointTTL:  cfg.Approvals.CheckpointTTL,
		Logger:         logger,
	})
	if err != nil {
		return fail(err)
	}

	// 5. Claim service.
	replier, _ := writer.(summary.Replier)
	svc, err := claims.New(claims.Config{
		Runtime:   rt,
		Scanner:   sc,
		InputMode: cfg.InputMode(),
		Replier:   replier,
		Logger:    logger,
	})
	if err != nil {
		return fail(err)
	}

	// 6. HTTP server.
	srvCfg := server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		Validator:   validator,
		Claims:      svc,
		Version:     version,
		Logger:      logger,
	}
	srvCfg.RateLimit = server.RateLimitConfig{
		RequestsPerSecond: cfg.Networking.RateLimitRPS,
		Burst:             cfg.Networking.RateLimitBurst,
	}
	if r, ok := writer.(health.Reporter); ok {
		srvCfg.Summary = r
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		return fail(cgerr.Errorf(cgerr.CodeCLISetupFailure, "creating server: %w", err))
	}

	return &Gateway{Server: srv, Store: s, Runtime: rt, Claims: svc}, nil
}

// orDisabled maps a configured zero to the runtime's negative "disabled"
// value; the runtime treats zero as "use the default".
func orDisabled[T int | time.Duration](v T) T {
	if v == 0 {
		return -1
	}
	return v
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	return gw.Server.Start(ctx)
}

// Close releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	type closer interface{ Close() error }
	var errs []error
	for _, c := range []closer{gw.Server, gw.Store} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
