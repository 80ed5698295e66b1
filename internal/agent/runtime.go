// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"log/slog"
	"time"

	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Defaults applied by NewRuntime.
const (
	DefaultToolTimeout    = 30 * time.Second
	DefaultMaxToolRetries = 2
)

// Config holds dependencies for NewRuntime.
type Config struct {
	Store      store.Store
	Risk       risk.Engine
	Summarizer summary.Writer
	// ToolTimeout bounds each handler run. Zero means DefaultToolTimeout;
	// negative disables the timeout.
	ToolTimeout time.Duration
	// MaxToolRetries is the number of retries after an agent execution
	// failure. Zero means DefaultMaxToolRetries; negative disables retries.
	MaxToolRetries int
	// CheckpointTTL only flags open checkpoints as overdue; they never expire.
	CheckpointTTL time.Duration
	// Interceptors run after the approval interceptor, in order.
	Interceptors []Interceptor
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Runtime wires the review session, the tool dispatcher and the interrupt
// controller around one store.
type Runtime struct {
	Store         store.Store
	Registry      *Registry
	Dispatcher    *Dispatcher
	Interrupts    *InterruptController
	Reviewer      *Reviewer
	Conversations *Conversations
	Locks         *ClaimLocks
}

func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Store == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "agent runtime needs a store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Summarizer == nil {
		cfg.Summarizer = summary.Template{}
	}
	switch {
	case cfg.ToolTimeout == 0:
		cfg.ToolTimeout = DefaultToolTimeout
	case cfg.ToolTimeout < 0:
		cfg.ToolTimeout = 0
	}
	switch {
	case cfg.MaxToolRetries == 0:
		cfg.MaxToolRetries = DefaultMaxToolRetries
	case cfg.MaxToolRetries < 0:
		cfg.MaxToolRetries = 0
	}

	registry, err := NewRegistry(ClaimTools(cfg.Risk)...)
	if err != nil {
		return nil, err
	}

	locks := NewClaimLocks()
	interrupts := &InterruptController{
		store:      cfg.Store,
		locks:      locks,
		ttl:        cfg.CheckpointTTL,
		maxRetries: cfg.MaxToolRetries,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}

	interceptors := append([]Interceptor{ApprovalInterceptor()}, cfg.Interceptors...)
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Store:        cfg.Store,
		Registry:     registry,
		Interceptors: interceptors,
		Suspender:    interrupts,
		Timeout:      cfg.ToolTimeout,
		MaxRetries:   cfg.MaxToolRetries,
		Logger:       cfg.Logger,
		Clock:        cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	reviewer := &Reviewer{
		store:      cfg.Store,
		dispatcher: dispatcher,
		summarizer: cfg.Summarizer,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	interrupts.resumer = reviewer
	interrupts.failures = dispatcher

	return &Runtime{
		Store:         cfg.Store,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Interrupts:    interrupts,
		Reviewer:      reviewer,
		Conversations: NewConversations(cfg.Store, cfg.Clock),
		Locks:         locks,
	}, nil
}
