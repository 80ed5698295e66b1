// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"
	"time"
)

// ClaimStore persists claims. Update is a compare-and-set on Version and
// increments it on success.
type ClaimStore interface {
	Create(ctx context.Context, claim *Claim) error
	Get(ctx context.Context, id string) (*Claim, error)
	Update(ctx context.Context, claim *Claim) error
	List(ctx context.Context, filter ClaimFilter) ([]*Claim, error)
}

// CheckpointStore persists interrupt checkpoints. Create returns ErrConflict
// when the claim already has an unresolved checkpoint. Resolve returns
// ErrConflict when the checkpoint was resolved before.
type CheckpointStore interface {
	Create(ctx context.Context, cp *Checkpoint) error
	Get(ctx context.Context, id string) (*Checkpoint, error)
	Open(ctx context.Context, claimID string) (*Checkpoint, error)
	Latest(ctx context.Context, claimID string) (*Checkpoint, error)
	// Resolve stamps resolved_at with at.
	Resolve(ctx context.Context, id string, outcome DecisionAction, at time.Time) (*Checkpoint, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]*Checkpoint, error)
	ListByClaim(ctx context.Context, claimID string) ([]*Checkpoint, error)
}

type DecisionStore interface {
	Create(ctx context.Context, d *Decision) error
	ListByClaim(ctx context.Context, claimID string) ([]*Decision, error)
}

// MessageStore is the append-only conversation log. Every general
// conversation belongs to one participant.
type MessageStore interface {
	Append(ctx context.Context, msg *Message) error
	List(ctx context.Context, claimID string) ([]*Message, error)
	ListGeneral(ctx context.Context, participantID string) ([]*Message, error)
}

// SessionStore holds the per-claim review context.
type SessionStore interface {
	Get(ctx context.Context, claimID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

type AuditStore interface {
	Append(ctx context.Context, entry *AgentAuditEntry) error
	ListByClaim(ctx context.Context, claimID string) ([]*AgentAuditEntry, error)
}

type TransitionStore interface {
	Append(ctx context.Context, t *Transition) error
	ListByClaim(ctx context.Context, claimID string) ([]*Transition, error)
}

type UserStore interface {
	Upsert(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
}

// Repos exposes every sub-store. Inside WithTx the same accessors are bound
// to the running transaction.
type Repos interface {
	Claims() ClaimStore
	Checkpoints() CheckpointStore
	Decisions() DecisionStore
	Messages() MessageStore
	Sessions() SessionStore
	Audit() AuditStore
	Transitions() TransitionStore
	Users() UserStore
}

// Tx is a unit of work. Nothing written through it is visible to other
// callers until the enclosing WithTx returns nil.
type Tx interface {
	Repos
}

// Store is the claims database.
type Store interface {
	Repos

	// WithTx runs fn in one transaction. A non-nil error from fn, or a panic,
	// rolls everything back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
