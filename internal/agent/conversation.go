// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Conversations is the session/context store: the append-only message log
// per claim, the general conversation, and the persisted review context.
type Conversations struct {
	store store.Store
	clock func() time.Time
}

func NewConversations(s store.Store, clock func() time.Time) *Conversations {
	if clock == nil {
		clock = time.Now
	}
	return &Conversations{store: s, clock: clock}
}

// Append adds msg to its conversation. A message without a ClaimID goes to
// the general conversation of msg.ParticipantID.
func (c *Conversations) Append(ctx context.Context, msg *store.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return cgerr.New(cgerr.CodeStoreInvalidInput, "message content is empty")
	}
	if msg.ClaimID == "" && msg.ParticipantID == "" {
		return cgerr.New(cgerr.CodeStoreInvalidInput, "general message has no participant")
	}
	return appendMessage(ctx, c.store, msg, c.clock())
}

// History returns the full ordered conversation for claimID. Callers filter
// by scope.
func (c *Conversations) History(ctx context.Context, claimID string) ([]*store.Message, error) {
	msgs, err := c.store.Messages().List(ctx, claimID)
	if err != nil {
		return nil, persistenceErr(err, "reading conversation", cgerr.FieldClaimID(claimID))
	}
	return msgs, nil
}

// General returns userID's own general conversation: what they posted and
// the replies addressed to them.
func (c *Conversations) General(ctx context.Context, userID string) ([]*store.Message, error) {
	msgs, err := c.store.Messages().ListGeneral(ctx, userID)
	if err != nil {
		return nil, persistenceErr(err, "reading general conversation", cgerr.FieldUserID(userID))
	}
	return msgs, nil
}

// Session returns the persisted review context of a claim.
func (c *Conversations) Session(ctx context.Context, claimID string) (*store.Session, error) {
	sess, err := c.store.Sessions().Get(ctx, claimID)
	if err != nil {
		return nil, store.Coded(err, cgerr.CodeSessionGetNotFound, "", "session for claim "+claimID,
			cgerr.FieldClaimID(claimID))
	}
	return sess, nil
}

func appendMessage(ctx context.Context, repos store.Repos, msg *store.Message, now time.Time) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if err := repos.Messages().Append(ctx, msg); err != nil {
		return persistenceErr(err, "appending message", cgerr.FieldClaimID(msg.ClaimID))
	}
	return nil
}

func saveSession(ctx context.Context, tx store.Tx, claimID string, status store.SessionStatus, pendingTool string, position int64, now time.Time) error {
	sess, err := tx.Sessions().Get(ctx, claimID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sess = &store.Session{ClaimID: claimID, CreatedAt: now}
	case err != nil:
		return persistenceErr(err, "loading session", cgerr.FieldClaimID(claimID))
	}

	sess.Status = status
	sess.PendingTool = pendingTool
	if position > sess.Position {
		sess.Position = position
	}
	sess.UpdatedAt = now
	if err := tx.Sessions().Save(ctx, sess); err != nil {
		return persistenceErr(err, "saving session", cgerr.FieldClaimID(claimID))
	}
	return nil
}
