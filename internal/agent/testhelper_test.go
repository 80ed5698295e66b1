// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/store/sqlite"
)

var (
	approver = lifecycle.Actor{ID: "apr-1", Role: store.RoleApprover}
	admin    = lifecycle.Actor{ID: "adm-1", Role: store.RoleAdmin}
	claimant = lifecycle.Actor{ID: "usr-1", Role: store.RoleUser}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "claims.db")
}

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRuntime(t *testing.T, s store.Store, mods ...func(*agent.Config)) *agent.Runtime {
	t.Helper()
	cfg := agent.Config{
		Store:       s,
		ToolTimeout: time.Second,
		Logger:      discardLogger(),
	}
	for _, m := range mods {
		m(&cfg)
	}
	rt, err := agent.NewRuntime(cfg)
	require.NoError(t, err)
	return rt
}

// submittedClaim stores a complete claim and submits it, leaving it
// UNDER_AGENT_REVIEW.
func submittedClaim(t *testing.T, s store.Store, amount float64) *store.Claim {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	incident := now.AddDate(0, 0, -10)
	c := &store.Claim{
		ID:                uuid.NewString(),
		OwnerID:           claimant.ID,
		PolicyNumber:      "POL-1001",
		Type:              store.ClaimTypeAuto,
		Amount:            amount,
		Description:       "Rear-ended at a junction; bumper and tailgate replaced.",
		IncidentDate:      &incident,
		DocumentsUploaded: true,
		Status:            store.StatusDraft,
	}
	require.NoError(t, s.Claims().Create(ctx, c))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		tr, err := lifecycle.Apply(c, lifecycle.Event{Trigger: lifecycle.TriggerSubmit, Actor: claimant}, now)
		if err != nil {
			return err
		}
		c.SubmittedAt = &now
		if err := tx.Claims().Update(ctx, c); err != nil {
			return err
		}
		return tx.Transitions().Append(ctx, tr)
	}))
	return c
}

func getClaim(t *testing.T, s store.Store, id string) *store.Claim {
	t.Helper()
	c, err := s.Claims().Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

// auditTrail returns "tool:status" for each audit entry of a claim, in order.
func auditTrail(t *testing.T, s store.Store, claimID string) []string {
	t.Helper()
	entries, err := s.Audit().ListByClaim(context.Background(), claimID)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToolName+":"+string(e.Status))
	}
	return out
}

func decisions(t *testing.T, s store.Store, claimID string) []*store.Decision {
	t.Helper()
	ds, err := s.Decisions().ListByClaim(context.Background(), claimID)
	require.NoError(t, err)
	return ds
}

// escalatedClaim returns a HIGH risk claim suspended at a checkpoint.
func escalatedClaim(t *testing.T, rt *agent.Runtime) (*store.Claim, *agent.Outcome) {
	t.Helper()
	c := submittedClaim(t, rt.Store, 150_000)
	out, err := rt.Reviewer.Review(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusPendingApproval, out.Status)
	return c, out
}
