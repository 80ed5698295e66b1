// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/store"
)

func TestCheckpointStore_OneOpenPerClaim(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	c := seedClaim(t, s, 150000)

	require.NoError(t, s.Checkpoints().Create(ctx, &store.Checkpoint{
		ID: "cp-1", ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte{0xa0},
	}))
	err := s.Checkpoints().Create(ctx, &store.Checkpoint{
		ID: "cp-2", ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte{0xa0},
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	open, err := s.Checkpoints().Open(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "cp-1", open.ID)
	assert.False(t, open.Resolved())

	_, err = s.Checkpoints().Resolve(ctx, "cp-1", store.ActionRequestInfo, time.Now())
	require.NoError(t, err)

	// A resolved checkpoint no longer blocks a new one.
	require.NoError(t, s.Checkpoints().Create(ctx, &store.Checkpoint{
		ID: "cp-2", ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte{0xa0},
	}))

	latest, err := s.Checkpoints().Latest(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "cp-2", latest.ID)

	all, err := s.Checkpoints().ListByClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheckpointStore_ResolveOnce(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	c := seedClaim(t, s, 150000)
	require.NoError(t, s.Checkpoints().Create(ctx, &store.Checkpoint{
		ID: "cp-1", ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte("x"),
	}))

	at := time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC)
	cp, err := s.Checkpoints().Resolve(ctx, "cp-1", store.ActionApprove, at)
	require.NoError(t, err)
	require.NotNil(t, cp.ResolvedAt)
	assert.True(t, at.Equal(*cp.ResolvedAt))
	assert.Equal(t, store.ActionApprove, cp.Outcome)

	again, err := s.Checkpoints().Resolve(ctx, "cp-1", store.ActionReject, time.Now())
	assert.ErrorIs(t, err, store.ErrConflict)
	require.NotNil(t, again)
	assert.Equal(t, store.ActionApprove, again.Outcome)

	_, err = s.Checkpoints().Resolve(ctx, "missing", store.ActionApprove, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckpointStore_ConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	c := seedClaim(t, s, 150000)
	require.NoError(t, s.Checkpoints().Create(ctx, &store.Checkpoint{
		ID: "cp-1", ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte("x"),
	}))

	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for _, action := range []store.DecisionAction{store.ActionApprove, store.ActionReject, store.ActionApprove, store.ActionReject} {
		wg.Add(1)
		go func(a store.DecisionAction) {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				_, err := tx.Checkpoints().Resolve(ctx, "cp-1", a, time.Now())
				return err
			})
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflicts.Add(1)
			}
		}(action)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(3), conflicts.Load())
}

func TestCheckpointStore_ListOpen(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := seedClaim(t, s, 60000)
	b := seedClaim(t, s, 160000)
	for i, c := range []*store.Claim{a, b} {
		require.NoError(t, s.Checkpoints().Create(ctx, &store.Checkpoint{
			ID: []string{"cp-a", "cp-b"}[i], ClaimID: c.ID, ToolName: "request_approval", Continuation: []byte("x"),
		}))
	}
	_, err := s.Checkpoints().Resolve(ctx, "cp-a", store.ActionApprove, time.Now())
	require.NoError(t, err)

	open, err := s.Checkpoints().ListOpen(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "cp-b", open[0].ID)
}
