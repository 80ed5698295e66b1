// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/agent"
	"github.com/sigil-dev/claimsgate/internal/risk"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func riskEngine() risk.Engine { return risk.Engine{} }

func TestContinuation_RoundTrip(t *testing.T) {
	in := agent.Continuation{
		ClaimID:  "clm-1",
		ToolName: agent.ToolRequestApproval,
		Args:     map[string]any{"claim_id": "clm-1", "summary": "High value", "risk_level": "HIGH"},
		Position: 7,
		Phase:    agent.PhaseResubmit,
	}
	data, err := agent.EncodeContinuation(in)
	require.NoError(t, err)

	again, err := agent.EncodeContinuation(in)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")

	out, err := agent.DecodeContinuation(data)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Version)
	assert.Equal(t, in.ClaimID, out.ClaimID)
	assert.Equal(t, in.ToolName, out.ToolName)
	assert.Equal(t, in.Args, out.Args)
	assert.Equal(t, in.Position, out.Position)
	assert.Equal(t, in.Phase, out.Phase)
}

func TestContinuation_DecodeRejectsGarbage(t *testing.T) {
	_, err := agent.DecodeContinuation([]byte{0xff, 0x00})
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeContinuationDecodeInvalid))

	data, err := agent.EncodeContinuation(agent.Continuation{ToolName: agent.ToolRequestApproval})
	require.NoError(t, err)
	_, err = agent.DecodeContinuation(data)
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeContinuationDecodeInvalid))
}

func TestClaimLocks_SerialisesSameClaim(t *testing.T) {
	locks := agent.NewClaimLocks()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("clm-1")
			defer unlock()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, agent.LocksHeld(locks))
}

func TestClaimLocks_IndependentClaims(t *testing.T) {
	locks := agent.NewClaimLocks()

	unlockA := locks.Lock("clm-a")
	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("clm-b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another claim blocked")
	}

	unlockA()
	unlockA()
	assert.Equal(t, 0, agent.LocksHeld(locks))
}

func TestMissingFields(t *testing.T) {
	incident := time.Now()
	complete := &store.Claim{
		PolicyNumber: "POL-1",
		Type:         store.ClaimTypeHealth,
		Amount:       10,
		IncidentDate: &incident,
		Description:  "x",
	}
	assert.Empty(t, agent.MissingFields(complete))
	assert.Equal(t,
		[]string{"policy_number", "claim_type", "claim_amount", "incident_date", "description"},
		agent.MissingFields(&store.Claim{Type: "BOAT"}))
}
