// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestClaimStatus(t *testing.T) {
	tests := []struct {
		status   store.ClaimStatus
		valid    bool
		terminal bool
	}{
		{store.StatusDraft, true, false},
		{store.StatusUnderAgentReview, true, false},
		{store.StatusPendingApproval, true, false},
		{store.StatusNeedsMoreInfo, true, false},
		{store.StatusApproved, true, true},
		{store.StatusRejected, true, true},
		{"CANCELLED", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestCheckpointResolved(t *testing.T) {
	cp := &store.Checkpoint{ID: "cp-1"}
	assert.False(t, cp.Resolved())

	now := time.Now()
	cp.ResolvedAt = &now
	assert.True(t, cp.Resolved())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, store.ClaimTypeAuto.Valid())
	assert.False(t, store.ClaimType("BOAT").Valid())
	assert.True(t, store.ActionRequestInfo.Valid())
	assert.False(t, store.DecisionAction("ESCALATE").Valid())
	assert.True(t, store.RoleApprover.Valid())
	assert.False(t, store.Role("ROOT").Valid())
}
