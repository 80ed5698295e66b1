// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func TestCoded(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want cgerr.Code
	}{
		{"not found", fmt.Errorf("claim x: %w", store.ErrNotFound), cgerr.CodeClaimGetNotFound},
		{"conflict", fmt.Errorf("stale: %w", store.ErrConflict), cgerr.CodeClaimUpdateConflict},
		{"invalid", fmt.Errorf("bad: %w", store.ErrInvalidInput), cgerr.CodeStoreInvalidInput},
		{"database", fmt.Errorf("disk: %w", store.ErrDatabase), cgerr.CodeStoreDatabaseFailure},
		{"already coded", cgerr.New(cgerr.CodeCheckpointDuplicate, "dup"), cgerr.CodeCheckpointDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Coded(tt.err, cgerr.CodeClaimGetNotFound, cgerr.CodeClaimUpdateConflict, "loading claim",
				cgerr.FieldClaimID("c-1"))
			assert.Equal(t, tt.want, cgerr.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, store.Coded(nil, "", "", "noop"))
}

func TestCodedWithoutConflictCodeIsPersistence(t *testing.T) {
	err := store.Coded(fmt.Errorf("x: %w", store.ErrConflict), cgerr.CodeClaimGetNotFound, "", "op")
	assert.True(t, cgerr.IsPersistence(err))
}
