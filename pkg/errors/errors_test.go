// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := cgerr.New(
		cgerr.CodeClaimTransitionIllegal,
		"cannot approve claim",
		cgerr.FieldClaimID("c-123"),
		cgerr.FieldStatus("DRAFT"),
	)

	require.Error(t, err)
	assert.Equal(t, cgerr.CodeClaimTransitionIllegal, cgerr.CodeOf(err))
	assert.True(t, cgerr.IsIllegalTransition(err))

	fields := cgerr.FieldsOf(err)
	assert.Equal(t, "c-123", fields["claim_id"])
	assert.Equal(t, "DRAFT", fields["status"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := cgerr.Errorf(cgerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.True(t, cgerr.IsPersistence(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, cgerr.Wrap(nil, cgerr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, cgerr.Wrapf(nil, cgerr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, cgerr.With(nil, cgerr.FieldTool("x")))
}

func TestWrapPreservesChainAndFields(t *testing.T) {
	root := stderrors.New("record missing")
	err := cgerr.Wrap(root, cgerr.CodeCheckpointNotFound, "loading checkpoint",
		cgerr.FieldCheckpointID("cp-42"))

	assert.ErrorIs(t, err, root)
	assert.True(t, cgerr.IsNotFound(err))
	assert.Equal(t, "cp-42", cgerr.FieldsOf(err)["checkpoint_id"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := cgerr.With(stderrors.New("something broke"), cgerr.FieldUserID("u-1"))

	assert.Equal(t, cgerr.CodeServerInternalFailure, cgerr.CodeOf(enriched))
	assert.Equal(t, "u-1", cgerr.FieldsOf(enriched)["user_id"])
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := cgerr.New(cgerr.CodeCheckpointAlreadyResolved, "resolved")
	outer := cgerr.Wrap(inner, cgerr.CodeServerInternalFailure, "handler")
	assert.True(t, cgerr.IsAlreadyResolved(outer))
	assert.Equal(t, http.StatusConflict, cgerr.HTTPStatus(outer))
}

func TestErrorIsThroughMixedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	outer := cgerr.Wrap(fmt.Errorf("mid: %w", sentinel), cgerr.CodeServerInternalFailure, "handler")
	assert.ErrorIs(t, outer, sentinel)
}

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   cgerr.Code
		status int
		check  func(error) bool
	}{
		{"claim not found", cgerr.CodeClaimGetNotFound, 404, cgerr.IsNotFound},
		{"checkpoint not found", cgerr.CodeCheckpointNotFound, 404, cgerr.IsNotFound},
		{"validation", cgerr.CodeClaimValidateInvalid, 400, cgerr.IsInvalidInput},
		{"illegal transition", cgerr.CodeClaimTransitionIllegal, 409, cgerr.IsIllegalTransition},
		{"duplicate checkpoint", cgerr.CodeCheckpointDuplicate, 409, cgerr.IsDuplicateCheckpoint},
		{"already resolved", cgerr.CodeCheckpointAlreadyResolved, 409, cgerr.IsAlreadyResolved},
		{"version conflict", cgerr.CodeClaimUpdateConflict, 409, cgerr.IsConflict},
		{"guard forbidden", cgerr.CodeClaimTransitionForbidden, 403, cgerr.IsUnauthorized},
		{"unauthorized", cgerr.CodeServerAuthUnauthorized, 401, cgerr.IsUnauthorized},
		{"tool failure", cgerr.CodeAgentToolExecutionFailure, 502, cgerr.IsAgentExecution},
		{"tool timeout", cgerr.CodeAgentToolTimeout, 504, cgerr.IsAgentExecution},
		{"summary upstream", cgerr.CodeSummaryUpstreamFailure, 502, cgerr.IsUpstreamFailure},
		{"persistence", cgerr.CodeStoreDatabaseFailure, 503, cgerr.IsPersistence},
		{"internal", cgerr.CodeServerInternalFailure, 500, func(err error) bool { return !cgerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cgerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, cgerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationOnPlainAndNil(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain")} {
		assert.False(t, cgerr.IsNotFound(err))
		assert.False(t, cgerr.IsConflict(err))
		assert.False(t, cgerr.IsInvalidInput(err))
		assert.False(t, cgerr.IsAlreadyResolved(err))
		assert.False(t, cgerr.IsPersistence(err))
		assert.Equal(t, http.StatusInternalServerError, cgerr.HTTPStatus(err))
	}
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := cgerr.Join(a, b)

	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, cgerr.CodeServerInternalFailure, cgerr.CodeOf(joined))
}
