// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/secrets"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func TestSecretLifecycle(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "", "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "No secrets stored.\n", out)

	out, err = runCLI(t, "sk-test-123\n", "secret", "set", "anthropic-key")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://claimsgate/anthropic-key")

	_, err = runCLI(t, "tok-approver", "secret", "set", "approver-token")
	require.NoError(t, err, "stdin without a trailing newline")

	got, err := secrets.NewKeyring().Get(secrets.DefaultService, "anthropic-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", got)

	out, err = runCLI(t, "", "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "anthropic-key\napprover-token\n", out)

	out, err = runCLI(t, "", "secret", "delete", "anthropic-key")
	require.NoError(t, err)
	assert.Equal(t, "Deleted secret: anthropic-key\n", out)

	out, err = runCLI(t, "", "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "approver-token\n", out)
}

func TestSecretErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		code  cgerr.Code
	}{
		{name: "delete missing", args: []string{"secret", "delete", "missing"}, code: cgerr.CodeSecretNotFound},
		{name: "empty value", stdin: "\n", args: []string{"secret", "set", "k"}, code: cgerr.CodeCLIInputInvalid},
		{name: "reserved name", stdin: "v\n", args: []string{"secret", "set", "_index"}, code: cgerr.CodeSecretRefInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.True(t, cgerr.HasCode(err, tt.code), "want %s, got %v", tt.code, err)
		})
	}
}
