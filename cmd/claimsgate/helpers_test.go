// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sigil-dev/claimsgate/internal/config"
)

// isolate keeps config discovery and the keyring away from the developer's
// real environment.
func isolate(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

// runCLI executes the root command and returns its combined output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if stdin != "" {
		cmd.SetIn(bytes.NewBufferString(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

type testGateway struct {
	*Gateway
	URL     string
	DataDir string
}

// startGateway wires a gateway over a fresh data dir with four users and
// serves it through httptest.
func startGateway(t *testing.T) *testGateway {
	t.Helper()
	dataDir := t.TempDir()

	v := viper.New()
	config.SetDefaults(v)
	v.Set("storage.data_dir", dataDir)
	v.Set("review.tool_timeout", "5s")
	v.Set("auth.tokens", []map[string]any{
		{"token": "tok-alice", "user_id": "usr-alice", "name": "Alice", "role": "USER"},
		{"token": "tok-carol", "user_id": "apr-carol", "name": "Carol", "role": "APPROVER"},
		{"token": "tok-admin", "user_id": "adm-root", "name": "Root", "role": "ADMIN"},
	})
	cfg, err := config.FromViper(v, nil)
	require.NoError(t, err)

	gw, err := WireGateway(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(gw.Server.Handler())
	t.Cleanup(ts.Close)
	return &testGateway{Gateway: gw, URL: ts.URL, DataDir: dataDir}
}

// as returns the global flags that point a client command at g.
func (g *testGateway) as(token string, args ...string) []string {
	return append([]string{"--addr", g.URL, "--token", token}, args...)
}
