// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sigil-dev/claimsgate/internal/config"
	"github.com/sigil-dev/claimsgate/internal/identity"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/secrets"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func init() {
	keyring.MockInit()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimsgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
	assert.Equal(t, 10.0, cfg.Networking.RateLimitRPS)
	assert.Equal(t, 30, cfg.Networking.RateLimitBurst)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 2, cfg.Review.MaxToolRetries)
	assert.Equal(t, 30*time.Second, cfg.Review.ToolTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Approvals.CheckpointTTL)
	assert.Equal(t, 50_000.0, cfg.Risk.MediumThreshold)
	assert.Equal(t, 100_000.0, cfg.Risk.HighThreshold)
	assert.Equal(t, "template", cfg.Summary.Provider)
	assert.Equal(t, scanner.ModeFlag, cfg.InputMode())
	assert.True(t, cfg.Scanner.RedactUpstream)
	assert.Empty(t, cfg.Path)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
networking:
  listen: "0.0.0.0:9090"
  cors_origins: ["http://localhost:5173"]
review:
  tool_timeout: 5s
risk:
  medium_threshold: 10000
  high_threshold: 20000
auth:
  tokens:
    - token: tok-alice
      user_id: usr-alice
      name: Alice
      role: USER
    - token: tok-carol
      user_id: apr-carol
      role: approver
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Networking.Listen)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Networking.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.Review.ToolTimeout)
	assert.Equal(t, 10_000.0, cfg.Risk.MediumThreshold)
	require.Len(t, cfg.Auth.Tokens, 2)
	assert.Equal(t, "usr-alice", cfg.Auth.Tokens[0].UserID)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("CLAIMSGATE_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("CLAIMSGATE_REVIEW_MAX_TOOL_RETRIES", "5")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, 5, cfg.Review.MaxToolRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.Equal(t, cgerr.CodeConfigLoadReadFailure, cgerr.CodeOf(err))
}

func TestLoad_CollectsAllProblems(t *testing.T) {
	path := writeConfig(t, `
networking:
  listen: "no-port"
review:
  max_tool_retries: -1
risk:
  medium_threshold: 200
  high_threshold: 100
summary:
  provider: anthropic
auth:
  tokens:
    - token: t1
      user_id: agent
      role: AGENT
logging:
  format: xml
`)

	_, err := config.Load(path, nil)
	require.Error(t, err)
	assert.Equal(t, cgerr.CodeConfigValidateInvalidValue, cgerr.CodeOf(err))
	for _, key := range []string{
		"networking.listen",
		"review.max_tool_retries",
		"risk thresholds",
		"providers.anthropic.api_key",
		"auth.tokens[0].role",
		"logging.format",
	} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_RateLimitNeedsBurst(t *testing.T) {
	path := writeConfig(t, `
networking:
  rate_limit_rps: 5
  rate_limit_burst: 0
`)

	_, err := config.Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "networking.rate_limit_burst")
}

func TestLoad_ScannerMode(t *testing.T) {
	path := writeConfig(t, `
scanner:
  input_mode: BLOCK
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, scanner.ModeBlock, cfg.InputMode())

	path = writeConfig(t, `
scanner:
  input_mode: quarantine
`)
	_, err = config.Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanner.input_mode")
}

func TestValidate_DuplicateTokens(t *testing.T) {
	isolate(t)
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	cfg.Auth.Tokens = []identity.TokenConfig{
		{Token: "same", UserID: "a", Role: "USER"},
		{Token: "same", UserID: "b", Role: "ADMIN"},
	}
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "reuses a token")
}

func TestLoad_ResolvesKeyringReferences(t *testing.T) {
	k := secrets.NewKeyring()
	require.NoError(t, k.Set("claimsgate-cfg", "anthropic", "sk-ant-3"))
	require.NoError(t, k.Set("claimsgate-cfg", "auth/alice", "tok-alice"))

	path := writeConfig(t, `
summary:
  provider: anthropic
  model: claude-haiku-4-5
providers:
  anthropic:
    api_key: keyring://claimsgate-cfg/anthropic
auth:
  tokens:
    - token: keyring://claimsgate-cfg/auth/alice
      user_id: usr-alice
      role: USER
`)

	cfg, err := config.Load(path, k)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-3", cfg.Providers["anthropic"].APIKey)
	assert.Equal(t, "tok-alice", cfg.Auth.Tokens[0].Token)

	sc := cfg.SummaryWriterConfig()
	assert.Equal(t, "anthropic", sc.Provider)
	assert.Equal(t, "claude-haiku-4-5", sc.Model)
	assert.Equal(t, "sk-ant-3", sc.APIKey)
}

func TestLoad_UnresolvedReferenceFails(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: keyring://claimsgate-cfg/absent
`)
	_, err := config.Load(path, secrets.NewKeyring())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.openai.api_key")
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claimsgate.yaml")

	wrote, err := config.WriteDefault(path, false)
	require.NoError(t, err)
	assert.True(t, wrote)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	wrote, err = config.WriteDefault(path, false)
	require.NoError(t, err)
	assert.False(t, wrote)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "template", cfg.Summary.Provider)
	assert.Empty(t, cfg.Auth.Tokens)
}
