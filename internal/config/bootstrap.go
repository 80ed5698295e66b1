// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

//go:embed claimsgate.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/claimsgate/claimsgate.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cgerr.Wrap(err, cgerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "claimsgate", "claimsgate.yaml"), nil
}

// WriteDefault writes the commented default config to path with owner-only
// permissions. An existing file is left alone unless force is set; the
// returned bool reports whether anything was written.
func WriteDefault(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, cgerr.Wrapf(err, cgerr.CodeConfigLoadReadFailure, "checking %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, cgerr.Wrapf(err, cgerr.CodeCLISetupFailure, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, cgerr.Wrapf(err, cgerr.CodeCLISetupFailure, "writing %s", path)
	}
	return true, nil
}
