// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file, which may
// hold bearer tokens and provider keys, is readable by group or others.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("config permission check skipped", "path", path, "error", err)
		return
	}
	if insecure(info.Mode()) {
		slog.Warn("config file is readable by other users",
			"path", path,
			"mode", info.Mode().Perm(),
			"recommended", fs.FileMode(0o600),
		)
	}
}

func insecure(mode fs.FileMode) bool {
	return mode.Perm()&0o044 != 0
}
