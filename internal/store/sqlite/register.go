// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"path/filepath"

	"github.com/sigil-dev/claimsgate/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", func(dataDir string) (store.Store, error) {
		return Open(filepath.Join(dataDir, "claims.db"))
	})
}
