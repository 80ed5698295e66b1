// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(testDBPath(t, "claims"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedClaim(t *testing.T, s store.Store, amount float64) *store.Claim {
	t.Helper()
	c := &store.Claim{
		ID:           uuid.NewString(),
		OwnerID:      "usr-1",
		PolicyNumber: "POL-1",
		Type:         store.ClaimTypeAuto,
		Amount:       amount,
		Description:  "rear-ended at a junction",
		Status:       store.StatusDraft,
	}
	require.NoError(t, s.Claims().Create(context.Background(), c))
	return c
}
