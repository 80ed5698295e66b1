// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

func claimStoreErr(err error, claimID string) error {
	return store.Coded(err, cgerr.CodeClaimGetNotFound, cgerr.CodeClaimUpdateConflict,
		"claim "+claimID, cgerr.FieldClaimID(claimID))
}

func checkpointStoreErr(err error, checkpointID string) error {
	return store.Coded(err, cgerr.CodeCheckpointNotFound, cgerr.CodeCheckpointAlreadyResolved,
		"checkpoint "+checkpointID, cgerr.FieldCheckpointID(checkpointID))
}

func persistenceErr(err error, msg string, fields ...cgerr.Attr) error {
	return store.Coded(err, "", "", msg, fields...)
}
