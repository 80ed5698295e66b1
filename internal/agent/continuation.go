// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"github.com/sigil-dev/claimsgate/internal/codec"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

const continuationVersion = 1

// Continuation is everything needed to resume a suspended review session.
// It is rebuilt purely from the checkpoint row, never from process memory.
type Continuation struct {
	Version  int            `cbor:"1,keyasint"`
	ClaimID  string         `cbor:"2,keyasint"`
	ToolName string         `cbor:"3,keyasint"`
	Args     map[string]any `cbor:"4,keyasint"`
	// Position is the sequence of the last conversation message the session
	// had seen when it suspended.
	Position int64 `cbor:"5,keyasint"`
	// Phase records which review pass suspended: "review" or "resubmit".
	Phase string `cbor:"6,keyasint"`
}

// EncodeContinuation serialises c deterministically.
func EncodeContinuation(c Continuation) ([]byte, error) {
	c.Version = continuationVersion
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeContinuationDecodeInvalid, "encoding continuation",
			cgerr.FieldClaimID(c.ClaimID))
	}
	return data, nil
}

// DecodeContinuation is the inverse of EncodeContinuation.
func DecodeContinuation(data []byte) (Continuation, error) {
	var c Continuation
	if err := codec.Unmarshal(data, &c); err != nil {
		return Continuation{}, cgerr.Wrap(err, cgerr.CodeContinuationDecodeInvalid, "decoding continuation")
	}
	if c.Version != continuationVersion || c.ClaimID == "" || c.ToolName == "" {
		return Continuation{}, cgerr.New(cgerr.CodeContinuationDecodeInvalid, "continuation is incomplete",
			cgerr.FieldClaimID(c.ClaimID), cgerr.FieldTool(c.ToolName))
	}
	return c, nil
}
