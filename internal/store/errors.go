// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"errors"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Sentinel errors returned by backends. Callers classify them with errors.Is
// and translate them to coded errors at the service boundary.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a compare-and-set lost: a stale claim version,
	// a second open checkpoint, or a checkpoint that is already resolved.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates the backend itself failed.
	ErrDatabase = errors.New("database error")
)

// Coded translates a backend error into a coded error, choosing notFound or
// conflict for the matching sentinels and store.database.failure otherwise.
// A nil err returns nil; an already coded error is returned as is.
func Coded(err error, notFound, conflict cgerr.Code, msg string, fields ...cgerr.Attr) error {
	switch {
	case err == nil:
		return nil
	case cgerr.CodeOf(err) != "":
		return err
	case errors.Is(err, ErrNotFound) && notFound != "":
		return cgerr.Wrap(err, notFound, msg, fields...)
	case errors.Is(err, ErrConflict) && conflict != "":
		return cgerr.Wrap(err, conflict, msg, fields...)
	case errors.Is(err, ErrInvalidInput):
		return cgerr.Wrap(err, cgerr.CodeStoreInvalidInput, msg, fields...)
	default:
		return cgerr.Wrap(err, cgerr.CodeStoreDatabaseFailure, msg, fields...)
	}
}
