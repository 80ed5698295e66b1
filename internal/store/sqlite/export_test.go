// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

// ExecRaw runs a statement directly against the database for trigger tests.
func ExecRaw(s *Store, q string, args ...any) error {
	_, err := s.db.Exec(q, args...)
	return err
}
