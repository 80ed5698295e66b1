// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sigil-dev/claimsgate/internal/store"
)

var _ store.UserStore = (*UserStore)(nil)

// UserStore implements store.UserStore.
type UserStore struct {
	q querier
}

func (s *UserStore) Upsert(ctx context.Context, u *store.User) error {
	if u.ID == "" || !u.Role.Valid() {
		return fmt.Errorf("upserting user: %w", store.ErrInvalidInput)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	const q = `INSERT INTO users (id, name, role, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role`

	if _, err := s.q.ExecContext(ctx, q, u.ID, u.Name, string(u.Role), formatTime(u.CreatedAt)); err != nil {
		return dbErr("upserting user "+u.ID, err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*store.User, error) {
	var (
		u             store.User
		role, created string
	)
	err := s.q.QueryRowContext(ctx, `SELECT id, name, role, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("getting user "+id, err)
	}
	u.Role = store.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}
