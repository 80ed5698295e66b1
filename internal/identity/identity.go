// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package identity supplies the (user, role) pair every guarded claim
// operation checks. Users authenticate with static bearer tokens from
// configuration.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sigil-dev/claimsgate/internal/lifecycle"
	"github.com/sigil-dev/claimsgate/internal/store"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Principal is an authenticated caller.
type Principal struct {
	ID   string
	Name string
	Role store.Role
}

// Actor returns the lifecycle actor for p.
func (p *Principal) Actor() lifecycle.Actor {
	return lifecycle.Actor{ID: p.ID, Role: p.Role}
}

// Decider reports whether p may decide pending claims.
func (p *Principal) Decider() bool {
	return p.Role == store.RoleApprover || p.Role == store.RoleAdmin
}

// RequireRole fails with server.auth.forbidden unless p holds one of roles.
func RequireRole(p *Principal, roles ...store.Role) error {
	if p == nil {
		return cgerr.New(cgerr.CodeServerAuthUnauthorized, "authentication required")
	}
	if slices.Contains(roles, p.Role) {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return cgerr.New(cgerr.CodeServerAuthForbidden, "requires role "+strings.Join(names, " or "),
		cgerr.FieldUserID(p.ID), cgerr.Field("role", string(p.Role)))
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// TokenConfig is one configured bearer token.
type TokenConfig struct {
	Token  string `mapstructure:"token"`
	UserID string `mapstructure:"user_id"`
	Name   string `mapstructure:"name"`
	Role   string `mapstructure:"role"`
}

// TokenValidator checks bearer tokens against SHA-256 hashes of the
// configured tokens.
type TokenValidator struct {
	tokens map[[32]byte]*Principal
}

// NewTokenValidator skips entries with an unknown role or no user id. It
// fails only when tokens were configured and none are usable.
func NewTokenValidator(tokens []TokenConfig) (*TokenValidator, error) {
	m := make(map[[32]byte]*Principal, len(tokens))
	for _, tc := range tokens {
		role := store.Role(strings.ToUpper(tc.Role))
		if tc.Token == "" || tc.UserID == "" || !role.Valid() || role == store.RoleAgent {
			slog.Warn("skipping auth token with invalid user config", "user_id", tc.UserID, "role", tc.Role)
			continue
		}
		name := tc.Name
		if name == "" {
			name = tc.UserID
		}
		m[sha256.Sum256([]byte(tc.Token))] = &Principal{ID: tc.UserID, Name: name, Role: role}
	}
	if len(tokens) > 0 && len(m) == 0 {
		return nil, cgerr.New(cgerr.CodeConfigValidateInvalidValue,
			"all configured auth tokens failed validation")
	}
	return &TokenValidator{tokens: m}, nil
}

// ValidateToken compares against every configured hash so timing does not
// depend on which token matched.
func (v *TokenValidator) ValidateToken(_ context.Context, token string) (*Principal, error) {
	candidate := sha256.Sum256([]byte(token))
	var matched *Principal
	for hash, p := range v.tokens {
		if subtle.ConstantTimeCompare(hash[:], candidate[:]) == 1 {
			matched = p
		}
	}
	if matched == nil {
		return nil, cgerr.New(cgerr.CodeServerAuthUnauthorized, "invalid token")
	}
	cp := *matched
	return &cp, nil
}

// Principals returns the distinct configured principals.
func (v *TokenValidator) Principals() []*Principal {
	seen := map[string]bool{}
	var out []*Principal
	for _, p := range v.tokens {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Principal) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Sync upserts every configured principal into the user store.
func Sync(ctx context.Context, users store.UserStore, v *TokenValidator) error {
	now := time.Now()
	for _, p := range v.Principals() {
		if err := users.Upsert(ctx, &store.User{ID: p.ID, Name: p.Name, Role: p.Role, CreatedAt: now}); err != nil {
			return store.Coded(err, "", "", "saving user "+p.ID, cgerr.FieldUserID(p.ID))
		}
	}
	return nil
}
