// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sigil-dev/claimsgate/internal/identity"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// TokenValidator maps a bearer token to a principal.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*identity.Principal, error)
}

// authMiddleware attaches the caller's principal to the request context.
// Requests without a token pass through anonymously and are refused by the
// claim service; a token that does not validate is refused here.
func authMiddleware(v TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, cgerr.New(cgerr.CodeServerAuthUnauthorized, "authorization header must be a bearer token"))
				return
			}
			if v == nil {
				writeError(w, cgerr.New(cgerr.CodeServerAuthUnauthorized, "authentication is not configured"))
				return
			}

			p, err := v.ValidateToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.DebugContext(r.Context(), "bearer token rejected",
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
		})
	}
}
