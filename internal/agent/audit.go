// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

import (
	"context"
	"log/slog"
)

// auditLogEscalationThreshold is the number of consecutive audit append
// failures after which they are logged at Error instead of Warn.
const auditLogEscalationThreshold = 3

// logAuditFailure logs an audit append failure at an escalating level:
// Warn for the first few consecutive failures, Error thereafter.
func logAuditFailure(ctx context.Context, log *slog.Logger, consecutive int64, msg string, attrs ...slog.Attr) {
	logLevel := slog.LevelWarn
	if consecutive >= auditLogEscalationThreshold {
		logLevel = slog.LevelError
	}
	log.LogAttrs(ctx, logLevel, msg, attrs...)
}
