// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health describes the availability of optional upstream
// dependencies, such as the summary provider, for the health endpoint.
package health

import "time"

// Metrics is a point-in-time snapshot safe to serialize to JSON.
type Metrics struct {
	Provider      string     `json:"provider"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Reporter is implemented by components that track their own health.
type Reporter interface {
	Metrics() Metrics
}
