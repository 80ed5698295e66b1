// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package summary

import (
	"sync"
	"time"

	"github.com/sigil-dev/claimsgate/pkg/health"
)

// HealthTracker marks a writer unhealthy after a failure until the cooldown
// has elapsed.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

func NewHealthTracker(cooldown time.Duration) *HealthTracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &HealthTracker{healthy: true, cooldown: cooldown, nowFunc: time.Now}
}

// IsHealthy returns true if the writer is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// Failures returns the cumulative failure count.
func (h *HealthTracker) Failures() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failureCount
}

// Metrics snapshots the tracker. CooldownUntil is set only while the
// writer is being skipped.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := health.Metrics{FailureCount: h.failureCount, Available: true}
	if h.failureCount > 0 {
		at := h.failedAt
		m.LastFailureAt = &at
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		if h.nowFunc().Before(until) {
			m.CooldownUntil = &until
			m.Available = false
		}
	}
	return m
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}
