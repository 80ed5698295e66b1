// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package agent

// LocksHeld exposes ClaimLocks.held for white-box testing.
func LocksHeld(l *ClaimLocks) int { return l.held() }

// RegisterTool adds t to a built runtime's registry for testing.
func RegisterTool(rt *Runtime, t Tool) {
	rt.Registry.tools[t.Definition.Name] = t
}
