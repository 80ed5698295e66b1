// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"fmt"
	"sync"
)

// Factory opens a Store rooted at dataDir.
type Factory func(dataDir string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the store for cfg using the registered backend.
func Open(cfg *StorageConfig) (Store, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend %q: %w", backend, ErrInvalidInput)
	}

	return factory(cfg.DataDir)
}
