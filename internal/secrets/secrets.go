// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps provider API keys and bearer tokens out of the
// configuration file. Config values of the form keyring://service/key are
// replaced with the stored secret at load time.
package secrets

// DefaultService is the keyring service claimsgate stores its own secrets
// under.
const DefaultService = "claimsgate"

// Store is a named-secret backend.
type Store interface {
	Set(service, key, value string) error
	// Get fails with secret.get.not_found when the key is absent.
	Get(service, key string) (string, error)
	Delete(service, key string) error
	// Keys lists the keys written through this store for service.
	Keys(service string) ([]string, error)
}
