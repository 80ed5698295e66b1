// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// indexKey holds a JSON list of the keys stored for a service, since the
// OS keyrings cannot be enumerated portably.
const indexKey = "_index"

// Keyring stores secrets in the OS keyring (Keychain, Secret Service or
// Windows Credential Manager).
type Keyring struct {
	mu sync.Mutex
}

func NewKeyring() *Keyring {
	return &Keyring{}
}

func (k *Keyring) Set(service, key, value string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	if key == indexKey {
		return cgerr.Errorf(cgerr.CodeSecretRefInvalid, "key %q is reserved", key)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(service, key, value); err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	keys, err := k.index(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return k.saveIndex(service, append(keys, key))
}

func (k *Keyring) Get(service, key string) (string, error) {
	if err := checkName(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", cgerr.Errorf(cgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (k *Keyring) Delete(service, key string) error {
	if err := checkName(service, key); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return cgerr.Errorf(cgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := k.index(service)
	if err != nil {
		return err
	}
	return k.saveIndex(service, slices.DeleteFunc(keys, func(s string) bool { return s == key }))
}

func (k *Keyring) Keys(service string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	keys, err := k.index(service)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func (k *Keyring) index(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "reading key index of %s", service)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "decoding key index of %s", service)
	}
	return keys, nil
}

func (k *Keyring) saveIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index", "service", service, "error", err)
		}
		return nil
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "encoding key index of %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "saving key index of %s", service)
	}
	return nil
}

func checkName(service, key string) error {
	if service == "" || key == "" {
		return cgerr.Errorf(cgerr.CodeSecretRefInvalid, "service and key are required, got %q/%q", service, key)
	}
	return nil
}
