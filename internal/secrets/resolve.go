// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

const scheme = "keyring://"

// Ref names one stored secret.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string {
	return scheme + r.Service + "/" + r.Key
}

// IsRef reports whether value is meant as a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, cgerr.Errorf(cgerr.CodeSecretRefInvalid, "%q is not a keyring reference", value)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, cgerr.Errorf(cgerr.CodeSecretRefInvalid, "malformed reference %q, want keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolve returns value unchanged unless it is a reference, in which case
// the referenced secret is returned.
func Resolve(s Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := s.Get(ref.Service, ref.Key)
	if err != nil {
		return "", cgerr.Wrapf(err, cgerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveConfig replaces every reference among v's string values, including
// fields of list entries such as auth.tokens. All failures are returned
// together and v is left untouched for the keys that failed.
func ResolveConfig(v *viper.Viper, s Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if !IsRef(val) {
				continue
			}
			resolved, err := Resolve(s, val)
			if err != nil {
				errs = append(errs, cgerr.Wrapf(err, cgerr.CodeSecretResolveFailure, "config key %s", key))
				continue
			}
			v.Set(key, resolved)
		case []any:
			changed := false
			for i, item := range val {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				for field, raw := range entry {
					str, ok := raw.(string)
					if !ok || !IsRef(str) {
						continue
					}
					resolved, err := Resolve(s, str)
					if err != nil {
						errs = append(errs, cgerr.Wrapf(err, cgerr.CodeSecretResolveFailure, "config key %s[%d].%s", key, i, field))
						continue
					}
					entry[field] = resolved
					changed = true
				}
			}
			if changed {
				v.Set(key, val)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return cgerr.Wrap(errors.Join(errs...), cgerr.CodeSecretResolveFailure, "unresolved secret references")
}
