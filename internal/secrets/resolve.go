// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
// Returns an error if the URI is malformed.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", dlerr.Errorf(dlerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", dlerr.Errorf(dlerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Returns the original value unchanged if it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", dlerr.Wrapf(err, dlerr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveViperSecrets walks all keys in a Viper instance and resolves any
// string values that use the keyring:// URI scheme. This is a post-load
// resolution step, not a Viper decoder hook.
//
// All resolution failures are collected and returned as a single error so
// a misconfigured secret is caught at startup, not at first use.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, dlerr.Wrapf(err, dlerr.CodeSecretResolveFailure,
				"config key %q references unresolvable secret %q", key, val))
			continue
		}

		v.Set(key, resolved)
	}
	return dlerr.Join(errs...)
}

// ResolveToken resolves the backend API token. A keyring:// URI is looked
// up in the store; a literal value is returned as-is; an empty value falls
// back to the default driftline keyring entry, and an empty string is
// returned when no token is stored there either (the backend may be open).
func ResolveToken(store Store, configured string) (string, error) {
	if IsKeyringURI(configured) {
		return ResolveKeyringURI(store, configured)
	}
	if configured != "" {
		return configured, nil
	}

	token, err := store.Retrieve(DefaultService, TokenKey)
	if err != nil {
		if dlerr.HasCode(err, dlerr.CodeSecretNotFound) {
			return "", nil
		}
		return "", dlerr.Wrap(err, dlerr.CodeSecretResolveFailure, "resolving backend token")
	}
	return token, nil
}
