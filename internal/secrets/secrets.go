// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package secrets keeps the backend API token out of config files by
// storing it in the OS keyring.
package secrets

// DefaultService is the keyring service name driftline stores under.
const DefaultService = "driftline"

// TokenKey is the key the backend API token is stored under.
const TokenKey = "backend-token"

// Store provides secure secret storage operations.
// Implementations may use OS keyrings, encrypted files, or other backends.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns CodeSecretNotFound (via dlerr.HasCode) if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns CodeSecretNotFound (via dlerr.HasCode) if the key does not exist.
	Delete(service, key string) error
}
