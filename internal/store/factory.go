// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package store

import (
	"sync"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// StorageConfig selects and parameterises the storage backend.
type StorageConfig struct {
	Backend string
}

// SignalStoreFactory creates a signal store rooted at a data directory.
type SignalStoreFactory func(dataPath string) (SignalStore, error)

var (
	signalFactories = map[string]SignalStoreFactory{}
	factoriesMu     sync.RWMutex
)

// RegisterBackend registers a factory function for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory SignalStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	signalFactories[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewSignalStore creates the signal store for the configured backend.
// The dataPath directory is used to derive the database file path.
func NewSignalStore(cfg *StorageConfig, dataPath string) (SignalStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := signalFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, dlerr.Errorf(dlerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
