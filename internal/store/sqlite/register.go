// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package sqlite

import (
	"path/filepath"

	"github.com/driftline-dev/driftline/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newSignalStore)
}

func newSignalStore(dataPath string) (store.SignalStore, error) {
	return NewSignalStore(filepath.Join(dataPath, "signals.db"))
}
