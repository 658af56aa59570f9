// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package catalog

import (
	"errors"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// Source supplies catalog snapshots to the pipeline and server without
// either caring where definitions came from.
type Source interface {
	// Snapshot returns the current catalog. Callers must treat the
	// returned catalog as read-only.
	Snapshot() *Catalog
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, dlerr.Wrap(err, dlerr.CodeCatalogParseInvalidFormat, "parsing catalog")
	}

	if errs := c.Validate(); len(errs) > 0 {
		return nil, dlerr.Wrap(errors.Join(errs...), dlerr.CodeCatalogSubspaceInvalid, "validating catalog")
	}
	return &c, nil
}

// LoadFile reads and parses a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dlerr.Wrapf(err, dlerr.CodeCatalogLoadReadFailure, "reading catalog %s", path)
	}
	return ParseCatalog(data)
}

// FileSource is a Source backed by a YAML file, optionally overlaid with
// backend-supplied definitions via Apply.
type FileSource struct {
	mu      sync.RWMutex
	path    string
	catalog *Catalog
}

// NewFileSource loads the catalog file at path. A missing file yields an
// empty catalog rather than an error: a fresh install simply has no
// interest areas yet.
func NewFileSource(path string) (*FileSource, error) {
	fs := &FileSource{path: path, catalog: &Catalog{}}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fs, nil
	}

	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fs.catalog = c
	return fs, nil
}

// Snapshot returns the current catalog.
func (f *FileSource) Snapshot() *Catalog {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.catalog
}

// Reload re-reads the catalog file, replacing the current snapshot.
func (f *FileSource) Reload() error {
	c, err := LoadFile(f.path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.catalog = c
	f.mu.Unlock()
	return nil
}

// Apply overlays backend-supplied definitions onto the current snapshot.
func (f *FileSource) Apply(remote *Catalog) {
	if remote == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Overlay onto a deep copy so snapshots already handed out stay stable.
	next := f.catalog.clone()
	next.Overlay(remote)
	f.catalog = next
}
