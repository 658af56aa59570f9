// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package catalog holds the user's interest areas: spaces, their
// subspaces, and the markers/centroids/evidence the classifier reads.
// Definitions are supplied externally (catalog file, backend refresh);
// the core never writes them.
package catalog

import (
	"github.com/driftline-dev/driftline/internal/state"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
	"github.com/driftline-dev/driftline/pkg/vector"
)

// Subspace is a named interest area owned by a space. Markers feed
// stage-1 filtering, the centroid feeds stage-2 scoring, and evidence is
// the backend-computed accumulator driving the derived state.
type Subspace struct {
	ID       string        `yaml:"id" json:"id"`
	Name     string        `yaml:"name" json:"name"`
	Markers  []string      `yaml:"markers" json:"markers"`
	Centroid vector.Vector `yaml:"centroid" json:"centroid"`
	Evidence float64       `yaml:"evidence" json:"evidence"`
}

// State derives the subspace's current lifecycle state from its evidence.
func (s *Subspace) State(bands state.Bands) state.State {
	return bands.FromEvidence(s.Evidence)
}

// Space is a user-defined interest area grouping subspaces.
type Space struct {
	ID        string      `yaml:"id" json:"id"`
	Name      string      `yaml:"name" json:"name"`
	Subspaces []*Subspace `yaml:"subspaces" json:"subspaces"`
}

// Catalog is a read-only snapshot of every space and subspace.
type Catalog struct {
	Spaces []*Space `yaml:"spaces" json:"spaces"`
}

// Space returns the space with the given id.
func (c *Catalog) Space(id string) (*Space, error) {
	for _, sp := range c.Spaces {
		if sp.ID == id {
			return sp, nil
		}
	}
	return nil, dlerr.Errorf(dlerr.CodeCatalogSpaceNotFound, "space %q not found", id)
}

// SpaceOf returns the space owning the given subspace id, or nil.
func (c *Catalog) SpaceOf(subspaceID string) *Space {
	for _, sp := range c.Spaces {
		for _, sub := range sp.Subspaces {
			if sub.ID == subspaceID {
				return sp
			}
		}
	}
	return nil
}

// Subspaces returns every subspace across all spaces, in catalog order.
func (c *Catalog) Subspaces() []*Subspace {
	var subs []*Subspace
	for _, sp := range c.Spaces {
		subs = append(subs, sp.Subspaces...)
	}
	return subs
}

// Validate checks structural invariants: non-empty unique ids throughout.
func (c *Catalog) Validate() []error {
	var errs []error

	seen := map[string]bool{}
	for _, sp := range c.Spaces {
		if sp.ID == "" {
			errs = append(errs, dlerr.New(dlerr.CodeCatalogSubspaceInvalid, "catalog: space with empty id"))
			continue
		}
		if seen[sp.ID] {
			errs = append(errs, dlerr.Errorf(dlerr.CodeCatalogSubspaceInvalid, "catalog: duplicate space id %q", sp.ID))
		}
		seen[sp.ID] = true

		for _, sub := range sp.Subspaces {
			if sub.ID == "" {
				errs = append(errs, dlerr.Errorf(dlerr.CodeCatalogSubspaceInvalid,
					"catalog: space %q has a subspace with empty id", sp.ID))
				continue
			}
			if seen[sub.ID] {
				errs = append(errs, dlerr.Errorf(dlerr.CodeCatalogSubspaceInvalid,
					"catalog: duplicate subspace id %q", sub.ID))
			}
			seen[sub.ID] = true

			if sub.Evidence < 0 {
				errs = append(errs, dlerr.Errorf(dlerr.CodeCatalogSubspaceInvalid,
					"catalog: subspace %q has negative evidence %g", sub.ID, sub.Evidence))
			}
		}
	}

	return errs
}

// clone returns a deep copy of the catalog.
func (c *Catalog) clone() *Catalog {
	out := &Catalog{Spaces: make([]*Space, 0, len(c.Spaces))}
	for _, sp := range c.Spaces {
		csp := &Space{ID: sp.ID, Name: sp.Name, Subspaces: make([]*Subspace, 0, len(sp.Subspaces))}
		for _, sub := range sp.Subspaces {
			csp.Subspaces = append(csp.Subspaces, &Subspace{
				ID:       sub.ID,
				Name:     sub.Name,
				Markers:  append([]string(nil), sub.Markers...),
				Centroid: vector.Clone(sub.Centroid),
				Evidence: sub.Evidence,
			})
		}
		out.Spaces = append(out.Spaces, csp)
	}
	return out
}

// Overlay applies a remote catalog on top of this one: matching subspace
// ids take the remote markers, centroid, and evidence; subspaces and
// spaces unknown locally are appended. The receiver is modified in
// place.
func (c *Catalog) Overlay(remote *Catalog) {
	if remote == nil {
		return
	}

	local := map[string]*Subspace{}
	for _, sub := range c.Subspaces() {
		local[sub.ID] = sub
	}
	knownSpaces := map[string]*Space{}
	for _, sp := range c.Spaces {
		knownSpaces[sp.ID] = sp
	}

	for _, sp := range remote.Spaces {
		have, ok := knownSpaces[sp.ID]
		if !ok {
			c.Spaces = append(c.Spaces, sp)
			continue
		}
		for _, sub := range sp.Subspaces {
			if existing, ok := local[sub.ID]; ok {
				existing.Markers = sub.Markers
				existing.Centroid = sub.Centroid
				existing.Evidence = sub.Evidence
				continue
			}
			have.Subspaces = append(have.Subspaces, sub)
		}
	}
}
