// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package state maps an accumulated evidence score to the visible
// per-subspace lifecycle state. Evidence is supplied by the backend's
// report layer; this package only derives state, it never mutates
// evidence.
package state

import (
	"fmt"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// State is the ordinal lifecycle stage of a subspace, driven purely by
// accumulated evidence. Higher evidence never yields a lower state.
type State int

const (
	Latent State = iota
	Discovered
	Engaged
	Saturated
)

// String returns the lowercase display name of the state.
func (s State) String() string {
	switch s {
	case Latent:
		return "latent"
	case Discovered:
		return "discovered"
	case Engaged:
		return "engaged"
	case Saturated:
		return "saturated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Bands holds the lower evidence boundary of each non-Latent state.
// Each boundary is inclusive: evidence equal to Discovered is already
// Discovered, not Latent.
type Bands struct {
	Discovered float64
	Engaged    float64
	Saturated  float64
}

// DefaultBands are the standard evidence boundaries.
var DefaultBands = Bands{Discovered: 1, Engaged: 3, Saturated: 6}

// Validate checks that the boundaries are strictly ascending and
// non-negative, which keeps FromEvidence monotone.
func (b Bands) Validate() error {
	if b.Discovered < 0 {
		return dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"state bands: discovered boundary must be non-negative, got %g", b.Discovered)
	}
	if b.Engaged <= b.Discovered || b.Saturated <= b.Engaged {
		return dlerr.Errorf(dlerr.CodeConfigValidateInvalidValue,
			"state bands must be strictly ascending, got %g < %g < %g",
			b.Discovered, b.Engaged, b.Saturated)
	}
	return nil
}

// FromEvidence maps an evidence score to a State. Total over all reals:
// negative evidence clamps to Latent rather than erroring.
func (b Bands) FromEvidence(evidence float64) State {
	switch {
	case evidence >= b.Saturated:
		return Saturated
	case evidence >= b.Engaged:
		return Engaged
	case evidence >= b.Discovered:
		return Discovered
	default:
		return Latent
	}
}

// FromEvidence maps an evidence score to a State using DefaultBands.
func FromEvidence(evidence float64) State {
	return DefaultBands.FromEvidence(evidence)
}
