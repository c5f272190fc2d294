package model

import (
	"fmt"
	"strings"
)

// ObjectKind distinguishes active satellites from debris.
type ObjectKind string

const (
	KindSatellite ObjectKind = "SATELLITE"
	KindDebris    ObjectKind = "DEBRIS"
)

// ParseKind maps a free-form kind string onto an ObjectKind. Anything that is
// not recognisably debris is treated as a satellite.
func ParseKind(s string) ObjectKind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindDebris)) {
		return KindDebris
	}
	return KindSatellite
}

// TrackedObject is a single catalog entry. Catalog entries are shared
// read-only; nothing in the core mutates them after loading.
type TrackedObject struct {
	ID    string
	Name  string
	Kind  ObjectKind
	Orbit OrbitModel
}

// Key returns the identity of the object within its catalog: the ID when
// present, otherwise the name.
func (o TrackedObject) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.Name
}

// DisplayName returns the name, falling back to the key.
func (o TrackedObject) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Key()
}

// Validate reports whether the object can be propagated.
func (o TrackedObject) Validate() error {
	if o.Key() == "" {
		return fmt.Errorf("%w: object has no identity", ErrInvalidElements)
	}
	if o.Orbit == nil {
		return fmt.Errorf("%w: object %q has no orbit", ErrInvalidElements, o.Key())
	}
	if err := o.Orbit.Validate(); err != nil {
		return fmt.Errorf("object %q: %w", o.Key(), err)
	}
	return nil
}

// IsDebris reports whether the object is debris.
func (o TrackedObject) IsDebris() bool { return o.Kind == KindDebris }

// SemiMajorAxisKm returns the orbit's semi-major axis, or 0 without an orbit.
func (o TrackedObject) SemiMajorAxisKm() float64 {
	if o.Orbit == nil {
		return 0
	}
	return o.Orbit.SemiMajorAxisKm()
}
