package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidElements marks an element set that cannot be propagated.
var ErrInvalidElements = errors.New("invalid orbital elements")

// J2000 is the reference epoch used when an orbit carries no epoch of its own.
var J2000 = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// OrbitModel is the orbit description attached to a tracked object. It is a
// closed set: CircularOrbit or KeplerianOrbit.
type OrbitModel interface {
	// SemiMajorAxisKm returns the orbit's semi-major axis (the radius for
	// circular orbits).
	SemiMajorAxisKm() float64
	// ReferenceEpoch returns the epoch at which the phase elements hold.
	ReferenceEpoch() time.Time
	// Validate reports whether the elements describe a propagatable orbit.
	Validate() error

	isOrbitModel()
}

// CircularOrbit is the simplified model where only the orbital radius is
// required. Orientation defaults to equatorial and the phase to zero.
type CircularOrbit struct {
	RadiusKm       float64
	InclinationRad float64
	RAANRad        float64
	// PhaseRad is the argument of latitude at Epoch.
	PhaseRad float64
	Epoch    time.Time
}

// KeplerianOrbit is a full two-body element set. Angles are radians.
type KeplerianOrbit struct {
	SemiMajorAxis  float64 // km
	Eccentricity   float64
	InclinationRad float64
	RAANRad        float64
	ArgPerigeeRad  float64
	MeanAnomalyRad float64
	Epoch          time.Time
}

func (CircularOrbit) isOrbitModel()  {}
func (KeplerianOrbit) isOrbitModel() {}

// SemiMajorAxisKm implements OrbitModel.
func (o CircularOrbit) SemiMajorAxisKm() float64 { return o.RadiusKm }

// SemiMajorAxisKm implements OrbitModel.
func (o KeplerianOrbit) SemiMajorAxisKm() float64 { return o.SemiMajorAxis }

// ReferenceEpoch implements OrbitModel.
func (o CircularOrbit) ReferenceEpoch() time.Time { return epochOrJ2000(o.Epoch) }

// ReferenceEpoch implements OrbitModel.
func (o KeplerianOrbit) ReferenceEpoch() time.Time { return epochOrJ2000(o.Epoch) }

// Validate implements OrbitModel.
func (o CircularOrbit) Validate() error {
	if err := validateAxis(o.RadiusKm); err != nil {
		return err
	}
	return validateAngles(o.InclinationRad, o.RAANRad, o.PhaseRad)
}

// Validate implements OrbitModel.
func (o KeplerianOrbit) Validate() error {
	if err := validateAxis(o.SemiMajorAxis); err != nil {
		return err
	}
	if !isFinite(o.Eccentricity) || o.Eccentricity < 0 || o.Eccentricity >= 1 {
		return fmt.Errorf("%w: eccentricity %v outside [0, 1)", ErrInvalidElements, o.Eccentricity)
	}
	return validateAngles(o.InclinationRad, o.RAANRad, o.ArgPerigeeRad, o.MeanAnomalyRad)
}

func validateAxis(a float64) error {
	if !isFinite(a) || a <= 0 {
		return fmt.Errorf("%w: semi-major axis %v km must be positive", ErrInvalidElements, a)
	}
	return nil
}

func validateAngles(angles ...float64) error {
	for _, v := range angles {
		if !isFinite(v) {
			return fmt.Errorf("%w: non-finite angle", ErrInvalidElements)
		}
	}
	return nil
}

func epochOrJ2000(t time.Time) time.Time {
	if t.IsZero() {
		return J2000
	}
	return t
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
