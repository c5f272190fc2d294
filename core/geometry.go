package core

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for altitude figures (kilometres).
	EarthRadiusKm = 6371.0

	// MU is Earth's standard gravitational parameter in km³/s².
	MU = 398600.0

	twoPi = 2 * math.Pi
)

// Vec3 is an Earth-centred vector in kilometres (or km/s for velocities).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// rotation is the perifocal-to-inertial rotation for a given orientation
// (RAAN Ω, inclination i, argument of perigee ω).
type rotation struct {
	xx, xy float64
	yx, yy float64
	zx, zy float64
}

func newRotation(raan, incl, argp float64) rotation {
	cO, sO := math.Cos(raan), math.Sin(raan)
	ci, si := math.Cos(incl), math.Sin(incl)
	cw, sw := math.Cos(argp), math.Sin(argp)
	return rotation{
		xx: cO*cw - sO*sw*ci,
		xy: -cO*sw - sO*cw*ci,
		yx: sO*cw + cO*sw*ci,
		yy: -sO*sw + cO*cw*ci,
		zx: sw * si,
		zy: cw * si,
	}
}

// apply maps an in-plane vector (p, q, 0) into the inertial frame.
func (r rotation) apply(p, q float64) Vec3 {
	return Vec3{
		X: r.xx*p + r.xy*q,
		Y: r.yx*p + r.yy*q,
		Z: r.zx*p + r.zy*q,
	}
}

// wrapAngle normalises an angle to [0, 2π).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
