package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

const (
	keplerTolerance     = 1e-12
	keplerMaxIterations = 50
)

// MotionModel yields the inertial state of an orbit a given number of
// seconds after the orbit's reference epoch.
type MotionModel interface {
	StateAfter(dt float64) State
}

// CircularMotionModel moves an object at constant angular rate on a circle.
type CircularMotionModel struct {
	radius float64
	phase0 float64
	rate   float64 // rad/s
	speed  float64 // km/s
	rot    rotation
}

// NewCircularMotionModel constructs a model from a circular orbit. The orbit
// must already be valid.
func NewCircularMotionModel(o model.CircularOrbit) *CircularMotionModel {
	a := o.RadiusKm
	return &CircularMotionModel{
		radius: a,
		phase0: o.PhaseRad,
		rate:   twoPi / periodSeconds(a),
		speed:  CircularSpeed(a),
		rot:    newRotation(o.RAANRad, o.InclinationRad, 0),
	}
}

// StateAfter implements MotionModel.
func (m *CircularMotionModel) StateAfter(dt float64) State {
	theta := wrapAngle(m.phase0 + math.Mod(m.rate*dt, twoPi))
	c, s := math.Cos(theta), math.Sin(theta)
	return State{
		Position: m.rot.apply(m.radius*c, m.radius*s),
		Velocity: m.rot.apply(-m.speed*s, m.speed*c),
	}
}

// KeplerianMotionModel propagates an elliptical two-body orbit.
type KeplerianMotionModel struct {
	a, e        float64
	meanAnomaly float64
	meanMotion  float64 // rad/s
	rot         rotation
}

// NewKeplerianMotionModel constructs a model from a Keplerian element set.
// The orbit must already be valid.
func NewKeplerianMotionModel(o model.KeplerianOrbit) *KeplerianMotionModel {
	a := o.SemiMajorAxis
	return &KeplerianMotionModel{
		a:           a,
		e:           o.Eccentricity,
		meanAnomaly: o.MeanAnomalyRad,
		meanMotion:  math.Sqrt(MU / (a * a * a)),
		rot:         newRotation(o.RAANRad, o.InclinationRad, o.ArgPerigeeRad),
	}
}

// StateAfter implements MotionModel.
func (m *KeplerianMotionModel) StateAfter(dt float64) State {
	M := wrapAngle(m.meanAnomaly + math.Mod(m.meanMotion*dt, twoPi))
	E := solveKepler(M, m.e)

	sinE, cosE := math.Sin(E), math.Cos(E)
	root := math.Sqrt(1 - m.e*m.e)

	// Perifocal coordinates.
	r := m.a * (1 - m.e*cosE)
	p := m.a * (cosE - m.e)
	q := m.a * root * sinE

	// dE/dt = n / (1 - e cos E).
	edot := m.meanMotion * m.a / r
	vp := -m.a * sinE * edot
	vq := m.a * root * cosE * edot

	return State{
		Position: m.rot.apply(p, q),
		Velocity: m.rot.apply(vp, vq),
	}
}

// solveKepler solves M = E - e sin E for the eccentric anomaly.
func solveKepler(M, e float64) float64 {
	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for i := 0; i < keplerMaxIterations; i++ {
		f := E - e*math.Sin(E) - M
		fp := 1 - e*math.Cos(E)
		delta := f / fp
		E -= delta
		if math.Abs(delta) < keplerTolerance {
			break
		}
	}
	return E
}

// motionFor picks the motion model for an orbit variant. The orbit must be
// valid; unknown variants yield nil.
func motionFor(orbit model.OrbitModel) MotionModel {
	switch o := orbit.(type) {
	case model.CircularOrbit:
		return NewCircularMotionModel(o)
	case *model.CircularOrbit:
		return NewCircularMotionModel(*o)
	case model.KeplerianOrbit:
		return NewKeplerianMotionModel(o)
	case *model.KeplerianOrbit:
		return NewKeplerianMotionModel(*o)
	default:
		return nil
	}
}

// secondsSince returns t - ref in seconds without going through
// time.Duration, which saturates for spans beyond ~292 years.
func secondsSince(ref, t time.Time) float64 {
	whole := float64(t.Unix() - ref.Unix())
	frac := float64(t.Nanosecond()-ref.Nanosecond()) / 1e9
	return whole + frac
}
