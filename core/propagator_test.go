package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

var testEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func circular(name string, radius, phase float64) model.TrackedObject {
	return model.TrackedObject{
		Name:  name,
		Kind:  model.KindSatellite,
		Orbit: model.CircularOrbit{RadiusKm: radius, PhaseRad: phase, InclinationRad: 0.9, RAANRad: 0.3, Epoch: testEpoch},
	}
}

type countingRecorder struct{ n int }

func (c *countingRecorder) IncPropagationFailures() { c.n++ }

func TestPropagateCircularPeriodInvariant(t *testing.T) {
	obj := circular("SAT-A", 7000, 0.4)
	period, err := Period(obj)
	if err != nil {
		t.Fatalf("Period() error: %v", err)
	}
	start := testEpoch.Add(17 * time.Minute)

	a, err := Propagate(obj, start)
	if err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	b, err := Propagate(obj, start.Add(period))
	if err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	if rel := a.Position.DistanceTo(b.Position) / a.Position.Norm(); rel > 1e-6 {
		t.Fatalf("position after one period drifted by %v (relative)", rel)
	}
}

func TestPropagateKeplerianPeriodInvariant(t *testing.T) {
	obj := model.TrackedObject{ID: "K", Orbit: model.KeplerianOrbit{
		SemiMajorAxis: 8000, Eccentricity: 0.2, InclinationRad: 1, RAANRad: 2, ArgPerigeeRad: 0.5,
		MeanAnomalyRad: 1.2, Epoch: testEpoch,
	}}
	period, _ := Period(obj)
	a, err := Propagate(obj, testEpoch)
	if err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	b, _ := Propagate(obj, testEpoch.Add(period))
	if rel := a.Position.DistanceTo(b.Position) / a.Position.Norm(); rel > 1e-6 {
		t.Fatalf("keplerian position after one period drifted by %v", rel)
	}
}

func TestPropagateCircularRadiusAndSpeed(t *testing.T) {
	obj := circular("SAT-R", 6771, 0)
	st, err := Propagate(obj, testEpoch.Add(42*time.Minute))
	if err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	if math.Abs(st.Position.Norm()-6771) > 1e-6 {
		t.Fatalf("radius = %v, want 6771", st.Position.Norm())
	}
	if math.Abs(st.Velocity.Norm()-CircularSpeed(6771)) > 1e-9 {
		t.Fatalf("speed = %v, want %v", st.Velocity.Norm(), CircularSpeed(6771))
	}
	if math.Abs(st.Position.Dot(st.Velocity)) > 1e-6 {
		t.Fatalf("velocity should be perpendicular to position on a circle")
	}
}

func TestKeplerianZeroEccentricityMatchesCircular(t *testing.T) {
	circ := model.TrackedObject{ID: "c", Orbit: model.CircularOrbit{RadiusKm: 7200, InclinationRad: 0.5, RAANRad: 1, PhaseRad: 0.7, Epoch: testEpoch}}
	kep := model.TrackedObject{ID: "k", Orbit: model.KeplerianOrbit{SemiMajorAxis: 7200, InclinationRad: 0.5, RAANRad: 1, MeanAnomalyRad: 0.7, Epoch: testEpoch}}
	at := testEpoch.Add(33 * time.Minute)

	a, _ := Propagate(circ, at)
	b, _ := Propagate(kep, at)
	if d := a.Position.DistanceTo(b.Position); d > 1e-6 {
		t.Fatalf("e=0 keplerian differs from circular by %v km", d)
	}
	if d := a.Velocity.DistanceTo(b.Velocity); d > 1e-9 {
		t.Fatalf("e=0 keplerian velocity differs by %v km/s", d)
	}
}

func TestSolveKeplerConverges(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.5, 0.9, 0.99} {
		for _, M := range []float64{0.01, 1, 3, 5.5} {
			E := solveKepler(M, e)
			if res := E - e*math.Sin(E) - M; math.Abs(res) > 1e-10 {
				t.Fatalf("solveKepler(%v, %v) residual %v", M, e, res)
			}
		}
	}
}

func TestSameOrbitPhaseOffsetKeepsDistance(t *testing.T) {
	a := circular("A", 7000, 0)
	b := circular("B", 7000, 0.1)
	want := 2 * 7000 * math.Sin(0.05)

	for _, dt := range []time.Duration{0, 7 * time.Minute, 3 * time.Hour, 36 * time.Hour} {
		pa, _ := Propagate(a, testEpoch.Add(dt))
		pb, _ := Propagate(b, testEpoch.Add(dt))
		if got := pa.Position.DistanceTo(pb.Position); math.Abs(got-want) > 1e-6 {
			t.Fatalf("distance at %v = %v, want %v", dt, got, want)
		}
	}
}

func TestPropagateDeterministic(t *testing.T) {
	obj := model.TrackedObject{ID: "d", Orbit: model.KeplerianOrbit{SemiMajorAxis: 26560, Eccentricity: 0.01, MeanAnomalyRad: 2}}
	at := time.Date(2031, 2, 3, 4, 5, 6, 789, time.UTC)
	first, _ := Propagate(obj, at)
	for i := 0; i < 10; i++ {
		again, _ := Propagate(obj, at)
		if again != first {
			t.Fatalf("propagation is not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestPropagateRejectsInvalidElements(t *testing.T) {
	_, err := Propagate(circular("ZERO", 0, 0), testEpoch)
	if !errors.Is(err, model.ErrInvalidElements) {
		t.Fatalf("Propagate(a=0) error = %v, want ErrInvalidElements", err)
	}
}

func TestPropagateFarEpoch(t *testing.T) {
	obj := model.TrackedObject{ID: "far", Orbit: model.CircularOrbit{RadiusKm: 7000}}
	st, err := Propagate(obj, time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Propagate() error: %v", err)
	}
	if math.Abs(st.Position.Norm()-7000) > 1e-6 {
		t.Fatalf("far-epoch radius = %v", st.Position.Norm())
	}
}

func TestPropagatorPositionFallsBackToOrigin(t *testing.T) {
	rec := &countingRecorder{}
	p := NewPropagator(WithPropagationRecorder(rec))

	if got := p.Position(circular("BAD", -1, 0), testEpoch); got != (Vec3{}) {
		t.Fatalf("Position() = %+v, want origin", got)
	}
	if rec.n != 1 {
		t.Fatalf("failures recorded = %d, want 1", rec.n)
	}
	if got := p.Position(circular("OK", 7000, 0), testEpoch); got == (Vec3{}) {
		t.Fatalf("valid object propagated to origin")
	}
}

func TestPropagatorPositionsSkipsInvalid(t *testing.T) {
	p := NewPropagator()
	objects := []model.TrackedObject{
		circular("A", 7000, 0),
		circular("ZERO", 0, 0),
		{Name: "DEB", Kind: model.KindDebris, Orbit: model.CircularOrbit{RadiusKm: 7100}},
	}

	all := p.Positions(objects, testEpoch, nil)
	if len(all) != 2 {
		t.Fatalf("Positions() returned %d entries, want 2", len(all))
	}
	for _, pos := range all {
		if pos.Key == "ZERO" {
			t.Fatalf("invalid object must not be propagated")
		}
	}

	debris := p.Positions(objects, testEpoch, model.CategoryDebris.Matches)
	if len(debris) != 1 || debris[0].Name != "DEB" {
		t.Fatalf("debris filter returned %+v", debris)
	}
}
