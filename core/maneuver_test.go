package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

func TestRecommendManeuver(t *testing.T) {
	th := DefaultThresholds()

	clear := RecommendManeuver(nil, th, nil)
	if clear.Type != ManeuverNone || clear.Threat != nil {
		t.Fatalf("no hazards should be ALL CLEAR, got %+v", clear)
	}

	urgent := RecommendManeuver([]model.HazardRecord{
		{DebrisName: "FAR", Distance: 40},
		{DebrisName: "NEAR", Distance: 2.5},
	}, th, []string{"AQUA"})
	if urgent.Type != ManeuverEmergency || urgent.AlertLevel != AlertCritical {
		t.Fatalf("nearest < 5 km should be an emergency, got %+v", urgent)
	}
	if urgent.DeltaVMps < 15 || urgent.DeltaVMps > 20 {
		t.Fatalf("emergency delta-v = %v, want within [15, 20]", urgent.DeltaVMps)
	}
	if urgent.Threat == nil || urgent.Threat.DebrisName != "NEAR" {
		t.Fatalf("threat = %+v, want NEAR", urgent.Threat)
	}
	if math.Abs(urgent.BurnSeconds-urgent.DeltaVMps*2.5) > 0.05 {
		t.Fatalf("burn = %v for delta-v %v", urgent.BurnSeconds, urgent.DeltaVMps)
	}
	if len(urgent.NotifyAssets) != 1 {
		t.Fatalf("notify = %v", urgent.NotifyAssets)
	}

	advisory := RecommendManeuver([]model.HazardRecord{{DebrisName: "MID", Distance: 60}}, th, nil)
	if advisory.Type != ManeuverPreventive || advisory.AlertLevel != AlertAdvisory {
		t.Fatalf("nearest >= 5 km should be preventive, got %+v", advisory)
	}
	if advisory.DeltaVMps < 2 || advisory.DeltaVMps > 5 {
		t.Fatalf("advisory delta-v = %v, want within [2, 5]", advisory.DeltaVMps)
	}
}

func TestRecommendManeuverCloserNeedsMoreDeltaV(t *testing.T) {
	th := DefaultThresholds()
	near := RecommendManeuver([]model.HazardRecord{{Distance: 0.5}}, th, nil)
	far := RecommendManeuver([]model.HazardRecord{{Distance: 4.5}}, th, nil)
	if near.DeltaVMps <= far.DeltaVMps {
		t.Fatalf("delta-v at 0.5 km (%v) should exceed delta-v at 4.5 km (%v)", near.DeltaVMps, far.DeltaVMps)
	}
}

func TestOrbitPathClosesOnItself(t *testing.T) {
	obj := circular("PATH", 7000, 0.2)
	path := OrbitPath(obj, testEpoch, 0)
	if len(path) != DefaultPathSegments+1 {
		t.Fatalf("len(path) = %d, want %d", len(path), DefaultPathSegments+1)
	}
	if d := path[0].DistanceTo(path[len(path)-1]); d > 1e-3 {
		t.Fatalf("path does not close: gap %v km", d)
	}
	if got := OrbitPath(circular("BAD", 0, 0), testEpoch, 10); len(got) != 0 {
		t.Fatalf("invalid object should yield an empty path")
	}
}

func TestSimilarOrbits(t *testing.T) {
	focus := circular("FOCUS", 7000, 0)
	catalog := []model.TrackedObject{
		focus,
		circular("S1", 7050, 0),
		circular("S2", 6990, 0),
		circular("S3", 7099, 0),
		circular("S4", 7020, 0),
		circular("FAR", 7200, 0),
		{Name: "DEB", Kind: model.KindDebris, Orbit: model.CircularOrbit{RadiusKm: 7001}},
	}
	got := SimilarOrbits(focus, catalog, SimilarOrbitToleranceKm, SimilarOrbitLimit)
	want := []string{"S2", "S4", "S1"}
	if len(got) != len(want) {
		t.Fatalf("SimilarOrbits() = %d entries, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("entry %d = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestDescribeObject(t *testing.T) {
	obj := model.TrackedObject{Name: "ISS (ZARYA)", Orbit: model.CircularOrbit{RadiusKm: 6771}}
	info, err := DescribeObject(obj, testEpoch)
	if err != nil {
		t.Fatalf("DescribeObject() error: %v", err)
	}
	if math.Abs(info.AltitudeKm-400) > 1e-6 {
		t.Fatalf("altitude = %v, want 400", info.AltitudeKm)
	}
	if info.Mission != "Space Station" {
		t.Fatalf("mission = %q", info.Mission)
	}
	if math.Abs(info.SpeedKmS-CircularSpeed(6771)) > 1e-9 {
		t.Fatalf("speed = %v", info.SpeedKmS)
	}
	if info.Geodetic.LatitudeDeg < -90 || info.Geodetic.LatitudeDeg > 90 {
		t.Fatalf("latitude out of range: %v", info.Geodetic.LatitudeDeg)
	}
	if info.Geodetic.LongitudeDeg <= -180 || info.Geodetic.LongitudeDeg > 180 {
		t.Fatalf("longitude out of range: %v", info.Geodetic.LongitudeDeg)
	}
}

func TestToECEFPreservesNorm(t *testing.T) {
	p := Vec3{X: 7000, Y: 1000, Z: 500}
	e := ToECEF(p, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	if math.Abs(e.Norm()-p.Norm()) > 1e-6 {
		t.Fatalf("ECEF norm %v, want %v", e.Norm(), p.Norm())
	}
}
