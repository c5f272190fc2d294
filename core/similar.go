package core

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

const (
	// SimilarOrbitToleranceKm bounds the semi-major axis difference of
	// comparable orbits.
	SimilarOrbitToleranceKm = 100.0
	// SimilarOrbitLimit caps the number of comparable objects returned.
	SimilarOrbitLimit = 3
)

// SimilarOrbits returns up to limit satellites whose semi-major axis is within
// toleranceKm of focus, closest first. Debris and invalid objects are ignored.
func SimilarOrbits(focus model.TrackedObject, catalog []model.TrackedObject, toleranceKm float64, limit int) []model.TrackedObject {
	out := make([]model.TrackedObject, 0)
	if focus.Validate() != nil || limit <= 0 {
		return out
	}
	a := focus.SemiMajorAxisKm()
	for _, obj := range catalog {
		if obj.Key() == focus.Key() || obj.IsDebris() || obj.Validate() != nil {
			continue
		}
		if math.Abs(obj.SemiMajorAxisKm()-a) < toleranceKm {
			out = append(out, obj)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := math.Abs(out[i].SemiMajorAxisKm() - a)
		dj := math.Abs(out[j].SemiMajorAxisKm() - a)
		if di != dj {
			return di < dj
		}
		return out[i].Key() < out[j].Key()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ObjectInfo is a descriptive snapshot of one object at a given time.
type ObjectInfo struct {
	Key           string           `json:"key"`
	Name          string           `json:"name"`
	Kind          model.ObjectKind `json:"type"`
	Category      model.Category   `json:"category"`
	Mission       string           `json:"mission"`
	SemiMajorAxis float64          `json:"semiMajorAxisKm"`
	AltitudeKm    float64          `json:"altitude"`
	SpeedKmS      float64          `json:"speed"`
	PeriodMin     float64          `json:"periodMinutes"`
	Position      Vec3             `json:"position"`
	Geodetic      Geodetic         `json:"geodetic"`
}

// DescribeObject propagates obj to t and gathers its display information.
func DescribeObject(obj model.TrackedObject, t time.Time) (ObjectInfo, error) {
	st, err := Propagate(obj, t)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:           obj.Key(),
		Name:          obj.DisplayName(),
		Kind:          obj.Kind,
		Category:      model.CategoryOf(obj),
		Mission:       model.MissionOf(obj),
		SemiMajorAxis: obj.SemiMajorAxisKm(),
		AltitudeKm:    AltitudeKm(st.Position),
		SpeedKmS:      st.Velocity.Norm(),
		PeriodMin:     periodSeconds(obj.SemiMajorAxisKm()) / 60,
		Position:      st.Position,
		Geodetic:      ToGeodetic(st.Position, t),
	}, nil
}
