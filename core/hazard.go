package core

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid hazard thresholds")

// minClosingSpeed (km/s) separates a real approach from rounding noise on
// pairs whose distance is constant.
const minClosingSpeed = 1e-9

// Thresholds are the distance bands (km) used to classify hazards.
type Thresholds struct {
	CollisionKm float64
	CriticalKm  float64
	ModerateKm  float64
}

// DefaultThresholds returns the standard bands: 1 km collision, 5 km
// critical, 100 km moderate.
func DefaultThresholds() Thresholds {
	return Thresholds{CollisionKm: 1, CriticalKm: 5, ModerateKm: 100}
}

// Validate checks 0 < collision <= critical < moderate.
func (th Thresholds) Validate() error {
	if !(th.CollisionKm > 0) || th.CriticalKm < th.CollisionKm || !(th.ModerateKm > th.CriticalKm) {
		return fmt.Errorf("%w: collision=%v critical=%v moderate=%v",
			ErrInvalidThresholds, th.CollisionKm, th.CriticalKm, th.ModerateKm)
	}
	return nil
}

// Evaluator ranks catalog objects by the risk they pose to a focus object.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator constructs an Evaluator. Invalid thresholds fall back to the
// defaults.
func NewEvaluator(th Thresholds) *Evaluator {
	if th.Validate() != nil {
		th = DefaultThresholds()
	}
	return &Evaluator{th: th}
}

// Thresholds returns the bands in use.
func (e *Evaluator) Thresholds() Thresholds { return e.th }

// Evaluate returns the hazards the catalog poses to focus at t, sorted with
// SortHazards. It never fails: objects that cannot be propagated are skipped
// and an unpropagatable focus yields an empty result.
func (e *Evaluator) Evaluate(focus model.TrackedObject, catalog []model.TrackedObject, t time.Time) []model.HazardRecord {
	hazards := make([]model.HazardRecord, 0)
	fs, err := Propagate(focus, t)
	if err != nil {
		return hazards
	}
	focusKey := focus.Key()

	for _, obj := range catalog {
		if obj.Key() == focusKey {
			continue
		}
		st, err := Propagate(obj, t)
		if err != nil {
			continue
		}
		rel := st.Position.Sub(fs.Position)
		d := rel.Norm()
		if !isFinite(d) || d >= e.th.ModerateKm {
			continue
		}

		h := model.HazardRecord{
			ObjectKey:       obj.Key(),
			DebrisName:      obj.DisplayName(),
			Type:            obj.Kind,
			Distance:        d,
			Severity:        model.SeverityModerate,
			TimeToCollision: timeToClosest(rel, st.Velocity.Sub(fs.Velocity)),
			Collision:       d < e.th.CollisionKm,
		}
		if h.Type == "" {
			h.Type = model.KindSatellite
		}
		if d < e.th.CriticalKm {
			h.Severity = model.SeverityCritical
		}
		hazards = append(hazards, h)
	}

	SortHazards(hazards)
	return hazards
}

// timeToClosest estimates seconds until contact as distance over closing
// speed. It returns nil when the objects are not approaching each other
// faster than minClosingSpeed.
func timeToClosest(rel, relVel Vec3) *float64 {
	d := rel.Norm()
	if d == 0 {
		zero := 0.0
		return &zero
	}
	closing := -rel.Dot(relVel) / d
	if !(closing > minClosingSpeed) {
		return nil
	}
	ttc := d / closing
	if !isFinite(ttc) {
		return nil
	}
	return &ttc
}

// SortHazards orders hazards: satellites before debris, then by severity,
// then by ascending distance, then by name and key.
func SortHazards(hazards []model.HazardRecord) {
	sort.SliceStable(hazards, func(i, j int) bool {
		a, b := hazards[i], hazards[j]
		as, bs := a.Type == model.KindSatellite, b.Type == model.KindSatellite
		if as != bs {
			return as
		}
		if ar, br := a.Severity.Rank(), b.Severity.Rank(); ar != br {
			return ar < br
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.DebrisName != b.DebrisName {
			return a.DebrisName < b.DebrisName
		}
		return a.ObjectKey < b.ObjectKey
	})
}

// Nearest returns the closest hazard, if any.
func Nearest(hazards []model.HazardRecord) (model.HazardRecord, bool) {
	if len(hazards) == 0 {
		return model.HazardRecord{}, false
	}
	best := hazards[0]
	for _, h := range hazards[1:] {
		if h.Distance < best.Distance {
			best = h
		}
	}
	return best, true
}
