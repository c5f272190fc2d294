package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/model"
)

// ErrNonFinite indicates propagation produced a NaN or infinite component.
var ErrNonFinite = errors.New("propagation produced non-finite state")

// State is an inertial position (km) and velocity (km/s).
type State struct {
	Position Vec3
	Velocity Vec3
}

// Propagate computes the inertial state of obj at t. It is a pure function of
// its inputs.
func Propagate(obj model.TrackedObject, t time.Time) (State, error) {
	if err := obj.Validate(); err != nil {
		return State{}, err
	}
	m := motionFor(obj.Orbit)
	if m == nil {
		return State{}, fmt.Errorf("%w: unsupported orbit type %T", model.ErrInvalidElements, obj.Orbit)
	}
	st := m.StateAfter(secondsSince(obj.Orbit.ReferenceEpoch(), t))
	if !st.Position.IsFinite() || !st.Velocity.IsFinite() {
		return State{}, fmt.Errorf("object %q: %w", obj.Key(), ErrNonFinite)
	}
	return st, nil
}

// Period returns the orbital period of obj.
func Period(obj model.TrackedObject) (time.Duration, error) {
	if err := obj.Validate(); err != nil {
		return 0, err
	}
	return time.Duration(periodSeconds(obj.SemiMajorAxisKm()) * float64(time.Second)), nil
}

// CircularSpeed returns sqrt(MU/a) in km/s.
func CircularSpeed(a float64) float64 {
	return math.Sqrt(MU / a)
}

func periodSeconds(a float64) float64 {
	return twoPi * math.Sqrt(a*a*a/MU)
}

// PropagationRecorder receives propagation failure counts.
type PropagationRecorder interface {
	IncPropagationFailures()
}

// ObjectPosition is one entry of a position query.
type ObjectPosition struct {
	Key      string           `json:"key"`
	Name     string           `json:"name"`
	Kind     model.ObjectKind `json:"type"`
	Position Vec3             `json:"position"`
}

// Propagator is the boundary between the pure propagation functions and
// consumers that must never see a failure, such as a position display.
type Propagator struct {
	log     logging.Logger
	metrics PropagationRecorder
}

// PropagatorOption customises a Propagator.
type PropagatorOption func(*Propagator)

// WithPropagatorLogger attaches a logger for failed propagations.
func WithPropagatorLogger(l logging.Logger) PropagatorOption {
	return func(p *Propagator) {
		if l != nil {
			p.log = l
		}
	}
}

// WithPropagationRecorder attaches a failure counter.
func WithPropagationRecorder(r PropagationRecorder) PropagatorOption {
	return func(p *Propagator) {
		p.metrics = r
	}
}

// NewPropagator constructs a Propagator.
func NewPropagator(opts ...PropagatorOption) *Propagator {
	p := &Propagator{log: logging.Noop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Position returns the position of obj at t, or the origin when obj cannot be
// propagated.
func (p *Propagator) Position(obj model.TrackedObject, t time.Time) Vec3 {
	st, err := Propagate(obj, t)
	if err != nil {
		p.fail(obj, err)
		return Vec3{}
	}
	return st.Position
}

// Positions propagates every object accepted by filter (all objects when
// filter is nil). Objects that fail validation are omitted.
func (p *Propagator) Positions(objects []model.TrackedObject, t time.Time, filter func(model.TrackedObject) bool) []ObjectPosition {
	out := make([]ObjectPosition, 0, len(objects))
	for _, obj := range objects {
		if filter != nil && !filter(obj) {
			continue
		}
		st, err := Propagate(obj, t)
		if err != nil {
			p.fail(obj, err)
			continue
		}
		out = append(out, ObjectPosition{
			Key:      obj.Key(),
			Name:     obj.DisplayName(),
			Kind:     obj.Kind,
			Position: st.Position,
		})
	}
	return out
}

func (p *Propagator) fail(obj model.TrackedObject, err error) {
	p.log.Debug(context.Background(), "propagation skipped",
		logging.String("object", obj.Key()),
		logging.Err(err),
	)
	if p.metrics != nil {
		p.metrics.IncPropagationFailures()
	}
}
