package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

// Object is the JSON representation of a tracked object. Angles are degrees.
// Entries with a positive semiMajorAxis are Keplerian; otherwise radius
// describes a circular orbit.
type Object struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`

	Radius float64 `json:"radius,omitempty"`
	Phase  float64 `json:"phase,omitempty"`

	SemiMajorAxis float64 `json:"semiMajorAxis,omitempty"`
	Eccentricity  float64 `json:"eccentricity,omitempty"`
	Inclination   float64 `json:"inclination,omitempty"`
	RAAN          float64 `json:"raan,omitempty"`
	ArgPerigee    float64 `json:"argPerigee,omitempty"`
	MeanAnomaly   float64 `json:"meanAnomaly,omitempty"`

	Epoch *time.Time `json:"epoch,omitempty"`
}

// ToModel converts the wire form. defaultKind applies when Type is empty.
// Element validity is not checked here; invalid objects are excluded later
// by the consumers.
func (o Object) ToModel(defaultKind model.ObjectKind) model.TrackedObject {
	kind := defaultKind
	if o.Type != "" {
		kind = model.ParseKind(o.Type)
	}
	if kind == "" {
		kind = model.KindSatellite
	}
	var epoch time.Time
	if o.Epoch != nil {
		epoch = o.Epoch.UTC()
	}

	obj := model.TrackedObject{ID: o.ID, Name: o.Name, Kind: kind}
	if o.SemiMajorAxis > 0 {
		obj.Orbit = model.KeplerianOrbit{
			SemiMajorAxis:  o.SemiMajorAxis,
			Eccentricity:   o.Eccentricity,
			InclinationRad: model.DegToRad(o.Inclination),
			RAANRad:        model.DegToRad(o.RAAN),
			ArgPerigeeRad:  model.DegToRad(o.ArgPerigee),
			MeanAnomalyRad: model.DegToRad(o.MeanAnomaly),
			Epoch:          epoch,
		}
	} else {
		obj.Orbit = model.CircularOrbit{
			RadiusKm:       o.Radius,
			InclinationRad: model.DegToRad(o.Inclination),
			RAANRad:        model.DegToRad(o.RAAN),
			PhaseRad:       model.DegToRad(o.Phase),
			Epoch:          epoch,
		}
	}
	return obj
}

// FromModel converts a tracked object into its wire form.
func FromModel(obj model.TrackedObject) Object {
	out := Object{ID: obj.ID, Name: obj.Name, Type: string(obj.Kind)}
	setEpoch := func(t time.Time) {
		if !t.IsZero() {
			e := t
			out.Epoch = &e
		}
	}
	switch o := obj.Orbit.(type) {
	case model.CircularOrbit:
		out.Radius = o.RadiusKm
		out.Inclination = model.RadToDeg(o.InclinationRad)
		out.RAAN = model.RadToDeg(o.RAANRad)
		out.Phase = model.RadToDeg(o.PhaseRad)
		setEpoch(o.Epoch)
	case model.KeplerianOrbit:
		out.Radius = o.SemiMajorAxis
		out.SemiMajorAxis = o.SemiMajorAxis
		out.Eccentricity = o.Eccentricity
		out.Inclination = model.RadToDeg(o.InclinationRad)
		out.RAAN = model.RadToDeg(o.RAANRad)
		out.ArgPerigee = model.RadToDeg(o.ArgPerigeeRad)
		out.MeanAnomaly = model.RadToDeg(o.MeanAnomalyRad)
		setEpoch(o.Epoch)
	}
	return out
}

// FromModels converts a slice of tracked objects.
func FromModels(objs []model.TrackedObject) []Object {
	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		out = append(out, FromModel(o))
	}
	return out
}

// Document is the on-disk JSON catalog: either a bare array of objects or
// an object with separate satellite and debris lists.
type Document struct {
	Satellites []Object `json:"satellites"`
	Debris     []Object `json:"debris"`
}

// DecodeJSON reads a JSON catalog from r.
func DecodeJSON(r io.Reader, defaultKind model.ObjectKind) ([]model.TrackedObject, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var list []Object
	if err := json.Unmarshal(raw, &list); err == nil {
		return toModels(list, defaultKind), nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	out := toModels(doc.Satellites, model.KindSatellite)
	return append(out, toModels(doc.Debris, model.KindDebris)...), nil
}

func toModels(list []Object, kind model.ObjectKind) []model.TrackedObject {
	out := make([]model.TrackedObject, 0, len(list))
	for _, o := range list {
		out = append(out, o.ToModel(kind))
	}
	return out
}
