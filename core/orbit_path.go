package core

import (
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

// DefaultPathSegments is the number of segments an orbit path is split into.
const DefaultPathSegments = 200

// OrbitPath samples one full period of obj starting at t. The result holds
// segments+1 points so that the path closes on itself. Objects that cannot be
// propagated yield an empty path.
func OrbitPath(obj model.TrackedObject, t time.Time, segments int) []Vec3 {
	if segments <= 0 {
		segments = DefaultPathSegments
	}
	if obj.Validate() != nil {
		return []Vec3{}
	}
	period := periodSeconds(obj.SemiMajorAxisKm())
	step := period / float64(segments)

	path := make([]Vec3, 0, segments+1)
	for i := 0; i <= segments; i++ {
		at := t.Add(time.Duration(float64(i) * step * float64(time.Second)))
		st, err := Propagate(obj, at)
		if err != nil {
			return []Vec3{}
		}
		path = append(path, st.Position)
	}
	return path
}
