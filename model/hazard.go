package model

// Severity is the risk band a hazard falls into.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityModerate Severity = "MODERATE"
)

// Rank orders severities; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityModerate:
		return 1
	default:
		return 2
	}
}

// HazardRecord describes one object threatening the focus object at a given
// time. The JSON names are the wire contract shared with remote callers.
type HazardRecord struct {
	// ObjectKey is the threatening object's catalog key. Names may repeat
	// within a catalog; keys do not.
	ObjectKey  string     `json:"objectKey,omitempty"`
	DebrisName string     `json:"debrisName"`
	Type       ObjectKind `json:"type"`
	Distance   float64    `json:"distance"`
	Severity   Severity   `json:"severity"`
	// TimeToCollision is a best-effort estimate in seconds; nil means unknown.
	TimeToCollision *float64 `json:"timeToCollision,omitempty"`
	// Collision marks an imminent-collision condition.
	Collision bool `json:"collision"`
}

// TrackingKey identifies the threatening object across refreshes. Records
// from peers that omit the key fall back to the name.
func (h HazardRecord) TrackingKey() string {
	if h.ObjectKey != "" {
		return h.ObjectKey
	}
	return h.DebrisName
}

// HazardSummary counts hazards per display group.
type HazardSummary struct {
	Total      int  `json:"total"`
	Satellites int  `json:"satellites"`
	Debris     int  `json:"debris"`
	Critical   int  `json:"critical"`
	Moderate   int  `json:"moderate"`
	Collisions int  `json:"collisions"`
	HasCrit    bool `json:"hasCritical"`
}

// Summarize counts hazards. Critical counts only debris records; satellite
// conjunctions are reported in their own group.
func Summarize(hazards []HazardRecord) HazardSummary {
	s := HazardSummary{Total: len(hazards)}
	for _, h := range hazards {
		if h.Type == KindSatellite {
			s.Satellites++
		} else {
			s.Debris++
		}
		switch h.Severity {
		case SeverityCritical:
			s.HasCrit = true
			if h.Type != KindSatellite {
				s.Critical++
			}
		case SeverityModerate:
			s.Moderate++
		}
		if h.Collision {
			s.Collisions++
		}
	}
	return s
}

// CloneHazards returns a deep copy of hazards.
func CloneHazards(hazards []HazardRecord) []HazardRecord {
	out := make([]HazardRecord, len(hazards))
	for i, h := range hazards {
		out[i] = h
		if h.TimeToCollision != nil {
			v := *h.TimeToCollision
			out[i].TimeToCollision = &v
		}
	}
	return out
}
