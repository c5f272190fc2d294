package core

import (
	"math"

	"github.com/signalsfoundry/orbital-guard/model"
)

// Maneuver types and alert levels.
const (
	ManeuverNone       = "ALL CLEAR"
	ManeuverEmergency  = "EMERGENCY EVASIVE"
	ManeuverPreventive = "PREVENTIVE ADJUSTMENT"

	AlertNominal  = "NOMINAL"
	AlertCritical = "CRITICAL"
	AlertAdvisory = "ADVISORY"

	// burnSecondsPerMps converts a delta-v into a nominal burn duration.
	burnSecondsPerMps = 2.5
)

// Maneuver is an avoidance recommendation for the focus object.
type Maneuver struct {
	Type         string              `json:"type"`
	AlertLevel   string              `json:"alertLevel"`
	DeltaVMps    float64             `json:"deltaV"`
	BurnSeconds  float64             `json:"burnDuration"`
	Threat       *model.HazardRecord `json:"threat,omitempty"`
	NotifyAssets []string            `json:"notify,omitempty"`
}

// RecommendManeuver derives a maneuver from the current hazards. The nearest
// hazard decides the urgency: closer than the critical band means an
// emergency burn of 15-20 m/s, anything else a preventive 2-5 m/s. Delta-v
// grows as the threat gets closer. notify lists assets to alert.
func RecommendManeuver(hazards []model.HazardRecord, th Thresholds, notify []string) Maneuver {
	nearest, ok := Nearest(hazards)
	if !ok {
		return Maneuver{Type: ManeuverNone, AlertLevel: AlertNominal}
	}

	var m Maneuver
	if nearest.Distance < th.CriticalKm {
		closeness := 1 - clamp01(nearest.Distance/th.CriticalKm)
		m = Maneuver{Type: ManeuverEmergency, AlertLevel: AlertCritical, DeltaVMps: 15 + 5*closeness}
	} else {
		span := th.ModerateKm - th.CriticalKm
		closeness := 1 - clamp01((nearest.Distance-th.CriticalKm)/span)
		m = Maneuver{Type: ManeuverPreventive, AlertLevel: AlertAdvisory, DeltaVMps: 2 + 3*closeness}
	}
	m.DeltaVMps = math.Round(m.DeltaVMps*100) / 100
	m.BurnSeconds = math.Round(m.DeltaVMps*burnSecondsPerMps*10) / 10
	m.Threat = &nearest
	if len(notify) > 0 {
		m.NotifyAssets = append([]string(nil), notify...)
	}
	return m
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
