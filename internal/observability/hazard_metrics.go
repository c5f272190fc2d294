package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orbital-guard/model"
)

// HazardCollector exposes metrics for propagation, hazard evaluation and the
// catalog.
type HazardCollector struct {
	gatherer prometheus.Gatherer

	EvaluationDuration  prometheus.Histogram
	HazardsBySeverity   *prometheus.GaugeVec
	PropagationFailures prometheus.Counter
	CatalogObjects      prometheus.Gauge
	RemoteFailures      prometheus.Counter
	CatalogLoadFailures prometheus.Counter
}

// NewHazardCollector registers hazard metrics against the provided registerer.
func NewHazardCollector(reg prometheus.Registerer) (*HazardCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evalHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbitalguard_hazard_evaluation_duration_seconds",
		Help:    "Duration of a full hazard evaluation for the focus object.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "orbitalguard_hazard_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	bySeverity, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orbitalguard_hazards",
		Help: "Current hazards for the focus object, labeled by severity.",
	}, []string{"severity"}), "orbitalguard_hazards")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitalguard_propagation_failures_total",
		Help: "Objects that could not be propagated and were replaced by the origin or skipped.",
	}), "orbitalguard_propagation_failures_total")
	if err != nil {
		return nil, err
	}

	catalog, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitalguard_catalog_objects",
		Help: "Number of tracked objects in the current catalog snapshot.",
	}), "orbitalguard_catalog_objects")
	if err != nil {
		return nil, err
	}

	remote, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitalguard_remote_hazard_failures_total",
		Help: "Remote hazard queries that failed and were treated as no hazards.",
	}), "orbitalguard_remote_hazard_failures_total")
	if err != nil {
		return nil, err
	}

	loads, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitalguard_catalog_load_failures_total",
		Help: "Catalog loads that failed and left the catalog empty or unchanged.",
	}), "orbitalguard_catalog_load_failures_total")
	if err != nil {
		return nil, err
	}

	return &HazardCollector{
		gatherer:            gatherer,
		EvaluationDuration:  evalHistogram,
		HazardsBySeverity:   bySeverity,
		PropagationFailures: failures,
		CatalogObjects:      catalog,
		RemoteFailures:      remote,
		CatalogLoadFailures: loads,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *HazardCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveEvaluation records a hazard evaluation duration.
func (c *HazardCollector) ObserveEvaluation(d time.Duration) {
	if c == nil || c.EvaluationDuration == nil {
		return
	}
	c.EvaluationDuration.Observe(d.Seconds())
}

// SetHazards updates the per-severity gauges from a hazard list.
func (c *HazardCollector) SetHazards(hazards []model.HazardRecord) {
	if c == nil || c.HazardsBySeverity == nil {
		return
	}
	counts := map[model.Severity]int{model.SeverityCritical: 0, model.SeverityModerate: 0}
	for _, h := range hazards {
		counts[h.Severity]++
	}
	for sev, n := range counts {
		c.HazardsBySeverity.WithLabelValues(string(sev)).Set(float64(n))
	}
}

// IncPropagationFailures increments the propagation failure counter.
func (c *HazardCollector) IncPropagationFailures() {
	if c == nil || c.PropagationFailures == nil {
		return
	}
	c.PropagationFailures.Inc()
}

// SetCatalogSize updates the catalog gauge.
func (c *HazardCollector) SetCatalogSize(n int) {
	if c == nil || c.CatalogObjects == nil {
		return
	}
	c.CatalogObjects.Set(float64(n))
}

// IncRemoteFailures increments the remote query failure counter.
func (c *HazardCollector) IncRemoteFailures() {
	if c == nil || c.RemoteFailures == nil {
		return
	}
	c.RemoteFailures.Inc()
}

// IncCatalogLoadFailures increments the catalog load failure counter.
func (c *HazardCollector) IncCatalogLoadFailures() {
	if c == nil || c.CatalogLoadFailures == nil {
		return
	}
	c.CatalogLoadFailures.Inc()
}
