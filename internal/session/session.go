// Package session ties the catalog, the simulation clock and a hazard source
// together for one operator: it tracks the focus object, keeps its live
// hazard list current and serves throttled position snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/catalog"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/internal/storage"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

// ErrNoFocus is returned when an operation needs a focus object and none is
// selected.
var ErrNoFocus = errors.New("no focus object selected")

// Task names used by the session scheduler.
const (
	TaskDisplay = "display"
	TaskHazards = "hazards"
	TaskCatalog = "catalog"
)

// Defaults for the session loops.
const (
	DefaultHazardInterval = 200 * time.Millisecond
	DefaultPositionEvery  = 20
)

// HazardSource produces the hazards the catalog poses to focus at t.
type HazardSource interface {
	PredictHazards(ctx context.Context, focus model.TrackedObject, catalog []model.TrackedObject, t time.Time) ([]model.HazardRecord, error)
}

// LocalSource evaluates hazards in-process.
type LocalSource struct {
	Evaluator *core.Evaluator
}

// PredictHazards implements HazardSource. It never fails.
func (s LocalSource) PredictHazards(_ context.Context, focus model.TrackedObject, objects []model.TrackedObject, t time.Time) ([]model.HazardRecord, error) {
	ev := s.Evaluator
	if ev == nil {
		ev = core.NewEvaluator(core.DefaultThresholds())
	}
	return ev.Evaluate(focus, objects, t), nil
}

// MetricsRecorder receives hazard refresh outcomes.
type MetricsRecorder interface {
	ObserveEvaluation(d time.Duration)
	SetHazards(hazards []model.HazardRecord)
	IncRemoteFailures()
}

// HazardSink receives every refreshed hazard list, e.g. a time series writer.
type HazardSink interface {
	WriteHazards(focus model.TrackedObject, hazards []model.HazardRecord, simTime time.Time)
}

// HazardState is an immutable view of the latest hazard refresh.
type HazardState struct {
	FocusKey string
	SimTime  time.Time
	Hazards  []model.HazardRecord
}

type positionCache struct {
	catalogGen uint64
	clockGen   uint64
	bucket     uint64
	simTime    time.Time
	positions  []core.ObjectPosition
}

// Session is safe for concurrent use.
type Session struct {
	catalog    *kb.Catalog
	clock      *timectrl.SimulationClock
	source     HazardSource
	propagator *core.Propagator
	thresholds core.Thresholds

	log      logging.Logger
	metrics  MetricsRecorder
	recorder storage.Recorder
	tracker  *storage.Tracker
	sink     HazardSink

	hazardInterval time.Duration
	positionEvery  uint64

	catalogSource   catalog.Source
	catalogInterval time.Duration
	catalogMetrics  catalog.LoadRecorder

	focus   atomic.Pointer[string]
	hazards atomic.Pointer[HazardState]

	posMu    sync.Mutex
	posCache *positionCache

	runMu     sync.Mutex
	scheduler *timectrl.Scheduler
}

// Option customises Session construction.
type Option func(*Session)

// WithHazardSource replaces the in-process evaluator.
func WithHazardSource(src HazardSource) Option {
	return func(s *Session) {
		if src != nil {
			s.source = src
		}
	}
}

// WithThresholds sets the bands used for the default evaluator and for
// maneuver recommendations.
func WithThresholds(th core.Thresholds) Option {
	return func(s *Session) {
		if th.Validate() == nil {
			s.thresholds = th
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Session) { s.metrics = m }
}

// WithPropagator replaces the default propagator.
func WithPropagator(p *core.Propagator) Option {
	return func(s *Session) {
		if p != nil {
			s.propagator = p
		}
	}
}

// WithRecorder logs hazard transitions to a conjunction store.
func WithRecorder(r storage.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithHazardSink forwards every refresh to sink.
func WithHazardSink(sink HazardSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithHazardInterval sets the hazard refresh period.
func WithHazardInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.hazardInterval = d
		}
	}
}

// WithPositionEvery sets how many clock ticks a position snapshot stays
// valid.
func WithPositionEvery(ticks int) Option {
	return func(s *Session) {
		if ticks > 0 {
			s.positionEvery = uint64(ticks)
		}
	}
}

// WithCatalogRefresh periodically reloads the catalog from src.
func WithCatalogRefresh(src catalog.Source, interval time.Duration, rec catalog.LoadRecorder) Option {
	return func(s *Session) {
		s.catalogSource = src
		s.catalogInterval = interval
		s.catalogMetrics = rec
	}
}

// New constructs a Session.
func New(cat *kb.Catalog, clock *timectrl.SimulationClock, opts ...Option) *Session {
	if cat == nil {
		cat = kb.NewCatalog()
	}
	if clock == nil {
		clock = timectrl.NewSimulationClock(timectrl.Config{})
	}
	s := &Session{
		catalog:        cat,
		clock:          clock,
		thresholds:     core.DefaultThresholds(),
		log:            logging.Noop(),
		tracker:        storage.NewTracker(),
		hazardInterval: DefaultHazardInterval,
		positionEvery:  DefaultPositionEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = LocalSource{Evaluator: core.NewEvaluator(s.thresholds)}
	}
	if s.propagator == nil {
		var rec core.PropagationRecorder
		if r, ok := s.metrics.(core.PropagationRecorder); ok {
			rec = r
		}
		s.propagator = core.NewPropagator(
			core.WithPropagatorLogger(s.log),
			core.WithPropagationRecorder(rec),
		)
	}
	s.log = logging.Component(s.log, "session")
	return s
}

// Catalog returns the catalog the session reads.
func (s *Session) Catalog() *kb.Catalog { return s.catalog }

// Clock returns the simulation clock.
func (s *Session) Clock() *timectrl.SimulationClock { return s.clock }

// Thresholds returns the hazard bands in use.
func (s *Session) Thresholds() core.Thresholds { return s.thresholds }

// Propagator returns the rendering propagator.
func (s *Session) Propagator() *core.Propagator { return s.propagator }

// Select makes the object with the given key (or name) the focus. The hazard
// list is cleared until the next refresh.
func (s *Session) Select(key string) (model.TrackedObject, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return model.TrackedObject{}, err
	}
	k := obj.Key()
	s.focus.Store(&k)
	s.hazards.Store(&HazardState{FocusKey: k, Hazards: []model.HazardRecord{}})
	s.tracker.Reset()
	s.log.Info(context.Background(), "focus selected", logging.String("object", k))
	return obj, nil
}

// Deselect clears the focus and its hazards.
func (s *Session) Deselect() {
	s.focus.Store(nil)
	s.hazards.Store(nil)
	s.tracker.Reset()
}

// FocusKey returns the selected key, if any.
func (s *Session) FocusKey() (string, bool) {
	k := s.focus.Load()
	if k == nil {
		return "", false
	}
	return *k, true
}

// Focus returns the selected object. It fails with ErrNoFocus when nothing
// is selected and with kb.ErrObjectNotFound when the object has left the
// catalog.
func (s *Session) Focus() (model.TrackedObject, error) {
	k, ok := s.FocusKey()
	if !ok {
		return model.TrackedObject{}, ErrNoFocus
	}
	return s.catalog.Get(k)
}

func (s *Session) lookup(key string) (model.TrackedObject, error) {
	if obj, err := s.catalog.Get(key); err == nil {
		return obj, nil
	}
	return s.catalog.FindByName(key)
}

// Hazards returns a copy of the latest hazard list; empty when no focus is
// selected.
func (s *Session) Hazards() []model.HazardRecord {
	st := s.hazards.Load()
	if st == nil {
		return []model.HazardRecord{}
	}
	return model.CloneHazards(st.Hazards)
}

// HazardState returns the latest refresh, or false when nothing is selected.
func (s *Session) HazardState() (HazardState, bool) {
	st := s.hazards.Load()
	if st == nil {
		return HazardState{}, false
	}
	out := *st
	out.Hazards = model.CloneHazards(st.Hazards)
	return out, true
}

// Summary counts the latest hazards.
func (s *Session) Summary() model.HazardSummary {
	st := s.hazards.Load()
	if st == nil {
		return model.Summarize(nil)
	}
	return model.Summarize(st.Hazards)
}

// RefreshHazards queries the hazard source for the focus at the current
// simulation time and publishes the result. A failing source yields an empty
// list for this refresh; the error is returned for the caller's benefit.
func (s *Session) RefreshHazards(ctx context.Context) error {
	key, ok := s.FocusKey()
	if !ok {
		return ErrNoFocus
	}
	simTime := s.clock.Now()
	ctx, span := observability.StartSpan(ctx, "session.RefreshHazards",
		observability.EvaluationAttributes(key, simTime)...)
	defer span.End()

	focus, err := s.catalog.Get(key)
	if err != nil {
		s.publish(key, simTime, []model.HazardRecord{})
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	hazards, err := s.source.PredictHazards(ctx, focus, s.catalog.Objects(), simTime)
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(time.Since(start))
	}
	if err != nil {
		s.log.Warn(ctx, "hazard query failed; no hazards this tick",
			logging.String("focus", key),
			logging.Err(err),
		)
		if s.metrics != nil {
			s.metrics.IncRemoteFailures()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "hazard query failed")
		hazards = []model.HazardRecord{}
	}
	if hazards == nil {
		hazards = []model.HazardRecord{}
	}
	span.SetAttributes(observability.HazardAttributes(hazards)...)

	// A deselect or reselect during the query wins over this result.
	if cur, ok := s.FocusKey(); !ok || cur != key {
		return nil
	}
	s.publish(key, simTime, hazards)
	if s.metrics != nil {
		s.metrics.SetHazards(hazards)
	}
	if s.sink != nil {
		s.sink.WriteHazards(focus, hazards, simTime)
	}
	s.record(ctx, focus, hazards, simTime)
	return err
}

func (s *Session) publish(key string, simTime time.Time, hazards []model.HazardRecord) {
	s.hazards.Store(&HazardState{FocusKey: key, SimTime: simTime, Hazards: hazards})
}

func (s *Session) record(ctx context.Context, focus model.TrackedObject, hazards []model.HazardRecord, simTime time.Time) {
	if s.recorder == nil {
		return
	}
	changed := s.tracker.Changes(focus.Key(), hazards)
	if len(changed) == 0 {
		return
	}
	events := storage.NewEvents(focus, changed, simTime, time.Now())
	if err := s.recorder.Record(ctx, events...); err != nil {
		s.log.Warn(ctx, "recording conjunctions failed",
			logging.Int("events", len(events)),
			logging.Err(err),
		)
	}
}

// Conjunctions lists recorded conjunction events.
func (s *Session) Conjunctions(ctx context.Context, q storage.Query) ([]storage.ConjunctionEvent, error) {
	if s.recorder == nil {
		return []storage.ConjunctionEvent{}, nil
	}
	return s.recorder.List(ctx, q)
}

// Positions returns propagated positions for the current simulation time.
// Snapshots are reused for PositionEvery clock ticks and discarded on scrub
// or catalog replacement.
func (s *Session) Positions(category model.Category) []core.ObjectPosition {
	snap := s.catalog.Snapshot()
	clockGen := s.clock.Generation()
	bucket := s.clock.Ticks() / s.positionEvery

	s.posMu.Lock()
	c := s.posCache
	if c == nil || c.catalogGen != snap.Generation || c.clockGen != clockGen || c.bucket != bucket {
		t := s.clock.Now()
		c = &positionCache{
			catalogGen: snap.Generation,
			clockGen:   clockGen,
			bucket:     bucket,
			simTime:    t,
			positions:  s.propagator.Positions(snap.Objects, t, nil),
		}
		s.posCache = c
	}
	s.posMu.Unlock()

	return filterPositions(c.positions, category)
}

// PositionsAt propagates the catalog at t without caching.
func (s *Session) PositionsAt(t time.Time, category model.Category) []core.ObjectPosition {
	return s.propagator.Positions(s.catalog.Objects(), t, category.Matches)
}

func filterPositions(all []core.ObjectPosition, category model.Category) []core.ObjectPosition {
	out := make([]core.ObjectPosition, 0, len(all))
	for _, p := range all {
		if category.Matches(model.TrackedObject{ID: p.Key, Name: p.Name, Kind: p.Kind}) {
			out = append(out, p)
		}
	}
	return out
}

// SimilarOrbits returns satellites on orbits close to the object's.
func (s *Session) SimilarOrbits(key string) ([]model.TrackedObject, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return core.SimilarOrbits(obj, s.catalog.Objects(), core.SimilarOrbitToleranceKm, core.SimilarOrbitLimit), nil
}

// Maneuver recommends an avoidance maneuver for the focus from its current
// hazards. Satellites on similar orbits are listed for notification.
func (s *Session) Maneuver() (core.Maneuver, error) {
	focus, err := s.Focus()
	if err != nil {
		return core.Maneuver{}, err
	}
	notify := make([]string, 0, core.SimilarOrbitLimit)
	for _, o := range core.SimilarOrbits(focus, s.catalog.Objects(), core.SimilarOrbitToleranceKm, core.SimilarOrbitLimit) {
		notify = append(notify, o.DisplayName())
	}
	return core.RecommendManeuver(s.Hazards(), s.thresholds, notify), nil
}

// ManeuverFor recommends a maneuver for any catalog object. The focus reuses
// its live hazards; other objects are evaluated at the current simulation
// time.
func (s *Session) ManeuverFor(ctx context.Context, key string) (core.Maneuver, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Maneuver{}, err
	}
	if fk, ok := s.FocusKey(); ok && fk == obj.Key() {
		return s.Maneuver()
	}
	objects := s.catalog.Objects()
	hazards, err := s.source.PredictHazards(ctx, obj, objects, s.clock.Now())
	if err != nil {
		return core.Maneuver{}, fmt.Errorf("hazards for %q: %w", obj.Key(), err)
	}
	notify := make([]string, 0, core.SimilarOrbitLimit)
	for _, o := range core.SimilarOrbits(obj, objects, core.SimilarOrbitToleranceKm, core.SimilarOrbitLimit) {
		notify = append(notify, o.DisplayName())
	}
	return core.RecommendManeuver(hazards, s.thresholds, notify), nil
}

// Start launches the display, hazard and (when configured) catalog refresh
// loops. Stop or ctx cancellation ends them.
func (s *Session) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.scheduler != nil {
		return fmt.Errorf("session already started")
	}

	sched := timectrl.NewScheduler(
		timectrl.NewTask(TaskDisplay, s.clock.TickInterval(), func(context.Context) {
			s.clock.Advance()
		}),
		timectrl.NewTask(TaskHazards, s.hazardInterval, func(ctx context.Context) {
			_ = s.RefreshHazards(ctx)
		}),
	)
	if s.catalogSource != nil && s.catalogInterval > 0 {
		sched.Add(timectrl.NewTask(TaskCatalog, s.catalogInterval, func(ctx context.Context) {
			_ = catalog.Refresh(ctx, s.catalogSource, s.catalog, s.log, s.catalogMetrics)
		}))
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	s.scheduler = sched
	s.log.Info(ctx, "session started",
		logging.Duration("tick", s.clock.TickInterval()),
		logging.Duration("hazard_interval", s.hazardInterval),
		logging.Int("tasks", len(sched.Tasks())),
	)
	return nil
}

// Scheduler returns the running scheduler, or nil before Start.
func (s *Session) Scheduler() *timectrl.Scheduler {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.scheduler
}

// Stop halts the loops. It is safe to call more than once.
func (s *Session) Stop() {
	s.runMu.Lock()
	sched := s.scheduler
	s.scheduler = nil
	s.runMu.Unlock()
	if sched != nil {
		sched.Stop()
	}
}
