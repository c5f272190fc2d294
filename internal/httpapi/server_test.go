package httpapi

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/catalog"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/internal/session"
	"github.com/signalsfoundry/orbital-guard/internal/storage/memory"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func init() { gin.SetMode(gin.TestMode) }

func onOrbit(id, name string, kind model.ObjectKind, chordKm float64) model.TrackedObject {
	const r = 7000.0
	return model.TrackedObject{
		ID:    id,
		Name:  name,
		Kind:  kind,
		Orbit: model.CircularOrbit{RadiusKm: r, PhaseRad: 2 * math.Asin(chordKm/(2*r)), InclinationRad: 0.9, Epoch: epoch},
	}
}

type fixture struct {
	router    *gin.Engine
	session   *session.Session
	collector *observability.APICollector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat := kb.NewCatalog()
	cat.Replace([]model.TrackedObject{
		onOrbit("25544", "ISS", model.KindSatellite, 0),
		onOrbit("D1", "DEB-1", model.KindDebris, 2),
		onOrbit("S1", "STARLINK-7", model.KindSatellite, 60),
		{ID: "BAD", Name: "BAD", Kind: model.KindDebris, Orbit: model.CircularOrbit{}},
	})
	clock := timectrl.NewSimulationClock(timectrl.Config{Start: epoch, WallClock: func() time.Time { return epoch }})
	sess := session.New(cat, clock, session.WithRecorder(memory.New(100)))

	reg := prometheus.NewRegistry()
	collector, err := observability.NewAPICollector(reg)
	if err != nil {
		t.Fatalf("NewAPICollector: %v", err)
	}
	srv := New(sess, WithCollector(collector), WithMetricsHandler(observability.HandlerFor(reg)))
	return fixture{router: srv.Router(), session: sess, collector: collector}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestListCatalog(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/satellites", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	sats := decode[[]catalog.Object](t, w)
	if len(sats) != 2 {
		t.Fatalf("got %d satellites, want 2", len(sats))
	}

	debris := decode[[]catalog.Object](t, f.do(t, http.MethodGet, "/api/debris", nil))
	if len(debris) != 2 {
		t.Fatalf("got %d debris, want 2 (listing includes invalid entries)", len(debris))
	}
}

func TestPredictHazard(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/predict-hazard", map[string]any{"targetName": "ISS"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	hazards := decode[[]model.HazardRecord](t, w)
	if len(hazards) != 2 || hazards[0].DebrisName != "STARLINK-7" || hazards[1].Severity != model.SeverityCritical {
		t.Fatalf("hazards = %+v", hazards)
	}

	if w := f.do(t, http.MethodPost, "/api/predict-hazard", map[string]any{"targetName": "NOPE"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown target status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/predict-hazard", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty target status = %d", w.Code)
	}
	errBody := decode[map[string]string](t, f.do(t, http.MethodPost, "/api/predict-hazard", map[string]any{}))
	if errBody["error"] == "" {
		t.Fatalf("error body missing message")
	}

	if got := testutil.ToFloat64(f.collector.HTTPRequests.WithLabelValues("POST", "/api/predict-hazard", "200")); got != 1 {
		t.Fatalf("http request counter = %v, want 1", got)
	}
}

func TestObjectEndpoints(t *testing.T) {
	f := newFixture(t)

	info := decode[core.ObjectInfo](t, f.do(t, http.MethodGet, "/api/objects/ISS", nil))
	if info.Key != "25544" || info.Mission != "Space Station" {
		t.Fatalf("object info = %+v", info)
	}
	if math.Abs(info.AltitudeKm-(7000-core.EarthRadiusKm)) > 1e-6 {
		t.Fatalf("altitude = %v", info.AltitudeKm)
	}
	if w := f.do(t, http.MethodGet, "/api/objects/NOPE", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown object status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/objects/BAD", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid object status = %d", w.Code)
	}

	path := decode[struct {
		Points []core.Vec3 `json:"points"`
	}](t, f.do(t, http.MethodGet, "/api/objects/ISS/orbit-path?samples=10", nil))
	if len(path.Points) != 11 {
		t.Fatalf("orbit path has %d points, want 11", len(path.Points))
	}
	if w := f.do(t, http.MethodGet, "/api/objects/ISS/orbit-path?samples=x", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad samples status = %d", w.Code)
	}

	similar := decode[[]catalog.Object](t, f.do(t, http.MethodGet, "/api/objects/ISS/similar", nil))
	if len(similar) != 1 || similar[0].Name != "STARLINK-7" {
		t.Fatalf("similar = %+v", similar)
	}

	m := decode[core.Maneuver](t, f.do(t, http.MethodGet, "/api/objects/ISS/maneuver", nil))
	if m.Type != core.ManeuverEmergency {
		t.Fatalf("maneuver = %+v", m)
	}
}

func TestPositions(t *testing.T) {
	f := newFixture(t)

	body := decode[struct {
		Positions []core.ObjectPosition `json:"positions"`
	}](t, f.do(t, http.MethodGet, "/api/positions", nil))
	if len(body.Positions) != 3 {
		t.Fatalf("got %d positions, want 3 (invalid object omitted)", len(body.Positions))
	}

	debris := decode[struct {
		Positions []core.ObjectPosition `json:"positions"`
	}](t, f.do(t, http.MethodGet, "/api/positions?category=debris&time=2025-06-01T01:00:00Z", nil))
	if len(debris.Positions) != 1 || debris.Positions[0].Key != "D1" {
		t.Fatalf("debris positions = %+v", debris.Positions)
	}
	if w := f.do(t, http.MethodGet, "/api/positions?time=soon", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad time status = %d", w.Code)
	}
}

func TestFocusAndHazards(t *testing.T) {
	f := newFixture(t)

	empty := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/hazards", nil))
	if empty["focus"] != nil {
		t.Fatalf("focus before selection = %v", empty["focus"])
	}

	if w := f.do(t, http.MethodPut, "/api/focus", map[string]string{"key": "NOPE"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown focus status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPut, "/api/focus", map[string]string{"key": "ISS"}); w.Code != http.StatusOK {
		t.Fatalf("select status = %d body=%s", w.Code, w.Body.String())
	}

	body := decode[struct {
		Focus   string               `json:"focus"`
		Hazards []model.HazardRecord `json:"hazards"`
		Summary model.HazardSummary  `json:"summary"`
	}](t, f.do(t, http.MethodGet, "/api/hazards", nil))
	if body.Focus != "25544" || len(body.Hazards) != 2 || body.Summary.Critical != 1 {
		t.Fatalf("hazards = %+v", body)
	}

	events := decode[[]map[string]any](t, f.do(t, http.MethodGet, "/api/conjunctions?focus=25544", nil))
	if len(events) != 2 {
		t.Fatalf("got %d conjunction events, want 2", len(events))
	}
	if w := f.do(t, http.MethodGet, "/api/conjunctions?limit=-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}

	if w := f.do(t, http.MethodDelete, "/api/focus", nil); w.Code != http.StatusNoContent {
		t.Fatalf("deselect status = %d", w.Code)
	}
	if _, err := f.session.Focus(); err == nil {
		t.Fatalf("focus still set after DELETE")
	}
}

func TestClockControl(t *testing.T) {
	f := newFixture(t)

	view := decode[clockView](t, f.do(t, http.MethodGet, "/api/clock", nil))
	if view.State != "STOPPED" || !view.Time.Equal(epoch) {
		t.Fatalf("initial clock = %+v", view)
	}

	view = decode[clockView](t, f.do(t, http.MethodPost, "/api/clock/toggle", nil))
	if view.State != "RUNNING" {
		t.Fatalf("after toggle = %+v", view)
	}
	view = decode[clockView](t, f.do(t, http.MethodPost, "/api/clock/pause", nil))
	if view.State != "STOPPED" {
		t.Fatalf("after pause = %+v", view)
	}

	target := epoch.Add(3 * time.Hour)
	view = decode[clockView](t, f.do(t, http.MethodPut, "/api/clock/time", map[string]any{"time": target}))
	if !view.Time.Equal(target) || view.Generation != 1 {
		t.Fatalf("after scrub = %+v", view)
	}
	if w := f.do(t, http.MethodPut, "/api/clock/time", map[string]any{"time": epoch.Add(48 * time.Hour)}); w.Code != http.StatusBadRequest {
		t.Fatalf("scrub beyond horizon status = %d", w.Code)
	}

	view = decode[clockView](t, f.do(t, http.MethodPut, "/api/clock/scale", map[string]any{"scale": 60}))
	if view.Scale != 60 {
		t.Fatalf("after scale = %+v", view)
	}
	if w := f.do(t, http.MethodPut, "/api/clock/scale", map[string]any{"scale": -2}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative scale status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPut, "/api/clock/scale", map[string]any{"scale": 1e12}); w.Code != http.StatusBadRequest {
		t.Fatalf("oversized scale status = %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	health := decode[map[string]any](t, f.do(t, http.MethodGet, "/healthz", nil))
	if health["status"] != "ok" || health["objects"].(float64) != 4 {
		t.Fatalf("health = %v", health)
	}
	f.do(t, http.MethodGet, "/api/satellites", nil)
	w := f.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("orbitalguard_http_requests_total")) {
		t.Fatalf("metrics status=%d", w.Code)
	}
}
