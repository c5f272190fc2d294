package catalog

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
)

const issTLE = `ISS (ZARYA)
1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990
2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760
`

type fakeRecorder struct {
	failures int
	size     int
}

func (f *fakeRecorder) IncCatalogLoadFailures() { f.failures++ }
func (f *fakeRecorder) SetCatalogSize(n int)    { f.size = n }

type failingSource struct{}

func (failingSource) Load(context.Context) ([]model.TrackedObject, error) {
	return nil, errors.New("unreachable")
}

func TestParseTLE(t *testing.T) {
	data := issTLE + "COSMOS 2251 DEB\n1 34427U 93036SX  21275.50000000  .00000100  00000-0  10000-3 0  9991\n2 34427  74.0300 200.0000 0100000  90.0000 270.0000 14.50000000100001\n"
	objects, err := ParseTLE(strings.NewReader(data), nil)
	if err != nil {
		t.Fatalf("ParseTLE error: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("ParseTLE returned %d objects, want 2", len(objects))
	}

	iss := objects[0]
	if iss.ID != "25544" || iss.Name != "ISS (ZARYA)" || iss.Kind != model.KindSatellite {
		t.Fatalf("unexpected ISS entry: %+v", iss)
	}
	orbit, ok := iss.Orbit.(model.KeplerianOrbit)
	if !ok {
		t.Fatalf("orbit type = %T, want KeplerianOrbit", iss.Orbit)
	}
	if orbit.SemiMajorAxis < 6700 || orbit.SemiMajorAxis > 6900 {
		t.Fatalf("semi-major axis = %v km, want LEO", orbit.SemiMajorAxis)
	}
	if math.Abs(orbit.Eccentricity-0.0001817) > 1e-12 {
		t.Fatalf("eccentricity = %v", orbit.Eccentricity)
	}
	wantEpoch := time.Date(2021, 10, 2, 14, 11, 0, 0, time.UTC)
	if d := orbit.Epoch.Sub(wantEpoch); d < -time.Second || d > time.Second {
		t.Fatalf("epoch = %v, want ~%v", orbit.Epoch, wantEpoch)
	}
	if objects[1].Kind != model.KindDebris {
		t.Fatalf("DEB entry should be debris, got %s", objects[1].Kind)
	}
}

func TestParseTLESkipsMalformed(t *testing.T) {
	data := "BROKEN\nnot a line\n" + issTLE
	objects, err := ParseTLE(strings.NewReader(data), nil)
	if err != nil {
		t.Fatalf("ParseTLE error: %v", err)
	}
	if len(objects) != 1 || objects[0].ID != "25544" {
		t.Fatalf("ParseTLE = %+v, want only the ISS", objects)
	}
}

func TestDecodeJSONShapes(t *testing.T) {
	list := `[{"name":"SAT-1","radius":7000},{"id":"k","name":"K","semiMajorAxis":8000,"eccentricity":0.1,"type":"debris"}]`
	objects, err := DecodeJSON(strings.NewReader(list), model.KindSatellite)
	if err != nil {
		t.Fatalf("DecodeJSON(list) error: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("len = %d, want 2", len(objects))
	}
	if _, ok := objects[0].Orbit.(model.CircularOrbit); !ok || objects[0].Kind != model.KindSatellite {
		t.Fatalf("first object = %+v", objects[0])
	}
	if _, ok := objects[1].Orbit.(model.KeplerianOrbit); !ok || objects[1].Kind != model.KindDebris {
		t.Fatalf("second object = %+v", objects[1])
	}

	doc := `{"satellites":[{"name":"A","radius":7000}],"debris":[{"name":"D","radius":7010}]}`
	objects, err = DecodeJSON(strings.NewReader(doc), model.KindSatellite)
	if err != nil {
		t.Fatalf("DecodeJSON(doc) error: %v", err)
	}
	if len(objects) != 2 || objects[1].Kind != model.KindDebris {
		t.Fatalf("DecodeJSON(doc) = %+v", objects)
	}

	if _, err := DecodeJSON(strings.NewReader("{"), model.KindSatellite); err == nil {
		t.Fatalf("invalid JSON should fail")
	}
}

func TestObjectRoundTripKeepsOrbit(t *testing.T) {
	in := model.TrackedObject{ID: "1", Name: "A", Kind: model.KindDebris, Orbit: model.CircularOrbit{RadiusKm: 7000, PhaseRad: math.Pi / 2}}
	out := FromModel(in).ToModel(model.KindSatellite)
	c, ok := out.Orbit.(model.CircularOrbit)
	if !ok || c.RadiusKm != 7000 || math.Abs(c.PhaseRad-math.Pi/2) > 1e-12 || out.Kind != model.KindDebris {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestHTTPSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/satellites", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"SAT-1","radius":7000}]`))
	})
	mux.HandleFunc("/debris", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"DEB-1","radius":7001}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/satellites", srv.URL+"/debris", time.Second)
	objects, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(objects) != 2 || objects[1].Kind != model.KindDebris {
		t.Fatalf("Load = %+v", objects)
	}
}

func TestTLESourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewTLESource(srv.URL, time.Second, nil).Load(context.Background()); err == nil {
		t.Fatalf("expected error for 503")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	tlePath := filepath.Join(dir, "stations.tle")
	if err := os.WriteFile(tlePath, []byte(issTLE), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	jsonPath := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"name":"A","radius":7000}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if objs, err := NewFileSource(tlePath, nil).Load(context.Background()); err != nil || len(objs) != 1 {
		t.Fatalf("TLE file load = %v, %v", objs, err)
	}
	if objs, err := NewFileSource(jsonPath, nil).Load(context.Background()); err != nil || len(objs) != 1 {
		t.Fatalf("JSON file load = %v, %v", objs, err)
	}
	if _, err := NewFileSource(filepath.Join(dir, "missing.json"), nil).Load(context.Background()); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestLoadOrEmpty(t *testing.T) {
	rec := &fakeRecorder{}
	got := LoadOrEmpty(context.Background(), failingSource{}, nil, rec)
	if got == nil || len(got) != 0 {
		t.Fatalf("LoadOrEmpty = %#v, want empty slice", got)
	}
	if rec.failures != 1 {
		t.Fatalf("failures = %d, want 1", rec.failures)
	}

	ok := StaticSource{{Name: "A", Orbit: model.CircularOrbit{RadiusKm: 7000}}}
	if got := LoadOrEmpty(context.Background(), ok, nil, rec); len(got) != 1 {
		t.Fatalf("LoadOrEmpty(static) = %+v", got)
	}
}

func TestRefreshKeepsSnapshotOnFailure(t *testing.T) {
	cat := kb.NewCatalog()
	rec := &fakeRecorder{}
	src := StaticSource{{Name: "A", Orbit: model.CircularOrbit{RadiusKm: 7000}}}

	if err := Refresh(context.Background(), src, cat, nil, rec); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if rec.size != 1 || cat.Snapshot().Len() != 1 {
		t.Fatalf("catalog size = %d/%d, want 1", rec.size, cat.Snapshot().Len())
	}

	if err := Refresh(context.Background(), failingSource{}, cat, nil, rec); err == nil {
		t.Fatalf("expected refresh error")
	}
	if cat.Snapshot().Len() != 1 {
		t.Fatalf("failed refresh must keep the previous snapshot")
	}
}
