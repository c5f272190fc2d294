package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
)

// DefaultTimeout bounds a single catalog fetch.
const DefaultTimeout = 30 * time.Second

// Source produces the set of tracked objects.
type Source interface {
	Load(ctx context.Context) ([]model.TrackedObject, error)
}

// StaticSource serves a fixed list.
type StaticSource []model.TrackedObject

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]model.TrackedObject, error) {
	return append([]model.TrackedObject(nil), s...), nil
}

// fetcher performs bounded HTTP GETs.
type fetcher struct {
	httpClient *http.Client
}

func newFetcher(timeout time.Duration) fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return fetcher{httpClient: &http.Client{Timeout: timeout}}
}

func (f fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// HTTPSource loads JSON object lists from a satellites endpoint and an
// optional debris endpoint.
type HTTPSource struct {
	SatellitesURL string
	DebrisURL     string
	f             fetcher
}

// NewHTTPSource creates a JSON catalog source.
func NewHTTPSource(satellitesURL, debrisURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{SatellitesURL: satellitesURL, DebrisURL: debrisURL, f: newFetcher(timeout)}
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) ([]model.TrackedObject, error) {
	body, err := s.f.get(ctx, s.SatellitesURL)
	if err != nil {
		return nil, err
	}
	objects, err := DecodeJSON(bytes.NewReader(body), model.KindSatellite)
	if err != nil {
		return nil, err
	}
	if s.DebrisURL == "" {
		return objects, nil
	}
	body, err = s.f.get(ctx, s.DebrisURL)
	if err != nil {
		return nil, err
	}
	debris, err := DecodeJSON(bytes.NewReader(body), model.KindDebris)
	if err != nil {
		return nil, err
	}
	return append(objects, debris...), nil
}

// TLESource loads 3-line TLE text over HTTP.
type TLESource struct {
	URL string
	f   fetcher
	log logging.Logger
}

// NewTLESource creates a TLE catalog source.
func NewTLESource(url string, timeout time.Duration, log logging.Logger) *TLESource {
	return &TLESource{URL: url, f: newFetcher(timeout), log: log}
}

// Load implements Source.
func (s *TLESource) Load(ctx context.Context) ([]model.TrackedObject, error) {
	body, err := s.f.get(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	return ParseTLE(bytes.NewReader(body), s.log)
}

// FileSource loads a local catalog. Files ending in .json are decoded as
// JSON; anything else is parsed as TLE text.
type FileSource struct {
	Path string
	log  logging.Logger
}

// NewFileSource creates a file-backed catalog source.
func NewFileSource(path string, log logging.Logger) *FileSource {
	return &FileSource{Path: path, log: log}
}

// Load implements Source.
func (s *FileSource) Load(context.Context) ([]model.TrackedObject, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		return DecodeJSON(f, model.KindSatellite)
	}
	return ParseTLE(f, s.log)
}

// LoadRecorder receives catalog load outcomes.
type LoadRecorder interface {
	IncCatalogLoadFailures()
	SetCatalogSize(n int)
}

// LoadOrEmpty loads src, logging and counting failures. An unavailable
// catalog yields an empty list, never an error.
func LoadOrEmpty(ctx context.Context, src Source, log logging.Logger, rec LoadRecorder) []model.TrackedObject {
	if log == nil {
		log = logging.Noop()
	}
	if src == nil {
		return []model.TrackedObject{}
	}
	objects, err := src.Load(ctx)
	if err != nil {
		log.Warn(ctx, "catalog unavailable; continuing with an empty catalog", logging.Err(err))
		if rec != nil {
			rec.IncCatalogLoadFailures()
		}
		return []model.TrackedObject{}
	}
	return objects
}

// Refresh loads src and installs the result into cat. A failed load keeps
// the current snapshot.
func Refresh(ctx context.Context, src Source, cat *kb.Catalog, log logging.Logger, rec LoadRecorder) error {
	if log == nil {
		log = logging.Noop()
	}
	objects, err := src.Load(ctx)
	if err != nil {
		if rec != nil {
			rec.IncCatalogLoadFailures()
		}
		log.Warn(ctx, "catalog refresh failed; keeping current snapshot", logging.Err(err))
		return err
	}
	snap := cat.Replace(objects)
	if rec != nil {
		rec.SetCatalogSize(snap.Len())
	}
	log.Info(ctx, "catalog refreshed",
		logging.Int("objects", snap.Len()),
		logging.Int("dropped", len(objects)-snap.Len()),
	)
	return nil
}
