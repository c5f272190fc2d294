package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/catalog"
	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/influx"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/nbi"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/internal/session"
	"github.com/signalsfoundry/orbital-guard/internal/storage"
	"github.com/signalsfoundry/orbital-guard/internal/storage/gormstore"
	"github.com/signalsfoundry/orbital-guard/internal/storage/memory"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

// bindFlags maps config keys onto flags so that explicitly set flags win
// over file and environment values.
func bindFlags(v *viper.Viper, lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, flag := range keys {
		if f := lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func newCatalogSource(cfg config.CatalogConfig, log logging.Logger) catalog.Source {
	switch cfg.Source {
	case "http":
		return catalog.NewHTTPSource(cfg.URL, cfg.DebrisURL, cfg.Timeout)
	case "tle":
		return catalog.NewTLESource(cfg.URL, cfg.Timeout, log)
	case "file":
		return catalog.NewFileSource(cfg.Path, log)
	default:
		return nil
	}
}

// Seams for tests.
var (
	openRecorder = newRecorder
	dialRemote   = func(cfg config.RemoteConfig, log logging.Logger) (*nbi.Client, error) {
		return nbi.Dial(cfg.Target,
			nbi.WithClientTimeout(cfg.Timeout),
			nbi.WithClientLogger(log),
		)
	}
)

// newRecorder opens the configured conjunction store; nil means none.
func newRecorder(cfg config.StorageConfig) (storage.Recorder, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Capacity), nil
	case "sqlite":
		s, err := gormstore.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := gormstore.OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, nil
	}
}

func newClock(cfg config.ClockConfig) *timectrl.SimulationClock {
	return timectrl.NewSimulationClock(timectrl.Config{
		Tick:    cfg.Tick,
		Scale:   cfg.Scale,
		Horizon: cfg.Horizon,
		Running: cfg.AutoStart,
	})
}

// runtime bundles everything a command needs to evaluate hazards.
type runtime struct {
	catalog  *kb.Catalog
	clock    *timectrl.SimulationClock
	session  *session.Session
	source   catalog.Source
	metrics  *observability.HazardCollector
	recorder storage.Recorder
	influx   *influx.Writer
	remote   *nbi.Client
}

// buildRuntime loads the catalog and assembles the session. Optional outputs
// that fail to open are logged and skipped. On error everything opened so
// far is closed.
func buildRuntime(ctx context.Context, cfg config.Config, log logging.Logger, metrics *observability.HazardCollector) (_ *runtime, err error) {
	rt := &runtime{
		catalog: kb.NewCatalog(),
		clock:   newClock(cfg.Clock),
		source:  newCatalogSource(cfg.Catalog, log),
		metrics: metrics,
	}
	defer func() {
		if err != nil {
			rt.Close(ctx, log)
		}
	}()
	snap := rt.catalog.Replace(catalog.LoadOrEmpty(ctx, rt.source, log, metrics))
	metrics.SetCatalogSize(snap.Len())
	log.Info(ctx, "catalog loaded",
		logging.String("source", cfg.Catalog.Source),
		logging.Int("objects", snap.Len()),
	)

	opts := []session.Option{
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithThresholds(cfg.Hazard.Thresholds()),
		session.WithHazardInterval(cfg.Session.HazardInterval),
		session.WithPositionEvery(cfg.Session.PositionEvery),
		session.WithPropagator(core.NewPropagator(
			core.WithPropagatorLogger(log),
			core.WithPropagationRecorder(metrics),
		)),
	}
	if rt.source != nil && cfg.Catalog.RefreshInterval > 0 {
		opts = append(opts, session.WithCatalogRefresh(rt.source, cfg.Catalog.RefreshInterval, metrics))
	}

	rec, err := openRecorder(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		rt.recorder = rec
		opts = append(opts, session.WithRecorder(rec))
	}

	if cfg.Influx.Enabled {
		w, err := influx.New(cfg.Influx, log)
		if err != nil {
			log.Warn(ctx, "influx output unavailable", logging.Err(err))
		} else {
			if !w.Ping(ctx) {
				log.Warn(ctx, "influx server not reachable; points will be retried by the client",
					logging.String("url", cfg.Influx.URL))
			}
			rt.influx = w
			opts = append(opts, session.WithHazardSink(w))
		}
	}

	if cfg.Remote.Enabled {
		client, err := dialRemote(cfg.Remote, log)
		if err != nil {
			return nil, fmt.Errorf("dial remote hazard service: %w", err)
		}
		rt.remote = client
		opts = append(opts, session.WithHazardSource(client))
		log.Info(ctx, "using remote hazard service", logging.String("target", cfg.Remote.Target))
	}

	rt.session = session.New(rt.catalog, rt.clock, opts...)
	return rt, nil
}

// Close releases the runtime's outputs. It is safe on a partly built runtime.
func (rt *runtime) Close(ctx context.Context, log logging.Logger) {
	if rt.session != nil {
		rt.session.Stop()
	}
	if rt.influx != nil {
		rt.influx.Close()
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			log.Warn(ctx, "closing conjunction store failed", logging.Err(err))
		}
	}
	if rt.remote != nil {
		_ = rt.remote.Close()
	}
}
