// Package influx writes hazard distances as an InfluxDB time series keyed by
// simulation time.
package influx

import (
	"context"
	"errors"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/model"
)

// Measurement names.
const (
	HazardMeasurement  = "hazard_distance"
	SummaryMeasurement = "hazard_summary"
)

// ErrDisabled is returned by New when influx output is switched off.
var ErrDisabled = errors.New("influx output disabled")

// pointSink is the part of api.WriteAPI the writer uses.
type pointSink interface {
	WritePoint(point *write.Point)
	Flush()
}

// Writer batches hazard points to one bucket.
type Writer struct {
	client influxdb2.Client
	sink   pointSink
	log    logging.Logger

	closeOnce sync.Once
}

// New connects to InfluxDB. Write errors are logged asynchronously.
func New(cfg config.InfluxConfig, log logging.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logging.Noop()
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	log = logging.Component(log, "influx").With(logging.String("bucket", cfg.Bucket))
	go func(errorsCh <-chan error) {
		for err := range errorsCh {
			log.Warn(context.Background(), "influx write failed", logging.Err(err))
		}
	}(writeAPI.Errors())

	return &Writer{client: client, sink: writeAPI, log: log}, nil
}

func newWithSink(sink pointSink) *Writer {
	return &Writer{sink: sink, log: logging.Noop()}
}

// Ping reports whether the server is reachable.
func (w *Writer) Ping(ctx context.Context) bool {
	if w.client == nil {
		return false
	}
	ok, err := w.client.Ping(ctx)
	if err != nil {
		w.log.Warn(ctx, "influx ping failed", logging.Err(err))
		return false
	}
	return ok
}

// WriteHazards queues one point per hazard plus a summary point.
func (w *Writer) WriteHazards(focus model.TrackedObject, hazards []model.HazardRecord, simTime time.Time) {
	for _, p := range HazardPoints(focus, hazards, simTime) {
		w.sink.WritePoint(p)
	}
	w.sink.WritePoint(SummaryPoint(focus, hazards, simTime))
}

// Close flushes pending points and closes the client.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		w.sink.Flush()
		if w.client != nil {
			w.client.Close()
		}
	})
}

// HazardPoints converts hazards into points stamped with simTime.
func HazardPoints(focus model.TrackedObject, hazards []model.HazardRecord, simTime time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(hazards))
	for _, h := range hazards {
		fields := map[string]interface{}{
			"distance_km": h.Distance,
			"collision":   h.Collision,
		}
		if h.TimeToCollision != nil {
			fields["ttc_s"] = *h.TimeToCollision
		}
		points = append(points, write.NewPoint(HazardMeasurement,
			map[string]string{
				"focus":    focus.Key(),
				"object":   h.DebrisName,
				"type":     string(h.Type),
				"severity": string(h.Severity),
			},
			fields, simTime.UTC()))
	}
	return points
}

// SummaryPoint records the hazard counts for focus at simTime.
func SummaryPoint(focus model.TrackedObject, hazards []model.HazardRecord, simTime time.Time) *write.Point {
	s := model.Summarize(hazards)
	fields := map[string]interface{}{
		"total":      s.Total,
		"satellites": s.Satellites,
		"debris":     s.Debris,
		"critical":   s.Critical,
		"moderate":   s.Moderate,
		"collisions": s.Collisions,
	}
	if nearest, ok := nearestDistance(hazards); ok {
		fields["nearest_km"] = nearest
	}
	return write.NewPoint(SummaryMeasurement, map[string]string{"focus": focus.Key()}, fields, simTime.UTC())
}

func nearestDistance(hazards []model.HazardRecord) (float64, bool) {
	if len(hazards) == 0 {
		return 0, false
	}
	best := hazards[0].Distance
	for _, h := range hazards[1:] {
		if h.Distance < best {
			best = h.Distance
		}
	}
	return best, true
}
