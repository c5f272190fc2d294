package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/model"
)

// ParseTLE reads 3-line NORAD TLE data and converts each entry into mean
// Keplerian elements at the TLE epoch. Malformed entries are skipped with a
// warning log.
func ParseTLE(r io.Reader, log logging.Logger) ([]model.TrackedObject, error) {
	if log == nil {
		log = logging.Noop()
	}
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	ctx := context.Background()
	var out []model.TrackedObject
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := lines[i], lines[i+1], lines[i+2]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			log.Warn(ctx, "skipping malformed TLE entry", logging.Int("line_index", i), logging.String("name", name))
			i++
			continue
		}
		obj, err := parseEntry(strings.TrimSpace(strings.TrimPrefix(name, "0 ")), line1, line2)
		if err != nil {
			log.Warn(ctx, "skipping TLE entry", logging.String("name", name), logging.Err(err))
		} else {
			out = append(out, obj)
		}
		i += 3
	}
	return out, nil
}

func parseEntry(name, line1, line2 string) (model.TrackedObject, error) {
	if len(line1) < 32 || len(line2) < 63 {
		return model.TrackedObject{}, fmt.Errorf("short TLE lines")
	}
	id := strings.TrimSpace(line1[2:7])
	if _, err := strconv.Atoi(id); err != nil {
		return model.TrackedObject{}, fmt.Errorf("invalid catalog number %q", id)
	}
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return model.TrackedObject{}, err
	}

	fields := []struct {
		name string
		raw  string
	}{
		{"inclination", line2[8:16]},
		{"raan", line2[17:25]},
		{"eccentricity", "0." + strings.TrimSpace(line2[26:33])},
		{"arg perigee", line2[34:42]},
		{"mean anomaly", line2[43:51]},
		{"mean motion", line2[52:63]},
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return model.TrackedObject{}, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		vals[i] = v
	}

	revPerDay := vals[5]
	if revPerDay <= 0 {
		return model.TrackedObject{}, fmt.Errorf("invalid mean motion %v", revPerDay)
	}
	n := revPerDay * 2 * math.Pi / 86400.0
	a := math.Cbrt(core.MU / (n * n))

	return model.TrackedObject{
		ID:   id,
		Name: name,
		Kind: kindFromName(name),
		Orbit: model.KeplerianOrbit{
			SemiMajorAxis:  a,
			Eccentricity:   vals[2],
			InclinationRad: model.DegToRad(vals[0]),
			RAANRad:        model.DegToRad(vals[1]),
			ArgPerigeeRad:  model.DegToRad(vals[3]),
			MeanAnomalyRad: model.DegToRad(vals[4]),
			Epoch:          epoch,
		},
	}, nil
}

func kindFromName(name string) model.ObjectKind {
	upper := strings.ToUpper(name)
	if strings.Contains(upper, " DEB") || strings.Contains(upper, "R/B") {
		return model.KindDebris
	}
	return model.KindSatellite
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
