package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/greyskyy/orbit-tool/internal/config"
	"github.com/greyskyy/orbit-tool/internal/observability"
	"github.com/greyskyy/orbit-tool/internal/passes"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/greyskyy/orbit-tool/internal/transform"
	"go.opentelemetry.io/otel/attribute"
)

// EphemerisHeader names the columns written by Sample.
var EphemerisHeader = []string{
	"dates", "date_secs",
	"x_km", "y_km", "z_km", "vx_km_s", "vy_km_s", "vz_km_s",
	"x_ecef_km", "y_ecef_km", "z_ecef_km",
	"lat_deg", "lon_deg", "alt_km",
}

// Sample writes an orbit's ephemeris over the configured span as CSV to
// file, or to the command output when file is "-".
func (a *App) Sample(ctx context.Context, name, file string) (err error) {
	ctx, span := observability.StartSpan(ctx, "sample", attribute.String("orbit", name))
	defer func() { observability.EndSpan(span, err) }()

	src, err := a.resolve(ctx, name)
	if err != nil {
		return err
	}
	sp, err := config.ResolveSpan(a.v, src.epoch)
	if err != nil {
		return err
	}
	prop, err := a.propagatorFor(src.rep)
	if err != nil {
		return err
	}
	traj, err := a.sample(prop, sp)
	if err != nil {
		return err
	}

	if file == "-" {
		return writeEphemeris(a.out, traj)
	}
	path := outputPath(file, OutputCSV)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := writeEphemeris(f, traj); err != nil {
		return err
	}
	a.logger.Info("wrote ephemeris", "path", path, "rows", traj.Len())
	return nil
}

func writeEphemeris(w io.Writer, traj propagation.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EphemerisHeader); err != nil {
		return err
	}
	km := func(x float64) string { return strconv.FormatFloat(x/1000, 'g', -1, 64) }
	deg := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

	start := traj.Start()
	for _, st := range traj.States {
		ef := transform.ToEarthFixed(st)
		geo := transform.Geodetic(ef.Position)
		rec := []string{
			st.Epoch.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(st.Epoch.Sub(start).Seconds(), 'g', -1, 64),
			km(st.Position.X), km(st.Position.Y), km(st.Position.Z),
			km(st.Velocity.X), km(st.Velocity.Y), km(st.Velocity.Z),
			km(ef.Position.X), km(ef.Position.Y), km(ef.Position.Z),
			deg(geo.LatDeg), deg(geo.LonDeg), km(geo.AltM),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Passes prints the visibility windows of each orbit from the configured
// observer over the span of the first orbit.
func (a *App) Passes(ctx context.Context, names []string) (err error) {
	ctx, span := observability.StartSpan(ctx, "passes", attribute.StringSlice("orbits", names))
	defer func() { observability.EndSpan(span, err) }()

	if len(names) == 0 {
		return fmt.Errorf("no orbits given")
	}
	obs, err := config.ReadObserver(a.v)
	if err != nil {
		return err
	}

	targets := make([]passes.Target, 0, len(names))
	var sp config.Span
	for i, name := range names {
		src, err := a.resolve(ctx, name)
		if err != nil {
			return err
		}
		if i == 0 {
			if sp, err = config.ResolveSpan(a.v, src.epoch); err != nil {
				return err
			}
		}
		prop, err := a.propagatorFor(src.rep)
		if err != nil {
			return err
		}
		targets = append(targets, passes.Target{Name: name, Propagator: prop})
	}

	a.logger.Info("predicting passes",
		"orbits", len(targets),
		"latitude", obs.LatitudeDeg,
		"longitude", obs.LongitudeDeg,
		"min_elevation", obs.MinElevationDeg,
		"start", sp.Start.Format(time.RFC3339),
		"stop", sp.Stop.Format(time.RFC3339),
	)
	began := time.Now()
	results := passes.Predict(ctx, passes.Request{
		Observer:     transform.NewObserver(obs.LatitudeDeg, obs.LongitudeDeg, obs.AltitudeM),
		Targets:      targets,
		Start:        sp.Start,
		Stop:         sp.Stop,
		MinElevation: obs.MinElevationDeg,
		MaxPasses:    obs.MaxPasses,
	})

	total := 0
	for _, r := range results {
		if r.Error != "" {
			a.logger.Warn("pass prediction failed", "orbit", r.Name, "error", r.Error)
			continue
		}
		total += len(r.Passes)
	}
	a.logger.Info("pass prediction complete", "passes", total, "duration_ms", time.Since(began).Milliseconds())
	return a.writeJSON(results)
}

// Fetch looks up a catalog number, refreshing the on-disk cache, and prints
// the element set in three-line form.
func (a *App) Fetch(ctx context.Context, catnr int) (err error) {
	ctx, span := observability.StartSpan(ctx, "fetch", attribute.Int("norad_id", catnr))
	defer func() { observability.EndSpan(span, err) }()

	entry, err := a.catalog.Lookup(ctx, catnr)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s\n%s\n%s\n", entry.Name, entry.Line1, entry.Line2)
	return err
}
