package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/greyskyy/orbit-tool/internal/archive"
	"github.com/greyskyy/orbit-tool/internal/compare"
	"github.com/greyskyy/orbit-tool/internal/config"
	"github.com/greyskyy/orbit-tool/internal/convert"
	"github.com/greyskyy/orbit-tool/internal/metrics"
	"github.com/greyskyy/orbit-tool/internal/observability"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"go.opentelemetry.io/otel/attribute"
)

// Output formats for comparison records.
const (
	OutputNone   = "none"
	OutputCSV    = "csv"
	OutputSQLite = "sqlite"
)

// ClassifyResult is printed by Classify.
type ClassifyResult struct {
	Orbit          string         `json:"orbit"`
	Representation orbit.Category `json:"representation"`
	Category       orbit.Category `json:"category"`
	Elements       orbit.Elements `json:"elements"`
}

// Classify prints the most specific representation of an orbit's
// osculating state at its epoch, along with its configured elements.
func (a *App) Classify(ctx context.Context, name string) (err error) {
	ctx, span := observability.StartSpan(ctx, "classify", attribute.String("orbit", name))
	defer func() { observability.EndSpan(span, err) }()

	src, err := a.resolve(ctx, name)
	if err != nil {
		return err
	}
	prop, err := a.propagatorFor(src.rep)
	if err != nil {
		return err
	}
	st, err := prop.Propagate(src.epoch)
	if err != nil {
		return fmt.Errorf("propagating %q to its epoch: %w", name, err)
	}
	mu := a.settings.Numerical.Body.Mu
	if k, kerr := orbit.ToKeplerian(src.rep); kerr == nil {
		mu = k.Mu
	}
	cat, err := orbit.ClassifyState(st, mu, a.settings.Thresholds)
	if err != nil {
		return err
	}
	el, err := orbit.Serialize(src.rep)
	if err != nil {
		return err
	}
	a.logger.Info("classified orbit", "orbit", name, "category", cat.String())
	return a.writeJSON(ClassifyResult{Orbit: name, Representation: src.rep.Category(), Category: cat, Elements: el})
}

// ConvertOptions selects the orbit to convert and the target form.
type ConvertOptions struct {
	Orbit     string
	To        string // category name; empty means AUTO_SELECT
	SeedOrbit string
	Archive   bool
}

// ConvertResult is printed by Convert.
type ConvertResult struct {
	Orbit      string         `json:"orbit"`
	Source     orbit.Category `json:"source"`
	Dest       orbit.Category `json:"dest"`
	Identity   bool           `json:"identity"`
	Iterations int            `json:"iterations"`
	RMSMeters  float64        `json:"rms_m"`
	Elements   orbit.Elements `json:"elements"`
}

// Convert samples an orbit over the configured span and fits the target
// representation to the samples.
func (a *App) Convert(ctx context.Context, opts ConvertOptions) (err error) {
	ctx, span := observability.StartSpan(ctx, "convert",
		attribute.String("orbit", opts.Orbit),
		attribute.String("dest", opts.To),
	)
	defer func() { observability.EndSpan(span, err) }()

	dest := orbit.CategoryAutoSelect
	if opts.To != "" {
		if dest, err = orbit.ParseCategory(opts.To); err != nil {
			return err
		}
	}

	src, err := a.resolve(ctx, opts.Orbit)
	if err != nil {
		return err
	}
	var seed orbit.Representation
	if opts.SeedOrbit != "" {
		s, err := a.resolve(ctx, opts.SeedOrbit)
		if err != nil {
			return err
		}
		seed = s.rep
	}
	if err := convert.CheckSeed(seed, dest); err != nil {
		return &convert.ConversionError{Source: src.rep.Category(), Dest: dest, Err: err}
	}

	conv, err := convert.NewConverter(convert.Config{
		Tolerance:     a.settings.Fit.Tolerance,
		MaxIterations: a.settings.Fit.MaxIterations,
		PositionOnly:  a.settings.Fit.PositionOnly,
		Thresholds:    a.settings.Thresholds,
		Numerical:     a.settings.Numerical,
		Gravity:       a.settings.Gravity,
	}, a.logger)
	if err != nil {
		return err
	}

	prop, err := a.propagatorFor(src.rep)
	if err != nil {
		return err
	}
	initial, err := prop.Propagate(src.epoch)
	if err != nil {
		return fmt.Errorf("propagating %q to its epoch: %w", opts.Orbit, err)
	}
	if dest, err = conv.Destination(initial, dest); err != nil {
		return &convert.ConversionError{Source: src.rep.Category(), Dest: orbit.CategoryAutoSelect, Err: err}
	}

	req := convert.Request{
		Source:      src.rep,
		SourceState: initial,
		Dest:        dest,
		Seed:        seed,
	}
	// Identity conversions need no trajectory.
	if dest != src.rep.Category() {
		sp, err := config.ResolveSpan(a.v, src.epoch)
		if err != nil {
			return err
		}
		if req.Trajectory, err = a.sample(prop, sp); err != nil {
			return err
		}
	}
	res, err := conv.Convert(req)
	if err != nil {
		return err
	}

	el, err := orbit.Serialize(res.Representation)
	if err != nil {
		return err
	}
	if opts.Archive {
		store, err := a.archive()
		if err != nil {
			return err
		}
		id, err := store.SaveConversion(ctx, archive.ConversionRun{
			Orbit:          opts.Orbit,
			Source:         src.rep.Category(),
			Representation: res.Representation,
			Iterations:     res.Iterations,
			RMS:            res.RMS,
		})
		if err != nil {
			return err
		}
		a.logger.Info("archived conversion", "id", id, "orbit", opts.Orbit)
	}

	return a.writeJSON(ConvertResult{
		Orbit:      opts.Orbit,
		Source:     src.rep.Category(),
		Dest:       res.Representation.Category(),
		Identity:   res.Identity,
		Iterations: res.Iterations,
		RMSMeters:  res.RMS,
		Elements:   el,
	})
}

// CompareOptions controls how a comparison is reported.
type CompareOptions struct {
	Output  string // none, csv or sqlite
	File    string // csv path; the extension is added when missing
	Summary bool
}

// Validate checks the output format.
func (o CompareOptions) Validate() error {
	switch o.Output {
	case OutputNone, OutputCSV, OutputSQLite:
		return nil
	}
	return fmt.Errorf("%w: unknown output format %q", orbit.ErrConfiguration, o.Output)
}

// Compare propagates two orbits over the span of the first and reports the
// second's position in the first's local orbital frame.
func (a *App) Compare(ctx context.Context, reference, other string, opts CompareOptions) (err error) {
	ctx, span := observability.StartSpan(ctx, "compare",
		attribute.String("orbit.reference", reference),
		attribute.String("orbit.other", other),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := opts.Validate(); err != nil {
		return err
	}

	ref, err := a.resolve(ctx, reference)
	if err != nil {
		return err
	}
	oth, err := a.resolve(ctx, other)
	if err != nil {
		return err
	}
	sp, err := config.ResolveSpan(a.v, ref.epoch)
	if err != nil {
		return err
	}

	refProp, err := a.propagatorFor(ref.rep)
	if err != nil {
		return err
	}
	othProp, err := a.propagatorFor(oth.rep)
	if err != nil {
		return err
	}
	return a.compareAndReport(ctx, "compare", reference, refProp, other, othProp, sp, opts)
}

// CheckTLE compares an element set's SGP4 trajectory against the numerical
// propagator started from the SGP4 state at the span start. The numerical
// trajectory is the reference.
func (a *App) CheckTLE(ctx context.Context, name string, opts CompareOptions) (err error) {
	ctx, span := observability.StartSpan(ctx, "check-tle", attribute.String("orbit", name))
	defer func() { observability.EndSpan(span, err) }()

	if err := opts.Validate(); err != nil {
		return err
	}

	src, err := a.resolve(ctx, name)
	if err != nil {
		return err
	}
	t, ok := src.rep.(orbit.TwoLineElement)
	if !ok {
		return fmt.Errorf("%w: orbit %q is %s, not a TLE", orbit.ErrConfiguration, name, src.rep.Category())
	}
	sp, err := config.ResolveSpan(a.v, src.epoch)
	if err != nil {
		return err
	}

	sgp4, err := propagation.NewSGP4FromRepresentation(t, a.settings.Gravity)
	if err != nil {
		return err
	}
	initial, err := sgp4.Propagate(sp.Start)
	if err != nil {
		return fmt.Errorf("propagating %q to %s: %w", name, sp.Start.Format(time.RFC3339), err)
	}
	numerical, err := propagation.NewNumericalPropagator(initial, a.settings.Numerical)
	if err != nil {
		return err
	}
	return a.compareAndReport(ctx, "check-tle", name+" (numerical)", numerical, name, sgp4, sp, opts)
}

func (a *App) compareAndReport(ctx context.Context, command, refName string, ref propagation.Propagator, otherName string, other propagation.Propagator, sp config.Span, opts CompareOptions) error {
	a.logger.Info("starting comparison",
		"reference", refName,
		"other", otherName,
		"start", sp.Start.Format(time.RFC3339),
		"stop", sp.Stop.Format(time.RFC3339),
		"step_seconds", sp.Step.Seconds(),
	)
	began := time.Now()

	refTraj, err := a.sample(ref, sp)
	if err != nil {
		return fmt.Errorf("sampling %s: %w", refName, err)
	}
	otherTraj, err := a.sample(other, sp)
	if err != nil {
		return fmt.Errorf("sampling %s: %w", otherName, err)
	}
	rec, err := compare.Compare(refTraj, otherTraj)
	if err != nil {
		return err
	}
	for i, row := range rec.Rows {
		if i%100 == 0 {
			a.logger.Debug("evaluated sample", "t", row.Epoch.Format(time.RFC3339), "index", i)
		}
	}

	sum := rec.Summary()
	metrics.ObserveComparison(sum.RadialKm*1000, sum.InTrackKm*1000, sum.CrossTrackKm*1000)
	a.logger.Info("comparison complete",
		"samples", sum.Samples,
		"duration_ms", time.Since(began).Milliseconds(),
	)

	if opts.Summary {
		fmt.Fprintf(a.out, "in_track_err     %.6f km\n", sum.InTrackKm)
		fmt.Fprintf(a.out, "cross_track_err  %.6f km\n", sum.CrossTrackKm)
		fmt.Fprintf(a.out, "radial_err       %.6f km\n", sum.RadialKm)
	}

	switch opts.Output {
	case OutputCSV:
		return a.writeRecordCSV(opts.File, rec)
	case OutputSQLite:
		store, err := a.archive()
		if err != nil {
			return err
		}
		id, err := store.SaveComparison(ctx, archive.ComparisonRun{
			Command:   command,
			Reference: refName,
			Other:     otherName,
			Step:      sp.Step,
		}, rec)
		if err != nil {
			return err
		}
		a.logger.Info("archived comparison", "id", id, "path", a.settings.ArchivePath)
	}
	return nil
}

// outputPath appends ".ext" unless name already ends with it.
func outputPath(name, ext string) string {
	if strings.HasSuffix(name, "."+ext) {
		return name
	}
	return name + "." + ext
}

func (a *App) writeRecordCSV(file string, rec compare.Record) (err error) {
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
	if err := compare.WriteCSV(f, rec); err != nil {
		return err
	}
	a.logger.Info("wrote comparison", "path", path, "rows", len(rec.Rows))
	return nil
}

// History prints the archived conversions of an orbit, newest first.
func (a *App) History(ctx context.Context, name string) error {
	store, err := a.archive()
	if err != nil {
		return err
	}
	rows, err := store.Conversions(ctx, name)
	if err != nil {
		return err
	}
	return a.writeJSON(rows)
}
