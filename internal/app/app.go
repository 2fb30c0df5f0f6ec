// Package app runs orbit-tool commands: it resolves named orbits from the
// configuration, builds their propagators and feeds the sampled trajectories
// to the converter, the comparator and the exporters.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/greyskyy/orbit-tool/internal/archive"
	"github.com/greyskyy/orbit-tool/internal/config"
	"github.com/greyskyy/orbit-tool/internal/metrics"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/greyskyy/orbit-tool/internal/tle"
	"github.com/spf13/viper"
)

// App holds what every command needs. It is used for one command and then
// closed.
type App struct {
	v        *viper.Viper
	settings config.Settings
	catalog  config.Catalog
	logger   *slog.Logger
	out      io.Writer

	store *archive.Store
}

// New decodes the settings in v and wires the catalog client. Command
// results are written to out; logs go to logger.
func New(v *viper.Viper, logger *slog.Logger, out io.Writer) (*App, error) {
	s, err := config.Decode(v)
	if err != nil {
		return nil, err
	}

	fetcher := tle.NewFetcher(s.Catalog.URL, s.Catalog.Timeout, logger)
	cache := tle.NewCache(s.Catalog.CacheDir, s.Catalog.MaxFiles)

	logger.Debug("configuration loaded",
		"gravity", string(s.Gravity),
		"max_step_seconds", s.Numerical.MaxStep.Seconds(),
		"j2", s.Numerical.J2,
		"fit_tolerance", s.Fit.Tolerance,
		"fit_max_iterations", s.Fit.MaxIterations,
		"cache_dir", s.Catalog.CacheDir,
	)

	return &App{
		v:        v,
		settings: s,
		catalog:  tle.NewCatalog(fetcher, cache, s.Catalog.MaxAge, logger),
		logger:   logger,
		out:      out,
	}, nil
}

// Settings returns the decoded configuration.
func (a *App) Settings() config.Settings { return a.settings }

// Close writes the metrics textfile when configured and closes the archive.
func (a *App) Close() error {
	var firstErr error
	if path := a.settings.MetricsTextfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			firstErr = fmt.Errorf("writing metrics: %w", err)
		} else {
			a.logger.Debug("wrote metrics", "path", path)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing archive: %w", err)
		}
		a.store = nil
	}
	return firstErr
}

// archive opens the run archive on first use.
func (a *App) archive() (*archive.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := archive.Open(a.settings.ArchivePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// namedOrbit is a resolved orbit definition.
type namedOrbit struct {
	name  string
	rep   orbit.Representation
	epoch time.Time
}

func (a *App) resolve(ctx context.Context, name string) (namedOrbit, error) {
	def, err := config.ReadOrbit(a.v, name)
	if err != nil {
		return namedOrbit{}, err
	}
	rep, err := def.Resolve(ctx, a.catalog)
	if err != nil {
		return namedOrbit{}, err
	}
	epoch, err := epochOf(rep)
	if err != nil {
		return namedOrbit{}, fmt.Errorf("orbit %q: %w", name, err)
	}
	a.logger.Info("loaded orbit", "orbit", name, "representation", rep.Category().String(), "epoch", epoch.Format(time.RFC3339))
	return namedOrbit{name: name, rep: rep, epoch: epoch}, nil
}

func epochOf(rep orbit.Representation) (time.Time, error) {
	if t, ok := rep.(orbit.TwoLineElement); ok {
		el, err := tle.ParseElements(t.Line1, t.Line2)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", orbit.ErrConfiguration, err)
		}
		return el.Epoch, nil
	}
	k, err := orbit.ToKeplerian(rep)
	if err != nil {
		return time.Time{}, err
	}
	return k.Epoch, nil
}

// propagatorFor returns SGP4 for element sets and the numerical propagator,
// about the orbit's own central body, for everything else.
func (a *App) propagatorFor(rep orbit.Representation) (propagation.Propagator, error) {
	if t, ok := rep.(orbit.TwoLineElement); ok {
		return propagation.NewSGP4FromRepresentation(t, a.settings.Gravity)
	}
	k, err := orbit.ToKeplerian(rep)
	if err != nil {
		return nil, err
	}
	initial, err := k.State()
	if err != nil {
		return nil, err
	}
	cfg := a.settings.Numerical
	if k.Mu > 0 {
		cfg.Body.Mu = k.Mu
	}
	return propagation.NewNumericalPropagator(initial, cfg)
}

func (a *App) sample(p propagation.Propagator, span config.Span) (propagation.Trajectory, error) {
	return propagation.NewSampler(a.logger).Sample(p, span.Start, span.Stop, span.Step)
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
