// Package convert turns one orbit representation into another by fitting the
// target form to a sampled trajectory of the source.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/greyskyy/orbit-tool/internal/fit"
	"github.com/greyskyy/orbit-tool/internal/metrics"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
)

var (
	ErrIncompatibleSeed  = errors.New("seed orbit is not compatible with the destination")
	ErrNoSamples         = errors.New("trajectory has no samples")
	ErrFitDidNotConverge = errors.New("orbit fit did not converge")
)

// ConversionError carries the categories and iteration count of a failed
// conversion.
type ConversionError struct {
	Source     orbit.Category
	Dest       orbit.Category
	Iterations int
	Err        error
}

func (e *ConversionError) Error() string {
	if e.Iterations > 0 {
		return fmt.Sprintf("convert %s to %s (after %d iterations): %v", e.Source, e.Dest, e.Iterations, e.Err)
	}
	return fmt.Sprintf("convert %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Config tunes the differential correction.
type Config struct {
	Tolerance     float64 // RMS change that ends the fit, m
	MaxIterations int
	PositionOnly  bool
	Thresholds    orbit.Thresholds
	// Numerical configures the propagator fitted for Keplerian-family
	// targets. Its Body also classifies AUTO_SELECT sources.
	Numerical propagation.NumericalConfig
	Gravity   propagation.Gravity
}

// DefaultConfig returns a 1 mm tolerance with up to 1000 iterations.
func DefaultConfig() Config {
	return Config{
		Tolerance:     1e-3,
		MaxIterations: 1000,
		Thresholds:    orbit.DefaultThresholds(),
		Numerical:     propagation.DefaultNumericalConfig(),
		Gravity:       propagation.GravityWGS72,
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	if !(c.Tolerance > 0) {
		return fmt.Errorf("%w: fit tolerance must be positive, got %g", orbit.ErrConfiguration, c.Tolerance)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: fit max iterations must be positive, got %d", orbit.ErrConfiguration, c.MaxIterations)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Numerical.Validate(); err != nil {
		return err
	}
	if _, err := propagation.ParseGravity(string(c.Gravity)); err != nil {
		return err
	}
	return nil
}

// Request is one conversion. SourceState is the source orbit's state and
// drives AUTO_SELECT; Seed is optional.
type Request struct {
	Source      orbit.Representation
	SourceState orbit.State
	Dest        orbit.Category
	Seed        orbit.Representation
	Trajectory  propagation.Trajectory
}

// Result is a converted orbit.
type Result struct {
	Representation orbit.Representation
	Iterations     int
	RMS            float64 // m
	// Identity is set when the source already had the destination category.
	Identity bool
}

// Converter fits orbit representations to trajectories.
type Converter struct {
	cfg    Config
	logger *slog.Logger
}

// NewConverter creates a Converter.
func NewConverter(cfg Config, logger *slog.Logger) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Converter{cfg: cfg, logger: logger}, nil
}

// Convert expresses req.Source in req.Dest.
func (c *Converter) Convert(req Request) (Result, error) {
	if req.Source == nil {
		return Result{}, fmt.Errorf("%w: no source orbit", orbit.ErrConfiguration)
	}
	src := req.Source.Category()

	if err := CheckSeed(req.Seed, req.Dest); err != nil {
		return Result{}, &ConversionError{Source: src, Dest: req.Dest, Err: err}
	}
	dest, err := c.Destination(req.SourceState, req.Dest)
	if err != nil {
		return Result{}, &ConversionError{Source: src, Dest: req.Dest, Err: err}
	}

	c.logger.Info("converting orbit", "source", src.String(), "dest", dest.String())
	if src == dest {
		c.logger.Debug("source and destination match, nothing to do")
		return Result{Representation: req.Source, Identity: true}, nil
	}

	if req.Trajectory.Len() == 0 {
		return Result{}, &ConversionError{Source: src, Dest: dest, Err: ErrNoSamples}
	}

	began := time.Now()
	var res Result
	if dest == orbit.CategoryTLE {
		res, err = c.fitTLE(req.Trajectory, req.Seed)
	} else {
		res, err = c.fitNumerical(req.Trajectory, dest)
	}

	var nc *fit.NotConvergedError
	switch {
	case errors.As(err, &nc):
		metrics.ObserveFit(dest.String(), nc.Iterations, false)
		return Result{}, &ConversionError{Source: src, Dest: dest, Iterations: nc.Iterations,
			Err: fmt.Errorf("%w: %w", ErrFitDidNotConverge, err)}
	case err != nil:
		return Result{}, &ConversionError{Source: src, Dest: dest, Err: err}
	}

	metrics.ObserveFit(dest.String(), res.Iterations, true)
	c.logger.Info("fit complete",
		"dest", dest.String(),
		"iterations", res.Iterations,
		"rms_m", res.RMS,
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return res, nil
}

// CheckSeed rejects a seed whose category cannot serve dest. A nil seed
// always passes.
func CheckSeed(seed orbit.Representation, dest orbit.Category) error {
	if seed == nil || orbit.Compatible(seed.Category(), dest) {
		return nil
	}
	return fmt.Errorf("%w: seed=%s dest=%s", ErrIncompatibleSeed, seed.Category(), dest)
}

// Destination resolves AUTO_SELECT from the source state; any other
// category is returned unchanged.
func (c *Converter) Destination(source orbit.State, dest orbit.Category) (orbit.Category, error) {
	if dest != orbit.CategoryAutoSelect {
		return dest, nil
	}
	resolved, err := orbit.ClassifyState(source, c.cfg.Numerical.Body.Mu, c.cfg.Thresholds)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("resolved destination", "dest", resolved.String())
	return resolved, nil
}

func (c *Converter) problem(initial, steps []float64) fit.Problem {
	return fit.Problem{
		Initial:       initial,
		Steps:         steps,
		Tolerance:     c.cfg.Tolerance,
		MaxIterations: c.cfg.MaxIterations,
		Logger:        c.logger,
	}
}
