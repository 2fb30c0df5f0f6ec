package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumericalConfig configures the Cowell propagator.
type NumericalConfig struct {
	Body    orbit.Body
	MaxStep time.Duration
	J2      bool
}

// DefaultNumericalConfig is Earth two-body plus J2 with a 10 s step.
func DefaultNumericalConfig() NumericalConfig {
	return NumericalConfig{
		Body:    orbit.Earth,
		MaxStep: 10 * time.Second,
		J2:      true,
	}
}

// Validate checks the step and body constants.
func (c NumericalConfig) Validate() error {
	if c.MaxStep <= 0 {
		return fmt.Errorf("%w: integrator step must be positive, got %s", orbit.ErrConfiguration, c.MaxStep)
	}
	if !(c.Body.Mu > 0) {
		return fmt.Errorf("%w: gravitational parameter must be positive, got %g", orbit.ErrConfiguration, c.Body.Mu)
	}
	return nil
}

// NumericalPropagator integrates point-mass gravity, optionally with the J2
// zonal term, from an initial Cartesian state. Each call lands exactly on
// the requested epoch by splitting the interval into equal steps no longer
// than MaxStep, so identical call sequences give identical results.
type NumericalPropagator struct {
	cfg    NumericalConfig
	epoch0 time.Time
	frame  string
	t      float64   // seconds since epoch0
	y      []float64 // x, y, z, vx, vy, vz
	rk     *rk4
	failed error // set once a step fails; y is no longer usable
}

// NewNumericalPropagator starts a propagator at initial.
func NewNumericalPropagator(initial orbit.State, cfg NumericalConfig) (*NumericalPropagator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: initial state at %s is not finite", orbit.ErrConfiguration, initial.Epoch.Format(time.RFC3339))
	}

	frame := initial.Frame
	if frame == "" {
		frame = orbit.FrameTEME
	}
	return &NumericalPropagator{
		cfg:    cfg,
		epoch0: initial.Epoch,
		frame:  frame,
		y: []float64{
			initial.Position.X, initial.Position.Y, initial.Position.Z,
			initial.Velocity.X, initial.Velocity.Y, initial.Velocity.Z,
		},
		rk: newRK4(6),
	}, nil
}

// Mu returns the gravitational parameter in use.
func (p *NumericalPropagator) Mu() float64 { return p.cfg.Body.Mu }

// Propagate integrates from the last returned epoch to t. After a failed
// step every later call returns the same error.
func (p *NumericalPropagator) Propagate(t time.Time) (orbit.State, error) {
	if p.failed != nil {
		return orbit.State{}, p.failed
	}
	target := t.Sub(p.epoch0).Seconds()
	span := target - p.t

	if span != 0 {
		n := math.Ceil(math.Abs(span) / p.cfg.MaxStep.Seconds())
		h := span / n
		start := p.t
		for i := 0; i < int(n); i++ {
			p.rk.step(p.derivative, start+float64(i)*h, h, p.y)
			p.t = start + float64(i+1)*h
			if err := p.check(p.epoch0.Add(time.Duration(p.t * float64(time.Second)))); err != nil {
				p.failed = err
				return orbit.State{}, err
			}
		}
		p.t = target
	}

	return orbit.State{
		Epoch:    t,
		Frame:    p.frame,
		Position: r3.Vec{X: p.y[0], Y: p.y[1], Z: p.y[2]},
		Velocity: r3.Vec{X: p.y[3], Y: p.y[4], Z: p.y[5]},
	}, nil
}

// check rejects diverged states and trajectories that hit the central body.
func (p *NumericalPropagator) check(at time.Time) error {
	for _, x := range p.y {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: integration diverged at %s", ErrPropagation, at.UTC().Format(time.RFC3339))
		}
	}
	if r := math.Sqrt(p.y[0]*p.y[0] + p.y[1]*p.y[1] + p.y[2]*p.y[2]); r < 0.5*p.cfg.Body.EquatorialRadius {
		return fmt.Errorf("%w: trajectory reached the central body (r=%.1f km) at %s", ErrPropagation, r/1000, at.UTC().Format(time.RFC3339))
	}
	return nil
}

// derivative evaluates Cowell's equations:
//
//	a = -mu r / |r|^3 + a_J2
//	a_J2 = 1.5 J2 mu Re^2 / r^5 * (x(5z²/r² - 1), y(5z²/r² - 1), z(5z²/r² - 3))
func (p *NumericalPropagator) derivative(_ float64, y, dy []float64) {
	x, yy, z := y[0], y[1], y[2]
	r2 := x*x + yy*yy + z*z
	r := math.Sqrt(r2)
	mu := p.cfg.Body.Mu

	k := -mu / (r2 * r)
	ax, ay, az := k*x, k*yy, k*z

	if p.cfg.J2 && p.cfg.Body.J2 != 0 {
		re := p.cfg.Body.EquatorialRadius
		f := 1.5 * p.cfg.Body.J2 * mu * re * re / (r2 * r2 * r)
		zr := 5 * z * z / r2
		ax += f * x * (zr - 1)
		ay += f * yy * (zr - 1)
		az += f * z * (zr - 3)
	}

	dy[0], dy[1], dy[2] = y[3], y[4], y[5]
	dy[3], dy[4], dy[5] = ax, ay, az
}
