package convert

import (
	"github.com/greyskyy/orbit-tool/internal/fit"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

// Finite-difference steps for x, y, z (m), vx, vy, vz (m/s) and mu (m^3/s^2).
var stateSteps = []float64{10, 10, 10, 0.01, 0.01, 0.01, 1e6}

// stateModel fits the initial Cartesian state and gravitational parameter
// of a numerical propagator.
type stateModel struct {
	epoch orbit.State
	cfg   propagation.NumericalConfig
	obs   observations
}

func (m stateModel) propagator(p []float64) (*propagation.NumericalPropagator, error) {
	s := orbit.State{
		Epoch:    m.epoch.Epoch,
		Frame:    m.epoch.Frame,
		Position: r3.Vec{X: p[0], Y: p[1], Z: p[2]},
		Velocity: r3.Vec{X: p[3], Y: p[4], Z: p[5]},
	}
	cfg := m.cfg
	cfg.Body.Mu = p[6]
	return propagation.NewNumericalPropagator(s, cfg)
}

func (m stateModel) Residuals(p []float64) ([]float64, error) {
	prop, err := m.propagator(p)
	if err != nil {
		return nil, err
	}
	return m.obs.residuals(prop)
}

// fitNumerical fits a Cowell propagator to traj and narrows its osculating
// elements at the trajectory start to dest.
func (c *Converter) fitNumerical(traj propagation.Trajectory, dest orbit.Category) (Result, error) {
	first := traj.States[0]
	model := stateModel{
		epoch: first,
		cfg:   c.cfg.Numerical,
		obs:   newObservations(traj, c.cfg.PositionOnly),
	}

	initial := []float64{
		first.Position.X, first.Position.Y, first.Position.Z,
		first.Velocity.X, first.Velocity.Y, first.Velocity.Z,
		c.cfg.Numerical.Body.Mu,
	}
	sol, err := fit.Solve(model, c.problem(initial, stateSteps))
	if err != nil {
		return Result{}, err
	}

	prop, err := model.propagator(sol.Params)
	if err != nil {
		return Result{}, err
	}
	state, err := prop.Propagate(traj.Start())
	if err != nil {
		return Result{}, err
	}
	k, err := orbit.KeplerianFromState(state, prop.Mu())
	if err != nil {
		return Result{}, err
	}
	rep, err := orbit.Narrow(k, dest)
	if err != nil {
		return Result{}, err
	}
	return Result{Representation: rep, Iterations: sol.Iterations, RMS: sol.RMS}, nil
}
