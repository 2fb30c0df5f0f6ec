package convert

import (
	"fmt"
	"math"

	"github.com/greyskyy/orbit-tool/internal/fit"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/greyskyy/orbit-tool/internal/tle"
)

// TLE fit parameters: mean motion (rev/day), e cos w, e sin w, inclination,
// RAAN and mean argument of latitude M+w (deg), B*.
const (
	tleMeanMotion = iota
	tleEx
	tleEy
	tleInclination
	tleRAAN
	tleLatitude
	tleBStar
)

// Steps sit well above the printed resolution of each field.
var tleSteps = []float64{1e-6, 1e-5, 1e-5, 1e-2, 1e-2, 1e-2, 1e-6}

const (
	seedIterations = 25
	secondsPerDay  = 86400.0
)

// anonymousSatellite is the catalog number used when no seed names one.
const anonymousSatellite = 99999

// tleModel evaluates SGP4 for a parameter vector over the observations.
type tleModel struct {
	meta    tle.Elements
	gravity propagation.Gravity
	obs     observations
}

// elements applies p to the catalog metadata.
func (m tleModel) elements(p []float64) (tle.Elements, error) {
	el := m.meta
	e := math.Hypot(p[tleEx], p[tleEy])
	switch {
	case !(p[tleMeanMotion] > 0):
		return el, fmt.Errorf("%w: mean motion %g rev/day", orbit.ErrUnsupportedOrbit, p[tleMeanMotion])
	case e >= 1:
		return el, fmt.Errorf("%w: eccentricity %g", orbit.ErrUnsupportedOrbit, e)
	case p[tleInclination] < 0 || p[tleInclination] > 180:
		return el, fmt.Errorf("%w: inclination %g deg", orbit.ErrUnsupportedOrbit, p[tleInclination])
	}

	argp := 0.0
	if e > 0 {
		argp = orbit.Rad2Deg(math.Atan2(p[tleEy], p[tleEx]))
	}
	el.MeanMotion = p[tleMeanMotion]
	el.Eccentricity = e
	el.Inclination = p[tleInclination]
	el.RAAN = p[tleRAAN]
	el.ArgPerigee = argp
	el.MeanAnomaly = p[tleLatitude] - argp
	el.BStar = p[tleBStar]
	return el, nil
}

func (m tleModel) representation(p []float64) (orbit.TwoLineElement, error) {
	el, err := m.elements(p)
	if err != nil {
		return orbit.TwoLineElement{}, err
	}
	l1, l2, err := tle.Format(el)
	if err != nil {
		return orbit.TwoLineElement{}, fmt.Errorf("%w: %w", orbit.ErrUnsupportedOrbit, err)
	}
	return orbit.TwoLineElement{Line1: l1, Line2: l2}, nil
}

func (m tleModel) propagator(p []float64) (*propagation.SGP4Propagator, error) {
	rep, err := m.representation(p)
	if err != nil {
		return nil, err
	}
	return propagation.NewSGP4FromRepresentation(rep, m.gravity)
}

func (m tleModel) Residuals(p []float64) ([]float64, error) {
	prop, err := m.propagator(p)
	if err != nil {
		return nil, err
	}
	return m.obs.residuals(prop)
}

// fitTLE fits a mean-element set to traj, starting from a seed derived from
// the first state.
func (c *Converter) fitTLE(traj propagation.Trajectory, seed orbit.Representation) (Result, error) {
	meta, err := seedMetadata(seed)
	if err != nil {
		return Result{}, err
	}
	meta.Epoch = traj.Start()

	model := tleModel{meta: meta, gravity: c.cfg.Gravity, obs: newObservations(traj, c.cfg.PositionOnly)}
	initial, err := c.seedTLE(model, traj.States[0])
	if err != nil {
		return Result{}, err
	}

	sol, err := fit.Solve(model, c.problem(initial, tleSteps))
	if err != nil {
		return Result{}, err
	}
	rep, err := model.representation(sol.Params)
	if err != nil {
		return Result{}, err
	}
	return Result{Representation: rep, Iterations: sol.Iterations, RMS: sol.RMS}, nil
}

// seedMetadata returns the catalog fields carried into the fitted set.
func seedMetadata(seed orbit.Representation) (tle.Elements, error) {
	if t, ok := seed.(orbit.TwoLineElement); ok {
		el, err := tle.ParseElements(t.Line1, t.Line2)
		if err != nil {
			return tle.Elements{}, fmt.Errorf("%w: seed TLE: %w", orbit.ErrConfiguration, err)
		}
		return el, nil
	}
	return tle.Elements{SatelliteNumber: anonymousSatellite, Classification: 'U'}, nil
}

// meanState is the vector the seed iteration works on: a (m), e cos w,
// e sin w, i, RAAN and M+w (rad).
type meanState [6]float64

func meanStateOf(k orbit.Keplerian) meanState {
	sinW, cosW := math.Sincos(k.ArgPerigee)
	return meanState{k.A, k.E * cosW, k.E * sinW, k.I, k.RAAN, k.MeanAnomaly + k.ArgPerigee}
}

func (s meanState) params(mu, bstar float64) []float64 {
	n := math.Sqrt(mu/(s[0]*s[0]*s[0])) * secondsPerDay / (2 * math.Pi)
	return []float64{n, s[1], s[2], orbit.Rad2Deg(s[3]), orbit.Rad2Deg(s[4]), orbit.Rad2Deg(s[5]), bstar}
}

// seedTLE inverts SGP4 at the first state with a fixed-point iteration:
// the mean elements are corrected by the difference between the target
// osculating elements and those SGP4 produces from the current guess.
// The best guess is kept if the iteration budget runs out. Mean motion is
// derived with the gravitational parameter of the SGP4 model being fitted.
func (c *Converter) seedTLE(model tleModel, first orbit.State) ([]float64, error) {
	mu := model.gravity.Mu()
	target, err := orbit.KeplerianFromState(first, mu)
	if err != nil {
		return nil, err
	}
	want := meanStateOf(target)
	guess := want
	bstar := model.meta.BStar

	for i := 0; i < seedIterations; i++ {
		prop, err := model.propagator(guess.params(mu, bstar))
		if err != nil {
			return nil, fmt.Errorf("seeding TLE: %w", err)
		}
		s, err := prop.Propagate(first.Epoch)
		if err != nil {
			return nil, fmt.Errorf("seeding TLE: %w", err)
		}
		k, err := orbit.KeplerianFromState(s, mu)
		if err != nil {
			return nil, fmt.Errorf("seeding TLE: %w", err)
		}
		got := meanStateOf(k)

		done := true
		for j := range guess {
			d := want[j] - got[j]
			if j >= 3 {
				d = orbit.NormalizeAngle(d)
			}
			guess[j] += d
			if j == 3 && guess[j] < 0 {
				guess[j] = 0
			}
			if (j == 0 && math.Abs(d) > 1e-3) || (j > 0 && math.Abs(d) > 1e-10) {
				done = false
			}
		}
		if done {
			c.logger.Debug("tle seed converged", "iterations", i+1)
			break
		}
	}
	return guess.params(mu, bstar), nil
}
