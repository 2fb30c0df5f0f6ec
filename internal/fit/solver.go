// Package fit implements a finite-difference Levenberg-Marquardt solver used
// for differential correction of orbits against sampled trajectories.
package fit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotConverged   = errors.New("fit did not converge")
	ErrInvalidProblem = errors.New("invalid fit problem")
)

// NotConvergedError reports a fit that ran out of iterations.
type NotConvergedError struct {
	Iterations int
	RMS        float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("fit did not converge after %d iterations (rms %.6g)", e.Iterations, e.RMS)
}

func (e *NotConvergedError) Is(target error) bool { return target == ErrNotConverged }

// Model maps a parameter vector to a residual vector. The residual length
// must not depend on the parameters.
type Model interface {
	Residuals(params []float64) ([]float64, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(params []float64) ([]float64, error)

func (f ModelFunc) Residuals(params []float64) ([]float64, error) { return f(params) }

// Problem describes one solve. Steps are the finite-difference increments
// per parameter and also set the scale the damping works in.
type Problem struct {
	Initial       []float64
	Steps         []float64
	Tolerance     float64
	MaxIterations int
	Logger        *slog.Logger
}

// Result is a converged solution.
type Result struct {
	Params     []float64
	Iterations int
	RMS        float64
}

const (
	initialLambda = 1e-3
	minLambda     = 1e-12
	maxLambda     = 1e12
)

// Solve runs Levenberg-Marquardt from p.Initial. It converges when the RMS
// improvement of an accepted step is at most p.Tolerance, when the residuals
// vanish, or when no damping yields an improvement (a stationary point). A
// stationary start whose RMS exceeds p.Tolerance is not a solution.
func Solve(m Model, p Problem) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n := len(p.Initial)
	x := append([]float64(nil), p.Initial...)
	r, err := m.Residuals(x)
	if err != nil {
		return Result{}, fmt.Errorf("evaluating initial residuals: %w", err)
	}
	if len(r) == 0 {
		return Result{}, fmt.Errorf("%w: model returned no residuals", ErrInvalidProblem)
	}
	rms := rmsOf(r)
	if rms == 0 {
		return Result{Params: x, RMS: 0}, nil
	}

	lambda := initialLambda
	accepted := 0
	for iter := 1; iter <= p.MaxIterations; iter++ {
		jac, err := jacobian(m, x, r, p.Steps)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", iter, err)
		}

		var a mat.SymDense
		a.SymOuterK(1, jac.T())
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(len(r), r))
		g.ScaleVec(-1, &g)

		floor := 0.0
		for i := 0; i < n; i++ {
			floor = math.Max(floor, a.At(i, i))
		}
		floor *= 1e-12

		var (
			next    []float64
			nextR   []float64
			nextRMS float64
			ok      bool
		)
		for lambda <= maxLambda {
			next, nextR, nextRMS, ok = tryStep(m, x, &a, &g, p.Steps, lambda, floor)
			if ok && nextRMS < rms {
				break
			}
			ok = false
			lambda *= 10
		}
		if !ok {
			logger.Debug("fit stationary", "iterations", iter, "rms", rms, "accepted", accepted)
			if accepted == 0 && rms > p.Tolerance {
				return Result{}, &NotConvergedError{Iterations: iter, RMS: rms}
			}
			return Result{Params: x, Iterations: iter, RMS: rms}, nil
		}
		lambda = math.Max(lambda/10, minLambda)
		accepted++

		change := rms - nextRMS
		x, r, rms = next, nextR, nextRMS
		logger.Debug("fit iteration", "iterations", iter, "rms", rms, "lambda", lambda)

		if change <= p.Tolerance || rms == 0 {
			return Result{Params: x, Iterations: iter, RMS: rms}, nil
		}
	}
	return Result{}, &NotConvergedError{Iterations: p.MaxIterations, RMS: rms}
}

func (p Problem) validate() error {
	switch {
	case len(p.Initial) == 0:
		return fmt.Errorf("%w: no parameters", ErrInvalidProblem)
	case len(p.Steps) != len(p.Initial):
		return fmt.Errorf("%w: %d steps for %d parameters", ErrInvalidProblem, len(p.Steps), len(p.Initial))
	case !(p.Tolerance > 0):
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalidProblem, p.Tolerance)
	case p.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidProblem, p.MaxIterations)
	}
	for i, s := range p.Steps {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: step %d is %g", ErrInvalidProblem, i, s)
		}
	}
	return nil
}

// jacobian returns d(residual)/d(param/step), one column per parameter. A
// forward difference that the model rejects is retried backward.
func jacobian(m Model, x, r, steps []float64) (*mat.Dense, error) {
	jac := mat.NewDense(len(r), len(x), nil)
	probe := append([]float64(nil), x...)
	col := make([]float64, len(r))

	for j := range x {
		sign := 1.0
		probe[j] = x[j] + steps[j]
		rj, err := m.Residuals(probe)
		if err != nil {
			sign = -1
			probe[j] = x[j] - steps[j]
			rj, err = m.Residuals(probe)
		}
		probe[j] = x[j]
		if err != nil {
			return nil, fmt.Errorf("differentiating parameter %d: %w", j, err)
		}
		if len(rj) != len(r) {
			return nil, fmt.Errorf("%w: residual length changed from %d to %d", ErrInvalidProblem, len(r), len(rj))
		}
		floats.SubTo(col, rj, r)
		floats.Scale(sign, col)
		jac.SetCol(j, col)
	}
	return jac, nil
}

// tryStep solves (A + lambda*diag(A)) delta = -g in scaled units and
// evaluates the model at the resulting point.
func tryStep(m Model, x []float64, a *mat.SymDense, g *mat.VecDense, steps []float64, lambda, floor float64) ([]float64, []float64, float64, bool) {
	n := len(x)
	damped := mat.NewSymDense(n, nil)
	damped.CopySym(a)
	for i := 0; i < n; i++ {
		d := a.At(i, i)
		damped.SetSym(i, i, d+lambda*math.Max(d, floor))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(damped); !ok {
		return nil, nil, 0, false
	}
	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, g); err != nil {
		return nil, nil, 0, false
	}

	next := make([]float64, n)
	for i := range next {
		next[i] = x[i] + delta.AtVec(i)*steps[i]
	}
	r, err := m.Residuals(next)
	if err != nil {
		return nil, nil, 0, false
	}
	rms := rmsOf(r)
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return nil, nil, 0, false
	}
	return next, r, rms, true
}

func rmsOf(r []float64) float64 {
	return floats.Norm(r, 2) / math.Sqrt(float64(len(r)))
}
