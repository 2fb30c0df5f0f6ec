package propagation

import "gonum.org/v1/gonum/floats"

// derivativeFunc writes dy/dt at (t, y) into dy.
type derivativeFunc func(t float64, y, dy []float64)

// rk4 is a classical fixed-step Runge-Kutta integrator with preallocated
// stage buffers.
type rk4 struct {
	k1, k2, k3, k4, tmp []float64
}

func newRK4(n int) *rk4 {
	return &rk4{
		k1:  make([]float64, n),
		k2:  make([]float64, n),
		k3:  make([]float64, n),
		k4:  make([]float64, n),
		tmp: make([]float64, n),
	}
}

// step advances y in place from t to t+h.
func (r *rk4) step(f derivativeFunc, t, h float64, y []float64) {
	f(t, y, r.k1)
	floats.AddScaledTo(r.tmp, y, h/2, r.k1)
	f(t+h/2, r.tmp, r.k2)
	floats.AddScaledTo(r.tmp, y, h/2, r.k2)
	f(t+h/2, r.tmp, r.k3)
	floats.AddScaledTo(r.tmp, y, h, r.k3)
	f(t+h, r.tmp, r.k4)

	floats.AddScaled(y, h/6, r.k1)
	floats.AddScaled(y, h/3, r.k2)
	floats.AddScaled(y, h/3, r.k3)
	floats.AddScaled(y, h/6, r.k4)
}
