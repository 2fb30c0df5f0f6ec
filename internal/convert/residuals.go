package convert

import (
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
)

// observations are the reference states of a fit with the velocity weight
// that puts velocity errors on the same scale as position errors.
type observations struct {
	states       []orbit.State
	velWeight    float64 // s
	positionOnly bool
}

func newObservations(traj propagation.Trajectory, positionOnly bool) observations {
	first := traj.States[0]
	w := 0.0
	if v := first.Speed(); v > 0 {
		w = first.Radius() / v
	}
	return observations{states: traj.States, velWeight: w, positionOnly: positionOnly}
}

func (o observations) size() int {
	if o.positionOnly {
		return 3 * len(o.states)
	}
	return 6 * len(o.states)
}

// residuals propagates p across every observation epoch.
func (o observations) residuals(p propagation.Propagator) ([]float64, error) {
	r := make([]float64, 0, o.size())
	for _, want := range o.states {
		got, err := p.Propagate(want.Epoch)
		if err != nil {
			return nil, err
		}
		r = append(r,
			got.Position.X-want.Position.X,
			got.Position.Y-want.Position.Y,
			got.Position.Z-want.Position.Z,
		)
		if !o.positionOnly {
			r = append(r,
				o.velWeight*(got.Velocity.X-want.Velocity.X),
				o.velWeight*(got.Velocity.Y-want.Velocity.Y),
				o.velWeight*(got.Velocity.Z-want.Velocity.Z),
			)
		}
	}
	return r, nil
}
