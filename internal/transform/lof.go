package transform

import (
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"gonum.org/v1/gonum/spatial/r3"
)

// LocalFrame is a local orbital frame anchored on a reference state. Its
// axes are expressed in the reference state's inertial frame.
type LocalFrame struct {
	Origin r3.Vec
	Q      r3.Vec // radial, away from the central body
	S      r3.Vec // along-track, completes the right-handed triad
	W      r3.Vec // orbit normal
}

// QSW builds the radial/along-track/cross-track frame of ref.
func QSW(ref orbit.State) LocalFrame {
	q := r3.Unit(ref.Position)
	w := r3.Unit(r3.Cross(ref.Position, ref.Velocity))
	return LocalFrame{
		Origin: ref.Position,
		Q:      q,
		S:      r3.Cross(w, q),
		W:      w,
	}
}

// Apply expresses an inertial position relative to the frame origin, in
// frame axes: X radial, Y along-track, Z cross-track.
func (f LocalFrame) Apply(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Origin)
	return r3.Vec{X: r3.Dot(d, f.Q), Y: r3.Dot(d, f.S), Z: r3.Dot(d, f.W)}
}
