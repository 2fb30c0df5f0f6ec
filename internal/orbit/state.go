// Package orbit holds orbit states and element representations, along with
// the classification and compatibility rules between representation families.
//
// All quantities are SI: meters, meters per second, radians. Kilometers and
// degrees only appear in serialized output.
package orbit

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// FrameTEME is the True Equator Mean Equinox frame emitted by SGP4. Every
// propagator in this module reports states in it.
const FrameTEME = "TEME"

// State is an immutable position/velocity snapshot.
type State struct {
	Epoch    time.Time
	Frame    string
	Position r3.Vec // m
	Velocity r3.Vec // m/s
}

// Radius returns |r| in meters.
func (s State) Radius() float64 { return r3.Norm(s.Position) }

// Speed returns |v| in m/s.
func (s State) Speed() float64 { return r3.Norm(s.Velocity) }

// Valid reports whether every component is finite and the radius is nonzero.
func (s State) Valid() bool {
	for _, x := range []float64{s.Position.X, s.Position.Y, s.Position.Z, s.Velocity.X, s.Velocity.Y, s.Velocity.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return s.Radius() > 0
}

// Body describes the central attracting body.
type Body struct {
	Name             string
	Mu               float64 // m^3/s^2
	EquatorialRadius float64 // m
	J2               float64
}

// Earth uses EGM96/WGS84 values.
var Earth = Body{
	Name:             "earth",
	Mu:               3.986004418e14,
	EquatorialRadius: 6378137.0,
	J2:               1.08262668e-3,
}

// EarthWGS72 matches the constants SGP4 mean elements are defined against.
var EarthWGS72 = Body{
	Name:             "earth-wgs72",
	Mu:               3.986008e14,
	EquatorialRadius: 6378135.0,
	J2:               1.082616e-3,
}
