// Package transform holds the frame mathematics layered on top of propagated
// states: the local orbital (QSW) frame used for relative motion, and the
// GMST-only TEME to Earth-fixed rotation used for ground tracks.
//
// The Earth-fixed rotation ignores polar motion and the equation of the
// equinoxes, which stays within ~50 m for low orbits.
package transform

import (
	"math"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"gonum.org/v1/gonum/spatial/r3"
)

// EarthFixed is a position/velocity in the rotating Earth frame (m, m/s).
type EarthFixed struct {
	Epoch    time.Time
	Position r3.Vec
	Velocity r3.Vec
}

// ToEarthFixed rotates a TEME state into the Earth-fixed frame at its epoch.
func ToEarthFixed(s orbit.State) EarthFixed {
	return ToEarthFixedWithGMST(s, GMST(s.Epoch))
}

// ToEarthFixedWithGMST uses a precomputed GMST angle (radians).
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME - ω × r_ECEF
func ToEarthFixedWithGMST(s orbit.State, gmst float64) EarthFixed {
	sinG, cosG := math.Sincos(gmst)
	rot := func(v r3.Vec) r3.Vec {
		return r3.Vec{
			X: v.X*cosG + v.Y*sinG,
			Y: -v.X*sinG + v.Y*cosG,
			Z: v.Z,
		}
	}

	pos := rot(s.Position)
	vel := rot(s.Velocity)
	vel.X += OmegaEarth * pos.Y
	vel.Y -= OmegaEarth * pos.X

	return EarthFixed{Epoch: s.Epoch, Position: pos, Velocity: vel}
}

// Plausible reports whether an Earth-fixed position is finite and between
// 6200 km and 50000 km from the center.
func Plausible(pos r3.Vec) bool {
	for _, x := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	mag := r3.Norm(pos)
	return mag >= 6200e3 && mag <= 50000e3
}
