package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/tle"
	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected from NaN/Inf output and implausible
// position magnitudes.
//
// The library only accepts whole seconds; sub-second remainders are covered
// with a second-order two-body Taylor step from the whole-second state.

// Gravity selects the SGP4 gravity constants.
type Gravity string

const (
	GravityWGS72 Gravity = "wgs72"
	GravityWGS84 Gravity = "wgs84"
)

// ParseGravity accepts "wgs72" and "wgs84" (case-insensitive).
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(strings.ToLower(strings.TrimSpace(s))); g {
	case GravityWGS72, GravityWGS84:
		return g, nil
	case "":
		return GravityWGS72, nil
	default:
		return "", fmt.Errorf("%w: unknown gravity model %q", orbit.ErrConfiguration, s)
	}
}

// Mu returns the gravitational parameter of the model in m^3/s^2, as
// go-satellite defines it.
func (g Gravity) Mu() float64 {
	if g == GravityWGS84 {
		return 398600.5e9
	}
	return 398600.8e9
}

// Plausible SGP4 radii, km. Anything outside is a decayed or diverged set.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 100000.0
)

// SGP4Propagator wraps go-satellite for one element set.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
	epoch   time.Time
	muKm    float64 // km^3/s^2, for the sub-second correction
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
//
// The lines are validated before they reach go-satellite, which calls
// log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, gravity Gravity) (*SGP4Propagator, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	el, err := tle.ParseElements(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid TLE: %w", orbit.ErrConfiguration, err)
	}

	var sat satellite.Satellite
	switch gravity {
	case GravityWGS72, "":
		sat = satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	case GravityWGS84:
		sat = satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	default:
		return nil, fmt.Errorf("%w: unknown gravity model %q", orbit.ErrConfiguration, gravity)
	}
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for NORAD %d: code=%d %s", ErrPropagation, el.SatelliteNumber, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: el.SatelliteNumber, epoch: el.Epoch, muKm: gravity.Mu() / 1e9}, nil
}

// NewSGP4FromRepresentation builds a propagator for a TLE representation.
func NewSGP4FromRepresentation(rep orbit.TwoLineElement, gravity Gravity) (*SGP4Propagator, error) {
	return NewSGP4Propagator(rep.Line1, rep.Line2, gravity)
}

// Epoch returns the element set epoch.
func (p *SGP4Propagator) Epoch() time.Time { return p.epoch }

// NORADID returns the catalog number of the element set.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// Propagate returns the TEME state at t in meters and m/s.
func (p *SGP4Propagator) Propagate(t time.Time) (orbit.State, error) {
	t = t.UTC()
	whole := t.Truncate(time.Second)

	pos, vel := satellite.Propagate(p.sat,
		whole.Year(), int(whole.Month()), whole.Day(),
		whole.Hour(), whole.Minute(), whole.Second())

	for _, x := range []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return orbit.State{}, fmt.Errorf("%w: sgp4 output is NaN/Inf for NORAD %d at %s", ErrPropagation, p.noradID, t.Format(time.RFC3339))
		}
	}

	r := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	v := r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z}

	mag := r3.Norm(r)
	if mag < minRadiusKm || mag > maxRadiusKm {
		return orbit.State{}, fmt.Errorf("%w: unreasonable position magnitude %.1f km for NORAD %d at %s", ErrPropagation, mag, p.noradID, t.Format(time.RFC3339))
	}

	if dt := t.Sub(whole).Seconds(); dt > 0 {
		acc := r3.Scale(-p.muKm/(mag*mag*mag), r)
		r = r3.Add(r, r3.Add(r3.Scale(dt, v), r3.Scale(0.5*dt*dt, acc)))
		v = r3.Add(v, r3.Scale(dt, acc))
	}

	return orbit.State{
		Epoch:    t,
		Frame:    orbit.FrameTEME,
		Position: r3.Scale(1000, r),
		Velocity: r3.Scale(1000, v),
	}, nil
}
