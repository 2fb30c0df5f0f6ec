package orbit

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Representation is one of Keplerian, Circular, Equinoctial or
// TwoLineElement. The set is closed; dispatch with a type switch.
type Representation interface {
	Category() Category
	representation()
}

// Keplerian holds classical osculating elements. TrueAnomaly is
// authoritative; MeanAnomaly is kept consistent with it.
type Keplerian struct {
	A           float64 // m
	E           float64
	I           float64 // rad
	ArgPerigee  float64 // rad
	RAAN        float64 // rad
	TrueAnomaly float64 // rad
	MeanAnomaly float64 // rad
	Epoch       time.Time
	Mu          float64 // m^3/s^2
}

// Circular elements: eccentricity vector relative to the ascending node and
// the true argument of latitude.
type Circular struct {
	A      float64 // m
	Ex     float64
	Ey     float64
	I      float64 // rad
	RAAN   float64 // rad
	AlphaV float64 // rad
	Epoch  time.Time
	Mu     float64
}

// Equinoctial elements, nonsingular for circular and equatorial orbits.
type Equinoctial struct {
	A             float64 // m
	Ex            float64
	Ey            float64
	Hx            float64
	Hy            float64
	MeanLongitude float64 // rad
	Epoch         time.Time
	Mu            float64
}

// TwoLineElement is a catalog mean-element set kept as its two text lines.
type TwoLineElement struct {
	Line1 string
	Line2 string
}

func (Keplerian) Category() Category      { return CategoryKeplerian }
func (Circular) Category() Category       { return CategoryCircular }
func (Equinoctial) Category() Category    { return CategoryEquinoctial }
func (TwoLineElement) Category() Category { return CategoryTLE }

func (Keplerian) representation()      {}
func (Circular) representation()       {}
func (Equinoctial) representation()    {}
func (TwoLineElement) representation() {}

// NewKeplerianFromMean builds a Keplerian set from a mean anomaly.
func NewKeplerianFromMean(a, e, i, argPerigee, raan, meanAnomaly float64, epoch time.Time, mu float64) Keplerian {
	return Keplerian{
		A:           a,
		E:           e,
		I:           i,
		ArgPerigee:  NormalizeAngle(argPerigee),
		RAAN:        NormalizeAngle(raan),
		TrueAnomaly: TrueFromMean(meanAnomaly, e),
		MeanAnomaly: NormalizeAngle(meanAnomaly),
		Epoch:       epoch,
		Mu:          mu,
	}
}

// NewKeplerianFromTrue builds a Keplerian set from a true anomaly.
func NewKeplerianFromTrue(a, e, i, argPerigee, raan, trueAnomaly float64, epoch time.Time, mu float64) Keplerian {
	return Keplerian{
		A:           a,
		E:           e,
		I:           i,
		ArgPerigee:  NormalizeAngle(argPerigee),
		RAAN:        NormalizeAngle(raan),
		TrueAnomaly: NormalizeAngle(trueAnomaly),
		MeanAnomaly: MeanFromTrue(trueAnomaly, e),
		Epoch:       epoch,
		Mu:          mu,
	}
}

// Validate checks the closed-form domain: 0 <= e < 1, a > 0, 0 <= i <= pi.
func (k Keplerian) Validate() error {
	switch {
	case !(k.A > 0):
		return elementErrorf(ErrConfiguration, CategoryKeplerian, "a", "semi-major axis must be positive, got %g m", k.A)
	case !(k.E >= 0 && k.E < 1):
		return elementErrorf(ErrUnsupportedOrbit, CategoryKeplerian, "e", "eccentricity must be in [0, 1), got %g", k.E)
	case !(k.I >= 0 && k.I <= math.Pi):
		return elementErrorf(ErrConfiguration, CategoryKeplerian, "i", "inclination must be in [0, 180] deg, got %g rad", k.I)
	case !(k.Mu > 0):
		return elementErrorf(ErrConfiguration, CategoryKeplerian, "mu", "gravitational parameter must be positive, got %g", k.Mu)
	}
	return nil
}

// State returns the inertial position and velocity at the element epoch.
func (k Keplerian) State() (State, error) {
	if err := k.Validate(); err != nil {
		return State{}, err
	}

	p := k.A * (1 - k.E*k.E)
	sinNu, cosNu := math.Sincos(k.TrueAnomaly)
	rmag := p / (1 + k.E*cosNu)
	vfac := math.Sqrt(k.Mu / p)

	sinO, cosO := math.Sincos(k.RAAN)
	sinW, cosW := math.Sincos(k.ArgPerigee)
	sinI, cosI := math.Sincos(k.I)

	// Perifocal basis expressed in the inertial frame.
	pAxis := r3.Vec{
		X: cosO*cosW - sinO*sinW*cosI,
		Y: sinO*cosW + cosO*sinW*cosI,
		Z: sinW * sinI,
	}
	qAxis := r3.Vec{
		X: -cosO*sinW - sinO*cosW*cosI,
		Y: -sinO*sinW + cosO*cosW*cosI,
		Z: cosW * sinI,
	}

	pos := r3.Add(r3.Scale(rmag*cosNu, pAxis), r3.Scale(rmag*sinNu, qAxis))
	vel := r3.Add(r3.Scale(-vfac*sinNu, pAxis), r3.Scale(vfac*(k.E+cosNu), qAxis))

	return State{Epoch: k.Epoch, Frame: FrameTEME, Position: pos, Velocity: vel}, nil
}

// nodeTolerance is the relative size of the in-plane angular momentum below
// which the node line is treated as undefined.
const nodeTolerance = 1e-14

// KeplerianFromState computes osculating elements of s about a body with
// gravitational parameter mu. For equatorial orbits the RAAN is set to zero;
// for circular orbits the argument of perigee follows the (tiny) eccentricity
// vector so that combined angles stay exact.
func KeplerianFromState(s State, mu float64) (Keplerian, error) {
	if !(mu > 0) {
		return Keplerian{}, elementErrorf(ErrConfiguration, CategoryKeplerian, "mu", "gravitational parameter must be positive, got %g", mu)
	}
	if !s.Valid() {
		return Keplerian{}, elementErrorf(ErrUnsupportedOrbit, CategoryKeplerian, "", "state at %s is not finite", s.Epoch.Format(time.RFC3339))
	}

	r, v := s.Position, s.Velocity
	rn := r3.Norm(r)
	v2 := r3.Norm2(v)

	energy := v2/2 - mu/rn
	if energy >= 0 {
		return Keplerian{}, elementErrorf(ErrUnsupportedOrbit, CategoryKeplerian, "e", "state at %s is not bound (specific energy %g J/kg)", s.Epoch.Format(time.RFC3339), energy)
	}
	a := -mu / (2 * energy)

	h := r3.Cross(r, v)
	hn := r3.Norm(h)
	if hn == 0 {
		return Keplerian{}, elementErrorf(ErrUnsupportedOrbit, CategoryKeplerian, "", "rectilinear state at %s", s.Epoch.Format(time.RFC3339))
	}
	w := r3.Scale(1/hn, h)
	inc := math.Atan2(math.Hypot(w.X, w.Y), w.Z)

	raan := 0.0
	if math.Hypot(h.X, h.Y) > nodeTolerance*hn {
		raan = math.Atan2(h.X, -h.Y)
	}
	sinO, cosO := math.Sincos(raan)
	node := r3.Vec{X: cosO, Y: sinO}
	perp := r3.Cross(w, node)

	eVec := r3.Scale(1/mu, r3.Sub(r3.Scale(v2-mu/rn, r), r3.Scale(r3.Dot(r, v), v)))
	e := r3.Norm(eVec)

	u := math.Atan2(r3.Dot(r, perp), r3.Dot(r, node))
	argp := math.Atan2(r3.Dot(eVec, perp), r3.Dot(eVec, node))

	return NewKeplerianFromTrue(a, e, inc, argp, raan, u-argp, s.Epoch, mu), nil
}

// CircularFromKeplerian maps classical elements to circular ones.
func CircularFromKeplerian(k Keplerian) Circular {
	sinW, cosW := math.Sincos(k.ArgPerigee)
	return Circular{
		A:      k.A,
		Ex:     k.E * cosW,
		Ey:     k.E * sinW,
		I:      k.I,
		RAAN:   NormalizeAngle(k.RAAN),
		AlphaV: NormalizeAngle(k.ArgPerigee + k.TrueAnomaly),
		Epoch:  k.Epoch,
		Mu:     k.Mu,
	}
}

// Keplerian maps circular elements back to classical ones.
func (c Circular) Keplerian() Keplerian {
	e := math.Hypot(c.Ex, c.Ey)
	argp := 0.0
	if e > 0 {
		argp = math.Atan2(c.Ey, c.Ex)
	}
	return NewKeplerianFromTrue(c.A, e, c.I, argp, c.RAAN, c.AlphaV-argp, c.Epoch, c.Mu)
}

// EquinoctialFromKeplerian maps classical elements to equinoctial ones.
func EquinoctialFromKeplerian(k Keplerian) Equinoctial {
	lonPer := k.ArgPerigee + k.RAAN
	sinL, cosL := math.Sincos(lonPer)
	sinO, cosO := math.Sincos(k.RAAN)
	t := math.Tan(k.I / 2)
	return Equinoctial{
		A:             k.A,
		Ex:            k.E * cosL,
		Ey:            k.E * sinL,
		Hx:            t * cosO,
		Hy:            t * sinO,
		MeanLongitude: NormalizeAngle(k.MeanAnomaly + lonPer),
		Epoch:         k.Epoch,
		Mu:            k.Mu,
	}
}

// Keplerian maps equinoctial elements back to classical ones.
func (q Equinoctial) Keplerian() Keplerian {
	e := math.Hypot(q.Ex, q.Ey)
	t := math.Hypot(q.Hx, q.Hy)

	raan := 0.0
	if t > 0 {
		raan = math.Atan2(q.Hy, q.Hx)
	}
	lonPer := 0.0
	if e > 0 {
		lonPer = math.Atan2(q.Ey, q.Ex)
	}
	return NewKeplerianFromMean(q.A, e, 2*math.Atan(t), lonPer-raan, raan, q.MeanLongitude-lonPer, q.Epoch, q.Mu)
}

// ToKeplerian converts any Keplerian-family representation to classical
// elements. TLE sets have no closed form and are rejected.
func ToKeplerian(rep Representation) (Keplerian, error) {
	switch r := rep.(type) {
	case Keplerian:
		return r, nil
	case Circular:
		return r.Keplerian(), nil
	case Equinoctial:
		return r.Keplerian(), nil
	case TwoLineElement:
		return Keplerian{}, elementErrorf(ErrUnsupportedOrbit, CategoryTLE, "", "mean elements have no closed-form osculating equivalent")
	default:
		return Keplerian{}, elementErrorf(ErrConfiguration, CategoryAutoSelect, "", "unknown representation %T", rep)
	}
}

// StateOf returns the state at the epoch of a Keplerian-family representation.
func StateOf(rep Representation) (State, error) {
	k, err := ToKeplerian(rep)
	if err != nil {
		return State{}, err
	}
	return k.State()
}

// Narrow expresses k in the requested Keplerian-family category.
func Narrow(k Keplerian, c Category) (Representation, error) {
	switch c {
	case CategoryKeplerian:
		return k, nil
	case CategoryCircular:
		return CircularFromKeplerian(k), nil
	case CategoryEquinoctial:
		return EquinoctialFromKeplerian(k), nil
	default:
		return nil, elementErrorf(ErrConfiguration, c, "", "not a closed-form target")
	}
}
