package transform

import (
	"math"
	"testing"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// TestJulianDate verifies the Julian Date calculation against known values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386 UTC
			name:     "Vallado example date",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.827411875,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

// TestGMST cross-checks GMST against go-satellite, which implements the same
// IAU-82 model.
func TestGMST(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
	}

	for _, tm := range times {
		t.Run(tm.Format(time.RFC3339), func(t *testing.T) {
			our := GMST(tm)
			ref := satellite.GSTimeFromDate(tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
			if diff := math.Abs(our - ref); diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tm, our, ref, diff)
			}
		})
	}
}

// TestToEarthFixed validates the rotation against go-satellite's ECIToECEF.
func TestToEarthFixed(t *testing.T) {
	tests := []struct {
		name string
		pos  r3.Vec // km
		time time.Time
	}{
		{"Vallado example 3-15", r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453}, time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"LEO equatorial", r3.Vec{X: 6778.0}, time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)},
		{"LEO polar", r3.Vec{Z: 6978.0}, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second())

			s := orbit.State{Epoch: tt.time, Frame: orbit.FrameTEME, Position: r3.Scale(1000, tt.pos)}
			ours := ToEarthFixedWithGMST(s, gmst)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z}, gmst)

			diff := r3.Norm(r3.Sub(ours.Position, r3.Vec{X: ref.X * 1000, Y: ref.Y * 1000, Z: ref.Z * 1000}))
			if diff > 1.0 {
				t.Errorf("position mismatch %.6f m: ours %v, ref %v km", diff, ours.Position, ref)
			}
			if !Plausible(ours.Position) {
				t.Errorf("Earth-fixed position failed plausibility: %v", ours.Position)
			}
		})
	}
}

// TestToEarthFixedVelocity verifies the Earth rotation correction.
func TestToEarthFixedVelocity(t *testing.T) {
	s := orbit.State{
		Position: r3.Vec{X: 6778000.0},
		Velocity: r3.Vec{Y: 7500.0},
	}
	ef := ToEarthFixedWithGMST(s, 0)

	if math.Abs(ef.Position.X-6778000.0) > 1e-6 {
		t.Errorf("X position: got %.1f, want 6778000.0", ef.Position.X)
	}
	want := 7500.0 - OmegaEarth*6778000.0
	if math.Abs(ef.Velocity.Y-want) > 1e-6 {
		t.Errorf("VY: got %.3f m/s, want %.3f m/s", ef.Velocity.Y, want)
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		name  string
		pos   r3.Vec
		valid bool
	}{
		{"LEO", r3.Vec{X: 6778000}, true},
		{"GEO", r3.Vec{X: 42164000}, true},
		{"too low", r3.Vec{X: 5000000}, false},
		{"too high", r3.Vec{X: 60000000}, false},
		{"NaN", r3.Vec{X: math.NaN()}, false},
		{"Inf", r3.Vec{X: math.Inf(1)}, false},
		{"zero", r3.Vec{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plausible(tt.pos); got != tt.valid {
				t.Errorf("Plausible(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		lat, lon, alt float64
	}{
		{0, 0, 0},
		{51.5, -0.12, 45},
		{-33.9, 151.2, 400000},
		{89.9, 10, 800000},
	}

	for _, tt := range tests {
		obs := NewObserver(tt.lat, tt.lon, tt.alt)
		g := Geodetic(obs.Position)
		if math.Abs(g.LatDeg-tt.lat) > 1e-7 || math.Abs(g.LonDeg-tt.lon) > 1e-7 || math.Abs(g.AltM-tt.alt) > 1e-3 {
			t.Errorf("Geodetic(NewObserver(%v, %v, %v)) = %+v", tt.lat, tt.lon, tt.alt, g)
		}
	}
}

func TestObserverEquatorialRadius(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	if mag := r3.Norm(obs.Position); math.Abs(mag-6378137.0) > 1.0 {
		t.Errorf("equatorial observer radius = %.1f m, want ~6378137 m", mag)
	}

	polar := NewObserver(90, 0, 0)
	if mag := r3.Norm(polar.Position); math.Abs(mag-6356752.3) > 1.0 {
		t.Errorf("polar observer radius = %.1f m, want ~6356752 m", mag)
	}
}

func TestLookOverhead(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	la := obs.Look(r3.Add(obs.Position, r3.Vec{X: 400000}))

	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.RangeKm)
	}
}

func TestLookAzimuth(t *testing.T) {
	obs := NewObserver(0, 0, 0)

	north := obs.Look(NewObserver(10, 0, 400000).Position)
	if north.AzimuthDeg > 30 && north.AzimuthDeg < 330 {
		t.Errorf("northward azimuth = %.2f deg, want near 0/360", north.AzimuthDeg)
	}

	east := obs.Look(NewObserver(0, 10, 400000).Position)
	if math.Abs(east.AzimuthDeg-90.0) > 30 {
		t.Errorf("eastward azimuth = %.2f deg, want near 90", east.AzimuthDeg)
	}

	south := obs.Look(NewObserver(-10, 0, 400000).Position)
	if math.Abs(south.AzimuthDeg-180.0) > 30 {
		t.Errorf("southward azimuth = %.2f deg, want near 180", south.AzimuthDeg)
	}
}

func TestQSW(t *testing.T) {
	ref := orbit.State{
		Position: r3.Vec{X: 7000000},
		Velocity: r3.Vec{Y: 7500},
	}
	f := QSW(ref)

	tests := []struct {
		name  string
		other r3.Vec
		want  r3.Vec
	}{
		{"same position", ref.Position, r3.Vec{}},
		{"radial offset", r3.Vec{X: 7001000}, r3.Vec{X: 1000}},
		{"along-track offset", r3.Vec{X: 7000000, Y: 500}, r3.Vec{Y: 500}},
		{"cross-track offset", r3.Vec{X: 7000000, Z: -250}, r3.Vec{Z: -250}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Apply(tt.other)
			if d := r3.Norm(r3.Sub(got, tt.want)); d > 1e-9 {
				t.Errorf("Apply(%v) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}
}

// TestQSWInclined checks the triad stays orthonormal for an arbitrary state.
func TestQSWInclined(t *testing.T) {
	k := orbit.NewKeplerianFromTrue(6878137, 0.01, orbit.Deg2Rad(51.6), 1, 2, 3, time.Time{}, orbit.Earth.Mu)
	s, err := k.State()
	if err != nil {
		t.Fatal(err)
	}
	f := QSW(s)

	for _, pair := range [][2]r3.Vec{{f.Q, f.S}, {f.S, f.W}, {f.Q, f.W}} {
		if d := r3.Dot(pair[0], pair[1]); math.Abs(d) > 1e-12 {
			t.Errorf("axes not orthogonal: dot = %g", d)
		}
	}
	// Velocity of a slightly eccentric orbit points mostly along-track.
	if r3.Dot(r3.Unit(s.Velocity), f.S) < 0.99 {
		t.Errorf("along-track axis not aligned with velocity")
	}
}
