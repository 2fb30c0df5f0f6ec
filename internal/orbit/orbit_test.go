package orbit

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var testEpoch = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name string
		e, i float64
		want Category
	}{
		{"general", 0.01, Deg2Rad(51.6), CategoryKeplerian},
		{"circular inclined", 0.0001, Deg2Rad(51.6), CategoryCircular},
		{"circular equatorial", 0.0001, 0, CategoryEquinoctial},
		{"eccentric equatorial", 0.1, 0, CategoryEquinoctial},
		{"eccentricity at threshold", th.CircularEccentricity, Deg2Rad(51.6), CategoryKeplerian},
		{"eccentricity just below threshold", math.Nextafter(th.CircularEccentricity, 0), Deg2Rad(51.6), CategoryCircular},
		{"inclination at threshold", 0.01, th.EquatorialInclination, CategoryKeplerian},
		{"inclination just below threshold", 0.01, math.Nextafter(th.EquatorialInclination, 0), CategoryEquinoctial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.e, tt.i, th))
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	err := Thresholds{CircularEccentricity: 0, EquatorialInclination: 1e-5}.Validate()
	assert.ErrorIs(t, err, ErrConfiguration)

	err = Thresholds{CircularEccentricity: 1e-3, EquatorialInclination: -1}.Validate()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCompatible(t *testing.T) {
	for _, a := range Categories() {
		for _, b := range Categories() {
			assert.Equal(t, Compatible(a, b), Compatible(b, a), "compatible(%s, %s) is not symmetric", a, b)
		}
	}

	assert.True(t, Compatible(CategoryTLE, CategoryTLE))
	assert.False(t, Compatible(CategoryTLE, CategoryKeplerian))
	assert.False(t, Compatible(CategoryEquinoctial, CategoryTLE))
	assert.True(t, Compatible(CategoryCircular, CategoryEquinoctial))
	assert.True(t, Compatible(CategoryAutoSelect, CategoryTLE))
	assert.True(t, Compatible(CategoryKeplerian, CategoryAutoSelect))
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCategory("auto")
	require.NoError(t, err)
	assert.Equal(t, CategoryAutoSelect, got)

	got, err = ParseCategory("circular")
	require.NoError(t, err)
	assert.Equal(t, CategoryCircular, got)

	_, err = ParseCategory("cartesian")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4 * math.Pi, 0},
		{Deg2Rad(370), Deg2Rad(10)},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeAngle(tt.in), 1e-12, "NormalizeAngle(%g)", tt.in)
	}
}

func TestAnomalyConversions(t *testing.T) {
	for _, e := range []float64{0, 1e-4, 0.1, 0.5, 0.9} {
		for _, m := range []float64{-3, -1, 0, 0.5, 2, 3.1} {
			nu := TrueFromMean(m, e)
			assert.InDelta(t, NormalizeAngle(m), MeanFromTrue(nu, e), 1e-10, "e=%g m=%g", e, m)
		}
	}
}

func TestKeplerianStateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		k    Keplerian
	}{
		{"leo inclined", NewKeplerianFromTrue(6878137, 0.0001, Deg2Rad(51.6), Deg2Rad(30), Deg2Rad(10), Deg2Rad(45), testEpoch, Earth.Mu)},
		{"molniya", NewKeplerianFromTrue(26600000, 0.74, Deg2Rad(63.4), Deg2Rad(-90), Deg2Rad(120), Deg2Rad(170), testEpoch, Earth.Mu)},
		{"retrograde", NewKeplerianFromTrue(7200000, 0.01, Deg2Rad(98.7), Deg2Rad(80), Deg2Rad(-150), Deg2Rad(-30), testEpoch, Earth.Mu)},
		{"geo", NewKeplerianFromTrue(42164000, 0.0002, 0, 0, 0, Deg2Rad(75), testEpoch, Earth.Mu)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.k.State()
			require.NoError(t, err)

			got, err := KeplerianFromState(s, Earth.Mu)
			require.NoError(t, err)

			assert.InEpsilon(t, tt.k.A, got.A, 1e-9)
			assert.InDelta(t, tt.k.E, got.E, 1e-9)
			assert.InDelta(t, tt.k.I, got.I, 1e-9)

			// Degenerate angles may redistribute; the state must not.
			back, err := got.State()
			require.NoError(t, err)
			assert.InDelta(t, 0, r3.Norm(r3.Sub(s.Position, back.Position)), 1e-4)
			assert.InDelta(t, 0, r3.Norm(r3.Sub(s.Velocity, back.Velocity)), 1e-7)
		})
	}
}

func TestKeplerianFromStateAngles(t *testing.T) {
	k := NewKeplerianFromTrue(7000000, 0.05, Deg2Rad(28.5), Deg2Rad(40), Deg2Rad(-60), Deg2Rad(100), testEpoch, Earth.Mu)
	s, err := k.State()
	require.NoError(t, err)

	got, err := KeplerianFromState(s, Earth.Mu)
	require.NoError(t, err)
	assert.InDelta(t, k.ArgPerigee, got.ArgPerigee, 1e-9)
	assert.InDelta(t, k.RAAN, got.RAAN, 1e-9)
	assert.InDelta(t, k.TrueAnomaly, got.TrueAnomaly, 1e-9)
	assert.InDelta(t, k.MeanAnomaly, got.MeanAnomaly, 1e-9)
}

func TestKeplerianFromStateRejectsUnbound(t *testing.T) {
	s := State{
		Epoch:    testEpoch,
		Frame:    FrameTEME,
		Position: r3.Vec{X: 7000000},
		Velocity: r3.Vec{Y: 11500},
	}
	_, err := KeplerianFromState(s, Earth.Mu)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedOrbit)

	var elemErr *ElementError
	require.ErrorAs(t, err, &elemErr)
	assert.Equal(t, "e", elemErr.Field)
}

func TestCircularRoundTrip(t *testing.T) {
	k := NewKeplerianFromTrue(6878137, 0.0001, Deg2Rad(51.6), Deg2Rad(30), Deg2Rad(10), Deg2Rad(45), testEpoch, Earth.Mu)
	c := CircularFromKeplerian(k)

	assert.InDelta(t, 0.0001*math.Cos(Deg2Rad(30)), c.Ex, 1e-15)
	assert.InDelta(t, 0.0001*math.Sin(Deg2Rad(30)), c.Ey, 1e-15)
	assert.InDelta(t, Deg2Rad(75), c.AlphaV, 1e-12)

	back := c.Keplerian()
	assert.InDelta(t, k.E, back.E, 1e-15)
	assert.InDelta(t, k.ArgPerigee, back.ArgPerigee, 1e-12)
	assert.InDelta(t, k.TrueAnomaly, back.TrueAnomaly, 1e-12)
	assert.InDelta(t, k.MeanAnomaly, back.MeanAnomaly, 1e-12)
}

func TestEquinoctialRoundTrip(t *testing.T) {
	k := NewKeplerianFromMean(7000000, 0.02, Deg2Rad(5), Deg2Rad(-20), Deg2Rad(200), Deg2Rad(15), testEpoch, Earth.Mu)
	q := EquinoctialFromKeplerian(k)
	assert.InDelta(t, math.Tan(Deg2Rad(2.5))*math.Cos(Deg2Rad(200)), q.Hx, 1e-15)

	back := q.Keplerian()
	assert.InDelta(t, k.I, back.I, 1e-12)
	assert.InDelta(t, k.RAAN, back.RAAN, 1e-12)
	assert.InDelta(t, k.ArgPerigee, back.ArgPerigee, 1e-12)
	assert.InDelta(t, k.MeanAnomaly, back.MeanAnomaly, 1e-12)

	// Circular equatorial orbits keep their longitude even though the
	// classical angles are undefined.
	flat := NewKeplerianFromMean(42164000, 0, 0, 0, 0, Deg2Rad(33), testEpoch, Earth.Mu)
	fq := EquinoctialFromKeplerian(flat)
	assert.InDelta(t, Deg2Rad(33), fq.MeanLongitude, 1e-12)
	s1, err := flat.State()
	require.NoError(t, err)
	s2, err := StateOf(fq)
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(s1.Position, s2.Position)), 1e-6)
}

func TestNarrow(t *testing.T) {
	k := NewKeplerianFromTrue(6878137, 0.0001, Deg2Rad(51.6), 0, 0, 0, testEpoch, Earth.Mu)

	for _, c := range []Category{CategoryKeplerian, CategoryCircular, CategoryEquinoctial} {
		rep, err := Narrow(k, c)
		require.NoError(t, err)
		assert.Equal(t, c, rep.Category())
	}

	_, err := Narrow(k, CategoryTLE)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = ToKeplerian(TwoLineElement{})
	assert.ErrorIs(t, err, ErrUnsupportedOrbit)
}

func TestSerialize(t *testing.T) {
	k := NewKeplerianFromTrue(6878137, 0.0001, Deg2Rad(51.6), Deg2Rad(190), Deg2Rad(10), Deg2Rad(-45), testEpoch, Earth.Mu)
	el, err := Serialize(k)
	require.NoError(t, err)

	names := make([]string, 0, len(el.Items))
	for _, it := range el.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"a", "e", "i", "w", "omega", "v", "m"}, names)

	a, ok := el.Get("a")
	require.True(t, ok)
	assert.Equal(t, "km", a.Unit)
	assert.InDelta(t, 6878.137, a.Value, 1e-9)

	w, ok := el.Get("w")
	require.True(t, ok)
	assert.InDelta(t, -170, w.Value, 1e-9)

	raw, err := json.Marshal(el)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"a":"6878.137 km"`)
	assert.Contains(t, string(raw), `"e":0.0001`)

	tle, err := Serialize(TwoLineElement{Line1: "1 x", Line2: "2 y"})
	require.NoError(t, err)
	raw, err = json.Marshal(tle)
	require.NoError(t, err)
	assert.JSONEq(t, `{"line1":"1 x","line2":"2 y"}`, string(raw))
}
