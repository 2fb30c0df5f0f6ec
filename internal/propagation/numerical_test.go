package propagation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"gonum.org/v1/gonum/spatial/r3"
)

func leoState(t *testing.T) orbit.State {
	t.Helper()
	k := orbit.NewKeplerianFromTrue(6778137, 0.0005, orbit.Deg2Rad(51.6), 0, orbit.Deg2Rad(30), 0, t0, orbit.Earth.Mu)
	s, err := k.State()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func twoBody() NumericalConfig {
	cfg := DefaultNumericalConfig()
	cfg.J2 = false
	return cfg
}

// TestNumericalTwoBodyPeriod verifies a two-body orbit closes after one period.
func TestNumericalTwoBodyPeriod(t *testing.T) {
	s0 := leoState(t)
	p, err := NewNumericalPropagator(s0, twoBody())
	if err != nil {
		t.Fatal(err)
	}

	period := 2 * math.Pi * math.Sqrt(math.Pow(6778137, 3)/orbit.Earth.Mu)
	s, err := p.Propagate(t0.Add(time.Duration(period * float64(time.Second))))
	if err != nil {
		t.Fatal(err)
	}
	if d := r3.Norm(r3.Sub(s.Position, s0.Position)); d > 10 {
		t.Errorf("orbit did not close: %.3f m", d)
	}
}

func TestNumericalEnergyConserved(t *testing.T) {
	s0 := leoState(t)
	p, err := NewNumericalPropagator(s0, twoBody())
	if err != nil {
		t.Fatal(err)
	}
	energy := func(s orbit.State) float64 {
		return r3.Norm2(s.Velocity)/2 - orbit.Earth.Mu/s.Radius()
	}

	e0 := energy(s0)
	for i := 1; i <= 24; i++ {
		s, err := p.Propagate(t0.Add(time.Duration(i) * 15 * time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if rel := math.Abs((energy(s) - e0) / e0); rel > 1e-8 {
			t.Fatalf("energy drift %.3g after %d steps", rel, i)
		}
	}
}

// TestNumericalDeterministic verifies identical call sequences give identical states.
func TestNumericalDeterministic(t *testing.T) {
	s0 := leoState(t)
	a, _ := NewNumericalPropagator(s0, DefaultNumericalConfig())
	b, _ := NewNumericalPropagator(s0, DefaultNumericalConfig())

	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i) * 7 * time.Minute)
		sa, err := a.Propagate(at)
		if err != nil {
			t.Fatal(err)
		}
		sb, err := b.Propagate(at)
		if err != nil {
			t.Fatal(err)
		}
		if sa != sb {
			t.Fatalf("states differ at step %d", i)
		}
	}
}

func TestNumericalBackward(t *testing.T) {
	s0 := leoState(t)
	p, err := NewNumericalPropagator(s0, DefaultNumericalConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Propagate(t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	back, err := p.Propagate(t0)
	if err != nil {
		t.Fatal(err)
	}
	if d := r3.Norm(r3.Sub(back.Position, s0.Position)); d > 0.1 {
		t.Errorf("backward propagation missed the initial state by %.4f m", d)
	}
}

// TestNumericalJ2Regression checks the nodal regression rate of a LEO orbit.
func TestNumericalJ2Regression(t *testing.T) {
	s0 := leoState(t)
	p, err := NewNumericalPropagator(s0, DefaultNumericalConfig())
	if err != nil {
		t.Fatal(err)
	}
	s, err := p.Propagate(t0.Add(24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	k0, _ := orbit.KeplerianFromState(s0, orbit.Earth.Mu)
	k1, _ := orbit.KeplerianFromState(s, orbit.Earth.Mu)
	drift := orbit.Rad2Deg(orbit.NormalizeAngle(k1.RAAN - k0.RAAN))

	// Secular rate: -1.5 n J2 (Re/p)^2 cos i, about -5.0 deg/day here.
	a, e, i := 6778137.0, 0.0005, orbit.Deg2Rad(51.6)
	n := math.Sqrt(orbit.Earth.Mu / (a * a * a))
	pp := a * (1 - e*e)
	rate := -1.5 * n * orbit.Earth.J2 * math.Pow(orbit.Earth.EquatorialRadius/pp, 2) * math.Cos(i)
	want := orbit.Rad2Deg(rate * 86400)

	if math.Abs(drift-want) > 0.15 {
		t.Errorf("RAAN drift %.3f deg/day, want %.3f", drift, want)
	}
}

func TestNumericalRejectsBadConfig(t *testing.T) {
	cfg := DefaultNumericalConfig()
	cfg.MaxStep = 0
	if _, err := NewNumericalPropagator(leoState(t), cfg); !errors.Is(err, orbit.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	bad := orbit.State{Epoch: t0, Position: r3.Vec{X: math.NaN()}}
	if _, err := NewNumericalPropagator(bad, DefaultNumericalConfig()); !errors.Is(err, orbit.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNumericalReportsImpact(t *testing.T) {
	s := orbit.State{
		Epoch:    t0,
		Frame:    orbit.FrameTEME,
		Position: r3.Vec{X: 6578137},
		Velocity: r3.Vec{X: -1000, Y: 100},
	}
	p, err := NewNumericalPropagator(s, twoBody())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Propagate(t0.Add(2 * time.Hour))
	if !errors.Is(err, ErrPropagation) {
		t.Fatalf("expected propagation failure, got %v", err)
	}

	// The integrator state is unusable after the failure, earlier epochs
	// included.
	for _, at := range []time.Duration{time.Minute, 3 * time.Hour} {
		if _, again := p.Propagate(t0.Add(at)); again != err {
			t.Errorf("Propagate(+%s) after failure = %v, want %v", at, again, err)
		}
	}
}
