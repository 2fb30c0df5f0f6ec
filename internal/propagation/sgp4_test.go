package propagation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// ISS element set from 2008 with valid checksums.
const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

var issEpoch = time.Date(2008, 9, 20, 12, 25, 40, 104192000, time.UTC)

func TestNewSGP4PropagatorRejectsMalformed(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"short", issLine1[:50], issLine2},
		{"bad checksum", issLine1[:68] + "0", issLine2},
		{"swapped", issLine2, issLine1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSGP4Propagator(tt.line1, tt.line2, GravityWGS72)
			if !errors.Is(err, orbit.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

// TestSGP4MatchesLibrary checks whole-second states against go-satellite directly.
func TestSGP4MatchesLibrary(t *testing.T) {
	p, err := NewSGP4Propagator(issLine1, issLine2, GravityWGS72)
	if err != nil {
		t.Fatalf("NewSGP4Propagator: %v", err)
	}
	if p.NORADID() != 25544 {
		t.Errorf("NORADID = %d", p.NORADID())
	}

	sat := satellite.TLEToSat(issLine1, issLine2, satellite.GravityWGS72)
	target := time.Date(2008, 9, 20, 14, 0, 0, 0, time.UTC)
	pos, vel := satellite.Propagate(sat, 2008, 9, 20, 14, 0, 0)

	s, err := p.Propagate(target)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if s.Frame != orbit.FrameTEME || !s.Epoch.Equal(target) {
		t.Errorf("unexpected frame/epoch %s %v", s.Frame, s.Epoch)
	}

	if d := r3.Norm(r3.Sub(s.Position, r3.Vec{X: pos.X * 1000, Y: pos.Y * 1000, Z: pos.Z * 1000})); d > 1e-6 {
		t.Errorf("position differs from library by %.3g m", d)
	}
	if d := r3.Norm(r3.Sub(s.Velocity, r3.Vec{X: vel.X * 1000, Y: vel.Y * 1000, Z: vel.Z * 1000})); d > 1e-9 {
		t.Errorf("velocity differs from library by %.3g m/s", d)
	}

	// ISS at ~350 km altitude.
	if r := s.Radius() / 1000; r < 6600 || r > 6800 {
		t.Errorf("radius %.1f km outside ISS range", r)
	}
}

// TestSGP4SubSecond verifies that fractional seconds move the state smoothly.
// go-satellite resolves time through a float64 Julian date, so whole-second
// states carry tens of microseconds of timing noise.
func TestSGP4SubSecond(t *testing.T) {
	p, err := NewSGP4Propagator(issLine1, issLine2, GravityWGS72)
	if err != nil {
		t.Fatal(err)
	}
	whole := time.Date(2008, 9, 20, 13, 0, 1, 0, time.UTC)

	before, err := p.Propagate(whole.Add(-time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	at, err := p.Propagate(whole)
	if err != nil {
		t.Fatal(err)
	}

	want := r3.Scale(0.001, at.Velocity)
	got := r3.Sub(at.Position, before.Position)
	if d := r3.Norm(r3.Sub(got, want)); d > 1 {
		t.Errorf("1 ms step moved %.4f m, expected ~%.4f m (diff %.4f)", r3.Norm(got), r3.Norm(want), d)
	}
}

func TestSGP4Epoch(t *testing.T) {
	p, err := NewSGP4Propagator(issLine1, issLine2, GravityWGS84)
	if err != nil {
		t.Fatal(err)
	}
	if d := p.Epoch().Sub(issEpoch); math.Abs(d.Seconds()) > 1e-3 {
		t.Errorf("epoch %v, want %v", p.Epoch(), issEpoch)
	}
}

func TestParseGravity(t *testing.T) {
	for in, want := range map[string]Gravity{"": GravityWGS72, "WGS84": GravityWGS84, "wgs72": GravityWGS72} {
		got, err := ParseGravity(in)
		if err != nil || got != want {
			t.Errorf("ParseGravity(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseGravity("egm2008"); !errors.Is(err, orbit.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestGravityMu(t *testing.T) {
	if got := GravityWGS72.Mu(); got != 398600.8e9 {
		t.Errorf("wgs72 mu = %g", got)
	}
	if got := GravityWGS84.Mu(); got != 398600.5e9 {
		t.Errorf("wgs84 mu = %g", got)
	}
	if _, err := NewSGP4Propagator(issLine1, issLine2, "egm2008"); !errors.Is(err, orbit.ErrConfiguration) {
		t.Errorf("expected configuration error for unknown gravity, got %v", err)
	}
}
