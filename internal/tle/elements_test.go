package tle

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func TestChecksum(t *testing.T) {
	for _, line := range []string{issLine1, issLine2} {
		if got, want := Checksum(line), int(line[68]-'0'); got != want {
			t.Errorf("Checksum(%q) = %d, want %d", line, got, want)
		}
	}
}

func TestParseElements(t *testing.T) {
	el, err := ParseElements(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"mean motion dot", el.MeanMotionDot, -0.00002182},
		{"bstar", el.BStar, -0.11606e-4},
		{"inclination", el.Inclination, 51.6416},
		{"raan", el.RAAN, 247.4627},
		{"eccentricity", el.Eccentricity, 0.0006703},
		{"argument of perigee", el.ArgPerigee, 130.5360},
		{"mean anomaly", el.MeanAnomaly, 325.0288},
		{"mean motion", el.MeanMotion, 15.72125391},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-12 {
			t.Errorf("%s = %g, want %g", c.name, c.got, c.want)
		}
	}

	if el.SatelliteNumber != 25544 || el.Classification != 'U' || el.Designator != "98067A" {
		t.Errorf("unexpected metadata: %d %c %q", el.SatelliteNumber, el.Classification, el.Designator)
	}
	if el.ElementSet != 292 || el.RevolutionNumber != 56353 {
		t.Errorf("element set %d rev %d", el.ElementSet, el.RevolutionNumber)
	}

	wantEpoch := time.Date(2008, 9, 20, 12, 25, 40, 104192000, time.UTC)
	if d := el.Epoch.Sub(wantEpoch); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("epoch = %v, want %v", el.Epoch, wantEpoch)
	}
}

// TestFormatRoundTrip verifies a parsed element set renders back to the same text.
func TestFormatRoundTrip(t *testing.T) {
	el, err := ParseElements(issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	l1, l2, err := Format(el)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if l1 != issLine1 {
		t.Errorf("line1:\n got %q\nwant %q", l1, issLine1)
	}
	if l2 != issLine2 {
		t.Errorf("line2:\n got %q\nwant %q", l2, issLine2)
	}
}

func TestFormatWrapsAngles(t *testing.T) {
	el := Elements{
		SatelliteNumber: 99999,
		Designator:      "24001A",
		Epoch:           time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		BStar:           1.027e-4,
		Inclination:     51.6,
		RAAN:            -10,
		Eccentricity:    0.0001,
		ArgPerigee:      359.99999,
		MeanAnomaly:     725,
		MeanMotion:      15.5,
	}
	l1, l2, err := Format(el)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateLines(l1, l2); err != nil {
		t.Fatalf("formatted lines invalid: %v", err)
	}
	if !strings.Contains(l1, "24101.50000000") {
		t.Errorf("epoch not rendered as day of year: %q", l1)
	}
	if !strings.Contains(l1, " 10270-3") {
		t.Errorf("bstar not in exponent form: %q", l1)
	}

	back, err := ParseElements(l1, l2)
	if err != nil {
		t.Fatal(err)
	}
	if back.RAAN != 350 || back.ArgPerigee != 0 || back.MeanAnomaly != 5 {
		t.Errorf("angles not wrapped: raan=%g argp=%g M=%g", back.RAAN, back.ArgPerigee, back.MeanAnomaly)
	}
}

func TestFormatRejectsOutOfRange(t *testing.T) {
	base := Elements{SatelliteNumber: 1, MeanMotion: 15, Eccentricity: 0.001, Inclination: 50}

	tests := []struct {
		name   string
		mutate func(*Elements)
	}{
		{"negative eccentricity", func(e *Elements) { e.Eccentricity = -0.1 }},
		{"hyperbolic", func(e *Elements) { e.Eccentricity = 1.2 }},
		{"zero mean motion", func(e *Elements) { e.MeanMotion = 0 }},
		{"satellite number", func(e *Elements) { e.SatelliteNumber = 100000 }},
		{"inclination", func(e *Elements) { e.Inclination = 181 }},
		{"bstar overflow", func(e *Elements) { e.BStar = 1e12 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := base
			tt.mutate(&el)
			if _, _, err := Format(el); !errors.Is(err, ErrRange) {
				t.Errorf("expected ErrRange, got %v", err)
			}
		})
	}
}

func TestValidateLines(t *testing.T) {
	badChecksum := issLine1[:68] + "0"
	tests := []struct {
		name         string
		line1, line2 string
		want         error
	}{
		{"valid", issLine1, issLine2, nil},
		{"short line", issLine1[:60], issLine2, ErrMalformed},
		{"swapped", issLine2, issLine1, ErrMalformed},
		{"checksum", badChecksum, issLine2, ErrChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLines(tt.line1, tt.line2)
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	data := issEntry + issLine1 + "\n" + issLine2 + "\n" + "BROKEN\n1 garbage\n2 garbage\n"
	entries, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "ISS (ZARYA)" {
		t.Errorf("first entry name = %q", entries[0].Name)
	}
	if entries[1].Name != "25544" {
		t.Errorf("unnamed entry should fall back to its number, got %q", entries[1].Name)
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"24100.50000000", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"00001.25000000", time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if err != nil {
			t.Fatalf("parseEpoch(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseEpoch(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseEpoch("24999.0"); err == nil {
		t.Error("expected error for day 999")
	}
}
