package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
const unixEpochJD = 2440587.5

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a UTC instant to a Julian Date, keeping sub-second
// resolution.
func JulianDate(t time.Time) float64 {
	sec := t.Unix()
	frac := float64(t.Nanosecond()) / 1e9
	return unixEpochJD + (float64(sec)+frac)/86400.0
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado
// Eq 3-47), in [0, 2pi).
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t.UTC()) - j2000) / 36525.0

	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}
