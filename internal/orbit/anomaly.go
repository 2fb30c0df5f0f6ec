package orbit

import "math"

const twoPi = 2 * math.Pi

// NormalizeAngle maps x into (-pi, pi].
func NormalizeAngle(x float64) float64 {
	y := math.Mod(x+math.Pi, twoPi)
	if y <= 0 {
		y += twoPi
	}
	return y - math.Pi
}

// MeanFromTrue converts a true anomaly to a mean anomaly for 0 <= e < 1.
func MeanFromTrue(nu, e float64) float64 {
	if e == 0 {
		return NormalizeAngle(nu)
	}
	sinNu, cosNu := math.Sincos(nu)
	ecc := math.Atan2(math.Sqrt(1-e*e)*sinNu, e+cosNu)
	return NormalizeAngle(ecc - e*math.Sin(ecc))
}

// TrueFromMean converts a mean anomaly to a true anomaly for 0 <= e < 1.
func TrueFromMean(m, e float64) float64 {
	if e == 0 {
		return NormalizeAngle(m)
	}
	ecc := EccentricFromMean(m, e)
	sinE, cosE := math.Sincos(ecc)
	return NormalizeAngle(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e))
}

// EccentricFromMean solves Kepler's equation with Newton-Raphson.
func EccentricFromMean(m, e float64) float64 {
	m = NormalizeAngle(m)
	ecc := m + e*math.Sin(m)
	if e > 0.8 {
		ecc = math.Pi
		if m < 0 {
			ecc = -math.Pi
		}
	}
	for i := 0; i < 50; i++ {
		f := ecc - e*math.Sin(ecc) - m
		fp := 1 - e*math.Cos(ecc)
		delta := f / fp
		ecc -= delta
		if math.Abs(delta) < 1e-15 {
			break
		}
	}
	return ecc
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }
