package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// GeodeticPoint holds latitude/longitude in degrees and altitude in meters.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// Geodetic converts an Earth-fixed position (m) to WGS-84 geodetic
// coordinates with Bowring's iteration.
func Geodetic(pos r3.Vec) GeodeticPoint {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Hypot(pos.X, pos.Y)

	lat := math.Atan2(pos.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}

// Observer is a ground site with its Earth-fixed position precomputed.
type Observer struct {
	LatRad, LonRad, AltM float64
	Position             r3.Vec
}

// NewObserver builds an observer from degrees and meters above the ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		Position: r3.Vec{
			X: (n + altM) * cosLat * cosLon,
			Y: (n + altM) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + altM) * sinLat,
		},
	}
}

// LookAngles holds azimuth (clockwise from north), elevation and range.
type LookAngles struct {
	AzimuthDeg   float64
	ElevationDeg float64
	RangeKm      float64
}

// Look returns the look angles to an Earth-fixed target using the SEZ
// topocentric rotation (Vallado 4.4).
func (o Observer) Look(target r3.Vec) LookAngles {
	d := r3.Sub(target, o.Position)

	sinLat, cosLat := math.Sincos(o.LatRad)
	sinLon, cosLon := math.Sincos(o.LonRad)

	south := sinLat*cosLon*d.X + sinLat*sinLon*d.Y - cosLat*d.Z
	east := -sinLon*d.X + cosLon*d.Y
	zenith := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: math.Asin(zenith/rng) * 180.0 / math.Pi,
		RangeKm:      rng / 1000.0,
	}
}
