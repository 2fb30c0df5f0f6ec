package config

import (
	"fmt"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ObserverSettings locates a ground site and its visibility mask.
type ObserverSettings struct {
	LatitudeDeg     float64
	LongitudeDeg    float64
	AltitudeM       float64
	MinElevationDeg float64
	MaxPasses       int
}

// ReadObserver decodes the observer and passes sections. Latitude and
// longitude are required; altitude defaults to the ellipsoid surface.
func ReadObserver(v *viper.Viper) (ObserverSettings, error) {
	var s ObserverSettings

	for _, key := range []string{"observer.latitude", "observer.longitude"} {
		if !isSet(v.Get(key)) {
			return s, fmt.Errorf("%w: %s is required", orbit.ErrConfiguration, key)
		}
	}

	lat, err := ParseAngle(v.Get("observer.latitude"))
	if err != nil {
		return s, fmt.Errorf("observer.latitude: %w", err)
	}
	lon, err := ParseAngle(v.Get("observer.longitude"))
	if err != nil {
		return s, fmt.Errorf("observer.longitude: %w", err)
	}
	s.LatitudeDeg = orbit.Rad2Deg(lat)
	s.LongitudeDeg = orbit.Rad2Deg(orbit.NormalizeAngle(lon))
	if s.LatitudeDeg < -90 || s.LatitudeDeg > 90 {
		return s, fmt.Errorf("%w: observer.latitude %g deg out of range", orbit.ErrConfiguration, s.LatitudeDeg)
	}

	if raw := v.Get("observer.altitude"); isSet(raw) {
		if s.AltitudeM, err = ParseLength(raw); err != nil {
			return s, fmt.Errorf("observer.altitude: %w", err)
		}
	}

	minEl, err := ParseAngle(v.Get("passes.min_elevation"))
	if err != nil {
		return s, fmt.Errorf("passes.min_elevation: %w", err)
	}
	s.MinElevationDeg = orbit.Rad2Deg(minEl)
	if s.MinElevationDeg < 0 || s.MinElevationDeg >= 90 {
		return s, fmt.Errorf("%w: passes.min_elevation %g deg out of range", orbit.ErrConfiguration, s.MinElevationDeg)
	}

	if s.MaxPasses, err = cast.ToIntE(v.Get("passes.max_passes")); err != nil || s.MaxPasses < 0 {
		return s, fmt.Errorf("%w: passes.max_passes %v", orbit.ErrConfiguration, v.Get("passes.max_passes"))
	}
	return s, nil
}
