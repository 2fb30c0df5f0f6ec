package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/sosodev/duration"
	"github.com/spf13/cast"
)

// splitQuantity separates "7000 km" into 7000 and "km". Bare numbers have
// an empty unit.
func splitQuantity(val any) (float64, string, error) {
	if s, ok := val.(string); ok {
		fields := strings.Fields(s)
		switch len(fields) {
		case 1:
			val = fields[0]
		case 2:
			x, err := cast.ToFloat64E(fields[0])
			if err != nil {
				return 0, "", fmt.Errorf("%w: quantity %q: %w", orbit.ErrConfiguration, s, err)
			}
			return x, strings.ToLower(fields[1]), nil
		default:
			return 0, "", fmt.Errorf("%w: quantity %q", orbit.ErrConfiguration, s)
		}
	}
	x, err := cast.ToFloat64E(val)
	if err != nil {
		return 0, "", fmt.Errorf("%w: quantity %v: %w", orbit.ErrConfiguration, val, err)
	}
	return x, "", nil
}

// ParseLength returns meters. Bare numbers are kilometers.
func ParseLength(val any) (float64, error) {
	x, unit, err := splitQuantity(val)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "km":
		return x * 1000, nil
	case "m":
		return x, nil
	default:
		return 0, fmt.Errorf("%w: unknown length unit %q", orbit.ErrConfiguration, unit)
	}
}

// ParseAngle returns radians. Bare numbers are degrees.
func ParseAngle(val any) (float64, error) {
	x, unit, err := splitQuantity(val)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "deg":
		return orbit.Deg2Rad(x), nil
	case "rad":
		return x, nil
	default:
		return 0, fmt.Errorf("%w: unknown angle unit %q", orbit.ErrConfiguration, unit)
	}
}

// ParseDuration accepts ISO-8601 ("PT10M", "P2W"), Go ("90s") or a number
// of seconds.
func ParseDuration(val any) (time.Duration, error) {
	switch v := val.(type) {
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToUpper(s), "P") {
			d, err := duration.Parse(strings.ToUpper(s))
			if err != nil {
				return 0, fmt.Errorf("%w: duration %q: %w", orbit.ErrConfiguration, v, err)
			}
			return d.ToTimeDuration(), nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
	}
	secs, err := cast.ToFloat64E(val)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("%w: duration %v", orbit.ErrConfiguration, val)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
