package config

import (
	"fmt"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	defaultStep     = 10 * time.Minute
	defaultDuration = 14 * 24 * time.Hour
)

// Span is a sampling interval.
type Span struct {
	Start time.Time
	Stop  time.Time
	Step  time.Duration
}

// ResolveSpan reads step, start, duration and stop. The step defaults to
// 10 minutes and must be positive. The start defaults to orbitEpoch. The
// stop is start+duration when a duration is set, else the explicit stop,
// else two weeks after the start, and must fall after the start.
func ResolveSpan(v *viper.Viper, orbitEpoch time.Time) (Span, error) {
	step := defaultStep
	if raw := v.Get("step"); isSet(raw) {
		d, err := ParseDuration(raw)
		if err != nil {
			return Span{}, fmt.Errorf("step: %w", err)
		}
		step = d
	}
	if step <= 0 {
		return Span{}, fmt.Errorf("%w: %w: step must be greater than zero, got %s", orbit.ErrConfiguration, propagation.ErrInvalidStep, step)
	}

	start := orbitEpoch.UTC()
	if raw := v.Get("start"); isSet(raw) {
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return Span{}, fmt.Errorf("%w: start: %w", orbit.ErrConfiguration, err)
		}
		start = t.UTC()
	}

	var stop time.Time
	switch {
	case isSet(v.Get("duration")):
		d, err := ParseDuration(v.Get("duration"))
		if err != nil {
			return Span{}, fmt.Errorf("duration: %w", err)
		}
		stop = start.Add(d)
	case isSet(v.Get("stop")):
		t, err := cast.ToTimeE(v.Get("stop"))
		if err != nil {
			return Span{}, fmt.Errorf("%w: stop: %w", orbit.ErrConfiguration, err)
		}
		stop = t.UTC()
	default:
		stop = start.Add(defaultDuration)
	}

	if !stop.After(start) {
		return Span{}, fmt.Errorf("%w: stop %s must be after start %s", orbit.ErrConfiguration,
			stop.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Span{Start: start, Stop: stop, Step: step}, nil
}

// isSet treats empty flag defaults as unset.
func isSet(raw any) bool {
	if raw == nil {
		return false
	}
	if s, ok := raw.(string); ok {
		return s != ""
	}
	return true
}
