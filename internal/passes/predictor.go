// Package passes finds the windows in which an orbit is above an observer's
// elevation mask.
package passes

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/greyskyy/orbit-tool/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`  // m
	Elevation float64   `json:"elevation"` // degrees above observer's horizon
}

// Pass describes a single pass over an observer.
type Pass struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track,omitempty"`
}

// Target is one orbit to scan. Each target's propagator is used by a single
// goroutine.
type Target struct {
	Name       string
	Propagator propagation.Propagator
}

// TargetPasses holds the passes found for one target.
type TargetPasses struct {
	Name   string `json:"name"`
	Passes []Pass `json:"passes"`
	Error  string `json:"error,omitempty"`
}

// Request holds the parameters for a pass search.
type Request struct {
	Observer     transform.Observer
	Targets      []Target
	Start        time.Time
	Stop         time.Time
	MinElevation float64 // degrees
	MaxPasses    int     // 0 means unlimited
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	minPassDuration = 10 * time.Second
)

// Predict computes passes for every target in the request. Each target is
// processed in its own goroutine, bounded by a semaphore. Results keep the
// order of req.Targets.
func Predict(ctx context.Context, req Request) []TargetPasses {
	results := make([]TargetPasses, len(req.Targets))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, target := range req.Targets {
		wg.Add(1)
		go func(idx int, tg Target) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = TargetPasses{Name: tg.Name, Error: "cancelled"}
				return
			}

			found, err := predictTarget(ctx, req, tg.Propagator)
			if err != nil {
				results[idx] = TargetPasses{Name: tg.Name, Error: err.Error()}
				return
			}
			results[idx] = TargetPasses{Name: tg.Name, Passes: found}
		}(i, target)
	}

	wg.Wait()
	return results
}

// predictTarget scans one orbit at the coarse step and refines every window
// where the orbit is above the horizon.
func predictTarget(ctx context.Context, req Request, prop propagation.Propagator) ([]Pass, error) {
	if !req.Stop.After(req.Start) {
		return nil, fmt.Errorf("stop %s must be after start %s",
			req.Stop.UTC().Format(time.RFC3339), req.Start.UTC().Format(time.RFC3339))
	}

	var (
		found    []Pass
		lastErr  error
		anyState bool
	)

	t := req.Start
	for t.Before(req.Stop) && (req.MaxPasses <= 0 || len(found) < req.MaxPasses) {
		if ctx.Err() != nil {
			return found, nil
		}

		el, _, _, err := elevationAt(prop, req.Observer, t)
		if err != nil {
			lastErr = err
			t = t.Add(coarseStep)
			continue
		}
		anyState = true

		if el > 0 {
			pass, windowEnd := refine(ctx, prop, req.Observer, t, req.Start, req.Stop, req.MinElevation)
			if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDuration {
				found = append(found, *pass)
			}
			t = windowEnd.Add(coarseStep)
		} else {
			t = t.Add(coarseStep)
		}
	}

	// A propagator that never produced a state is an error, not an empty sky.
	if !anyState && lastErr != nil {
		return nil, fmt.Errorf("propagation failed: %w", lastErr)
	}
	return found, nil
}

// refine does a fine-grained scan around a coarse-detected above-horizon
// region. It backs up to find the rise, then scans forward to find the set.
// It returns the pass and the time the window ends.
func refine(ctx context.Context, prop propagation.Propagator, obs transform.Observer, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*Pass, time.Time) {
	searchStart := coarseHit.Add(-coarseStep)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		riseTime    time.Time
		setTime     time.Time
		riseAz      float64
		setAz       float64
		maxEl       float64
		maxElTime   time.Time
		maxElAz     float64
		wasAbove    bool
		foundRise   bool
		groundTrack []GroundTrackPoint
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		el, la, ef, err := elevationAt(prop, obs, t)
		if err != nil {
			t = t.Add(fineStep)
			continue
		}

		// Set below the horizon without reaching the mask.
		if !foundRise && el < 0 && t.After(coarseHit) {
			break
		}

		above := el >= minElev

		if above && !wasAbove {
			riseTime = t
			riseAz = la.AzimuthDeg
			foundRise = true
			maxEl = el
			maxElTime = t
			maxElAz = la.AzimuthDeg
		}

		if above && foundRise {
			if el > maxEl {
				maxEl = el
				maxElTime = t
				maxElAz = la.AzimuthDeg
			}
			if t.Sub(riseTime)%groundTrackStep == 0 {
				geo := transform.Geodetic(ef.Position)
				groundTrack = append(groundTrack, GroundTrackPoint{
					Time:      t,
					Latitude:  geo.LatDeg,
					Longitude: geo.LonDeg,
					Altitude:  geo.AltM,
					Elevation: el,
				})
			}
		}

		if !above && wasAbove && foundRise {
			setTime = t
			setAz = la.AzimuthDeg
			break
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still up at the end of the window: close the pass there.
	if foundRise && setTime.IsZero() && wasAbove {
		setTime = t
		if el, la, _, err := elevationAt(prop, obs, t); err == nil {
			setAz = la.AzimuthDeg
			if el > maxEl {
				maxEl = el
				maxElTime = t
				maxElAz = la.AzimuthDeg
			}
		}
	}

	if !foundRise || setTime.IsZero() {
		return nil, t
	}

	return &Pass{
		StartTime:        riseTime,
		MaxElevationTime: maxElTime,
		EndTime:          setTime,
		DurationSeconds:  setTime.Sub(riseTime).Seconds(),
		MaxElevation:     maxEl,
		AzimuthAtMax:     maxElAz,
		StartAzimuth:     riseAz,
		EndAzimuth:       setAz,
		GroundTrack:      groundTrack,
	}, setTime
}

// elevationAt returns the look angles and Earth-fixed state of the orbit at t.
func elevationAt(prop propagation.Propagator, obs transform.Observer, t time.Time) (float64, transform.LookAngles, transform.EarthFixed, error) {
	st, err := prop.Propagate(t)
	if err != nil {
		return 0, transform.LookAngles{}, transform.EarthFixed{}, err
	}
	ef := transform.ToEarthFixed(st)
	la := obs.Look(ef.Position)
	return la.ElevationDeg, la, ef, nil
}
