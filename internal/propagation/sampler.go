package propagation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/greyskyy/orbit-tool/internal/metrics"
	"github.com/greyskyy/orbit-tool/internal/orbit"
)

// Sampler drives a propagator across a span at a fixed step.
type Sampler struct {
	logger *slog.Logger
}

// NewSampler creates a Sampler.
func NewSampler(logger *slog.Logger) *Sampler {
	return &Sampler{logger: logger}
}

// Sample propagates p at start, start+step, ... up to and including stop.
// Preconditions are checked before the first propagate call. Calls are made
// in increasing time order from the calling goroutine only.
func (s *Sampler) Sample(p Propagator, start, stop time.Time, step time.Duration) (Trajectory, error) {
	if step <= 0 {
		return Trajectory{}, fmt.Errorf("%w: step must be positive, got %s", ErrInvalidStep, step)
	}
	if stop.Before(start) {
		return Trajectory{}, fmt.Errorf("%w: stop %s is before start %s", ErrInvalidInterval,
			stop.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}

	n := int(stop.Sub(start)/step) + 1
	states := make([]orbit.State, 0, n)

	s.logger.Debug("starting propagation",
		"start", start.UTC().Format(time.RFC3339),
		"stop", stop.UTC().Format(time.RFC3339),
		"step_seconds", step.Seconds(),
		"samples", n,
	)

	began := time.Now()
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * step)
		st, err := p.Propagate(t)
		if err != nil {
			metrics.RecordPropagationFailure()
			return Trajectory{}, &SampleError{Index: i, Epoch: t, Err: err}
		}
		states = append(states, st)
	}
	duration := time.Since(began)

	metrics.ObserveSampling(duration, len(states))
	s.logger.Info("propagation complete",
		"samples", len(states),
		"duration_ms", duration.Milliseconds(),
	)

	return Trajectory{Step: step, States: states}, nil
}
