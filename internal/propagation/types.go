package propagation

import (
	"errors"
	"fmt"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
)

// Propagator produces states at requested epochs. Implementations keep
// internal state between calls and are not safe for concurrent use.
type Propagator interface {
	Propagate(t time.Time) (orbit.State, error)
}

// Trajectory is a fixed-step, strictly increasing sequence of states.
// It is not modified after the sampler returns it.
type Trajectory struct {
	Step   time.Duration
	States []orbit.State
}

// Len returns the number of samples.
func (t Trajectory) Len() int { return len(t.States) }

// Start returns the first epoch, or the zero time when empty.
func (t Trajectory) Start() time.Time {
	if len(t.States) == 0 {
		return time.Time{}
	}
	return t.States[0].Epoch
}

// Stop returns the last epoch, or the zero time when empty.
func (t Trajectory) Stop() time.Time {
	if len(t.States) == 0 {
		return time.Time{}
	}
	return t.States[len(t.States)-1].Epoch
}

// Epochs lists the sample epochs.
func (t Trajectory) Epochs() []time.Time {
	epochs := make([]time.Time, len(t.States))
	for i, s := range t.States {
		epochs[i] = s.Epoch
	}
	return epochs
}

var (
	ErrInvalidStep     = errors.New("invalid step")
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrPropagation marks failures reported by a propagator itself.
	ErrPropagation = errors.New("propagation failed")
)

// SampleError wraps a propagator failure with the epoch it occurred at.
// errors.Is and errors.As still reach the propagator's own error.
type SampleError struct {
	Index int
	Epoch time.Time
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %d at %s: %v", e.Index, e.Epoch.UTC().Format(time.RFC3339Nano), e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }
