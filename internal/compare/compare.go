// Package compare measures the relative motion of one trajectory in the
// local orbital frame of another.
package compare

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/greyskyy/orbit-tool/internal/transform"
)

var ErrMismatchedSamples = errors.New("trajectories are not sampled alike")

// MismatchError locates the first sample pair that cannot be compared.
type MismatchError struct {
	Index  int
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: sample %d: %s", ErrMismatchedSamples, e.Index, e.Reason)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatchedSamples }

// Row is the other trajectory's position relative to the reference at one
// epoch, in kilometers.
type Row struct {
	Epoch          time.Time
	ElapsedSeconds float64
	RadialKm       float64
	InTrackKm      float64
	CrossTrackKm   float64
}

// Record is a full comparison, one row per epoch.
type Record struct {
	Rows []Row
}

// Summary holds the largest absolute error per axis, km.
type Summary struct {
	Samples      int     `json:"samples"`
	RadialKm     float64 `json:"radial_km"`
	InTrackKm    float64 `json:"in_track_km"`
	CrossTrackKm float64 `json:"cross_track_km"`
}

// Summary reduces the record to per-axis maxima of |error|.
func (r Record) Summary() Summary {
	s := Summary{Samples: len(r.Rows)}
	for _, row := range r.Rows {
		s.RadialKm = math.Max(s.RadialKm, math.Abs(row.RadialKm))
		s.InTrackKm = math.Max(s.InTrackKm, math.Abs(row.InTrackKm))
		s.CrossTrackKm = math.Max(s.CrossTrackKm, math.Abs(row.CrossTrackKm))
	}
	return s
}

// Compare expresses each state of other in the QSW frame of the matching
// reference state. Both trajectories must have the same epochs and frame.
func Compare(reference, other propagation.Trajectory) (Record, error) {
	if reference.Len() != other.Len() {
		return Record{}, &MismatchError{
			Index:  min(reference.Len(), other.Len()),
			Reason: fmt.Sprintf("reference has %d samples, other has %d", reference.Len(), other.Len()),
		}
	}

	rows := make([]Row, 0, reference.Len())
	start := reference.Start()
	for i, ref := range reference.States {
		o := other.States[i]
		if !ref.Epoch.Equal(o.Epoch) {
			return Record{}, &MismatchError{Index: i, Reason: fmt.Sprintf("epoch %s differs from %s",
				o.Epoch.UTC().Format(time.RFC3339Nano), ref.Epoch.UTC().Format(time.RFC3339Nano))}
		}
		if ref.Frame != o.Frame {
			return Record{}, &MismatchError{Index: i, Reason: fmt.Sprintf("frame %q differs from %q", o.Frame, ref.Frame)}
		}

		rel := transform.QSW(ref).Apply(o.Position)
		rows = append(rows, Row{
			Epoch:          ref.Epoch,
			ElapsedSeconds: ref.Epoch.Sub(start).Seconds(),
			RadialKm:       rel.X / 1000,
			InTrackKm:      rel.Y / 1000,
			CrossTrackKm:   rel.Z / 1000,
		})
	}
	return Record{Rows: rows}, nil
}
