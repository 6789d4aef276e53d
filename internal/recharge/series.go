// Package recharge estimates groundwater recharge from water-table measurements using
// the Water Table Fluctuation method: the series is split into rising and declining
// segments, a master recession curve is fitted to the declines, rises are corrected for
// the drainage the curve predicts, and the excess rise is scaled by specific yield.
package recharge

import (
	"fmt"
	"math"
	"time"
)

// Sample is a single water-level measurement. Levels share one unit and are positive
// upward.
type Sample struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

// TimeSeries is an immutable, strictly time-ordered sequence of samples.
type TimeSeries struct {
	samples    []Sample
	droppedNaN int
}

// NewTimeSeries validates samples and returns a series. Samples with a NaN level are
// dropped and counted; timestamps must be strictly increasing.
func NewTimeSeries(samples []Sample) (*TimeSeries, error) {
	clean := make([]Sample, 0, len(samples))
	dropped := 0
	for _, s := range samples {
		if math.IsNaN(s.Level) {
			dropped++
			continue
		}
		if math.IsInf(s.Level, 0) {
			return nil, &ParameterError{Name: "level", Value: s.Level, Bound: "finite"}
		}
		clean = append(clean, s)
	}

	if len(clean) == 0 {
		return nil, &InsufficientDataError{Op: "new series", Need: 1, Have: 0, Reason: "no valid samples"}
	}

	for i := 1; i < len(clean); i++ {
		if !clean[i].Time.After(clean[i-1].Time) {
			return nil, &ParameterError{
				Name:  fmt.Sprintf("timestamp[%d]", i),
				Value: clean[i].Time.Format(time.RFC3339),
				Bound: "strictly after " + clean[i-1].Time.Format(time.RFC3339),
			}
		}
	}

	return &TimeSeries{samples: clean, droppedNaN: dropped}, nil
}

// Len returns the number of samples.
func (ts *TimeSeries) Len() int { return len(ts.samples) }

// At returns the i-th sample.
func (ts *TimeSeries) At(i int) Sample { return ts.samples[i] }

// Samples returns a copy of the samples.
func (ts *TimeSeries) Samples() []Sample {
	out := make([]Sample, len(ts.samples))
	copy(out, ts.samples)
	return out
}

// DroppedNaN returns how many NaN samples were removed at construction.
func (ts *TimeSeries) DroppedNaN() int { return ts.droppedNaN }

// Start returns the first timestamp.
func (ts *TimeSeries) Start() time.Time { return ts.samples[0].Time }

// End returns the last timestamp.
func (ts *TimeSeries) End() time.Time { return ts.samples[len(ts.samples)-1].Time }

// Window returns a new series holding the samples within [start, end]. A zero start or
// end leaves that side open.
func (ts *TimeSeries) Window(start, end time.Time) (*TimeSeries, error) {
	var out []Sample
	for _, s := range ts.samples {
		if !start.IsZero() && s.Time.Before(start) {
			continue
		}
		if !end.IsZero() && s.Time.After(end) {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, &InsufficientDataError{Op: "window", Need: 1, Have: 0, Reason: "no samples in window"}
	}
	return &TimeSeries{samples: out}, nil
}

// elapsed converts a duration into the configured time unit.
func elapsed(d, unit time.Duration) float64 {
	return float64(d) / float64(unit)
}
