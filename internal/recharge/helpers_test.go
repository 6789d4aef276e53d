package recharge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// dailySeries builds a series with one sample per day starting at day0.
func dailySeries(t *testing.T, levels ...float64) *TimeSeries {
	t.Helper()
	samples := make([]Sample, len(levels))
	for i, l := range levels {
		samples[i] = Sample{Time: day0.AddDate(0, 0, i), Level: l}
	}
	ts, err := NewTimeSeries(samples)
	require.NoError(t, err)
	return ts
}

// leg is a run of equal daily level changes.
type leg struct {
	steps int
	delta float64
}

// piecewise returns start followed by each leg's levels, computed from the leg's first
// level to avoid accumulating rounding error.
func piecewise(start float64, legs ...leg) []float64 {
	levels := []float64{start}
	for _, l := range legs {
		base := levels[len(levels)-1]
		for k := 1; k <= l.steps; k++ {
			levels = append(levels, base+float64(k)*l.delta)
		}
	}
	return levels
}

// twoCycleLevels falls at 0.1/day for 10 days, rises 2.0 over 2 days, falls 10 days,
// rises 3.0 over 2 days and falls another 10 days.
func twoCycleLevels() []float64 {
	return piecewise(20,
		leg{10, -0.1},
		leg{2, 1.0},
		leg{10, -0.1},
		leg{2, 1.5},
		leg{10, -0.1},
	)
}

// scenarioConfig is the configuration for the three-sample worked example.
func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.Recession.MinSegments = 1
	return cfg
}
