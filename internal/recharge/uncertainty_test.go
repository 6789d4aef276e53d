package recharge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uncertaintyEvents() []RechargeEvent {
	return []RechargeEvent{
		event(date(2020, time.March, 1), 2),
		event(date(2020, time.September, 1), 3),
		event(date(2021, time.February, 1), -1),
	}
}

func uncertaintyConfig(draws, workers int) UncertaintyConfig {
	cfg := DefaultConfig().Uncertainty
	cfg.Draws = draws
	cfg.Workers = workers
	return cfg
}

func TestUncertaintyConverges(t *testing.T) {
	// Included excess is 5, so the total is 5*sy with mean 1.0 and sd 0.1.
	tests := []struct {
		draws int
		tol   float64
	}{
		{1, 0.35},
		{10, 0.1},
		{10000, 0.01},
	}
	for _, tt := range tests {
		engine := NewUncertaintyEngine(uncertaintyConfig(tt.draws, 0), DefaultConfig().Estimate, nil)
		res, err := engine.Run(context.Background(), uncertaintyEvents(), NormalYield(0.2, 0.02), nil, time.Time{}, time.Time{})
		require.NoError(t, err)

		assert.Equal(t, tt.draws, res.Draws)
		assert.InDelta(t, 1.0, res.Total.Mean, tt.tol, "draws=%d", tt.draws)
		assert.InDelta(t, 0.2, res.YieldMean, tt.tol/5, "draws=%d", tt.draws)
		require.Len(t, res.Events, 3)
		require.Len(t, res.Periods, 2)
		assert.LessOrEqual(t, res.Total.Lower, res.Total.Upper)

		if tt.draws == 1 {
			assert.Equal(t, 0.0, res.Total.StdDev)
			assert.Equal(t, res.Total.Mean, res.Total.Lower)
		}
		if tt.draws == 10000 {
			assert.InDelta(t, 0.1, res.Total.StdDev, 0.005)
			// 5th and 95th percentiles of N(1.0, 0.1).
			assert.InDelta(t, 0.8355, res.Total.Lower, 0.01)
			assert.InDelta(t, 1.1645, res.Total.Upper, 0.01)
			assert.InDelta(t, 0.4, res.Events[0].Mean, 0.002)
			assert.InDelta(t, -0.2, res.Events[2].Mean, 0.002)
			assert.InDelta(t, 1.0, res.Periods[0].Mean, 0.01)
			assert.Equal(t, 0.0, res.Periods[1].Mean)
		}
	}
}

func TestUncertaintyIndependentOfWorkers(t *testing.T) {
	events := uncertaintyEvents()
	sy := UniformYield(0.1, 0.3)

	one, err := NewUncertaintyEngine(uncertaintyConfig(500, 1), DefaultConfig().Estimate, nil).
		Run(context.Background(), events, sy, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	four, err := NewUncertaintyEngine(uncertaintyConfig(500, 4), DefaultConfig().Estimate, nil).
		Run(context.Background(), events, sy, nil, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, one, four)
}

func TestUncertaintySamplingFailure(t *testing.T) {
	cfg := uncertaintyConfig(20, 1)
	cfg.MaxRetries = 10
	engine := NewUncertaintyEngine(cfg, DefaultConfig().Estimate, nil)

	_, err := engine.Run(context.Background(), uncertaintyEvents(), UniformYield(1.5, 2), nil, time.Time{}, time.Time{})
	var serr *DistributionSamplingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Draw)
	assert.Equal(t, 10, serr.Retries)
}

func TestUncertaintyInvalidDraws(t *testing.T) {
	engine := NewUncertaintyEngine(uncertaintyConfig(0, 1), DefaultConfig().Estimate, nil)
	_, err := engine.Run(context.Background(), uncertaintyEvents(), NormalYield(0.2, 0.02), nil, time.Time{}, time.Time{})

	var perr *ParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "uncertainty.draws", perr.Name)
}

func TestUncertaintyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewUncertaintyEngine(uncertaintyConfig(100, 2), DefaultConfig().Estimate, nil)
	_, err := engine.Run(ctx, uncertaintyEvents(), NormalYield(0.2, 0.02), nil, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUncertaintyResamplesRecession(t *testing.T) {
	events := uncertaintyEvents()
	before := append([]RechargeEvent(nil), events...)
	model := &RecessionModel{
		Kind:     ModelLinear,
		Params:   RecessionParams{Rate: 0.1},
		StdErr:   RecessionParams{Rate: 0.02},
		TimeUnit: 24 * time.Hour,
	}
	modelBefore := *model

	// A degenerate yield isolates the spread contributed by the recession parameters.
	sy := NormalYield(0.2, 0)

	cfg := uncertaintyConfig(200, 3)
	res, err := NewUncertaintyEngine(cfg, DefaultConfig().Estimate, nil).
		Run(context.Background(), events, sy, model, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, res.Recession)
	assert.InDelta(t, 0.0, res.Total.StdDev, 1e-12)

	cfg.IncludeRecession = true
	res, err = NewUncertaintyEngine(cfg, DefaultConfig().Estimate, nil).
		Run(context.Background(), events, sy, model, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, res.Recession)
	assert.Greater(t, res.Total.StdDev, 0.0)
	// Each contributing event gains about rate*1 day of excess, scaled by 0.2.
	assert.InDelta(t, 0.2*(5+0.2), res.Total.Mean, 0.01)

	assert.Equal(t, before, events)
	assert.Equal(t, modelBefore, *model)
}
