package recharge

import (
	"time"
)

// ModelKind identifies the recession model variant.
type ModelKind string

const (
	// ModelLinear declines at a constant rate.
	ModelLinear ModelKind = "linear"

	// ModelExponential decays the height above a base level with a single constant.
	ModelExponential ModelKind = "exponential"

	// ModelLevelDependent follows dh/dt = -a*h + b.
	ModelLevelDependent ModelKind = "level_dependent"

	// ModelNone applies no recession correction.
	ModelNone ModelKind = "none"
)

// PoolingMode selects how declining segments are combined into one curve.
type PoolingMode string

const (
	// PoolingJoint regresses all declining segments together.
	PoolingJoint PoolingMode = "joint"

	// PoolingAverage fits each segment separately and averages the parameters.
	PoolingAverage PoolingMode = "average"
)

// RiseRule decides which segments are scored as recharge events.
type RiseRule string

const (
	// RuleRises qualifies every rising segment whose rise reaches MinRise.
	RuleRises RiseRule = "rises"

	// RulePeaks qualifies rising segments whose peak exceeds the previous local maximum
	// by at least MinRise. The previous local maximum is the end of the immediately
	// preceding rising segment, qualifying or not, rather than the running high, so a
	// rebound is compared only with the rebound before it. Ties never qualify.
	RulePeaks RiseRule = "peaks"

	// RuleBoth scores every segment, rising or declining, against the recession curve.
	RuleBoth RiseRule = "both"
)

// Period is an aggregation interval for recharge totals.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodMonthly   Period = "monthly"
	PeriodAnnual    Period = "annual"
	PeriodWaterYear Period = "water_year" // starts October 1
)

// NonContributingPolicy states whether events with non-positive excess rise enter the
// recharge sums.
type NonContributingPolicy string

const (
	// ExcludeNonContributing leaves non-positive events out of every sum.
	ExcludeNonContributing NonContributingPolicy = "exclude"

	// IncludeNonContributing sums non-positive events as they are, so negative
	// excess rises reduce the totals.
	IncludeNonContributing NonContributingPolicy = "include"
)

// SegmentationConfig sets the minimum segment length. A segment is short when it has fewer
// than MinSamples samples or spans less than MinDuration.
type SegmentationConfig struct {
	MinSamples  int           `json:"min_samples"`
	MinDuration time.Duration `json:"min_duration"`
}

// RecessionConfig controls the master recession curve fit.
type RecessionConfig struct {
	Kind        ModelKind     `json:"kind"`
	Pooling     PoolingMode   `json:"pooling"`
	MinSegments int           `json:"min_segments"`
	BaseLevel   float64       `json:"base_level"`
	TimeUnit    time.Duration `json:"time_unit"`
	FitStart    time.Time     `json:"fit_start,omitempty"`
	FitEnd      time.Time     `json:"fit_end,omitempty"`
}

// EventConfig controls rise qualification.
type EventConfig struct {
	Rule    RiseRule `json:"rule"`
	MinRise float64  `json:"min_rise"`
}

// EstimateConfig controls aggregation of event recharge.
type EstimateConfig struct {
	Period          Period                `json:"period"`
	NonContributing NonContributingPolicy `json:"non_contributing"`
}

// UncertaintyConfig controls resampling. Draws of zero disables uncertainty in Model.Run.
type UncertaintyConfig struct {
	Draws            int        `json:"draws"`
	Percentiles      [2]float64 `json:"percentiles"`
	MaxRetries       int        `json:"max_retries"`
	Workers          int        `json:"workers"`
	Seed             uint64     `json:"seed"`
	IncludeRecession bool       `json:"include_recession"`
}

// Config is the full set of options recognised by the engine.
type Config struct {
	Segmentation SegmentationConfig `json:"segmentation"`
	Recession    RecessionConfig    `json:"recession"`
	Events       EventConfig        `json:"events"`
	Estimate     EstimateConfig     `json:"estimate"`
	Uncertainty  UncertaintyConfig  `json:"uncertainty"`
}

// DefaultConfig returns the defaults used when an option is not set.
func DefaultConfig() Config {
	return Config{
		Segmentation: SegmentationConfig{
			MinSamples: 2,
		},
		Recession: RecessionConfig{
			Kind:        ModelLinear,
			Pooling:     PoolingJoint,
			MinSegments: 2,
			TimeUnit:    24 * time.Hour,
		},
		Events: EventConfig{
			Rule: RuleRises,
		},
		Estimate: EstimateConfig{
			Period:          PeriodAnnual,
			NonContributing: ExcludeNonContributing,
		},
		Uncertainty: UncertaintyConfig{
			Draws:       1000,
			Percentiles: [2]float64{5, 95},
			MaxRetries:  1000,
			Workers:     1,
			Seed:        1,
		},
	}
}

// Validate checks every option and returns the first ParameterError found.
func (c Config) Validate() error {
	if c.Segmentation.MinSamples < 2 {
		return &ParameterError{Name: "segmentation.min_samples", Value: c.Segmentation.MinSamples, Bound: ">= 2"}
	}
	if c.Segmentation.MinDuration < 0 {
		return &ParameterError{Name: "segmentation.min_duration", Value: c.Segmentation.MinDuration, Bound: ">= 0"}
	}

	switch c.Recession.Kind {
	case ModelLinear, ModelExponential, ModelLevelDependent, ModelNone:
	default:
		return &ParameterError{Name: "recession.kind", Value: c.Recession.Kind, Bound: "one of linear, exponential, level_dependent, none"}
	}
	switch c.Recession.Pooling {
	case PoolingJoint, PoolingAverage:
	default:
		return &ParameterError{Name: "recession.pooling", Value: c.Recession.Pooling, Bound: "one of joint, average"}
	}
	if c.Recession.MinSegments < 1 {
		return &ParameterError{Name: "recession.min_segments", Value: c.Recession.MinSegments, Bound: ">= 1"}
	}
	if c.Recession.TimeUnit <= 0 {
		return &ParameterError{Name: "recession.time_unit", Value: c.Recession.TimeUnit, Bound: "> 0"}
	}
	if !c.Recession.FitStart.IsZero() && !c.Recession.FitEnd.IsZero() && c.Recession.FitEnd.Before(c.Recession.FitStart) {
		return &ParameterError{Name: "recession.fit_end", Value: c.Recession.FitEnd, Bound: "after fit_start"}
	}

	switch c.Events.Rule {
	case RuleRises, RulePeaks, RuleBoth:
	default:
		return &ParameterError{Name: "events.rule", Value: c.Events.Rule, Bound: "one of rises, peaks, both"}
	}
	if c.Events.MinRise < 0 {
		return &ParameterError{Name: "events.min_rise", Value: c.Events.MinRise, Bound: ">= 0"}
	}

	if err := c.Estimate.validate(); err != nil {
		return err
	}

	u := c.Uncertainty
	if u.Draws < 0 {
		return &ParameterError{Name: "uncertainty.draws", Value: u.Draws, Bound: ">= 0"}
	}
	if u.Percentiles[0] < 0 || u.Percentiles[1] > 100 || u.Percentiles[0] >= u.Percentiles[1] {
		return &ParameterError{Name: "uncertainty.percentiles", Value: u.Percentiles, Bound: "0 <= low < high <= 100"}
	}
	if u.MaxRetries < 1 {
		return &ParameterError{Name: "uncertainty.max_retries", Value: u.MaxRetries, Bound: ">= 1"}
	}
	if u.Workers < 0 {
		return &ParameterError{Name: "uncertainty.workers", Value: u.Workers, Bound: ">= 0"}
	}

	return nil
}

func (e EstimateConfig) validate() error {
	switch e.Period {
	case PeriodDaily, PeriodMonthly, PeriodAnnual, PeriodWaterYear:
	default:
		return &ParameterError{Name: "estimate.period", Value: e.Period, Bound: "one of daily, monthly, annual, water_year"}
	}
	switch e.NonContributing {
	case ExcludeNonContributing, IncludeNonContributing:
	default:
		return &ParameterError{Name: "estimate.non_contributing", Value: e.NonContributing, Bound: "one of exclude, include"}
	}
	return nil
}
