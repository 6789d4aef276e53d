package recharge

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes an empirical distribution of recharge depths.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// PeriodSummary is the distribution of one aggregation period's total.
type PeriodSummary struct {
	Start time.Time `json:"start"`
	Summary
}

// UncertaintyResult holds per-event, per-period and total distributions. Lower and Upper
// are the configured percentiles.
type UncertaintyResult struct {
	Draws         int             `json:"draws"`
	Percentiles   [2]float64      `json:"percentiles"`
	SpecificYield string          `json:"specific_yield"`
	YieldMean     float64         `json:"yield_mean"`
	Recession     bool            `json:"recession_resampled"`
	Events        []Summary       `json:"events"`
	Periods       []PeriodSummary `json:"periods"`
	Total         Summary         `json:"total"`
}

// UncertaintyEngine propagates specific-yield, and optionally recession, uncertainty
// into recharge by resampling.
type UncertaintyEngine struct {
	cfg    UncertaintyConfig
	est    EstimateConfig
	logger *zap.SugaredLogger
}

// NewUncertaintyEngine creates an engine. A nil logger disables logging.
func NewUncertaintyEngine(cfg UncertaintyConfig, est EstimateConfig, logger *zap.SugaredLogger) *UncertaintyEngine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UncertaintyEngine{cfg: cfg, est: est, logger: logger}
}

// draw is the outcome of one resample.
type draw struct {
	yield   float64
	events  []float64
	periods []float64
	total   float64
}

// Run performs cfg.Draws independent draws. Draw i uses its own generator seeded from
// (Seed, i), so results do not depend on the number of workers. model is only read and
// may be nil when recession resampling is off.
func (u *UncertaintyEngine) Run(ctx context.Context, events []RechargeEvent, sy SpecificYield, model *RecessionModel, start, end time.Time) (*UncertaintyResult, error) {
	n := u.cfg.Draws
	if n < 1 {
		return nil, &ParameterError{Name: "uncertainty.draws", Value: n, Bound: ">= 1"}
	}
	if u.cfg.MaxRetries < 1 {
		return nil, &ParameterError{Name: "uncertainty.max_retries", Value: u.cfg.MaxRetries, Bound: ">= 1"}
	}
	if err := sy.Validate(); err != nil {
		return nil, err
	}
	if err := u.est.validate(); err != nil {
		return nil, err
	}
	resampleRecession := u.cfg.IncludeRecession && model != nil && model.Kind != ModelNone

	idx := newPeriodIndex(events, u.est.Period, start, end)
	draws := make([]draw, n)

	workers := u.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			scored := make([]RechargeEvent, len(events))
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng := rand.New(rand.NewPCG(u.cfg.Seed, uint64(i)))
				y, err := sy.Sample(rng, u.cfg.MaxRetries, i)
				if err != nil {
					return err
				}

				evs := events
				if resampleRecession {
					m := model.Perturb(rng)
					for j, ev := range events {
						scored[j] = ev.rescore(m)
					}
					evs = scored
				}

				depths := make([]float64, len(evs))
				for j, ev := range evs {
					depths[j] = ev.ExcessRise * y
				}
				periods := idx.aggregate(evs, depths, u.est.NonContributing)
				draws[i] = draw{yield: y, events: depths, periods: periods, total: floats.Sum(periods)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &UncertaintyResult{
		Draws:         n,
		Percentiles:   u.cfg.Percentiles,
		SpecificYield: sy.String(),
		Recession:     resampleRecession,
		Events:        make([]Summary, len(events)),
		Periods:       make([]PeriodSummary, len(idx.starts)),
	}

	column := make([]float64, n)
	for i := range draws {
		column[i] = draws[i].yield
	}
	res.YieldMean = stat.Mean(column, nil)

	for j := range events {
		for i := range draws {
			column[i] = draws[i].events[j]
		}
		res.Events[j] = u.summarize(column)
	}
	for p := range idx.starts {
		for i := range draws {
			column[i] = draws[i].periods[p]
		}
		res.Periods[p] = PeriodSummary{Start: idx.starts[p], Summary: u.summarize(column)}
	}
	for i := range draws {
		column[i] = draws[i].total
	}
	res.Total = u.summarize(column)

	u.logger.Debugf("resampled %d draws of %s: total recharge mean=%.6g sd=%.6g [%.6g, %.6g]",
		n, sy, res.Total.Mean, res.Total.StdDev, res.Total.Lower, res.Total.Upper)
	return res, nil
}

// summarize computes the summary of v. v is not modified.
func (u *UncertaintyEngine) summarize(v []float64) Summary {
	var s Summary
	if len(v) == 0 {
		return s
	}
	s.Mean = stat.Mean(v, nil)
	if len(v) > 1 {
		s.StdDev = stat.StdDev(v, nil)
	}
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	s.Lower = stat.Quantile(u.cfg.Percentiles[0]/100, stat.Empirical, sorted, nil)
	s.Upper = stat.Quantile(u.cfg.Percentiles[1]/100, stat.Empirical, sorted, nil)
	return s
}
