package recharge

import (
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// EventRecharge is an event with its recharge depth, ExcessRise * specific yield.
type EventRecharge struct {
	RechargeEvent
	RechargeDepth float64 `json:"recharge_depth"`
}

// PeriodTotal is the recharge summed over events starting in one aggregation period.
type PeriodTotal struct {
	Start  time.Time `json:"start"`
	Depth  float64   `json:"depth"`
	Events int       `json:"events"`
}

// RechargeEstimate is the deterministic result for one specific yield. Periods run
// without gaps from the period holding the series start to the one holding its end;
// periods without events report zero.
type RechargeEstimate struct {
	SpecificYield float64               `json:"specific_yield"`
	Period        Period                `json:"period"`
	Policy        NonContributingPolicy `json:"non_contributing"`
	Events        []EventRecharge       `json:"events"`
	Periods       []PeriodTotal         `json:"periods"`
	Total         float64               `json:"total"`
}

// Bounds holds estimates at the central specific yield and at its relative bounds.
type Bounds struct {
	Mean  *RechargeEstimate `json:"mean"`
	Lower *RechargeEstimate `json:"lower"`
	Upper *RechargeEstimate `json:"upper"`
}

// Estimator converts events into recharge depths and periodic totals.
type Estimator struct {
	cfg    EstimateConfig
	logger *zap.SugaredLogger
}

// NewEstimator creates an estimator. A nil logger disables logging.
func NewEstimator(cfg EstimateConfig, logger *zap.SugaredLogger) *Estimator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Estimator{cfg: cfg, logger: logger}
}

// Estimate computes recharge for each event and aggregates the included events into
// periods covering [start, end]. Zero start or end values are taken from the events.
func (e *Estimator) Estimate(events []RechargeEvent, sy float64, start, end time.Time) (*RechargeEstimate, error) {
	if err := validateSpecificYield(sy); err != nil {
		return nil, err
	}
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}

	idx := newPeriodIndex(events, e.cfg.Period, start, end)
	depths := make([]float64, len(events))
	out := &RechargeEstimate{
		SpecificYield: sy,
		Period:        e.cfg.Period,
		Policy:        e.cfg.NonContributing,
		Events:        make([]EventRecharge, len(events)),
	}
	for i, ev := range events {
		depths[i] = ev.ExcessRise * sy
		out.Events[i] = EventRecharge{RechargeEvent: ev, RechargeDepth: depths[i]}
	}

	totals := idx.aggregate(events, depths, e.cfg.NonContributing)
	counts := idx.counts(events, e.cfg.NonContributing)
	out.Periods = make([]PeriodTotal, len(totals))
	for i := range totals {
		out.Periods[i] = PeriodTotal{Start: idx.starts[i], Depth: totals[i], Events: counts[i]}
	}
	out.Total = floats.Sum(totals)

	e.logger.Debugf("estimated %.6g total recharge over %d %s periods from %d events (sy=%.4g)",
		out.Total, len(out.Periods), e.cfg.Period, len(events), sy)
	return out, nil
}

// EstimateBounds returns estimates at sy and at sy*(1-rel) and sy*(1+rel).
func (e *Estimator) EstimateBounds(events []RechargeEvent, sy, rel float64, start, end time.Time) (*Bounds, error) {
	if !(rel >= 0 && rel < 1) {
		return nil, &ParameterError{Name: "relative_uncertainty", Value: rel, Bound: "in [0, 1)"}
	}
	var b Bounds
	var err error
	if b.Mean, err = e.Estimate(events, sy, start, end); err != nil {
		return nil, err
	}
	if b.Lower, err = e.Estimate(events, sy*(1-rel), start, end); err != nil {
		return nil, err
	}
	if b.Upper, err = e.Estimate(events, sy*(1+rel), start, end); err != nil {
		return nil, err
	}
	return &b, nil
}

func validateSpecificYield(sy float64) error {
	if !(sy > 0 && sy < 1) {
		return &ParameterError{Name: "specific_yield", Value: sy, Bound: "in (0, 1)"}
	}
	return nil
}

// included reports whether ev enters the recharge sums under policy.
func included(ev RechargeEvent, policy NonContributingPolicy) bool {
	return ev.Contributing || policy == IncludeNonContributing
}

// periodIndex maps events onto a gap-free run of aggregation periods.
type periodIndex struct {
	starts []time.Time
	event  []int // period of each event
}

func newPeriodIndex(events []RechargeEvent, period Period, start, end time.Time) *periodIndex {
	if start.IsZero() && len(events) > 0 {
		start = events[0].StartTime
	}
	if end.IsZero() && len(events) > 0 {
		end = events[len(events)-1].StartTime
	}
	for _, ev := range events {
		if ev.StartTime.Before(start) {
			start = ev.StartTime
		}
		if ev.StartTime.After(end) {
			end = ev.StartTime
		}
	}

	idx := &periodIndex{event: make([]int, len(events))}
	if start.IsZero() {
		return idx
	}

	for p := PeriodStart(start, period); !p.After(end); p = nextPeriod(p, period) {
		idx.starts = append(idx.starts, p)
	}
	// Events are ordered, so one forward scan places them.
	j := 0
	for i, ev := range events {
		for j+1 < len(idx.starts) && !ev.StartTime.Before(idx.starts[j+1]) {
			j++
		}
		idx.event[i] = j
	}
	return idx
}

// aggregate sums depths of included events into their periods. It only reads p, so
// concurrent draws can share one index.
func (p *periodIndex) aggregate(events []RechargeEvent, depths []float64, policy NonContributingPolicy) []float64 {
	totals := make([]float64, len(p.starts))
	for i, ev := range events {
		if included(ev, policy) {
			totals[p.event[i]] += depths[i]
		}
	}
	return totals
}

// counts returns the number of included events per period.
func (p *periodIndex) counts(events []RechargeEvent, policy NonContributingPolicy) []int {
	out := make([]int, len(p.starts))
	for i, ev := range events {
		if included(ev, policy) {
			out[p.event[i]]++
		}
	}
	return out
}

// PeriodStart returns the start of the period containing t, in t's location.
func PeriodStart(t time.Time, period Period) time.Time {
	loc := t.Location()
	switch period {
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case PeriodWaterYear:
		year := t.Year()
		if t.Month() < time.October {
			year--
		}
		return time.Date(year, time.October, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
	}
}

func nextPeriod(p time.Time, period Period) time.Time {
	switch period {
	case PeriodDaily:
		return p.AddDate(0, 0, 1)
	case PeriodMonthly:
		return p.AddDate(0, 1, 0)
	default:
		return p.AddDate(1, 0, 0)
	}
}
