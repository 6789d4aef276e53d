package recharge

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// lowFitRSquared is the coefficient of determination below which a fit is logged as
// unreliable.
const lowFitRSquared = 0.5

// RecessionParams holds the parameters of every variant; only the fields belonging to
// the model's Kind are meaningful.
//
//	linear:          decline = Rate * t
//	exponential:     h(t) - base = (h0 - base) * exp(-K * t)
//	level_dependent: dh/dt = -A * h + B
type RecessionParams struct {
	Rate float64 `json:"rate,omitempty"`
	K    float64 `json:"k,omitempty"`
	A    float64 `json:"a,omitempty"`
	B    float64 `json:"b,omitempty"`
}

// RecessionModel is a fitted master recession curve. It is a value: copies never share
// state, and nothing mutates a model after FitRecession returns it.
type RecessionModel struct {
	Kind      ModelKind       `json:"kind"`
	Pooling   PoolingMode     `json:"pooling,omitempty"`
	Params    RecessionParams `json:"params"`
	StdErr    RecessionParams `json:"stderr"`
	BaseLevel float64         `json:"base_level,omitempty"`
	RefLevel  float64         `json:"ref_level"`
	TimeUnit  time.Duration   `json:"time_unit"`
	RSquared  float64         `json:"r_squared"`
	Segments  int             `json:"segments"`
	Points    int             `json:"points"`
}

// PredictDecline returns the level drop expected from drainage alone over t time units,
// starting from the model's reference level.
func (m RecessionModel) PredictDecline(t float64) float64 {
	return m.PredictDeclineFrom(m.RefLevel, t)
}

// PredictDeclineFrom returns the level drop expected over t time units starting at
// level h0. The result is never negative.
func (m RecessionModel) PredictDeclineFrom(h0, t float64) float64 {
	if t <= 0 {
		return 0
	}
	var d float64
	switch m.Kind {
	case ModelLinear:
		d = m.Params.Rate * t
	case ModelExponential:
		d = (h0 - m.BaseLevel) * (1 - math.Exp(-m.Params.K*t))
	case ModelLevelDependent:
		a, b := m.Params.A, m.Params.B
		if math.Abs(a) < 1e-12 {
			d = -b * t
		} else {
			eq := b / a
			d = h0 - (eq + (h0-eq)*math.Exp(-a*t))
		}
	}
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return d
}

// PredictDeclineOver is PredictDeclineFrom with the elapsed time given as a duration.
func (m RecessionModel) PredictDeclineOver(h0 float64, d time.Duration) float64 {
	if m.Kind == ModelNone || m.TimeUnit <= 0 {
		return 0
	}
	return m.PredictDeclineFrom(h0, elapsed(d, m.TimeUnit))
}

// Perturb returns a copy whose parameters are drawn from normal distributions centred on
// the fitted values with their standard errors. The receiver is left untouched.
func (m RecessionModel) Perturb(rng *rand.Rand) RecessionModel {
	draw := func(mu, sigma float64) float64 {
		if sigma <= 0 || math.IsNaN(sigma) {
			return mu
		}
		return distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}.Rand()
	}

	out := m
	switch m.Kind {
	case ModelLinear:
		out.Params.Rate = draw(m.Params.Rate, m.StdErr.Rate)
	case ModelExponential:
		out.Params.K = draw(m.Params.K, m.StdErr.K)
	case ModelLevelDependent:
		out.Params.A = draw(m.Params.A, m.StdErr.A)
		out.Params.B = draw(m.Params.B, m.StdErr.B)
	}
	return out
}

func (m RecessionModel) String() string {
	switch m.Kind {
	case ModelLinear:
		return fmt.Sprintf("linear(rate=%.6g, r2=%.4f)", m.Params.Rate, m.RSquared)
	case ModelExponential:
		return fmt.Sprintf("exponential(k=%.6g, base=%.6g, r2=%.4f)", m.Params.K, m.BaseLevel, m.RSquared)
	case ModelLevelDependent:
		return fmt.Sprintf("level_dependent(a=%.6g, b=%.6g, r2=%.4f)", m.Params.A, m.Params.B, m.RSquared)
	default:
		return string(m.Kind)
	}
}

// regressionData is one segment's regression input.
type regressionData struct {
	x, y []float64
}

// fitResult is a least-squares fit y = alpha + beta*x with standard errors.
type fitResult struct {
	alpha, beta       float64
	alphaErr, betaErr float64
}

// FitRecession fits a master recession curve to the declining segments of ts.
func FitRecession(ts *TimeSeries, declining []Segment, cfg RecessionConfig, logger *zap.SugaredLogger) (*RecessionModel, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Kind == ModelNone {
		return &RecessionModel{Kind: ModelNone, TimeUnit: cfg.TimeUnit}, nil
	}
	if cfg.TimeUnit <= 0 {
		return nil, &ParameterError{Name: "recession.time_unit", Value: cfg.TimeUnit, Bound: "> 0"}
	}

	origin := cfg.Kind != ModelLevelDependent
	var used []Segment
	var data []regressionData
	for _, seg := range declining {
		if seg.Direction != Declining || !inWindow(seg, cfg.FitStart, cfg.FitEnd) {
			continue
		}
		d, err := segmentData(ts, seg, cfg)
		if err != nil {
			return nil, err
		}
		if len(d.x) < minPoints(cfg) {
			continue
		}
		// A per-segment intercept fit needs more than one distinct level.
		if !origin && cfg.Pooling == PoolingAverage && constant(d.x) {
			logger.Debugf("skipping declining segment at %s: every falling step starts at the same level",
				seg.StartTime.Format(time.RFC3339))
			continue
		}
		used = append(used, seg)
		data = append(data, d)
	}

	if len(used) < cfg.MinSegments {
		return nil, &InsufficientDataError{Op: "fit recession", Need: cfg.MinSegments, Have: len(used), Reason: "declining segments"}
	}

	var fit fitResult
	var pooled regressionData
	for _, d := range data {
		pooled.x = append(pooled.x, d.x...)
		pooled.y = append(pooled.y, d.y...)
	}
	if !origin && len(pooled.x) > 1 && constant(pooled.x) {
		return nil, &InsufficientDataError{Op: "fit recession", Need: 2, Have: 1, Reason: "distinct levels in declining segments"}
	}

	switch cfg.Pooling {
	case PoolingAverage:
		alphas := make([]float64, len(data))
		betas := make([]float64, len(data))
		for i, d := range data {
			f := leastSquares(d.x, d.y, origin)
			alphas[i], betas[i] = f.alpha, f.beta
		}
		fit.alpha, fit.alphaErr = meanStdErr(alphas)
		fit.beta, fit.betaErr = meanStdErr(betas)
	default:
		fit = leastSquares(pooled.x, pooled.y, origin)
	}

	model := &RecessionModel{
		Kind:      cfg.Kind,
		Pooling:   cfg.Pooling,
		BaseLevel: cfg.BaseLevel,
		TimeUnit:  cfg.TimeUnit,
		RSquared:  rSquared(pooled.x, pooled.y, fit.alpha, fit.beta),
		Segments:  len(used),
		Points:    len(pooled.x),
	}

	switch cfg.Kind {
	case ModelLinear:
		model.Params.Rate, model.StdErr.Rate = -fit.beta, fit.betaErr
	case ModelExponential:
		model.Params.K, model.StdErr.K = -fit.beta, fit.betaErr
	case ModelLevelDependent:
		model.Params.A, model.StdErr.A = -fit.beta, fit.betaErr
		model.Params.B, model.StdErr.B = fit.alpha, fit.alphaErr
	}

	if !model.declines() {
		return nil, &InsufficientDataError{Op: "fit recession", Need: 1, Have: 0,
			Reason: fmt.Sprintf("fitted %s does not decline", model)}
	}

	starts := make([]float64, len(used))
	for i, seg := range used {
		starts[i] = seg.StartLevel
	}
	model.RefLevel = stat.Mean(starts, nil)

	logger.Debugf("fitted recession %s from %d segments, %d points", model, model.Segments, model.Points)
	if model.RSquared < lowFitRSquared {
		logger.Warnf("recession fit is weak: r2=%.3f", model.RSquared)
	}
	return model, nil
}

// declines reports whether the fitted parameters describe a falling level. Linear and
// exponential curves must have a positive rate; level_dependent curves may cross their
// equilibrium and are only checked for finite parameters.
func (m RecessionModel) declines() bool {
	switch m.Kind {
	case ModelLinear:
		return m.Params.Rate > 0
	case ModelExponential:
		return m.Params.K > 0
	case ModelLevelDependent:
		return !math.IsNaN(m.Params.A) && !math.IsNaN(m.Params.B) &&
			!math.IsInf(m.Params.A, 0) && !math.IsInf(m.Params.B, 0)
	}
	return true
}

// constant reports whether every value in v is equal.
func constant(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

func inWindow(seg Segment, start, end time.Time) bool {
	if !start.IsZero() && seg.StartTime.Before(start) {
		return false
	}
	if !end.IsZero() && seg.EndTime.After(end) {
		return false
	}
	return true
}

// minPoints is the smallest regression input one segment must yield to be used.
func minPoints(cfg RecessionConfig) int {
	if cfg.Kind == ModelLevelDependent && cfg.Pooling == PoolingAverage {
		return 2
	}
	return 1
}

// segmentData builds the regression input for one declining segment. Linear and
// exponential use elapsed time against the drop from the start level; level_dependent
// uses the start level of each falling step against its rate.
func segmentData(ts *TimeSeries, seg Segment, cfg RecessionConfig) (regressionData, error) {
	var d regressionData
	h0 := seg.StartLevel
	t0 := seg.StartTime

	switch cfg.Kind {
	case ModelLinear:
		for i := seg.StartIndex + 1; i <= seg.EndIndex; i++ {
			s := ts.At(i)
			d.x = append(d.x, elapsed(s.Time.Sub(t0), cfg.TimeUnit))
			d.y = append(d.y, s.Level-h0)
		}
	case ModelExponential:
		if seg.MinLevel <= cfg.BaseLevel {
			return d, &ParameterError{
				Name:  "recession.base_level",
				Value: cfg.BaseLevel,
				Bound: fmt.Sprintf("below every level in declining segments (segment at %s reaches %g)", seg.StartTime.Format(time.RFC3339), seg.MinLevel),
			}
		}
		for i := seg.StartIndex + 1; i <= seg.EndIndex; i++ {
			s := ts.At(i)
			d.x = append(d.x, elapsed(s.Time.Sub(t0), cfg.TimeUnit))
			d.y = append(d.y, math.Log((s.Level-cfg.BaseLevel)/(h0-cfg.BaseLevel)))
		}
	case ModelLevelDependent:
		for i := seg.StartIndex; i < seg.EndIndex; i++ {
			a, b := ts.At(i), ts.At(i+1)
			dh := b.Level - a.Level
			if dh >= 0 {
				continue
			}
			d.x = append(d.x, a.Level)
			d.y = append(d.y, dh/elapsed(b.Time.Sub(a.Time), cfg.TimeUnit))
		}
	}
	return d, nil
}

// leastSquares fits y = alpha + beta*x, or y = beta*x when origin is set.
func leastSquares(x, y []float64, origin bool) fitResult {
	var f fitResult
	n := float64(len(x))
	if len(x) == 0 {
		return f
	}
	var sumX2 float64
	for _, v := range x {
		sumX2 += v * v
	}
	if sumX2 == 0 {
		return f
	}
	f.alpha, f.beta = stat.LinearRegression(x, y, nil, origin || len(x) == 1)

	var ssRes float64
	for i := range x {
		r := y[i] - (f.alpha + f.beta*x[i])
		ssRes += r * r
	}

	if origin {
		if n > 1 && sumX2 > 0 {
			f.betaErr = math.Sqrt(ssRes / (n - 1) / sumX2)
		}
		return f
	}
	if n > 2 {
		sxx := stat.Variance(x, nil) * (n - 1)
		if sxx > 0 {
			s2 := ssRes / (n - 2)
			f.betaErr = math.Sqrt(s2 / sxx)
			f.alphaErr = math.Sqrt(s2 * sumX2 / (n * sxx))
		}
	}
	return f
}

// rSquared returns the coefficient of determination of y = alpha + beta*x. A
// constant y is explained perfectly only by a zero residual.
func rSquared(x, y []float64, alpha, beta float64) float64 {
	if len(y) < 2 || stat.Variance(y, nil) == 0 {
		for i := range y {
			if math.Abs(y[i]-(alpha+beta*x[i])) > 1e-12 {
				return 0
			}
		}
		return 1
	}
	return stat.RSquared(x, y, nil, alpha, beta)
}

// meanStdErr returns the mean of v and its standard error.
func meanStdErr(v []float64) (float64, float64) {
	if len(v) < 2 {
		return stat.Mean(v, nil), 0
	}
	mean, std := stat.MeanStdDev(v, nil)
	return mean, std / math.Sqrt(float64(len(v)))
}
