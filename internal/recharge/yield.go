package recharge

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// YieldKind identifies how specific yield is supplied.
type YieldKind string

const (
	YieldFixed      YieldKind = "fixed"
	YieldNormal     YieldKind = "normal"
	YieldUniform    YieldKind = "uniform"
	YieldBeta       YieldKind = "beta"
	YieldTriangular YieldKind = "triangular"
	YieldLogNormal  YieldKind = "lognormal"
)

// SpecificYield is either a fixed value or a distribution. Fields not used by Kind are
// ignored:
//
//	fixed:      Value
//	normal:     Mean, StdDev
//	uniform:    Min, Max
//	beta:       Alpha, Beta
//	triangular: Min, Mode, Max
//	lognormal:  Mu, Sigma (of the underlying normal)
type SpecificYield struct {
	Kind   YieldKind `json:"kind"`
	Value  float64   `json:"value,omitempty"`
	Mean   float64   `json:"mean,omitempty"`
	StdDev float64   `json:"stddev,omitempty"`
	Min    float64   `json:"min,omitempty"`
	Max    float64   `json:"max,omitempty"`
	Mode   float64   `json:"mode,omitempty"`
	Alpha  float64   `json:"alpha,omitempty"`
	Beta   float64   `json:"beta,omitempty"`
	Mu     float64   `json:"mu,omitempty"`
	Sigma  float64   `json:"sigma,omitempty"`
}

// FixedYield returns a fixed specific yield.
func FixedYield(v float64) SpecificYield {
	return SpecificYield{Kind: YieldFixed, Value: v}
}

// NormalYield returns a normally distributed specific yield.
func NormalYield(mean, stddev float64) SpecificYield {
	return SpecificYield{Kind: YieldNormal, Mean: mean, StdDev: stddev}
}

// UniformYield returns a specific yield uniform on [min, max].
func UniformYield(min, max float64) SpecificYield {
	return SpecificYield{Kind: YieldUniform, Min: min, Max: max}
}

// Validate checks the distribution parameters.
func (y SpecificYield) Validate() error {
	switch y.Kind {
	case YieldFixed:
		return validateSpecificYield(y.Value)
	case YieldNormal:
		if !(y.StdDev >= 0) {
			return &ParameterError{Name: "specific_yield.stddev", Value: y.StdDev, Bound: ">= 0"}
		}
	case YieldUniform:
		if !(y.Min < y.Max) {
			return &ParameterError{Name: "specific_yield.max", Value: y.Max, Bound: fmt.Sprintf("> min (%g)", y.Min)}
		}
	case YieldBeta:
		if !(y.Alpha > 0) {
			return &ParameterError{Name: "specific_yield.alpha", Value: y.Alpha, Bound: "> 0"}
		}
		if !(y.Beta > 0) {
			return &ParameterError{Name: "specific_yield.beta", Value: y.Beta, Bound: "> 0"}
		}
	case YieldTriangular:
		if !(y.Min < y.Max) {
			return &ParameterError{Name: "specific_yield.max", Value: y.Max, Bound: fmt.Sprintf("> min (%g)", y.Min)}
		}
		if y.Mode < y.Min || y.Mode > y.Max {
			return &ParameterError{Name: "specific_yield.mode", Value: y.Mode, Bound: fmt.Sprintf("in [%g, %g]", y.Min, y.Max)}
		}
	case YieldLogNormal:
		if !(y.Sigma >= 0) {
			return &ParameterError{Name: "specific_yield.sigma", Value: y.Sigma, Bound: ">= 0"}
		}
	default:
		return &ParameterError{Name: "specific_yield.type", Value: y.Kind, Bound: "one of fixed, normal, uniform, beta, triangular, lognormal"}
	}
	return nil
}

// Central returns the distribution mean, the value used for deterministic estimates.
func (y SpecificYield) Central() float64 {
	switch y.Kind {
	case YieldFixed:
		return y.Value
	case YieldNormal:
		return y.Mean
	case YieldUniform:
		return (y.Min + y.Max) / 2
	case YieldBeta:
		return y.Alpha / (y.Alpha + y.Beta)
	case YieldTriangular:
		return (y.Min + y.Mode + y.Max) / 3
	case YieldLogNormal:
		return math.Exp(y.Mu + y.Sigma*y.Sigma/2)
	default:
		return math.NaN()
	}
}

func (y SpecificYield) String() string {
	switch y.Kind {
	case YieldFixed:
		return fmt.Sprintf("fixed(%g)", y.Value)
	case YieldNormal:
		return fmt.Sprintf("normal(%g, %g)", y.Mean, y.StdDev)
	case YieldUniform:
		return fmt.Sprintf("uniform(%g, %g)", y.Min, y.Max)
	case YieldBeta:
		return fmt.Sprintf("beta(%g, %g)", y.Alpha, y.Beta)
	case YieldTriangular:
		return fmt.Sprintf("triangular(%g, %g, %g)", y.Min, y.Mode, y.Max)
	case YieldLogNormal:
		return fmt.Sprintf("lognormal(%g, %g)", y.Mu, y.Sigma)
	default:
		return string(y.Kind)
	}
}

// sampler returns a function drawing raw values from the distribution using rng.
func (y SpecificYield) sampler(rng *rand.Rand) func() float64 {
	switch y.Kind {
	case YieldNormal:
		if y.StdDev == 0 {
			return func() float64 { return y.Mean }
		}
		d := distuv.Normal{Mu: y.Mean, Sigma: y.StdDev, Src: rng}
		return d.Rand
	case YieldUniform:
		d := distuv.Uniform{Min: y.Min, Max: y.Max, Src: rng}
		return d.Rand
	case YieldBeta:
		d := distuv.Beta{Alpha: y.Alpha, Beta: y.Beta, Src: rng}
		return d.Rand
	case YieldTriangular:
		d := distuv.NewTriangle(y.Min, y.Max, y.Mode, rng)
		return d.Rand
	case YieldLogNormal:
		if y.Sigma == 0 {
			v := math.Exp(y.Mu)
			return func() float64 { return v }
		}
		d := distuv.LogNormal{Mu: y.Mu, Sigma: y.Sigma, Src: rng}
		return d.Rand
	default:
		return func() float64 { return y.Value }
	}
}

// Sample draws one specific yield in (0, 1), rejecting values outside it up to
// maxRetries times. draw identifies the draw in the returned error.
func (y SpecificYield) Sample(rng *rand.Rand, maxRetries, draw int) (float64, error) {
	next := y.sampler(rng)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		v := next()
		if v > 0 && v < 1 {
			return v, nil
		}
	}
	return 0, &DistributionSamplingError{Distribution: y.String(), Retries: maxRetries, Draw: draw}
}
