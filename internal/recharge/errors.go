package recharge

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. The structured types below wrap them.
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrParameter            = errors.New("invalid parameter")
	ErrDistributionSampling = errors.New("distribution sampling failed")
)

// InsufficientDataError is returned when there are not enough samples to segment a
// series or not enough declining segments to fit a recession model.
type InsufficientDataError struct {
	Op     string
	Need   int
	Have   int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: insufficient data: need %d, have %d (%s)", e.Op, e.Need, e.Have, e.Reason)
	}
	return fmt.Sprintf("%s: insufficient data: need %d, have %d", e.Op, e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// ParameterError reports an input value outside its valid domain.
type ParameterError struct {
	Name  string
	Value any
	Bound string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: must be %s", e.Name, e.Value, e.Bound)
}

func (e *ParameterError) Unwrap() error { return ErrParameter }

// DistributionSamplingError is returned when rejection sampling could not produce a
// specific yield inside (0, 1) within the retry cap.
type DistributionSamplingError struct {
	Distribution string
	Retries      int
	Draw         int
}

func (e *DistributionSamplingError) Error() string {
	return fmt.Sprintf("draw %d: %s produced no specific yield in (0, 1) after %d retries",
		e.Draw, e.Distribution, e.Retries)
}

func (e *DistributionSamplingError) Unwrap() error { return ErrDistributionSampling }
