package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/wtfrecharge/internal/recharge"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetInput() (*InputData, error)
	GetServer() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData is the complete configuration of one recharge run. Zero values mean "use
// the engine default". Durations are Go duration strings ("24h") and dates are RFC3339
// or 2006-01-02.
type ConfigData struct {
	Name          string            `json:"name,omitempty"`
	Input         InputData         `json:"input,omitempty"`
	Segmentation  SegmentationData  `json:"segmentation,omitempty"`
	Recession     RecessionData     `json:"recession,omitempty"`
	Events        EventsData        `json:"events,omitempty"`
	Estimate      EstimateData      `json:"estimate,omitempty"`
	Uncertainty   UncertaintyData   `json:"uncertainty,omitempty"`
	SpecificYield SpecificYieldData `json:"specific_yield"`
	Server        ServerData        `json:"server,omitempty"`
}

// InputData locates the water-level CSV.
type InputData struct {
	Path        string `json:"path,omitempty"`
	TimeColumn  string `json:"time_column,omitempty"`
	LevelColumn string `json:"level_column,omitempty"`
	TimeFormat  string `json:"time_format,omitempty"`
}

type SegmentationData struct {
	MinSamples  int    `json:"min_samples,omitempty"`
	MinDuration string `json:"min_duration,omitempty"`
}

type RecessionData struct {
	Kind        string  `json:"kind,omitempty"`
	Pooling     string  `json:"pooling,omitempty"`
	MinSegments int     `json:"min_segments,omitempty"`
	BaseLevel   float64 `json:"base_level,omitempty"`
	TimeUnit    string  `json:"time_unit,omitempty"`
	FitStart    string  `json:"fit_start,omitempty"`
	FitEnd      string  `json:"fit_end,omitempty"`
}

type EventsData struct {
	Rule    string  `json:"rule,omitempty"`
	MinRise float64 `json:"min_rise,omitempty"`
}

type EstimateData struct {
	Period              string  `json:"period,omitempty"`
	NonContributing     string  `json:"non_contributing,omitempty"`
	RelativeUncertainty float64 `json:"relative_uncertainty,omitempty"`
}

type UncertaintyData struct {
	Draws            int       `json:"draws,omitempty"`
	Percentiles      []float64 `json:"percentiles,omitempty"`
	MaxRetries       int       `json:"max_retries,omitempty"`
	Workers          int       `json:"workers,omitempty"`
	Seed             uint64    `json:"seed,omitempty"`
	IncludeRecession bool      `json:"include_recession,omitempty"`
	Disabled         bool      `json:"disabled,omitempty"`
}

// SpecificYieldData is a fixed value or a distribution. Type defaults to fixed.
type SpecificYieldData struct {
	Type   string  `json:"type,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	StdDev float64 `json:"stddev,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mode   float64 `json:"mode,omitempty"`
	Alpha  float64 `json:"alpha,omitempty"`
	Beta   float64 `json:"beta,omitempty"`
	Mu     float64 `json:"mu,omitempty"`
	Sigma  float64 `json:"sigma,omitempty"`
}

// ServerData configures the REST front-end.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	MaxBodyMB  int    `json:"max_body_mb,omitempty"`
}

// RechargeConfig overlays the set fields of c onto recharge.DefaultConfig and validates
// the result.
func (c *ConfigData) RechargeConfig() (recharge.Config, error) {
	cfg := recharge.DefaultConfig()
	var err error

	if c.Segmentation.MinSamples != 0 {
		cfg.Segmentation.MinSamples = c.Segmentation.MinSamples
	}
	if cfg.Segmentation.MinDuration, err = parseDuration("segmentation.min_duration", c.Segmentation.MinDuration, 0); err != nil {
		return cfg, err
	}

	r := c.Recession
	if r.Kind != "" {
		cfg.Recession.Kind = recharge.ModelKind(r.Kind)
	}
	if r.Pooling != "" {
		cfg.Recession.Pooling = recharge.PoolingMode(r.Pooling)
	}
	if r.MinSegments != 0 {
		cfg.Recession.MinSegments = r.MinSegments
	}
	cfg.Recession.BaseLevel = r.BaseLevel
	if cfg.Recession.TimeUnit, err = parseDuration("recession.time_unit", r.TimeUnit, cfg.Recession.TimeUnit); err != nil {
		return cfg, err
	}
	if cfg.Recession.FitStart, err = parseDate("recession.fit_start", r.FitStart); err != nil {
		return cfg, err
	}
	if cfg.Recession.FitEnd, err = parseDate("recession.fit_end", r.FitEnd); err != nil {
		return cfg, err
	}

	if c.Events.Rule != "" {
		cfg.Events.Rule = recharge.RiseRule(c.Events.Rule)
	}
	cfg.Events.MinRise = c.Events.MinRise

	if c.Estimate.Period != "" {
		cfg.Estimate.Period = recharge.Period(c.Estimate.Period)
	}
	if c.Estimate.NonContributing != "" {
		cfg.Estimate.NonContributing = recharge.NonContributingPolicy(c.Estimate.NonContributing)
	}

	u := c.Uncertainty
	if u.Draws != 0 {
		cfg.Uncertainty.Draws = u.Draws
	}
	if u.Disabled {
		cfg.Uncertainty.Draws = 0
	}
	switch len(u.Percentiles) {
	case 0:
	case 2:
		cfg.Uncertainty.Percentiles = [2]float64{u.Percentiles[0], u.Percentiles[1]}
	default:
		return cfg, &recharge.ParameterError{Name: "uncertainty.percentiles", Value: u.Percentiles, Bound: "exactly two values"}
	}
	if u.MaxRetries != 0 {
		cfg.Uncertainty.MaxRetries = u.MaxRetries
	}
	if u.Workers != 0 {
		cfg.Uncertainty.Workers = u.Workers
	}
	if u.Seed != 0 {
		cfg.Uncertainty.Seed = u.Seed
	}
	cfg.Uncertainty.IncludeRecession = u.IncludeRecession

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Yield converts the specific-yield block and validates it.
func (s SpecificYieldData) Yield() (recharge.SpecificYield, error) {
	kind := recharge.YieldKind(s.Type)
	if kind == "" {
		kind = recharge.YieldFixed
	}
	y := recharge.SpecificYield{
		Kind:   kind,
		Value:  s.Value,
		Mean:   s.Mean,
		StdDev: s.StdDev,
		Min:    s.Min,
		Max:    s.Max,
		Mode:   s.Mode,
		Alpha:  s.Alpha,
		Beta:   s.Beta,
		Mu:     s.Mu,
		Sigma:  s.Sigma,
	}
	if err := y.Validate(); err != nil {
		return y, err
	}
	return y, nil
}

func parseDuration(name, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &recharge.ParameterError{Name: name, Value: s, Bound: "a duration such as 24h"}
	}
	return d, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &recharge.ParameterError{Name: name, Value: s, Bound: fmt.Sprintf("a date in one of %q", dateLayouts)}
}
