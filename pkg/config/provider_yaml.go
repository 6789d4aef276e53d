package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, err
	}
	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document into ConfigData.
func ParseYAML(doc []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(doc, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	c := &ConfigData{
		Name: yamlConfig.Name,
		Input: InputData{
			Path:        yamlConfig.Input.Path,
			TimeColumn:  yamlConfig.Input.TimeColumn,
			LevelColumn: yamlConfig.Input.LevelColumn,
			TimeFormat:  yamlConfig.Input.TimeFormat,
		},
		Segmentation: SegmentationData{
			MinSamples:  yamlConfig.Segmentation.MinSamples,
			MinDuration: yamlConfig.Segmentation.MinDuration,
		},
		Recession: RecessionData{
			Kind:        yamlConfig.Recession.Kind,
			Pooling:     yamlConfig.Recession.Pooling,
			MinSegments: yamlConfig.Recession.MinSegments,
			BaseLevel:   yamlConfig.Recession.BaseLevel,
			TimeUnit:    yamlConfig.Recession.TimeUnit,
			FitStart:    yamlConfig.Recession.FitStart,
			FitEnd:      yamlConfig.Recession.FitEnd,
		},
		Events: EventsData{
			Rule:    yamlConfig.Events.Rule,
			MinRise: yamlConfig.Events.MinRise,
		},
		Estimate: EstimateData{
			Period:              yamlConfig.Estimate.Period,
			NonContributing:     yamlConfig.Estimate.NonContributing,
			RelativeUncertainty: yamlConfig.Estimate.RelativeUncertainty,
		},
		Uncertainty: UncertaintyData{
			Draws:            yamlConfig.Uncertainty.Draws,
			Percentiles:      yamlConfig.Uncertainty.Percentiles,
			MaxRetries:       yamlConfig.Uncertainty.MaxRetries,
			Workers:          yamlConfig.Uncertainty.Workers,
			Seed:             yamlConfig.Uncertainty.Seed,
			IncludeRecession: yamlConfig.Uncertainty.IncludeRecession,
			Disabled:         yamlConfig.Uncertainty.Disabled,
		},
		SpecificYield: SpecificYieldData(yamlConfig.SpecificYield),
		Server: ServerData{
			ListenAddr: yamlConfig.Server.ListenAddr,
			Port:       yamlConfig.Server.Port,
			MaxBodyMB:  yamlConfig.Server.MaxBodyMB,
		},
	}
	return c, nil
}

// GetInput returns the input section
func (y *YAMLProvider) GetInput() (*InputData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Input, nil
}

// GetServer returns the REST server section
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Server, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs for unmarshaling

type ConfigYAML struct {
	Name          string            `yaml:"name,omitempty"`
	Input         InputYAML         `yaml:"input,omitempty"`
	Segmentation  SegmentationYAML  `yaml:"segmentation,omitempty"`
	Recession     RecessionYAML     `yaml:"recession,omitempty"`
	Events        EventsYAML        `yaml:"events,omitempty"`
	Estimate      EstimateYAML      `yaml:"estimate,omitempty"`
	Uncertainty   UncertaintyYAML   `yaml:"uncertainty,omitempty"`
	SpecificYield SpecificYieldYAML `yaml:"specific-yield"`
	Server        ServerYAML        `yaml:"server,omitempty"`
}

type InputYAML struct {
	Path        string `yaml:"path,omitempty"`
	TimeColumn  string `yaml:"time-column,omitempty"`
	LevelColumn string `yaml:"level-column,omitempty"`
	TimeFormat  string `yaml:"time-format,omitempty"`
}

type SegmentationYAML struct {
	MinSamples  int    `yaml:"min-samples,omitempty"`
	MinDuration string `yaml:"min-duration,omitempty"`
}

type RecessionYAML struct {
	Kind        string  `yaml:"kind,omitempty"`
	Pooling     string  `yaml:"pooling,omitempty"`
	MinSegments int     `yaml:"min-segments,omitempty"`
	BaseLevel   float64 `yaml:"base-level,omitempty"`
	TimeUnit    string  `yaml:"time-unit,omitempty"`
	FitStart    string  `yaml:"fit-start,omitempty"`
	FitEnd      string  `yaml:"fit-end,omitempty"`
}

type EventsYAML struct {
	Rule    string  `yaml:"rule,omitempty"`
	MinRise float64 `yaml:"min-rise,omitempty"`
}

type EstimateYAML struct {
	Period              string  `yaml:"period,omitempty"`
	NonContributing     string  `yaml:"non-contributing,omitempty"`
	RelativeUncertainty float64 `yaml:"relative-uncertainty,omitempty"`
}

type UncertaintyYAML struct {
	Draws            int       `yaml:"draws,omitempty"`
	Percentiles      []float64 `yaml:"percentiles,omitempty"`
	MaxRetries       int       `yaml:"max-retries,omitempty"`
	Workers          int       `yaml:"workers,omitempty"`
	Seed             uint64    `yaml:"seed,omitempty"`
	IncludeRecession bool      `yaml:"include-recession,omitempty"`
	Disabled         bool      `yaml:"disabled,omitempty"`
}

type SpecificYieldYAML struct {
	Type   string  `yaml:"type,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
	Mean   float64 `yaml:"mean,omitempty"`
	StdDev float64 `yaml:"stddev,omitempty"`
	Min    float64 `yaml:"min,omitempty"`
	Max    float64 `yaml:"max,omitempty"`
	Mode   float64 `yaml:"mode,omitempty"`
	Alpha  float64 `yaml:"alpha,omitempty"`
	Beta   float64 `yaml:"beta,omitempty"`
	Mu     float64 `yaml:"mu,omitempty"`
	Sigma  float64 `yaml:"sigma,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	MaxBodyMB  int    `yaml:"max-body-mb,omitempty"`
}
