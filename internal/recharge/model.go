package recharge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Model runs the recharge pipeline over one series. It owns the derived artifacts
// (segmentation, recession model, events) and recomputes them lazily. A Model is not
// safe for concurrent use.
type Model struct {
	Name string

	series *TimeSeries
	cfg    Config
	logger *zap.SugaredLogger

	segmentation *Segmentation
	recession    *RecessionModel
	events       []RechargeEvent
}

// NewModel validates cfg and returns a model for ts. A nil logger disables logging.
func NewModel(name string, ts *TimeSeries, cfg Config, logger *zap.SugaredLogger) (*Model, error) {
	if ts == nil {
		return nil, &InsufficientDataError{Op: "new model", Need: 1, Have: 0, Reason: "nil series"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Model{Name: name, series: ts, cfg: cfg, logger: logger}, nil
}

// Series returns the model's series.
func (m *Model) Series() *TimeSeries { return m.series }

// Config returns the model's configuration.
func (m *Model) Config() Config { return m.cfg }

// Segment splits the series into rising and declining segments.
func (m *Model) Segment() (*Segmentation, error) {
	if m.segmentation != nil {
		return m.segmentation, nil
	}
	seg, err := NewSegmenter(m.cfg.Segmentation, m.logger).Segment(m.series)
	if err != nil {
		return nil, err
	}
	m.segmentation = seg
	return seg, nil
}

// FitRecession fits the master recession curve to the declining segments.
func (m *Model) FitRecession() (*RecessionModel, error) {
	if m.recession != nil {
		return m.recession, nil
	}
	seg, err := m.Segment()
	if err != nil {
		return nil, err
	}
	rm, err := FitRecession(m.series, seg.Declining(), m.cfg.Recession, m.logger)
	if err != nil {
		return nil, err
	}
	m.recession = rm
	m.events = nil
	return rm, nil
}

// SetRecession replaces the fitted recession model, for callers that fit elsewhere.
func (m *Model) SetRecession(rm RecessionModel) {
	m.recession = &rm
	m.events = nil
}

// Events returns the scored recharge events, fitting the recession curve if needed.
func (m *Model) Events() ([]RechargeEvent, error) {
	if m.events != nil {
		return m.events, nil
	}
	seg, err := m.Segment()
	if err != nil {
		return nil, err
	}
	rm, err := m.FitRecession()
	if err != nil {
		return nil, err
	}
	events := NewEventExtractor(m.cfg.Events, m.logger).Extract(seg.Segments, rm)
	if events == nil {
		events = []RechargeEvent{}
	}
	m.events = events
	return events, nil
}

// Estimate returns the deterministic recharge estimate for a fixed specific yield.
func (m *Model) Estimate(sy float64) (*RechargeEstimate, error) {
	if err := validateSpecificYield(sy); err != nil {
		return nil, err
	}
	events, err := m.Events()
	if err != nil {
		return nil, err
	}
	return NewEstimator(m.cfg.Estimate, m.logger).Estimate(events, sy, m.series.Start(), m.series.End())
}

// EstimateBounds returns estimates at sy and at sy scaled by 1-rel and 1+rel.
func (m *Model) EstimateBounds(sy, rel float64) (*Bounds, error) {
	if err := validateSpecificYield(sy); err != nil {
		return nil, err
	}
	events, err := m.Events()
	if err != nil {
		return nil, err
	}
	return NewEstimator(m.cfg.Estimate, m.logger).EstimateBounds(events, sy, rel, m.series.Start(), m.series.End())
}

// Uncertainty resamples specific yield, and the recession parameters when configured.
func (m *Model) Uncertainty(ctx context.Context, sy SpecificYield) (*UncertaintyResult, error) {
	if err := sy.Validate(); err != nil {
		return nil, err
	}
	events, err := m.Events()
	if err != nil {
		return nil, err
	}
	engine := NewUncertaintyEngine(m.cfg.Uncertainty, m.cfg.Estimate, m.logger)
	return engine.Run(ctx, events, sy, m.recession, m.series.Start(), m.series.End())
}

// Run executes the whole pipeline and assembles a Report. The deterministic estimate
// uses the distribution mean. Uncertainty runs when Draws > 0 and there is something to
// resample: a distributed sy, or the recession curve when IncludeRecession is set.
func (m *Model) Run(ctx context.Context, sy SpecificYield) (*Report, error) {
	if err := sy.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	est, err := m.Estimate(sy.Central())
	if err != nil {
		return nil, fmt.Errorf("estimate recharge: %w", err)
	}

	report := &Report{
		RunID:           uuid.NewString(),
		Name:            m.Name,
		Samples:         m.series.Len(),
		DroppedNaN:      m.series.DroppedNaN(),
		Segments:        m.segmentation.Segments,
		DroppedSegments: m.segmentation.Dropped,
		Recession:       *m.recession,
		Estimate:        est,
	}

	if m.cfg.Uncertainty.Draws > 0 && (sy.Kind != YieldFixed || m.cfg.Uncertainty.IncludeRecession) {
		report.Uncertainty, err = m.Uncertainty(ctx, sy)
		if err != nil {
			return nil, fmt.Errorf("propagate uncertainty: %w", err)
		}
	}

	m.logger.Infow("recharge estimated",
		"run_id", report.RunID,
		"model", m.Name,
		"samples", report.Samples,
		"events", len(est.Events),
		"total", est.Total,
		"elapsed", time.Since(started),
	)
	return report, nil
}
