package recharge

import (
	"time"

	"go.uber.org/zap"
)

// RechargeEvent is a scored rise. ExcessRise = ObservedRise + PredictedDecline, where
// PredictedDecline is the drop the recession curve expects over the event's duration
// from StartLevel. Events with a non-positive excess rise are kept with Contributing
// set to false.
type RechargeEvent struct {
	Index            int       `json:"index"`
	Direction        Direction `json:"direction"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	StartLevel       float64   `json:"start_level"`
	EndLevel         float64   `json:"end_level"`
	ObservedRise     float64   `json:"observed_rise"`
	PredictedDecline float64   `json:"predicted_decline"`
	ExcessRise       float64   `json:"excess_rise"`
	Contributing     bool      `json:"contributing"`
}

// Duration returns the event's elapsed time.
func (e RechargeEvent) Duration() time.Duration { return e.EndTime.Sub(e.StartTime) }

// rescore returns a copy of e with its decline recomputed under model.
func (e RechargeEvent) rescore(model RecessionModel) RechargeEvent {
	e.PredictedDecline = model.PredictDeclineOver(e.StartLevel, e.Duration())
	e.ExcessRise = e.ObservedRise + e.PredictedDecline
	e.Contributing = e.ExcessRise > 0
	return e
}

// EventExtractor qualifies segments as recharge events and scores them against a
// recession model.
type EventExtractor struct {
	cfg    EventConfig
	logger *zap.SugaredLogger
}

// NewEventExtractor creates an extractor. A nil logger disables logging.
func NewEventExtractor(cfg EventConfig, logger *zap.SugaredLogger) *EventExtractor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &EventExtractor{cfg: cfg, logger: logger}
}

// Extract walks segments in order and returns the qualifying events. segments must be
// the full, ordered output of a Segmenter so the peaks rule can see every local maximum.
// A nil model scores events without a recession correction.
func (x *EventExtractor) Extract(segments []Segment, model *RecessionModel) []RechargeEvent {
	m := RecessionModel{Kind: ModelNone}
	if model != nil {
		m = *model
	}

	var events []RechargeEvent
	havePeak := false
	var prevPeak float64
	if len(segments) > 0 && segments[0].Direction == Declining {
		// A series that opens by falling starts from a maximum.
		havePeak, prevPeak = true, segments[0].StartLevel
	}

	nonContributing := 0
	for _, seg := range segments {
		ok := x.qualifies(seg, havePeak, prevPeak)
		if seg.Direction == Rising {
			havePeak, prevPeak = true, seg.EndLevel
		}
		if !ok {
			continue
		}

		ev := RechargeEvent{
			Index:        len(events),
			Direction:    seg.Direction,
			StartTime:    seg.StartTime,
			EndTime:      seg.EndTime,
			StartLevel:   seg.StartLevel,
			EndLevel:     seg.EndLevel,
			ObservedRise: seg.NetChange(),
		}.rescore(m)
		if !ev.Contributing {
			nonContributing++
		}
		events = append(events, ev)
	}

	x.logger.Debugf("extracted %d events with rule %s (%d non-contributing)", len(events), x.cfg.Rule, nonContributing)
	if nonContributing > 0 {
		x.logger.Warnf("%d events have non-positive excess rise", nonContributing)
	}
	return events
}

func (x *EventExtractor) qualifies(seg Segment, havePeak bool, prevPeak float64) bool {
	switch x.cfg.Rule {
	case RuleBoth:
		return true
	case RulePeaks:
		if seg.Direction != Rising {
			return false
		}
		if !havePeak {
			return seg.NetChange() >= x.cfg.MinRise
		}
		return seg.EndLevel > prevPeak && seg.EndLevel-prevPeak >= x.cfg.MinRise
	default:
		return seg.Direction == Rising && seg.NetChange() >= x.cfg.MinRise
	}
}
