package recharge

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Direction labels a segment as rising or declining.
type Direction string

const (
	Rising    Direction = "rising"
	Declining Direction = "declining"
)

// Segment is a contiguous run of samples moving in one direction. StartIndex and
// EndIndex are inclusive; adjacent segments share their boundary sample, so segments
// tile the steps between samples without overlapping.
type Segment struct {
	Direction  Direction `json:"direction"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	StartLevel float64   `json:"start_level"`
	EndLevel   float64   `json:"end_level"`
	MinLevel   float64   `json:"min_level"`
	MaxLevel   float64   `json:"max_level"`
}

// Samples returns the number of samples in the segment, boundaries included.
func (s Segment) Samples() int { return s.EndIndex - s.StartIndex + 1 }

// Steps returns the number of sample-to-sample steps in the segment.
func (s Segment) Steps() int { return s.EndIndex - s.StartIndex }

// Duration returns the elapsed time from the first to the last sample.
func (s Segment) Duration() time.Duration { return s.EndTime.Sub(s.StartTime) }

// NetChange returns EndLevel - StartLevel.
func (s Segment) NetChange() float64 { return s.EndLevel - s.StartLevel }

// Segmentation is the result of splitting a series. Dropped holds short boundary
// segments that could not be merged; RawCount is the number of segments before merging.
type Segmentation struct {
	Segments []Segment `json:"segments"`
	Dropped  []Segment `json:"dropped,omitempty"`
	RawCount int       `json:"raw_count"`
}

// Rising returns the rising segments in order.
func (s *Segmentation) Rising() []Segment { return s.filter(Rising) }

// Declining returns the declining segments in order.
func (s *Segmentation) Declining() []Segment { return s.filter(Declining) }

func (s *Segmentation) filter(d Direction) []Segment {
	var out []Segment
	for _, seg := range s.Segments {
		if seg.Direction == d {
			out = append(out, seg)
		}
	}
	return out
}

// Segmenter splits a series at local extrema into rising and declining segments.
type Segmenter struct {
	cfg    SegmentationConfig
	logger *zap.SugaredLogger
}

// NewSegmenter creates a segmenter. A nil logger disables logging.
func NewSegmenter(cfg SegmentationConfig, logger *zap.SugaredLogger) *Segmenter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Segmenter{cfg: cfg, logger: logger}
}

// Segment splits ts. Equal consecutive levels continue the current direction. Short
// interior segments are absorbed into their neighbours (see absorb); short segments at
// either end of the series are dropped and reported. Every returned segment's net change
// agrees with its direction.
func (sg *Segmenter) Segment(ts *TimeSeries) (*Segmentation, error) {
	n := ts.Len()
	if n < 2 {
		return nil, &InsufficientDataError{Op: "segment", Need: 2, Have: n, Reason: "samples"}
	}

	dirs, ok := stepDirections(ts)
	if !ok {
		return nil, &InsufficientDataError{Op: "segment", Need: 1, Have: 0, Reason: "level never changes"}
	}

	// Collapse runs of equal step direction into raw segments.
	var segs []Segment
	start := 0
	for i := 1; i <= len(dirs); i++ {
		if i == len(dirs) || dirs[i] != dirs[start] {
			segs = append(segs, newSegment(ts, dirs[start], start, i))
			start = i
		}
	}
	result := &Segmentation{RawCount: len(segs)}

	for len(segs) > 1 {
		idx := sg.shortest(segs)
		if idx < 0 {
			break
		}
		if idx == 0 || idx == len(segs)-1 {
			result.Dropped = append(result.Dropped, segs[idx])
			segs = append(segs[:idx:idx], segs[idx+1:]...)
			continue
		}
		segs = sg.absorb(ts, segs, idx)
	}

	result.Segments = segs
	sg.logger.Debugf("segmented %d samples into %d segments (%d raw, %d dropped)",
		n, len(segs), result.RawCount, len(result.Dropped))
	return result, nil
}

// absorb merges the short interior segment segs[idx] into its neighbours. Normally the
// segment and both neighbours become one segment of the neighbours' direction. When the
// short move outweighs both neighbours together, that would mislabel the result, so the
// short segment instead swallows the neighbour with the smaller net change and joins the
// same-direction segment beyond it.
func (sg *Segmenter) absorb(ts *TimeSeries, segs []Segment, idx int) []Segment {
	prev, short, next := segs[idx-1], segs[idx], segs[idx+1]

	lo, hi := idx-1, idx+1
	dir := prev.Direction
	if merged := newSegment(ts, dir, segs[lo].StartIndex, segs[hi].EndIndex); !agrees(merged) {
		dir = short.Direction
		if math.Abs(next.NetChange()) < math.Abs(prev.NetChange()) {
			lo = idx
			if hi+1 < len(segs) {
				hi++
			}
		} else {
			hi = idx
			if lo > 0 {
				lo--
			}
		}
		sg.logger.Debugf("short %s segment at %s outweighs its neighbours; relabelled merge as %s",
			short.Direction, short.StartTime.Format(time.RFC3339), dir)
	}

	merged := newSegment(ts, dir, segs[lo].StartIndex, segs[hi].EndIndex)
	return append(segs[:lo:lo], append([]Segment{merged}, segs[hi+1:]...)...)
}

// agrees reports whether the segment's net change has the sign of its direction.
func agrees(s Segment) bool {
	if s.Direction == Rising {
		return s.NetChange() > 0
	}
	return s.NetChange() < 0
}

// shortest returns the index of the shortest segment below the minimum length, or -1.
// Ties go to the leftmost segment.
func (sg *Segmenter) shortest(segs []Segment) int {
	idx := -1
	for i, s := range segs {
		if !sg.isShort(s) {
			continue
		}
		if idx < 0 || s.Samples() < segs[idx].Samples() ||
			(s.Samples() == segs[idx].Samples() && s.Duration() < segs[idx].Duration()) {
			idx = i
		}
	}
	return idx
}

func (sg *Segmenter) isShort(s Segment) bool {
	if s.Samples() < sg.cfg.MinSamples {
		return true
	}
	return sg.cfg.MinDuration > 0 && s.Duration() < sg.cfg.MinDuration
}

// stepDirections labels every step between samples. Flat steps inherit the previous
// direction; leading flat steps take the first non-flat direction. ok is false when the
// level never changes.
func stepDirections(ts *TimeSeries) ([]Direction, bool) {
	dirs := make([]Direction, ts.Len()-1)
	var first Direction
	for i := range dirs {
		dh := ts.At(i+1).Level - ts.At(i).Level
		switch {
		case dh > 0:
			dirs[i] = Rising
		case dh < 0:
			dirs[i] = Declining
		}
		if first == "" && dirs[i] != "" {
			first = dirs[i]
		}
	}
	if first == "" {
		return nil, false
	}

	current := first
	for i := range dirs {
		if dirs[i] == "" {
			dirs[i] = current
		}
		current = dirs[i]
	}
	return dirs, true
}

func newSegment(ts *TimeSeries, dir Direction, startIdx, endIdx int) Segment {
	seg := Segment{
		Direction:  dir,
		StartIndex: startIdx,
		EndIndex:   endIdx,
		StartTime:  ts.At(startIdx).Time,
		EndTime:    ts.At(endIdx).Time,
		StartLevel: ts.At(startIdx).Level,
		EndLevel:   ts.At(endIdx).Level,
		MinLevel:   ts.At(startIdx).Level,
		MaxLevel:   ts.At(startIdx).Level,
	}
	for i := startIdx + 1; i <= endIdx; i++ {
		l := ts.At(i).Level
		if l < seg.MinLevel {
			seg.MinLevel = l
		}
		if l > seg.MaxLevel {
			seg.MaxLevel = l
		}
	}
	return seg
}
