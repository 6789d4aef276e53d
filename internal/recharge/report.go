package recharge

// Report is the complete output of one Model.Run.
type Report struct {
	RunID           string             `json:"run_id"`
	Name            string             `json:"name,omitempty"`
	Samples         int                `json:"samples"`
	DroppedNaN      int                `json:"dropped_nan,omitempty"`
	Segments        []Segment          `json:"segments"`
	DroppedSegments []Segment          `json:"dropped_segments,omitempty"`
	Recession       RecessionModel     `json:"recession"`
	Estimate        *RechargeEstimate  `json:"estimate"`
	Bounds          *Bounds            `json:"bounds,omitempty"`
	Uncertainty     *UncertaintyResult `json:"uncertainty,omitempty"`
}

// ContributingEvents returns the number of events with a positive excess rise.
func (r *Report) ContributingEvents() int {
	n := 0
	for _, ev := range r.Estimate.Events {
		if ev.Contributing {
			n++
		}
	}
	return n
}
