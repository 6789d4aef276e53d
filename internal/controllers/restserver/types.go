package restserver

import (
	"math"
	"time"

	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/chrissnell/wtfrecharge/pkg/config"
)

// EstimateRequest is the body of POST /estimate and POST /segments. Config replaces
// the server's default configuration when present.
type EstimateRequest struct {
	Name    string             `json:"name,omitempty"`
	Samples []SampleJSON       `json:"samples"`
	Config  *config.ConfigData `json:"config,omitempty"`
}

// SampleJSON is one observation. A null level is a missing measurement.
type SampleJSON struct {
	Time  time.Time `json:"time"`
	Level *float64  `json:"level"`
}

func (r *EstimateRequest) series() []recharge.Sample {
	samples := make([]recharge.Sample, len(r.Samples))
	for i, s := range r.Samples {
		level := math.NaN()
		if s.Level != nil {
			level = *s.Level
		}
		samples[i] = recharge.Sample{Time: s.Time, Level: level}
	}
	return samples
}

// SegmentsResponse is the body returned by POST /segments.
type SegmentsResponse struct {
	Samples  int                `json:"samples"`
	Segments []recharge.Segment `json:"segments"`
	Dropped  []recharge.Segment `json:"dropped,omitempty"`
	RawCount int                `json:"raw_count"`
}

// HealthResponse is the body returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Parameter string `json:"parameter,omitempty"`
}
