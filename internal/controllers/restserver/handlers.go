package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chrissnell/wtfrecharge/internal/constants"
	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/chrissnell/wtfrecharge/pkg/config"
	"github.com/chrissnell/wtfrecharge/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(false),
	}
}

// GetHealth reports liveness and the server version
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, HealthResponse{Status: "ok", Version: constants.Version}, nil)
}

// GetDefaults returns the configuration applied to requests without their own
func (h *Handlers) GetDefaults(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, h.controller.defaults, nil)
}

// PostEstimate runs the full recharge pipeline over the posted samples
func (h *Handlers) PostEstimate(w http.ResponseWriter, req *http.Request) {
	body, ts, data, ok := h.decode(w, req)
	if !ok {
		return
	}

	report, err := h.controller.estimator.Estimate(req.Context(), data, ts)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	h.controller.metrics.recharge.Observe(report.Estimate.Total)
	h.controller.metrics.events.Observe(float64(len(report.Estimate.Events)))
	h.controller.logger.Debugf("estimate %s for %q: %d samples, total %.6g",
		report.RunID, body.Name, report.Samples, report.Estimate.Total)
	h.write(w, req, http.StatusOK, report, map[string]string{"X-Run-Id": report.RunID})
}

// PostSegments returns the segmentation of the posted samples without fitting a model
func (h *Handlers) PostSegments(w http.ResponseWriter, req *http.Request) {
	_, ts, data, ok := h.decode(w, req)
	if !ok {
		return
	}

	cfg, err := data.RechargeConfig()
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	seg, err := recharge.NewSegmenter(cfg.Segmentation, h.controller.logger).Segment(ts)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	h.write(w, req, http.StatusOK, SegmentsResponse{
		Samples:  ts.Len(),
		Segments: seg.Segments,
		Dropped:  seg.Dropped,
		RawCount: seg.RawCount,
	}, nil)
}

// decode parses the request body, builds the series and picks the configuration. It
// writes the error response itself and reports false on failure.
func (h *Handlers) decode(w http.ResponseWriter, req *http.Request) (*EstimateRequest, *recharge.TimeSeries, *config.ConfigData, bool) {
	var body EstimateRequest
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.write(w, req, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Kind:  "request_too_large",
			}, nil)
			return nil, nil, nil, false
		}
		h.write(w, req, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Kind: "bad_request"}, nil)
		return nil, nil, nil, false
	}

	ts, err := recharge.NewTimeSeries(body.series())
	if err != nil {
		h.writeError(w, req, err)
		return nil, nil, nil, false
	}

	data := body.Config
	if data == nil {
		defaults := *h.controller.defaults
		data = &defaults
	}
	if body.Name != "" {
		named := *data
		named.Name = body.Name
		data = &named
	}
	return &body, ts, data, true
}

// writeError maps engine errors onto HTTP status codes
func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var perr *recharge.ParameterError
	var serr *recharge.DistributionSamplingError
	switch {
	case errors.As(err, &perr):
		status = http.StatusBadRequest
		resp.Kind = "parameter"
		resp.Parameter = perr.Name
	case errors.Is(err, recharge.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
		resp.Kind = "insufficient_data"
	case errors.As(err, &serr):
		status = http.StatusUnprocessableEntity
		resp.Kind = "distribution_sampling"
	case req.Context().Err() != nil:
		// Client went away; nobody reads the response.
		h.controller.logger.Debugf("request cancelled: %v", err)
		return
	default:
		h.controller.logger.Errorf("estimate failed: %v", err)
		resp.Kind = "internal"
	}
	h.write(w, req, status, resp, nil)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) {
	if err := h.formatter.WriteResponse(w, req, status, data, headers); err != nil {
		h.controller.logger.Errorf("error encoding response: %v", err)
	}
}
