package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/chrissnell/wtfrecharge/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type staticProvider struct {
	data *config.ConfigData
	err  error
}

func (p *staticProvider) LoadConfig() (*config.ConfigData, error) { return p.data, p.err }
func (p *staticProvider) GetInput() (*config.InputData, error)    { return &p.data.Input, p.err }
func (p *staticProvider) GetServer() (*config.ServerData, error)  { return &p.data.Server, p.err }
func (p *staticProvider) IsReadOnly() bool                        { return true }
func (p *staticProvider) Close() error                            { return nil }

// modelEstimator runs the engine directly with a fixed specific yield.
type modelEstimator struct{}

func (modelEstimator) Estimate(ctx context.Context, data *config.ConfigData, ts *recharge.TimeSeries) (*recharge.Report, error) {
	cfg, err := data.RechargeConfig()
	if err != nil {
		return nil, err
	}
	sy, err := data.SpecificYield.Yield()
	if err != nil {
		return nil, err
	}
	m, err := recharge.NewModel(data.Name, ts, cfg, nil)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, sy)
}

type failingEstimator struct{}

func (failingEstimator) Estimate(context.Context, *config.ConfigData, *recharge.TimeSeries) (*recharge.Report, error) {
	return nil, errors.New("disk on fire")
}

func newTestController(t *testing.T, est Estimator) *Controller {
	t.Helper()
	defaults := &config.ConfigData{
		Recession:     config.RecessionData{MinSegments: 1},
		SpecificYield: config.SpecificYieldData{Value: 0.2},
		Server:        config.ServerData{MaxBodyMB: 1},
	}
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, &staticProvider{data: defaults}, est, zap.NewNop().Sugar())
	require.NoError(t, err)
	return ctrl
}

func serve(ctrl *Controller, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	return rec
}

const workedExample = `{"name": "well-1", "samples": [
	{"time": "2020-01-01T00:00:00Z", "level": 10},
	{"time": "2020-01-02T00:00:00Z", "level": 9},
	{"time": "2020-01-02T12:00:00Z", "level": null},
	{"time": "2020-01-03T00:00:00Z", "level": 11.5}
]}`

func TestPostEstimate(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	rec := serve(ctrl, http.MethodPost, "/estimate", workedExample)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report recharge.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, report.RunID, rec.Header().Get("X-Run-Id"))
	assert.Equal(t, "well-1", report.Name)
	assert.Equal(t, 3, report.Samples)
	assert.Equal(t, 1, report.DroppedNaN)
	require.Len(t, report.Estimate.Events, 1)
	assert.InDelta(t, 3.5, report.Estimate.Events[0].ExcessRise, 1e-12)
	assert.InDelta(t, 0.70, report.Estimate.Total, 1e-12)
}

func TestPostEstimateMsgPack(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	rec := serve(ctrl, http.MethodPost, "/estimate?format=msgpack", workedExample)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	est, ok := got["estimate"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.70, est["total"], 1e-12)
}

func TestPostEstimateRequestConfig(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	body := `{"samples": [
		{"time": "2020-01-01T00:00:00Z", "level": 1},
		{"time": "2020-01-02T00:00:00Z", "level": 2},
		{"time": "2020-01-03T00:00:00Z", "level": 3}
	], "config": {"recession": {"kind": "none"}, "specific_yield": {"value": 0.1}}}`

	rec := serve(ctrl, http.MethodPost, "/estimate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report recharge.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, recharge.ModelNone, report.Recession.Kind)
	assert.InDelta(t, 0.2, report.Estimate.Total, 1e-12)
}

func TestPostEstimateErrors(t *testing.T) {
	tests := []struct {
		name       string
		est        Estimator
		body       string
		wantStatus int
		wantKind   string
		wantParam  string
	}{
		{
			name:       "malformed json",
			est:        modelEstimator{},
			body:       `{"samples": [`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "bad_request",
		},
		{
			name:       "unknown field",
			est:        modelEstimator{},
			body:       `{"levels": []}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "bad_request",
		},
		{
			name:       "no samples",
			est:        modelEstimator{},
			body:       `{"samples": []}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "insufficient_data",
		},
		{
			name: "duplicate timestamps",
			est:  modelEstimator{},
			body: `{"samples": [{"time": "2020-01-01T00:00:00Z", "level": 1},
				{"time": "2020-01-01T00:00:00Z", "level": 2}]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "parameter",
			wantParam:  "timestamp[1]",
		},
		{
			name: "specific yield out of range",
			est:  modelEstimator{},
			body: `{"samples": [{"time": "2020-01-01T00:00:00Z", "level": 10},
				{"time": "2020-01-02T00:00:00Z", "level": 9},
				{"time": "2020-01-03T00:00:00Z", "level": 11.5}],
				"config": {"recession": {"min_segments": 1}, "specific_yield": {"value": 1.5}}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "parameter",
			wantParam:  "specific_yield",
		},
		{
			name:       "engine failure",
			est:        failingEstimator{},
			body:       workedExample,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "internal",
		},
		{
			name:       "body too large",
			est:        modelEstimator{},
			body:       `{"name": "` + strings.Repeat("x", 2<<20) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   "request_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestController(t, tt.est), http.MethodPost, "/estimate", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantParam, resp.Parameter)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPostSegments(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	rec := serve(ctrl, http.MethodPost, "/segments", workedExample)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SegmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Samples)
	require.Len(t, resp.Segments, 2)
	assert.Equal(t, recharge.Declining, resp.Segments[0].Direction)
	assert.Equal(t, recharge.Rising, resp.Segments[1].Direction)
}

func TestGetHealthAndDefaults(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})

	rec := serve(ctrl, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)

	rec = serve(ctrl, http.MethodGet, "/config/defaults", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults config.ConfigData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defaults))
	assert.Equal(t, 0.2, defaults.SpecificYield.Value)

	rec = serve(ctrl, http.MethodGet, "/estimate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewControllerRejectsBadDefaults(t *testing.T) {
	bad := &config.ConfigData{Events: config.EventsData{Rule: "valleys"}}
	_, err := NewController(context.Background(), &sync.WaitGroup{}, &staticProvider{data: bad}, modelEstimator{}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, recharge.ErrParameter)

	_, err = NewController(context.Background(), &sync.WaitGroup{}, &staticProvider{err: errors.New("nope")}, modelEstimator{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestControllerDefaultsAddress(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	assert.Equal(t, "0.0.0.0:8080", ctrl.Server.Addr)
}

func TestMetrics(t *testing.T) {
	ctrl := newTestController(t, modelEstimator{})
	require.Equal(t, http.StatusOK, serve(ctrl, http.MethodPost, "/estimate", workedExample).Code)
	require.Equal(t, http.StatusUnprocessableEntity, serve(ctrl, http.MethodPost, "/estimate", `{"samples": []}`).Code)

	rec := serve(ctrl, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `wtf_http_requests_total{code="200",route="/estimate"} 1`)
	assert.Contains(t, body, `wtf_http_requests_total{code="422",route="/estimate"} 1`)
	assert.Contains(t, body, "wtf_estimate_events_count 1")
	assert.Contains(t, body, "go_goroutines")
}
