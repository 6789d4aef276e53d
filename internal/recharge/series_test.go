package recharge

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeSeries(t *testing.T) {
	tests := []struct {
		name        string
		samples     []Sample
		wantLen     int
		wantDropped int
		wantErr     error
	}{
		{
			name: "valid",
			samples: []Sample{
				{Time: day0, Level: 1},
				{Time: day0.Add(time.Hour), Level: 2},
			},
			wantLen: 2,
		},
		{
			name: "nan dropped",
			samples: []Sample{
				{Time: day0, Level: 1},
				{Time: day0.Add(time.Hour), Level: math.NaN()},
				{Time: day0.Add(2 * time.Hour), Level: 3},
			},
			wantLen:     2,
			wantDropped: 1,
		},
		{
			name:    "empty",
			wantErr: ErrInsufficientData,
		},
		{
			name:    "only nan",
			samples: []Sample{{Time: day0, Level: math.NaN()}},
			wantErr: ErrInsufficientData,
		},
		{
			name: "duplicate timestamp",
			samples: []Sample{
				{Time: day0, Level: 1},
				{Time: day0, Level: 2},
			},
			wantErr: ErrParameter,
		},
		{
			name: "decreasing timestamp",
			samples: []Sample{
				{Time: day0.Add(time.Hour), Level: 1},
				{Time: day0, Level: 2},
			},
			wantErr: ErrParameter,
		},
		{
			name:    "infinite level",
			samples: []Sample{{Time: day0, Level: math.Inf(1)}},
			wantErr: ErrParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := NewTimeSeries(tt.samples)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, ts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, ts.Len())
			assert.Equal(t, tt.wantDropped, ts.DroppedNaN())
		})
	}
}

func TestTimeSeriesIsImmutable(t *testing.T) {
	ts := dailySeries(t, 1, 2, 3)
	s := ts.Samples()
	s[0].Level = 100
	assert.Equal(t, 1.0, ts.At(0).Level)
}

func TestTimeSeriesWindow(t *testing.T) {
	ts := dailySeries(t, 1, 2, 3, 4, 5)

	w, err := ts.Window(day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 2.0, w.At(0).Level)
	assert.Equal(t, 5, ts.Len())

	open, err := ts.Window(time.Time{}, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, open.Len())

	_, err = ts.Window(day0.AddDate(1, 0, 0), time.Time{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}
