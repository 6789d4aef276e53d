package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		opts        CSVOptions
		wantLevels  []float64
		wantFirst   time.Time
		wantDropped int
	}{
		{
			name:       "dates",
			input:      "timestamp,level\n2020-01-01,10\n2020-01-02,9\n2020-01-03,11.5\n",
			wantLevels: []float64{10, 9, 11.5},
			wantFirst:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "rfc3339 with extra columns and comments",
			input:      "# well 17\nsite,timestamp,level,qc\nA,2020-03-01T06:00:00Z,4.2,ok\nA,2020-03-01T12:00:00Z,4.1,ok\n",
			wantLevels: []float64{4.2, 4.1},
			wantFirst:  time.Date(2020, 3, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			name:        "missing levels dropped",
			input:       "timestamp,level\n2020-01-01 00:00:00,1\n2020-01-01 01:00:00,\n2020-01-01 02:00:00,NaN\n2020-01-01 03:00:00,2\n",
			wantLevels:  []float64{1, 2},
			wantFirst:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantDropped: 2,
		},
		{
			name:       "custom columns and layout",
			input:      "date,head_m\n01/02/2021,3\n02/02/2021,3.5\n",
			opts:       CSVOptions{TimeColumn: "date", LevelColumn: "head_m", TimeFormat: "02/01/2006"},
			wantLevels: []float64{3, 3.5},
			wantFirst:  time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ReadCSV(strings.NewReader(tt.input), tt.opts)
			require.NoError(t, err)

			var levels []float64
			for _, s := range ts.Samples() {
				levels = append(levels, s.Level)
			}
			assert.Equal(t, tt.wantLevels, levels)
			assert.Equal(t, tt.wantFirst, ts.Start())
			assert.Equal(t, tt.wantDropped, ts.DroppedNaN())
		})
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error  // checked with errors.Is when set
		wantMsg string // substring otherwise
	}{
		{name: "empty", input: "", wantErr: recharge.ErrInsufficientData},
		{name: "header only", input: "timestamp,level\n", wantErr: recharge.ErrInsufficientData},
		{name: "no level column", input: "timestamp,depth\n2020-01-01,1\n", wantMsg: `level column "level" not found`},
		{name: "bad timestamp", input: "timestamp,level\n2020-01-01,1\nyesterday,2\n", wantMsg: "line 3"},
		{name: "bad level", input: "timestamp,level\n2020-01-01,deep\n", wantMsg: `unable to parse level "deep"`},
		{name: "out of order", input: "timestamp,level\n2020-01-02,1\n2020-01-01,2\n", wantErr: recharge.ErrParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), CSVOptions{})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,level\n2020-01-01,10\n2020-01-02,9\n"), 0o600))

	ts, err := ReadCSVFile(path, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, ts.Len())

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"), CSVOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
