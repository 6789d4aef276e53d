// Package loader reads water-level observations into a recharge.TimeSeries.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wtfrecharge/internal/recharge"
)

// Default column names looked up in the header row.
const (
	DefaultTimeColumn  = "timestamp"
	DefaultLevelColumn = "level"
)

// CSVOptions describe the layout of a CSV file. Empty fields take the defaults; an
// empty TimeFormat tries timestampFormats in order.
type CSVOptions struct {
	TimeColumn  string
	LevelColumn string
	TimeFormat  string
	Location    *time.Location
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSVFile loads path with ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*recharge.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ts, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// ReadCSV parses a header row followed by one observation per row. Blank, "NA" and
// "NaN" levels become NaN, which NewTimeSeries drops and counts.
func ReadCSV(r io.Reader, opts CSVOptions) (*recharge.TimeSeries, error) {
	if opts.TimeColumn == "" {
		opts.TimeColumn = DefaultTimeColumn
	}
	if opts.LevelColumn == "" {
		opts.LevelColumn = DefaultLevelColumn
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &recharge.InsufficientDataError{Op: "read csv", Need: 1, Have: 0, Reason: "empty file"}
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	timeIdx, levelIdx := -1, -1
	for i, h := range headers {
		switch strings.TrimSpace(h) {
		case opts.TimeColumn:
			timeIdx = i
		case opts.LevelColumn:
			levelIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("time column %q not found in header %v", opts.TimeColumn, headers)
	}
	if levelIdx < 0 {
		return nil, fmt.Errorf("level column %q not found in header %v", opts.LevelColumn, headers)
	}

	var samples []recharge.Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		t, err := parseTimestamp(record[timeIdx], opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		level, err := parseLevel(record[levelIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, recharge.Sample{Time: t, Level: level})
	}

	return recharge.NewTimeSeries(samples)
}

func parseTimestamp(value string, opts CSVOptions) (time.Time, error) {
	value = strings.TrimSpace(value)
	if opts.TimeFormat != "" {
		return time.ParseInLocation(opts.TimeFormat, value, opts.Location)
	}
	for _, format := range timestampFormats {
		if t, err := time.ParseInLocation(format, value, opts.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", value)
}

func parseLevel(value string) (float64, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "na", "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse level %q: %w", value, err)
	}
	return v, nil
}
