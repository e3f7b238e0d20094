// Package replay feeds recorded sensor readings through an alert detector,
// the way bench tests exercise the on-device engine with captured data.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoReadings is returned when a recording holds no data rows.
	ErrNoReadings = errors.New("no readings")
	// ErrMalformedRow is returned for rows that cannot be parsed.
	ErrMalformedRow = errors.New("malformed row")
)

// Reading is one recorded sample.
type Reading struct {
	THours      float64 `json:"t_hours"`
	PH          float64 `json:"ph"`
	Temperature float64 `json:"temp"`
}

// Accepted header names per column, compared case-insensitively.
var (
	timeColumns = []string{"time_hours", "t_hours", "t", "hours"}
	phColumns   = []string{"ph"}
	tempColumns = []string{"temp", "temperature", "temp_c"}
)

type columns struct{ t, ph, temp int }

var positional = columns{t: 0, ph: 1, temp: 2}

// LoadCSV reads time,pH,temperature rows. A header row is optional; when
// present, columns are located by name so wider files such as simulation
// traces load too. Lines starting with # are ignored. Errors carry the
// 1-based line number of the offending row.
func LoadCSV(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	cols := positional
	var out []Reading
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64); err != nil {
				cols, err = headerColumns(rec)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				continue
			}
		}

		rd, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rd)
	}
	if len(out) == 0 {
		return nil, ErrNoReadings
	}
	return out, nil
}

func headerColumns(header []string) (columns, error) {
	find := func(names []string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, n := range names {
				if h == n {
					return i
				}
			}
		}
		return -1
	}
	c := columns{t: find(timeColumns), ph: find(phColumns), temp: find(tempColumns)}
	if c.t < 0 || c.ph < 0 || c.temp < 0 {
		return columns{}, fmt.Errorf("%w: header %q needs time, pH and temperature columns", ErrMalformedRow, strings.Join(header, ","))
	}
	return c, nil
}

func parseRow(rec []string, c columns) (Reading, error) {
	field := func(i int, name string) (float64, error) {
		if i >= len(rec) {
			return 0, fmt.Errorf("%w: missing %s", ErrMalformedRow, name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q", ErrMalformedRow, name, rec[i])
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s is not finite", ErrMalformedRow, name)
		}
		return v, nil
	}

	var rd Reading
	var err error
	if rd.THours, err = field(c.t, "time_hours"); err != nil {
		return Reading{}, err
	}
	if rd.PH, err = field(c.ph, "pH"); err != nil {
		return Reading{}, err
	}
	if rd.Temperature, err = field(c.temp, "temp"); err != nil {
		return Reading{}, err
	}
	return rd, nil
}
