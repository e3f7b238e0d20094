package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/wound.alert/internal/wound"
)

// Record is the outcome of one run within a suite.
type Record struct {
	Test              string         `json:"test"`
	Param             Param          `json:"param"`
	Scenario          wound.Scenario `json:"scenario"`
	Trial             int            `json:"trial"`
	Seed              uint64         `json:"seed"`
	Params            Params         `json:"params"`
	AlertTriggered    bool           `json:"alert_triggered"`
	AlertTimeHours    *float64       `json:"alert_time_hours,omitempty"`
	PeakViolationRate float64        `json:"peak_violation_rate"`
}

// Value returns the value of the record's varied parameter.
func (r Record) Value() float64 {
	v, _ := r.Params.Get(r.Param)
	return v
}

// AlertTimeDays returns the first alert time in days, or false if none fired.
func (r Record) AlertTimeDays() (float64, bool) {
	if r.AlertTimeHours == nil {
		return 0, false
	}
	return *r.AlertTimeHours / 24, true
}

// RecordHeader is the column layout written by CSVWriter.
var RecordHeader = []string{
	"test", "param", "scenario", "trial", "seed",
	string(ParamSamplingInterval),
	string(ParamNoiseMultiplier),
	string(ParamPHThreshold),
	string(ParamDTThreshold),
	string(ParamViolationThreshold),
	"alert_triggered", "alert_time_hours", "alert_time_days", "peak_violation_rate",
}

// CSVWriter writes sweep records. Alert time columns are left empty for
// runs that never alerted.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes RecordHeader.
func (c *CSVWriter) WriteHeader() error {
	return c.w.Write(RecordHeader)
}

// WriteRecord writes a single record row.
func (c *CSVWriter) WriteRecord(r Record) error {
	hours, days := "", ""
	if d, ok := r.AlertTimeDays(); ok {
		hours = fmt.Sprintf("%.2f", *r.AlertTimeHours)
		days = fmt.Sprintf("%.4f", d)
	}
	p := r.Params
	row := []string{
		r.Test,
		string(r.Param),
		string(r.Scenario),
		strconv.Itoa(r.Trial),
		strconv.FormatUint(r.Seed, 10),
		strconv.FormatFloat(p.SamplingInterval, 'g', -1, 64),
		strconv.FormatFloat(p.NoiseMultiplier, 'g', -1, 64),
		strconv.FormatFloat(p.PHThreshold, 'g', -1, 64),
		strconv.FormatFloat(p.DTThreshold, 'g', -1, 64),
		strconv.FormatFloat(p.ViolationThreshold, 'g', -1, 64),
		strconv.FormatBool(r.AlertTriggered),
		hours,
		days,
		fmt.Sprintf("%.6f", r.PeakViolationRate),
	}
	return c.w.Write(row)
}

// WriteAll writes the header and every record, then flushes.
func (c *CSVWriter) WriteAll(records []Record) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	for _, r := range records {
		if err := c.WriteRecord(r); err != nil {
			return err
		}
	}
	return c.Flush()
}

// Flush flushes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
