package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TraceHeader is the column layout written by WriteTraceCSV.
var TraceHeader = []string{"t_hours", "ph_clean", "temp_clean", "ph", "temp", "alert", "violation_rate"}

// WriteTraceCSV writes recorded samples as CSV with a TraceHeader row.
func WriteTraceCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TraceHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.THours, 'f', 4, 64),
			fmt.Sprintf("%.6f", s.CleanPH),
			fmt.Sprintf("%.6f", s.CleanTemp),
			fmt.Sprintf("%.6f", s.PH),
			fmt.Sprintf("%.6f", s.Temperature),
			strconv.FormatBool(s.Alert),
			fmt.Sprintf("%.6f", s.ViolationRate),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
