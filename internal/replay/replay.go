package replay

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/wound.alert/internal/alert"
)

// ErrExpectationFailed is returned by Expectation.Verify.
var ErrExpectationFailed = errors.New("replay expectation failed")

// Detector is the subset of *alert.Detector a replay drives.
type Detector interface {
	Update(pH, temperature, tHours float64) bool
	Status() alert.Status
	Baseline() (float64, bool)
}

// Options tune how readings are presented to the detector.
type Options struct {
	// FloorHours truncates each timestamp to whole hours before the update,
	// as a detector fed by an integer uptime counter sees them. Only the time
	// base changes: the baseline is still the averaged median, not the upper
	// middle element a firmware sort may pick for even counts.
	FloorHours bool
}

// Result summarises a replay. Times are the recorded reading times.
type Result struct {
	Readings        int          `json:"readings"`
	AlertTriggered  bool         `json:"alert_triggered"`
	FirstAlertHours *float64     `json:"first_alert_hours,omitempty"`
	AlertSamples    int          `json:"alert_samples"`
	Baseline        *float64     `json:"baseline,omitempty"`
	Final           alert.Status `json:"final"`
}

// Replay feeds readings through det in order.
func Replay(det Detector, readings []Reading, opts Options) Result {
	res := Result{Readings: len(readings)}
	for _, r := range readings {
		t := r.THours
		if opts.FloorHours {
			t = math.Floor(t)
		}
		if det.Update(r.PH, r.Temperature, t) {
			res.AlertSamples++
			if !res.AlertTriggered {
				res.AlertTriggered = true
				first := r.THours
				res.FirstAlertHours = &first
			}
		}
	}
	if b, ok := det.Baseline(); ok {
		res.Baseline = &b
	}
	res.Final = det.Status()
	return res
}

// Expectation describes what a replay should produce. Nil fields are not
// checked.
type Expectation struct {
	Alert     *bool
	Hours     *float64
	Tolerance float64 // hours; applies to Hours
}

// Verify returns an error wrapping ErrExpectationFailed for the first
// unmet expectation.
func (e Expectation) Verify(res Result) error {
	if e.Alert != nil && *e.Alert != res.AlertTriggered {
		return fmt.Errorf("%w: alert triggered = %v, want %v", ErrExpectationFailed, res.AlertTriggered, *e.Alert)
	}
	if e.Hours != nil {
		if res.FirstAlertHours == nil {
			return fmt.Errorf("%w: no alert, want one at %.2fh", ErrExpectationFailed, *e.Hours)
		}
		if d := math.Abs(*res.FirstAlertHours - *e.Hours); d > e.Tolerance {
			return fmt.Errorf("%w: first alert at %.2fh, want %.2fh ± %.2fh",
				ErrExpectationFailed, *res.FirstAlertHours, *e.Hours, e.Tolerance)
		}
	}
	return nil
}
