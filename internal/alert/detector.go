// Package alert implements the windowed-persistence infection detector.
//
// The detector self-calibrates a per-subject temperature baseline (median of
// the first BaselineCalibrationHours of readings), then flags each sample as
// a co-violation when pH is above threshold AND temperature has risen more
// than a delta above baseline. An alert is active while the fraction of
// co-violations in the trailing persistence window is at or above the
// configured violation threshold.
package alert

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/wound.alert/internal/monitoring"
)

// BaselineCalibrationHours is the reference calibration period.
const BaselineCalibrationHours = 24.0

var (
	// ErrInvalidWindow is returned when the persistence window holds no samples.
	ErrInvalidWindow = errors.New("persistence window must hold at least one sample")
	// ErrInvalidSamplingInterval is returned when the sampling interval is not positive.
	ErrInvalidSamplingInterval = errors.New("sampling interval must be positive")
	// ErrInvalidViolationThreshold is returned when the threshold is outside (0,1].
	ErrInvalidViolationThreshold = errors.New("violation threshold must be in (0,1]")
	// ErrInvalidCalibration is returned when the calibration period is negative.
	ErrInvalidCalibration = errors.New("baseline calibration hours must be non-negative")
)

// Phase is the detector lifecycle state.
type Phase int

const (
	// PhaseCalibrating collects temperature samples; no alert is possible.
	PhaseCalibrating Phase = iota
	// PhaseMonitoring evaluates co-violations against the locked baseline.
	PhaseMonitoring
)

func (p Phase) String() string {
	switch p {
	case PhaseCalibrating:
		return "CALIBRATING"
	case PhaseMonitoring:
		return "ACTIVE_MONITORING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Config configures a Detector. Start from DefaultConfig: fields left at
// zero are taken literally, not defaulted.
type Config struct {
	PHThreshold               float64 `json:"ph_threshold" yaml:"ph_threshold"`
	TemperatureDeltaThreshold float64 `json:"temperature_delta_threshold" yaml:"temperature_delta_threshold"`
	PersistenceHours          float64 `json:"persistence_hours" yaml:"persistence_hours"`
	SamplingIntervalMinutes   float64 `json:"sampling_interval_minutes" yaml:"sampling_interval_minutes"`
	ViolationThreshold        float64 `json:"violation_threshold" yaml:"violation_threshold"`
	// BaselineCalibrationHours is the calibration period. Zero locks the
	// baseline on the first sample.
	BaselineCalibrationHours  float64 `json:"baseline_calibration_hours" yaml:"baseline_calibration_hours"`
}

// DefaultConfig returns the reference detector configuration
// (window of 48 samples at 15 minute sampling).
func DefaultConfig() Config {
	return Config{
		PHThreshold:               7.5,
		TemperatureDeltaThreshold: 1.0,
		PersistenceHours:          12,
		SamplingIntervalMinutes:   15,
		ViolationThreshold:        0.75,
		BaselineCalibrationHours:  BaselineCalibrationHours,
	}
}

// WindowSize returns floor(PersistenceHours*60/SamplingIntervalMinutes).
// It does not validate the configuration.
func (c Config) WindowSize() int {
	if !(c.SamplingIntervalMinutes > 0) {
		return 0
	}
	n := math.Floor(c.PersistenceHours * 60 / c.SamplingIntervalMinutes)
	if n < 0 || math.IsNaN(n) {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Validate checks the configuration, including that the derived window
// holds at least one sample.
func (c Config) Validate() error {
	if !(c.SamplingIntervalMinutes > 0) {
		return fmt.Errorf("%w: got %f minutes", ErrInvalidSamplingInterval, c.SamplingIntervalMinutes)
	}
	if !(c.ViolationThreshold > 0 && c.ViolationThreshold <= 1) {
		return fmt.Errorf("%w: got %f", ErrInvalidViolationThreshold, c.ViolationThreshold)
	}
	if c.BaselineCalibrationHours < 0 || math.IsNaN(c.BaselineCalibrationHours) {
		return fmt.Errorf("%w: got %f", ErrInvalidCalibration, c.BaselineCalibrationHours)
	}
	if c.WindowSize() < 1 {
		return fmt.Errorf("%w: persistence_hours=%g sampling_interval_minutes=%g",
			ErrInvalidWindow, c.PersistenceHours, c.SamplingIntervalMinutes)
	}
	return nil
}

// Status is a read-only snapshot of detector state.
type Status struct {
	Phase          Phase `json:"phase"`
	AlertActive    bool  `json:"alert_active"`
	BaselineLocked bool  `json:"baseline_locked"`
	WindowSize     int   `json:"window_size"`
	WindowFill     int   `json:"window_fill"`
	ViolationCount int   `json:"violation_count"`

	// RequiredViolations is floor(WindowSize*ViolationThreshold). It is
	// informational; the decision compares the exact fractional rate.
	RequiredViolations int     `json:"required_violations"`
	ViolationRate      float64 `json:"violation_rate"`
}

// Detector is the per-run alert state machine. It is not safe for
// concurrent use; Update must be called once per sample in non-decreasing
// time order.
type Detector struct {
	cfg        Config
	windowSize int

	baselineLocked  bool
	baselineSamples []float64
	baseline        float64

	window      *violationWindow
	alertActive bool
}

// New creates a Detector. Configurations whose persistence window would
// hold zero samples fail with ErrInvalidWindow.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.WindowSize()
	return &Detector{
		cfg:        cfg,
		windowSize: size,
		window:     newViolationWindow(size),
	}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// WindowSize returns the persistence window capacity in samples.
func (d *Detector) WindowSize() int { return d.windowSize }

// Phase returns the current lifecycle phase.
func (d *Detector) Phase() Phase {
	if d.baselineLocked {
		return PhaseMonitoring
	}
	return PhaseCalibrating
}

// Baseline returns the locked temperature baseline. ok is false while the
// detector is still calibrating; the value is then undefined.
func (d *Detector) Baseline() (baseline float64, ok bool) {
	if !d.baselineLocked {
		return 0, false
	}
	return d.baseline, true
}

// AlertActive reports the last computed alert state.
func (d *Detector) AlertActive() bool { return d.alertActive }

// Update processes one (pH, temperature) sample taken at tHours and returns
// whether the infection alert is active.
//
// During calibration every temperature reading is collected and false is
// returned. The call at which tHours first reaches the calibration period
// locks the baseline and is itself evaluated. The alert is only recomputed
// once the window is full.
func (d *Detector) Update(pH, temperature, tHours float64) bool {
	if !d.baselineLocked {
		d.baselineSamples = append(d.baselineSamples, temperature)
		if tHours < d.cfg.BaselineCalibrationHours {
			return false
		}
		d.baseline = median(d.baselineSamples)
		d.baselineLocked = true
		monitoring.Logf("alert: baseline locked at t=%.2fh: %.3f °C (%d samples)",
			tHours, d.baseline, len(d.baselineSamples))
	}

	phViolated := pH > d.cfg.PHThreshold
	tempViolated := temperature-d.baseline > d.cfg.TemperatureDeltaThreshold
	d.window.push(phViolated && tempViolated)

	if !d.window.full() {
		return false
	}

	rate := float64(d.window.ones()) / float64(d.windowSize)
	d.alertActive = rate >= d.cfg.ViolationThreshold
	return d.alertActive
}

// Reset returns the detector to its initial calibrating state so it can be
// reused for an independent run with the same configuration.
func (d *Detector) Reset() {
	d.window.reset()
	d.alertActive = false
	d.baselineLocked = false
	d.baselineSamples = d.baselineSamples[:0]
	d.baseline = 0
}

// Status returns a diagnostic snapshot.
func (d *Detector) Status() Status {
	ones := d.window.ones()
	s := Status{
		Phase:              d.Phase(),
		AlertActive:        d.alertActive,
		BaselineLocked:     d.baselineLocked,
		WindowSize:         d.windowSize,
		WindowFill:         d.window.length(),
		ViolationCount:     ones,
		RequiredViolations: int(float64(d.windowSize) * d.cfg.ViolationThreshold),
	}
	if d.windowSize > 0 {
		s.ViolationRate = float64(ones) / float64(d.windowSize)
	}
	return s
}

// median returns the middle value of xs, averaging the two middle values for
// even lengths. xs is not modified.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
