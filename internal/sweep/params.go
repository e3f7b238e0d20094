// Package sweep runs the robustness analysis: one-factor-at-a-time suites
// that vary a single detector or sensor parameter around the baseline and
// run every value against both wound scenarios.
package sweep

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/wound.alert/internal/sim"
)

// ErrUnknownParam is returned for a parameter name outside the sweepable set.
var ErrUnknownParam = errors.New("unknown sweep parameter")

// Param names one sweepable dimension. The names double as CSV columns.
type Param string

const (
	ParamSamplingInterval   Param = "sampling_interval"
	ParamNoiseMultiplier    Param = "noise_multiplier"
	ParamPHThreshold        Param = "ph_threshold"
	ParamDTThreshold        Param = "dt_threshold"
	ParamViolationThreshold Param = "violation_threshold"
)

// AllParams lists the sweepable parameters in column order.
var AllParams = []Param{
	ParamSamplingInterval,
	ParamNoiseMultiplier,
	ParamPHThreshold,
	ParamDTThreshold,
	ParamViolationThreshold,
}

// ParseParam maps a parameter name to a Param.
func ParseParam(s string) (Param, error) {
	p := Param(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllParams {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownParam, s)
}

// Params is one point in the sweep space.
type Params struct {
	SamplingInterval   float64 `json:"sampling_interval"` // minutes
	NoiseMultiplier    float64 `json:"noise_multiplier"`
	PHThreshold        float64 `json:"ph_threshold"`
	DTThreshold        float64 `json:"dt_threshold"` // °C above baseline
	ViolationThreshold float64 `json:"violation_threshold"`
}

// BaselineParams returns the reference operating point every suite varies from.
func BaselineParams() Params {
	return Params{
		SamplingInterval:   15,
		NoiseMultiplier:    1.0,
		PHThreshold:        7.5,
		DTThreshold:        1.0,
		ViolationThreshold: 0.75,
	}
}

// ParamsFromRunConfig reads the operating point out of cfg so a sweep can
// vary from a loaded configuration instead of the reference one.
func ParamsFromRunConfig(cfg sim.RunConfig) Params {
	mult := cfg.NoiseMultiplier
	if mult == 0 {
		mult = 1
	}
	return Params{
		SamplingInterval:   cfg.Alert.SamplingIntervalMinutes,
		NoiseMultiplier:    mult,
		PHThreshold:        cfg.Alert.PHThreshold,
		DTThreshold:        cfg.Alert.TemperatureDeltaThreshold,
		ViolationThreshold: cfg.Alert.ViolationThreshold,
	}
}

// Get returns the value of p.
func (ps Params) Get(p Param) (float64, error) {
	switch p {
	case ParamSamplingInterval:
		return ps.SamplingInterval, nil
	case ParamNoiseMultiplier:
		return ps.NoiseMultiplier, nil
	case ParamPHThreshold:
		return ps.PHThreshold, nil
	case ParamDTThreshold:
		return ps.DTThreshold, nil
	case ParamViolationThreshold:
		return ps.ViolationThreshold, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParam, p)
}

// With returns a copy with p set to v.
func (ps Params) With(p Param, v float64) (Params, error) {
	switch p {
	case ParamSamplingInterval:
		ps.SamplingInterval = v
	case ParamNoiseMultiplier:
		ps.NoiseMultiplier = v
	case ParamPHThreshold:
		ps.PHThreshold = v
	case ParamDTThreshold:
		ps.DTThreshold = v
	case ParamViolationThreshold:
		ps.ViolationThreshold = v
	default:
		return ps, fmt.Errorf("%w: %q", ErrUnknownParam, p)
	}
	return ps, nil
}

// Apply overlays the parameters onto base. The sampling interval reaches
// both sensor channels and the detector; the noise multiplier scales
// transient noise only.
func (ps Params) Apply(base sim.RunConfig) sim.RunConfig {
	cfg := base.WithSamplingInterval(ps.SamplingInterval)
	cfg.NoiseMultiplier = ps.NoiseMultiplier
	cfg.Alert.PHThreshold = ps.PHThreshold
	cfg.Alert.TemperatureDeltaThreshold = ps.DTThreshold
	cfg.Alert.ViolationThreshold = ps.ViolationThreshold
	return cfg
}

// Suite varies one parameter across Values, holding the rest at baseline.
type Suite struct {
	Name   string    `json:"name"`
	Param  Param     `json:"param"`
	Values []float64 `json:"values"`
}

// DefaultSuites returns the five reference suites.
func DefaultSuites() []Suite {
	return []Suite{
		{Name: "T3.1_Sampling", Param: ParamSamplingInterval, Values: []float64{5, 15, 30, 60}},
		{Name: "T3.2_Noise", Param: ParamNoiseMultiplier, Values: []float64{1.0, 2.0, 3.0}},
		{Name: "T3.3_pH", Param: ParamPHThreshold, Values: []float64{7.3, 7.5, 7.7}},
		{Name: "T3.4_DeltaT", Param: ParamDTThreshold, Values: []float64{0.8, 1.0, 1.2}},
		{Name: "T3.5_Persistence", Param: ParamViolationThreshold, Values: []float64{0.60, 0.75, 0.90}},
	}
}

// SuiteFor returns the default suite that varies p.
func SuiteFor(p Param) (Suite, bool) {
	for _, s := range DefaultSuites() {
		if s.Param == p {
			return s, true
		}
	}
	return Suite{}, false
}
