// Package wound provides the noise-free physiological ground truth for a
// healing or infected wound. Every value is a pure function of elapsed time
// (hours since wound creation) and the configured scenario.
package wound

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Scenario selects the physiological trajectory class.
type Scenario string

const (
	ScenarioNormal    Scenario = "normal"
	ScenarioInfection Scenario = "infection"
)

// Quantity names a sensed physiological channel.
type Quantity string

const (
	QuantityPH          Quantity = "pH"
	QuantityTemperature Quantity = "temperature"
)

var (
	// ErrUnknownScenario is returned when a scenario label is not recognised.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrUnknownSensorKind is returned when a quantity is neither pH nor temperature.
	ErrUnknownSensorKind = errors.New("unknown sensor kind")
)

// ParseScenario converts a label into a Scenario.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(strings.ToLower(strings.TrimSpace(s))) {
	case ScenarioNormal:
		return ScenarioNormal, nil
	case ScenarioInfection:
		return ScenarioInfection, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// ParseQuantity converts a sensor name into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	switch Quantity(s) {
	case QuantityPH, QuantityTemperature:
		return Quantity(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSensorKind, s)
}

// Profile holds the immutable parameters of a trajectory class.
type Profile struct {
	BaselinePH             float64 `json:"baseline_ph" yaml:"baseline_ph"`
	BaselineTemperature    float64 `json:"baseline_temperature" yaml:"baseline_temperature"`
	PHSensitivity          float64 `json:"ph_sensitivity" yaml:"ph_sensitivity"`
	TemperatureSensitivity float64 `json:"temperature_sensitivity" yaml:"temperature_sensitivity"`

	// Severity curve. For infection the index is 0 before OnsetHours and
	// InitialSeverity + SeverityRise*(1 - exp(-(t-onset)/TimeConstantHours))
	// afterwards.
	OnsetHours        float64 `json:"onset_hours" yaml:"onset_hours"`
	TimeConstantHours float64 `json:"time_constant_hours" yaml:"time_constant_hours"`
	InitialSeverity   float64 `json:"initial_severity" yaml:"initial_severity"`
	SeverityRise      float64 `json:"severity_rise" yaml:"severity_rise"`
	NormalSeverity    float64 `json:"normal_severity" yaml:"normal_severity"`
}

// DefaultProfile returns the reference wound parameters.
func DefaultProfile() Profile {
	return Profile{
		BaselinePH:             6.0,
		BaselineTemperature:    36.8,
		PHSensitivity:          2.0,
		TemperatureSensitivity: 1.65,
		OnsetHours:             48,
		TimeConstantHours:      36,
		InitialSeverity:        0.2,
		SeverityRise:           0.6,
		NormalSeverity:         0.1,
	}
}

// Generator produces ground-truth values for one scenario. It holds no
// mutable state and may be shared by any number of sensor channels.
type Generator struct {
	scenario Scenario
	profile  Profile
}

// NewGenerator binds a scenario to a profile.
func NewGenerator(scenario Scenario, profile Profile) (*Generator, error) {
	if _, err := ParseScenario(string(scenario)); err != nil {
		return nil, err
	}
	if scenario == ScenarioInfection && profile.TimeConstantHours <= 0 {
		return nil, fmt.Errorf("time_constant_hours must be positive, got %f", profile.TimeConstantHours)
	}
	return &Generator{scenario: scenario, profile: profile}, nil
}

// Scenario returns the bound scenario.
func (g *Generator) Scenario() Scenario { return g.scenario }

// Profile returns a copy of the bound profile.
func (g *Generator) Profile() Profile { return g.profile }

// SeverityIndex returns the infection severity index (ISI) at tHours, in [0,1].
func (g *Generator) SeverityIndex(tHours float64) float64 {
	p := g.profile
	var isi float64
	switch g.scenario {
	case ScenarioNormal:
		isi = p.NormalSeverity
	case ScenarioInfection:
		if tHours < p.OnsetHours {
			return 0
		}
		sinceOnset := tHours - p.OnsetHours
		isi = p.InitialSeverity + p.SeverityRise*(1-math.Exp(-sinceOnset/p.TimeConstantHours))
	}
	return clampUnit(isi)
}

// PH returns the clean wound pH at tHours.
func (g *Generator) PH(tHours float64) float64 {
	return g.profile.BaselinePH + g.profile.PHSensitivity*g.SeverityIndex(tHours)
}

// Temperature returns the clean wound temperature (°C) at tHours.
func (g *Generator) Temperature(tHours float64) float64 {
	return g.profile.BaselineTemperature + g.profile.TemperatureSensitivity*g.SeverityIndex(tHours)
}

// Value returns the clean value of the named quantity at tHours.
func (g *Generator) Value(kind Quantity, tHours float64) (float64, error) {
	switch kind {
	case QuantityPH:
		return g.PH(tHours), nil
	case QuantityTemperature:
		return g.Temperature(tHours), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSensorKind, kind)
}

func clampUnit(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
