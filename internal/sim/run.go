// Package sim drives one simulated monitoring run: it wires a ground-truth
// generator, a pH and a temperature sensor channel and an alert detector,
// steps them through a fixed-interval time series and collects the run-level
// outcome (first alert time, peak violation rate) used by reporting.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/wound.alert/internal/alert"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/sensor"
	"github.com/banshee-data/wound.alert/internal/wound"
)

// DefaultSimulationDays is the reference simulated horizon; long enough to
// observe late alerts in the infection scenario.
const DefaultSimulationDays = 10

// PCG stream selectors keep the two channels' noise independent for a seed.
const (
	phStream   uint64 = 0x7048 // "pH"
	tempStream uint64 = 0x5465 // "Te"
)

// RunConfig fully describes one run. Every Run builds fresh component
// instances from it; nothing is shared between runs.
type RunConfig struct {
	Scenario         wound.Scenario
	Profile          wound.Profile
	PHNoise          sensor.NoiseConfig
	TemperatureNoise sensor.NoiseConfig
	Alert            alert.Config
	SimulationDays   float64

	// NoiseMultiplier scales the transient noise sigma of both channels.
	// Zero is treated as 1.
	NoiseMultiplier float64

	// Seed selects the random streams. Zero draws a fresh seed.
	Seed uint64

	// Record keeps the per-sample trace in RunResult.Samples.
	Record bool
}

// DefaultRunConfig returns the reference configuration for scenario.
func DefaultRunConfig(scenario wound.Scenario) RunConfig {
	return RunConfig{
		Scenario:         scenario,
		Profile:          wound.DefaultProfile(),
		PHNoise:          sensor.DefaultPHNoise(),
		TemperatureNoise: sensor.DefaultTemperatureNoise(),
		Alert:            alert.DefaultConfig(),
		SimulationDays:   DefaultSimulationDays,
		NoiseMultiplier:  1,
	}
}

// WithSamplingInterval returns a copy with the sampling interval applied to
// both noise models and the detector.
func (c RunConfig) WithSamplingInterval(minutes float64) RunConfig {
	c.PHNoise.SamplingIntervalMinutes = minutes
	c.TemperatureNoise.SamplingIntervalMinutes = minutes
	c.Alert.SamplingIntervalMinutes = minutes
	return c
}

// Sample is one step of a recorded run.
type Sample struct {
	THours        float64
	CleanPH       float64
	CleanTemp     float64
	PH            float64
	Temperature   float64
	Alert         bool
	ViolationRate float64
}

// RunResult is the outcome of one run.
type RunResult struct {
	Scenario          wound.Scenario
	Seed              uint64
	AlertTriggered    bool
	FirstAlertHours   *float64 // nil when no alert fired
	AlertSamples      int
	PeakViolationRate float64
	// Baseline is nil when the run ended before calibration completed.
	Baseline   *float64
	WindowSize int
	Steps      int
	Samples    []Sample
}

// FirstAlertDays returns the first alert time in days, or false if no alert fired.
func (r *RunResult) FirstAlertDays() (float64, bool) {
	if r.FirstAlertHours == nil {
		return 0, false
	}
	return *r.FirstAlertHours / 24, true
}

// TimePoints returns sample times in hours covering [0, days*24) at the given
// interval. Times are computed as i*step so they do not accumulate error.
func TimePoints(days, intervalMinutes float64) []float64 {
	if !(intervalMinutes > 0) || !(days > 0) {
		return nil
	}
	horizon := days * 24
	step := intervalMinutes / 60
	n := int(math.Ceil(horizon / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) * step
		if t >= horizon {
			break
		}
		out = append(out, t)
	}
	return out
}

type pipeline struct {
	gen      *wound.Generator
	ph       *sensor.Channel
	temp     *sensor.Channel
	detector *alert.Detector
}

func build(cfg RunConfig, seed uint64) (*pipeline, error) {
	gen, err := wound.NewGenerator(cfg.Scenario, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}

	mult := cfg.NoiseMultiplier
	if mult == 0 {
		mult = 1
	}
	phNoise, err := sensor.NewNoiseModel(cfg.PHNoise.Scaled(mult), rand.NewPCG(seed, phStream))
	if err != nil {
		return nil, fmt.Errorf("pH noise: %w", err)
	}
	tempNoise, err := sensor.NewNoiseModel(cfg.TemperatureNoise.Scaled(mult), rand.NewPCG(seed, tempStream))
	if err != nil {
		return nil, fmt.Errorf("temperature noise: %w", err)
	}

	ph, err := sensor.NewChannel(gen, phNoise, wound.QuantityPH)
	if err != nil {
		return nil, err
	}
	temp, err := sensor.NewChannel(gen, tempNoise, wound.QuantityTemperature)
	if err != nil {
		return nil, err
	}

	det, err := alert.New(cfg.Alert)
	if err != nil {
		return nil, fmt.Errorf("alert detector: %w", err)
	}
	return &pipeline{gen: gen, ph: ph, temp: temp, detector: det}, nil
}

// Validate checks that a run can be built from the configuration.
func (c RunConfig) Validate() error {
	if !(c.SimulationDays > 0) {
		return fmt.Errorf("simulation_days must be positive, got %f", c.SimulationDays)
	}
	if !(c.NoiseMultiplier >= 0) {
		return fmt.Errorf("noise_multiplier must be non-negative, got %f", c.NoiseMultiplier)
	}
	_, err := build(c, 1)
	return err
}

// Run executes one simulation. Cancelling ctx stops the run between samples
// and returns ctx.Err().
func Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	p, err := build(cfg, seed)
	if err != nil {
		return nil, err
	}

	times := TimePoints(cfg.SimulationDays, cfg.Alert.SamplingIntervalMinutes)
	res := &RunResult{
		Scenario:   cfg.Scenario,
		Seed:       seed,
		WindowSize: p.detector.WindowSize(),
		Steps:      len(times),
	}
	if cfg.Record {
		res.Samples = make([]Sample, 0, len(times))
	}

	for i, t := range times {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		phReading, err := p.ph.Read(t)
		if err != nil {
			return nil, err
		}
		tempReading, err := p.temp.Read(t)
		if err != nil {
			return nil, err
		}

		active := p.detector.Update(phReading, tempReading, t)
		status := p.detector.Status()

		if active {
			res.AlertSamples++
			if !res.AlertTriggered {
				res.AlertTriggered = true
				first := t
				res.FirstAlertHours = &first
			}
		}
		if status.ViolationRate > res.PeakViolationRate {
			res.PeakViolationRate = status.ViolationRate
		}

		if cfg.Record {
			res.Samples = append(res.Samples, Sample{
				THours:        t,
				CleanPH:       p.gen.PH(t),
				CleanTemp:     p.gen.Temperature(t),
				PH:            phReading,
				Temperature:   tempReading,
				Alert:         active,
				ViolationRate: status.ViolationRate,
			})
		}
	}

	if b, ok := p.detector.Baseline(); ok {
		res.Baseline = &b
	}

	if res.AlertTriggered {
		monitoring.Logf("sim: %s seed=%d first alert at %.2fh (%.2f days), peak rate %.3f",
			cfg.Scenario, seed, *res.FirstAlertHours, *res.FirstAlertHours/24, res.PeakViolationRate)
	} else {
		monitoring.Logf("sim: %s seed=%d no alert, peak rate %.3f", cfg.Scenario, seed, res.PeakViolationRate)
	}
	return res, nil
}
