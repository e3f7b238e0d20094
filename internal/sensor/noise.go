// Package sensor models imperfect wound sensors: a stochastic noise and
// drift model per sensed quantity, and channels that bind ground truth to
// that model to produce "as measured" readings.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidSamplingInterval is returned when the sampling interval is not positive.
	ErrInvalidSamplingInterval = errors.New("sampling interval must be positive")
	// ErrNegativeSigma is returned when a noise or drift sigma is negative or NaN.
	ErrNegativeSigma = errors.New("sigma must be non-negative")
)

// NoiseConfig configures a NoiseModel.
type NoiseConfig struct {
	// NoiseSigma is the standard deviation of transient per-sample noise.
	NoiseSigma float64 `json:"noise_sigma" yaml:"noise_sigma"`
	// DriftSigmaPerHour is the random-walk rate, as a standard deviation per hour.
	DriftSigmaPerHour       float64 `json:"drift_sigma_per_hour" yaml:"drift_sigma_per_hour"`
	SamplingIntervalMinutes float64 `json:"sampling_interval_minutes" yaml:"sampling_interval_minutes"`
}

// DefaultPHNoise returns the reference pH sensor noise at a 15 minute interval.
func DefaultPHNoise() NoiseConfig {
	return NoiseConfig{NoiseSigma: 0.05, DriftSigmaPerHour: 0.002, SamplingIntervalMinutes: 15}
}

// DefaultTemperatureNoise returns the reference temperature sensor noise at a
// 15 minute interval.
func DefaultTemperatureNoise() NoiseConfig {
	return NoiseConfig{NoiseSigma: 0.10, DriftSigmaPerHour: 0.01, SamplingIntervalMinutes: 15}
}

// Validate checks the configuration.
func (c NoiseConfig) Validate() error {
	if !(c.SamplingIntervalMinutes > 0) {
		return fmt.Errorf("%w: got %f minutes", ErrInvalidSamplingInterval, c.SamplingIntervalMinutes)
	}
	if !(c.NoiseSigma >= 0) {
		return fmt.Errorf("%w: noise_sigma=%f", ErrNegativeSigma, c.NoiseSigma)
	}
	if !(c.DriftSigmaPerHour >= 0) {
		return fmt.Errorf("%w: drift_sigma_per_hour=%f", ErrNegativeSigma, c.DriftSigmaPerHour)
	}
	return nil
}

// Scaled returns a copy with the transient noise sigma multiplied by m.
// Drift is left unchanged.
func (c NoiseConfig) Scaled(m float64) NoiseConfig {
	c.NoiseSigma *= m
	return c
}

// NoiseModel adds Gaussian noise and an accumulating random-walk drift to
// clean values. Drift is a Wiener-like process: its variance grows linearly
// with elapsed time, so the per-sample increment sigma scales with the square
// root of the sampling interval in hours.
//
// A NoiseModel is not safe for concurrent use, and Apply must be called in
// simulated-time order; there is no timestamp validation.
type NoiseModel struct {
	cfg                 NoiseConfig
	driftSigmaPerSample float64
	accumulatedDrift    float64

	noise distuv.Normal
	drift distuv.Normal
}

// NewNoiseModel creates a NoiseModel drawing from src. The model never seeds
// itself; pass a seeded source for reproducible runs, or nil to draw from the
// process-wide generator.
func NewNoiseModel(cfg NoiseConfig, src rand.Source) (*NoiseModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	perSample := cfg.DriftSigmaPerHour * math.Sqrt(cfg.SamplingIntervalMinutes/60.0)
	return &NoiseModel{
		cfg:                 cfg,
		driftSigmaPerSample: perSample,
		noise:               distuv.Normal{Mu: 0, Sigma: cfg.NoiseSigma, Src: src},
		drift:               distuv.Normal{Mu: 0, Sigma: perSample, Src: src},
	}, nil
}

// Config returns the model configuration.
func (n *NoiseModel) Config() NoiseConfig { return n.cfg }

// DriftSigmaPerSample returns the standard deviation of one drift increment.
func (n *NoiseModel) DriftSigmaPerSample() float64 { return n.driftSigmaPerSample }

// Drift returns the accumulated drift.
func (n *NoiseModel) Drift() float64 { return n.accumulatedDrift }

// Sample draws one noise value and advances the drift by one increment,
// returning the noise and the new accumulated drift separately.
func (n *NoiseModel) Sample() (noise, drift float64) {
	noise = n.noise.Rand()
	n.accumulatedDrift += n.drift.Rand()
	return noise, n.accumulatedDrift
}

// Apply returns clean plus one noise draw plus the accumulated drift,
// advancing the drift by exactly one increment.
func (n *NoiseModel) Apply(clean float64) float64 {
	noise, drift := n.Sample()
	return clean + noise + drift
}

// Reset zeroes the accumulated drift. Configuration is unchanged.
func (n *NoiseModel) Reset() {
	n.accumulatedDrift = 0
}
