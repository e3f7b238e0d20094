package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/wound.alert/internal/alert"
	"github.com/banshee-data/wound.alert/internal/sensor"
	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/wound"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
const DefaultConfigPath = "config/simulation.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// SimulationConfig is the file schema for a simulation run. Every field is
// optional; the Get* methods fall back to the reference defaults, so partial
// configs are safe. The same keys are accepted from JSON and YAML.
type SimulationConfig struct {
	// Run params
	Scenario        *string  `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	SimulationDays  *float64 `json:"simulation_days,omitempty" yaml:"simulation_days,omitempty"`
	Seed            *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	NoiseMultiplier *float64 `json:"noise_multiplier,omitempty" yaml:"noise_multiplier,omitempty"`

	// Shared by both sensor channels and the detector window.
	SamplingIntervalMinutes *float64 `json:"sampling_interval_minutes,omitempty" yaml:"sampling_interval_minutes,omitempty"`

	// Detector params
	PHThreshold               *float64 `json:"ph_threshold,omitempty" yaml:"ph_threshold,omitempty"`
	TemperatureDeltaThreshold *float64 `json:"temperature_delta_threshold,omitempty" yaml:"temperature_delta_threshold,omitempty"`
	PersistenceHours          *float64 `json:"persistence_hours,omitempty" yaml:"persistence_hours,omitempty"`
	ViolationThreshold        *float64 `json:"violation_threshold,omitempty" yaml:"violation_threshold,omitempty"`
	BaselineCalibrationHours  *float64 `json:"baseline_calibration_hours,omitempty" yaml:"baseline_calibration_hours,omitempty"`

	// Sensor params
	PHNoiseSigma                 *float64 `json:"ph_noise_sigma,omitempty" yaml:"ph_noise_sigma,omitempty"`
	PHDriftSigmaPerHour          *float64 `json:"ph_drift_sigma_per_hour,omitempty" yaml:"ph_drift_sigma_per_hour,omitempty"`
	TemperatureNoiseSigma        *float64 `json:"temperature_noise_sigma,omitempty" yaml:"temperature_noise_sigma,omitempty"`
	TemperatureDriftSigmaPerHour *float64 `json:"temperature_drift_sigma_per_hour,omitempty" yaml:"temperature_drift_sigma_per_hour,omitempty"`

	// Wound physiology (optional, replaces the reference profile entirely)
	Profile *wound.Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptySimulationConfig returns a SimulationConfig with all fields set to nil.
func EmptySimulationConfig() *SimulationConfig {
	return &SimulationConfig{}
}

// DefaultSimulationConfig returns a config with every field populated from
// the reference defaults.
func DefaultSimulationConfig() *SimulationConfig {
	a := alert.DefaultConfig()
	ph := sensor.DefaultPHNoise()
	temp := sensor.DefaultTemperatureNoise()
	profile := wound.DefaultProfile()
	return &SimulationConfig{
		Scenario:                     ptrString(string(wound.ScenarioInfection)),
		SimulationDays:               ptrFloat64(sim.DefaultSimulationDays),
		NoiseMultiplier:              ptrFloat64(1),
		SamplingIntervalMinutes:      ptrFloat64(a.SamplingIntervalMinutes),
		PHThreshold:                  ptrFloat64(a.PHThreshold),
		TemperatureDeltaThreshold:    ptrFloat64(a.TemperatureDeltaThreshold),
		PersistenceHours:             ptrFloat64(a.PersistenceHours),
		ViolationThreshold:           ptrFloat64(a.ViolationThreshold),
		BaselineCalibrationHours:     ptrFloat64(a.BaselineCalibrationHours),
		PHNoiseSigma:                 ptrFloat64(ph.NoiseSigma),
		PHDriftSigmaPerHour:          ptrFloat64(ph.DriftSigmaPerHour),
		TemperatureNoiseSigma:        ptrFloat64(temp.NoiseSigma),
		TemperatureDriftSigmaPerHour: ptrFloat64(temp.DriftSigmaPerHour),
		Profile:                      &profile,
	}
}

// LoadSimulationConfig loads a SimulationConfig from a .json, .yaml or .yml
// file under 1MB. Fields omitted from the file keep their defaults.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimulationConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	if cfg.Profile != nil {
		profile, err := layerProfile(data, ext == ".json")
		if err != nil {
			return nil, err
		}
		cfg.Profile = &profile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// layerProfile decodes the profile block over wound.DefaultProfile so keys
// the file leaves out keep their reference values instead of zero.
func layerProfile(data []byte, isJSON bool) (wound.Profile, error) {
	profile := wound.DefaultProfile()
	if isJSON {
		var doc struct {
			Profile json.RawMessage `json:"profile"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return profile, fmt.Errorf("failed to parse config JSON: %w", err)
		}
		if err := json.Unmarshal(doc.Profile, &profile); err != nil {
			return profile, fmt.Errorf("failed to parse profile: %w", err)
		}
		return profile, nil
	}

	var doc struct {
		Profile yaml.Node `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return profile, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := doc.Profile.Decode(&profile); err != nil {
		return profile, fmt.Errorf("failed to parse profile: %w", err)
	}
	return profile, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SimulationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ or deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadSimulationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Cross-field checks (window size
// and friends) happen when the components are built, see RunConfig.
func (c *SimulationConfig) Validate() error {
	if c.Scenario != nil {
		if _, err := wound.ParseScenario(*c.Scenario); err != nil {
			return err
		}
	}
	if c.SimulationDays != nil && !(*c.SimulationDays > 0) {
		return fmt.Errorf("simulation_days must be positive, got %f", *c.SimulationDays)
	}
	if c.NoiseMultiplier != nil && !(*c.NoiseMultiplier >= 0) {
		return fmt.Errorf("noise_multiplier must be non-negative, got %f", *c.NoiseMultiplier)
	}
	if c.SamplingIntervalMinutes != nil && !(*c.SamplingIntervalMinutes > 0) {
		return fmt.Errorf("sampling_interval_minutes must be positive, got %f", *c.SamplingIntervalMinutes)
	}
	if c.PersistenceHours != nil && !(*c.PersistenceHours > 0) {
		return fmt.Errorf("persistence_hours must be positive, got %f", *c.PersistenceHours)
	}
	if c.ViolationThreshold != nil {
		if v := *c.ViolationThreshold; !(v > 0) || v > 1 {
			return fmt.Errorf("violation_threshold must be in (0, 1], got %f", v)
		}
	}
	for name, v := range map[string]*float64{
		"ph_noise_sigma":                   c.PHNoiseSigma,
		"ph_drift_sigma_per_hour":          c.PHDriftSigmaPerHour,
		"temperature_noise_sigma":          c.TemperatureNoiseSigma,
		"temperature_drift_sigma_per_hour": c.TemperatureDriftSigmaPerHour,
	} {
		if v != nil && !(*v >= 0) {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}
	return nil
}

func getFloat64(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetScenario returns the scenario or infection.
func (c *SimulationConfig) GetScenario() wound.Scenario {
	if c.Scenario == nil {
		return wound.ScenarioInfection
	}
	s, err := wound.ParseScenario(*c.Scenario)
	if err != nil {
		return wound.ScenarioInfection
	}
	return s
}

// GetSimulationDays returns the simulated horizon in days.
func (c *SimulationConfig) GetSimulationDays() float64 {
	return getFloat64(c.SimulationDays, sim.DefaultSimulationDays)
}

// GetSeed returns the seed, 0 meaning a fresh random seed per run.
func (c *SimulationConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetNoiseMultiplier returns the noise multiplier.
func (c *SimulationConfig) GetNoiseMultiplier() float64 {
	return getFloat64(c.NoiseMultiplier, 1)
}

// GetSamplingIntervalMinutes returns the sampling interval.
func (c *SimulationConfig) GetSamplingIntervalMinutes() float64 {
	return getFloat64(c.SamplingIntervalMinutes, alert.DefaultConfig().SamplingIntervalMinutes)
}

// AlertConfig returns the detector configuration.
func (c *SimulationConfig) AlertConfig() alert.Config {
	def := alert.DefaultConfig()
	return alert.Config{
		PHThreshold:               getFloat64(c.PHThreshold, def.PHThreshold),
		TemperatureDeltaThreshold: getFloat64(c.TemperatureDeltaThreshold, def.TemperatureDeltaThreshold),
		PersistenceHours:          getFloat64(c.PersistenceHours, def.PersistenceHours),
		SamplingIntervalMinutes:   c.GetSamplingIntervalMinutes(),
		ViolationThreshold:        getFloat64(c.ViolationThreshold, def.ViolationThreshold),
		BaselineCalibrationHours:  getFloat64(c.BaselineCalibrationHours, def.BaselineCalibrationHours),
	}
}

// PHNoiseConfig returns the pH channel noise configuration.
func (c *SimulationConfig) PHNoiseConfig() sensor.NoiseConfig {
	def := sensor.DefaultPHNoise()
	return sensor.NoiseConfig{
		NoiseSigma:              getFloat64(c.PHNoiseSigma, def.NoiseSigma),
		DriftSigmaPerHour:       getFloat64(c.PHDriftSigmaPerHour, def.DriftSigmaPerHour),
		SamplingIntervalMinutes: c.GetSamplingIntervalMinutes(),
	}
}

// TemperatureNoiseConfig returns the temperature channel noise configuration.
func (c *SimulationConfig) TemperatureNoiseConfig() sensor.NoiseConfig {
	def := sensor.DefaultTemperatureNoise()
	return sensor.NoiseConfig{
		NoiseSigma:              getFloat64(c.TemperatureNoiseSigma, def.NoiseSigma),
		DriftSigmaPerHour:       getFloat64(c.TemperatureDriftSigmaPerHour, def.DriftSigmaPerHour),
		SamplingIntervalMinutes: c.GetSamplingIntervalMinutes(),
	}
}

// WoundProfile returns the physiology profile.
func (c *SimulationConfig) WoundProfile() wound.Profile {
	if c.Profile == nil {
		return wound.DefaultProfile()
	}
	return *c.Profile
}

// RunConfig assembles a sim.RunConfig and checks that it can be built.
func (c *SimulationConfig) RunConfig() (sim.RunConfig, error) {
	rc := sim.RunConfig{
		Scenario:         c.GetScenario(),
		Profile:          c.WoundProfile(),
		PHNoise:          c.PHNoiseConfig(),
		TemperatureNoise: c.TemperatureNoiseConfig(),
		Alert:            c.AlertConfig(),
		SimulationDays:   c.GetSimulationDays(),
		NoiseMultiplier:  c.GetNoiseMultiplier(),
		Seed:             c.GetSeed(),
	}
	if err := rc.Validate(); err != nil {
		return sim.RunConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return rc, nil
}
