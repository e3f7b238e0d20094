package sim

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wound.alert/internal/alert"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/sensor"
	"github.com/banshee-data/wound.alert/internal/wound"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// deterministicConfig disables all noise and drift.
func deterministicConfig(s wound.Scenario) RunConfig {
	cfg := DefaultRunConfig(s)
	cfg.PHNoise = sensor.NoiseConfig{SamplingIntervalMinutes: 15}
	cfg.TemperatureNoise = sensor.NoiseConfig{SamplingIntervalMinutes: 15}
	cfg.Seed = 1
	return cfg
}

func TestTimePoints(t *testing.T) {
	pts := TimePoints(10, 15)
	require.Len(t, pts, 960)
	assert.Equal(t, 0.0, pts[0])
	assert.Equal(t, 239.75, pts[len(pts)-1])
	for i := 1; i < len(pts); i++ {
		if pts[i] <= pts[i-1] {
			t.Fatalf("time points not increasing at %d", i)
		}
	}

	assert.Len(t, TimePoints(1, 60), 24)
	assert.Equal(t, []float64{0, 1, 2}, TimePoints(0.1, 60))
	assert.Len(t, TimePoints(10, 7), int(math.Ceil(240*60/7.0)))
	assert.Nil(t, TimePoints(10, 0))
	assert.Nil(t, TimePoints(0, 15))
}

func TestRunDeterministicInfection(t *testing.T) {
	cfg := deterministicConfig(wound.ScenarioInfection)
	cfg.Record = true

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 48, res.WindowSize)

	// No alert while calibrating.
	for _, s := range res.Samples {
		if s.THours < alert.BaselineCalibrationHours {
			require.False(t, s.Alert, "alert during calibration at t=%v", s.THours)
		}
	}

	// Infection ISI is zero throughout calibration, so the baseline is the
	// bare physiological baseline.
	require.NotNil(t, res.Baseline)
	assert.InDelta(t, 36.8, *res.Baseline, 1e-12)

	// Oracle: first co-violating sample from the clean curves, then 36 of 48
	// (0.75) co-violations are needed.
	gen, err := wound.NewGenerator(wound.ScenarioInfection, wound.DefaultProfile())
	require.NoError(t, err)
	times := TimePoints(cfg.SimulationDays, 15)
	first := -1
	for i, tt := range times {
		if tt >= 24 && gen.PH(tt) > 7.5 && gen.Temperature(tt)-36.8 > 1.0 {
			first = i
			break
		}
	}
	require.GreaterOrEqual(t, first, 0)
	want := times[first+35]

	require.True(t, res.AlertTriggered)
	require.NotNil(t, res.FirstAlertHours)
	assert.Equal(t, want, *res.FirstAlertHours)
	assert.InDelta(t, 146.25, *res.FirstAlertHours, 1e-9)

	// Strictly after onset + ISI crossing + persistence delay.
	isiCross := (36.965 + 1.0 - 36.8) / 1.65
	crossHours := -36 * math.Log(1-(isiCross-0.2)/0.6)
	assert.Greater(t, *res.FirstAlertHours, 48+crossHours+12)

	days, ok := res.FirstAlertDays()
	assert.True(t, ok)
	assert.InDelta(t, 146.25/24, days, 1e-12)

	// Once the curves saturate every sample is a violation.
	assert.Equal(t, 1.0, res.PeakViolationRate)
	assert.True(t, res.Samples[len(res.Samples)-1].Alert)
}

func TestRunDeterministicNormal(t *testing.T) {
	cfg := deterministicConfig(wound.ScenarioNormal)
	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, res.AlertTriggered)
	assert.Nil(t, res.FirstAlertHours)
	assert.Zero(t, res.AlertSamples)
	assert.Zero(t, res.PeakViolationRate)
	require.NotNil(t, res.Baseline)
	assert.InDelta(t, 36.965, *res.Baseline, 1e-12)
	assert.Nil(t, res.Samples, "samples are only kept when recording")
}

func TestRunNoisyScenarios(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		inf := DefaultRunConfig(wound.ScenarioInfection)
		inf.Seed = seed
		res, err := Run(context.Background(), inf)
		require.NoError(t, err)
		assert.True(t, res.AlertTriggered, "seed %d: infection not detected", seed)
		if res.FirstAlertHours != nil {
			assert.Greater(t, *res.FirstAlertHours, 120.0)
		}

		normal := DefaultRunConfig(wound.ScenarioNormal)
		normal.Seed = seed
		res, err = Run(context.Background(), normal)
		require.NoError(t, err)
		assert.False(t, res.AlertTriggered, "seed %d: false positive", seed)
	}
}

func TestRunSeedReproducible(t *testing.T) {
	cfg := DefaultRunConfig(wound.ScenarioInfection)
	cfg.Seed = 99
	cfg.Record = true

	a, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	b, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different runs (-a +b):\n%s", diff)
	}

	cfg.Seed = 100
	c, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Samples[10].PH, c.Samples[10].PH)
}

func TestRunCalibrationUnderflow(t *testing.T) {
	cfg := deterministicConfig(wound.ScenarioInfection)
	cfg.SimulationDays = 0.5

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Baseline, "baseline must be undefined when calibration never completes")
	assert.False(t, res.AlertTriggered)
	assert.Equal(t, 48, res.Steps)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, DefaultRunConfig(wound.ScenarioNormal))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr error
	}{
		{"zero_window", func(c *RunConfig) { c.Alert.PersistenceHours = 0.1 }, alert.ErrInvalidWindow},
		{"bad_scenario", func(c *RunConfig) { c.Scenario = "sepsis" }, wound.ErrUnknownScenario},
		{"bad_noise", func(c *RunConfig) { c.PHNoise.NoiseSigma = -1 }, sensor.ErrNegativeSigma},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultRunConfig(wound.ScenarioInfection)
			tc.mutate(&cfg)
			_, err := Run(context.Background(), cfg)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	cfg := DefaultRunConfig(wound.ScenarioNormal)
	cfg.SimulationDays = 0
	_, err := Run(context.Background(), cfg)
	assert.Error(t, err)

	cfg = DefaultRunConfig(wound.ScenarioNormal)
	cfg.NoiseMultiplier = math.NaN()
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err)

	cfg = DefaultRunConfig(wound.ScenarioNormal).WithSamplingInterval(0)
	_, err = Run(context.Background(), cfg)
	assert.ErrorIs(t, err, sensor.ErrInvalidSamplingInterval)
}

func TestWithSamplingInterval(t *testing.T) {
	cfg := DefaultRunConfig(wound.ScenarioNormal).WithSamplingInterval(5)
	assert.Equal(t, 5.0, cfg.PHNoise.SamplingIntervalMinutes)
	assert.Equal(t, 5.0, cfg.TemperatureNoise.SamplingIntervalMinutes)
	assert.Equal(t, 5.0, cfg.Alert.SamplingIntervalMinutes)
	assert.Equal(t, 144, cfg.Alert.WindowSize())
}

func TestWriteTraceCSV(t *testing.T) {
	cfg := deterministicConfig(wound.ScenarioInfection)
	cfg.SimulationDays = 1
	cfg.Record = true
	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTraceCSV(&buf, res.Samples))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 97)
	assert.Equal(t, TraceHeader, rows[0])
	assert.Equal(t, []string{"0.2500", "6.000000", "36.800000", "6.000000", "36.800000", "false", "0.000000"}, rows[2])
}
