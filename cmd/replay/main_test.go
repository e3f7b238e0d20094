package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/wound.alert/internal/alert"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/replay"
	"github.com/banshee-data/wound.alert/internal/sensor"
	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/wound"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// writeTrace records a noiseless infection run to a CSV file.
func writeTrace(t *testing.T) string {
	t.Helper()
	cfg := sim.DefaultRunConfig(wound.ScenarioInfection)
	cfg.PHNoise = sensor.NoiseConfig{SamplingIntervalMinutes: 15}
	cfg.TemperatureNoise = sensor.NoiseConfig{SamplingIntervalMinutes: 15}
	cfg.Seed = 1
	cfg.Record = true
	res, err := sim.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "trace.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := sim.WriteTraceCSV(f, res.Samples); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayFileAndExpectations(t *testing.T) {
	path := writeTrace(t)
	res, err := replayFile(path, alert.DefaultConfig(), replay.Options{})
	if err != nil {
		t.Fatalf("replayFile: %v", err)
	}
	if !res.AlertTriggered || res.FirstAlertHours == nil || *res.FirstAlertHours != 146.25 {
		t.Fatalf("unexpected result: %+v", res)
	}

	defer func(a bool, h, tol float64) { *expectAlert, *expectHours, *tolerance = a, h, tol }(*expectAlert, *expectHours, *tolerance)

	*expectAlert, *expectHours, *tolerance = true, 146, 1
	if err := expectation(map[string]bool{"expect-alert": true, "expect-hours": true}).Verify(res); err != nil {
		t.Errorf("expected pass: %v", err)
	}

	*expectHours, *tolerance = 140, 1
	err = expectation(map[string]bool{"expect-hours": true}).Verify(res)
	if !errors.Is(err, replay.ErrExpectationFailed) {
		t.Errorf("expected ErrExpectationFailed, got %v", err)
	}

	*expectAlert = false
	err = expectation(map[string]bool{"expect-alert": true}).Verify(res)
	if !errors.Is(err, replay.ErrExpectationFailed) {
		t.Errorf("expected ErrExpectationFailed for -expect-alert=false, got %v", err)
	}

	// Nothing requested, nothing checked.
	if err := expectation(map[string]bool{}).Verify(res); err != nil {
		t.Errorf("unexpected failure with no expectations: %v", err)
	}
}

func TestReplayFileErrors(t *testing.T) {
	if _, err := replayFile(filepath.Join(t.TempDir(), "missing.csv"), alert.DefaultConfig(), replay.Options{}); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(bad, []byte("t_hours,ph,temp\n0,abc,36.8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := replayFile(bad, alert.DefaultConfig(), replay.Options{}); !errors.Is(err, replay.ErrMalformedRow) {
		t.Errorf("expected ErrMalformedRow, got %v", err)
	}

	cfg := alert.DefaultConfig()
	cfg.PersistenceHours = 0.1
	if _, err := replayFile(writeTrace(t), cfg, replay.Options{}); !errors.Is(err, alert.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestAlertConfigFromFile(t *testing.T) {
	got, err := alertConfig("")
	if err != nil || got != alert.DefaultConfig() {
		t.Fatalf("default alert config = %+v, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sim.json")
	if err := os.WriteFile(path, []byte(`{"ph_threshold": 7.3, "persistence_hours": 6}`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = alertConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.PHThreshold != 7.3 || got.PersistenceHours != 6 {
		t.Errorf("file settings not applied: %+v", got)
	}
}

func TestPrintResult(t *testing.T) {
	h, b := 146.25, 36.8
	res := replay.Result{Readings: 960, AlertTriggered: true, FirstAlertHours: &h, Baseline: &b, AlertSamples: 376}

	var buf bytes.Buffer
	if err := printResult(&buf, res, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Readings: 960", "Alert triggered: true", "First alert at: 146.25 hours", "36.800"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := printResult(&buf, res, true); err != nil {
		t.Fatal(err)
	}
	var decoded replay.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.FirstAlertHours == nil || *decoded.FirstAlertHours != 146.25 {
		t.Errorf("decoded first alert = %v", decoded.FirstAlertHours)
	}
}
