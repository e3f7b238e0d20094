package sweep

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wound.alert/internal/wound"
)

func hoursPtr(h float64) *float64 { return &h }

func phRecord(scenario wound.Scenario, value float64, trial int, alertHours *float64, peak float64) Record {
	ps, _ := BaselineParams().With(ParamPHThreshold, value)
	return Record{
		Test: "T3.3_pH", Param: ParamPHThreshold, Scenario: scenario,
		Trial: trial, Seed: uint64(100 + trial), Params: ps,
		AlertTriggered: alertHours != nil, AlertTimeHours: alertHours, PeakViolationRate: peak,
	}
}

func TestSummarize(t *testing.T) {
	records := []Record{
		phRecord(wound.ScenarioInfection, 7.3, 0, hoursPtr(120), 1),
		phRecord(wound.ScenarioInfection, 7.3, 1, hoursPtr(144), 1),
		phRecord(wound.ScenarioInfection, 7.7, 0, nil, 0.5),
		phRecord(wound.ScenarioInfection, 7.7, 1, hoursPtr(200), 0.8),
		phRecord(wound.ScenarioNormal, 7.3, 0, nil, 0.1),
		phRecord(wound.ScenarioNormal, 7.3, 1, hoursPtr(30), 0.8),
		phRecord(wound.ScenarioNormal, 7.7, 0, nil, 0),
		phRecord(wound.ScenarioNormal, 7.7, 1, nil, 0),
	}

	sum := Summarize(records)
	assert.Equal(t, 8, sum.TotalRuns)
	assert.Equal(t, 1, sum.FalsePositives)
	assert.Equal(t, 1, sum.MissedAlerts)
	require.Len(t, sum.Suites, 1)

	s := sum.Suites[0]
	assert.Equal(t, "T3.3_pH", s.Test)
	assert.Equal(t, ParamPHThreshold, s.Param)
	require.Len(t, s.Infection, 2)
	require.Len(t, s.Normal, 2)
	require.Len(t, s.FalsePositives, 1)
	assert.Equal(t, 1, s.FalsePositives[0].Trial)

	low := s.Infection[0]
	assert.Equal(t, 7.3, low.Value)
	assert.Equal(t, 2, low.Runs)
	assert.Equal(t, 2, low.Alerts)
	assert.InDelta(t, 132, low.MeanAlertHours, 1e-9)
	assert.InDelta(t, 5.5, low.MeanAlertDays(), 1e-9)
	assert.InDelta(t, 16.970562748, low.StddevAlertHours, 1e-6)
	assert.Equal(t, 1.0, low.MeanPeakViolationRate)

	// Alert statistics ignore runs that never alerted.
	high := s.Infection[1]
	assert.Equal(t, 7.7, high.Value)
	assert.Equal(t, 1, high.Alerts)
	assert.Equal(t, 200.0, high.MeanAlertHours)
	assert.Zero(t, high.StddevAlertHours)
	assert.InDelta(t, 0.65, high.MeanPeakViolationRate, 1e-9)
}

func TestWriteReport(t *testing.T) {
	clean := []Record{
		phRecord(wound.ScenarioInfection, 7.5, 0, hoursPtr(146.25), 1),
		phRecord(wound.ScenarioNormal, 7.5, 0, nil, 0),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, Summarize(clean)))
	out := buf.String()

	assert.Contains(t, out, "### T3.3_pH (ph_threshold)")
	assert.Contains(t, out, "1/1")
	assert.Contains(t, out, "6.09 ± 0.00")
	assert.Contains(t, out, "no false positives")
	assert.Contains(t, out, "Zero false positives across all parameter variations")
	assert.NotContains(t, out, "FALSE POSITIVES")

	dirty := append(clean, phRecord(wound.ScenarioNormal, 7.5, 1, hoursPtr(48), 0.8))
	buf.Reset()
	require.NoError(t, WriteReport(&buf, Summarize(dirty)))
	out = buf.String()
	assert.Contains(t, out, "FALSE POSITIVES DETECTED: 1")
	assert.Contains(t, out, "ph_threshold=7.5 trial 1 seed 101: alert at day 2.00")
	assert.NotContains(t, out, "Zero false positives")
}
