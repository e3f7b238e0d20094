package sweep

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wound.alert/internal/wound"
)

func TestCSVWriter(t *testing.T) {
	hours := 146.25
	records := []Record{
		{
			Test: "T3.3_pH", Param: ParamPHThreshold, Scenario: wound.ScenarioInfection,
			Trial: 0, Seed: 7, Params: BaselineParams(),
			AlertTriggered: true, AlertTimeHours: &hours, PeakViolationRate: 1,
		},
		{
			Test: "T3.3_pH", Param: ParamPHThreshold, Scenario: wound.ScenarioNormal,
			Trial: 1, Seed: 8, Params: BaselineParams(),
			PeakViolationRate: 0.125,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(&buf).WriteAll(records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, RecordHeader, rows[0])
	assert.Equal(t, []string{
		"T3.3_pH", "ph_threshold", "infection", "0", "7",
		"15", "1", "7.5", "1", "0.75",
		"true", "146.25", "6.0938", "1.000000",
	}, rows[1])
	assert.Equal(t, []string{
		"T3.3_pH", "ph_threshold", "normal", "1", "8",
		"15", "1", "7.5", "1", "0.75",
		"false", "", "", "0.125000",
	}, rows[2])
}

func TestRecordValue(t *testing.T) {
	ps, err := BaselineParams().With(ParamViolationThreshold, 0.9)
	require.NoError(t, err)
	r := Record{Param: ParamViolationThreshold, Params: ps}
	assert.Equal(t, 0.9, r.Value())

	_, ok := r.AlertTimeDays()
	assert.False(t, ok)
}
