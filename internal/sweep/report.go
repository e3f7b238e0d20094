package sweep

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/wound.alert/internal/wound"
)

// ValueSummary aggregates the trials of one suite value for one scenario.
type ValueSummary struct {
	Value  float64 `json:"value"`
	Params Params  `json:"params"`
	Runs   int     `json:"runs"`
	Alerts int     `json:"alerts"`

	// Alert time statistics cover only the runs that alerted.
	MeanAlertHours   float64 `json:"mean_alert_hours"`
	StddevAlertHours float64 `json:"stddev_alert_hours"`

	MeanPeakViolationRate float64 `json:"mean_peak_violation_rate"`
}

// MeanAlertDays returns MeanAlertHours in days.
func (v ValueSummary) MeanAlertDays() float64 { return v.MeanAlertHours / 24 }

// SuiteSummary groups a suite's results by scenario.
type SuiteSummary struct {
	Test           string         `json:"test"`
	Param          Param          `json:"param"`
	Infection      []ValueSummary `json:"infection"`
	Normal         []ValueSummary `json:"normal"`
	FalsePositives []Record       `json:"false_positives,omitempty"`
	MissedAlerts   int            `json:"missed_alerts"`
}

// Summary is the whole-sweep digest printed by WriteReport.
type Summary struct {
	Suites         []SuiteSummary `json:"suites"`
	TotalRuns      int            `json:"total_runs"`
	FalsePositives int            `json:"false_positives"`
	MissedAlerts   int            `json:"missed_alerts"`
}

type valueKey struct {
	scenario wound.Scenario
	value    float64
}

// Summarize groups records by suite, scenario and value, keeping the order
// in which suites and values first appear.
func Summarize(records []Record) Summary {
	var sum Summary
	suiteIdx := map[string]int{}
	grouped := map[string]map[valueKey][]Record{}
	order := map[string][]valueKey{}

	for _, r := range records {
		sum.TotalRuns++
		if _, ok := suiteIdx[r.Test]; !ok {
			suiteIdx[r.Test] = len(sum.Suites)
			sum.Suites = append(sum.Suites, SuiteSummary{Test: r.Test, Param: r.Param})
			grouped[r.Test] = map[valueKey][]Record{}
		}
		k := valueKey{scenario: r.Scenario, value: r.Value()}
		if _, ok := grouped[r.Test][k]; !ok {
			order[r.Test] = append(order[r.Test], k)
		}
		grouped[r.Test][k] = append(grouped[r.Test][k], r)

		s := &sum.Suites[suiteIdx[r.Test]]
		switch {
		case r.Scenario == wound.ScenarioNormal && r.AlertTriggered:
			s.FalsePositives = append(s.FalsePositives, r)
			sum.FalsePositives++
		case r.Scenario == wound.ScenarioInfection && !r.AlertTriggered:
			s.MissedAlerts++
			sum.MissedAlerts++
		}
	}

	for i := range sum.Suites {
		s := &sum.Suites[i]
		for _, k := range order[s.Test] {
			vs := summarizeValue(k.value, grouped[s.Test][k])
			if k.scenario == wound.ScenarioNormal {
				s.Normal = append(s.Normal, vs)
			} else {
				s.Infection = append(s.Infection, vs)
			}
		}
	}
	return sum
}

func summarizeValue(value float64, rs []Record) ValueSummary {
	vs := ValueSummary{Value: value, Params: rs[0].Params, Runs: len(rs)}
	var hours, peaks []float64
	for _, r := range rs {
		peaks = append(peaks, r.PeakViolationRate)
		if r.AlertTriggered && r.AlertTimeHours != nil {
			vs.Alerts++
			hours = append(hours, *r.AlertTimeHours)
		}
	}
	vs.MeanAlertHours, vs.StddevAlertHours = MeanStddev(hours)
	vs.MeanPeakViolationRate, _ = MeanStddev(peaks)
	return vs
}

// WriteReport prints a plain-text summary of every suite.
func WriteReport(w io.Writer, s Summary) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "ROBUSTNESS SUMMARY REPORT")
	fmt.Fprintln(bw, rule)

	for _, suite := range s.Suites {
		fmt.Fprintf(bw, "\n### %s (%s)\n", suite.Test, suite.Param)

		fmt.Fprintln(bw, "\nInfection scenario:")
		fmt.Fprintf(bw, "  %-20s %-9s %-20s %s\n", suite.Param, "detected", "alert days", "peak rate")
		for _, v := range suite.Infection {
			alertDays := "-"
			if v.Alerts > 0 {
				alertDays = fmt.Sprintf("%.2f ± %.2f", v.MeanAlertDays(), v.StddevAlertHours/24)
			}
			fmt.Fprintf(bw, "  %-20g %-9s %-20s %.3f\n",
				v.Value, fmt.Sprintf("%d/%d", v.Alerts, v.Runs), alertDays, v.MeanPeakViolationRate)
		}

		fmt.Fprintln(bw, "\nNormal scenario:")
		if len(suite.FalsePositives) == 0 {
			fmt.Fprintln(bw, "  no false positives")
		} else {
			fmt.Fprintf(bw, "  FALSE POSITIVES DETECTED: %d\n", len(suite.FalsePositives))
			for _, r := range suite.FalsePositives {
				days, _ := r.AlertTimeDays()
				fmt.Fprintf(bw, "  %s=%g trial %d seed %d: alert at day %.2f\n", r.Param, r.Value(), r.Trial, r.Seed, days)
			}
		}
	}

	fmt.Fprintf(bw, "\n%s\n", rule)
	fmt.Fprintf(bw, "%d runs, %d missed infections\n", s.TotalRuns, s.MissedAlerts)
	if s.FalsePositives == 0 {
		fmt.Fprintln(bw, "Zero false positives across all parameter variations")
	} else {
		fmt.Fprintf(bw, "FALSE POSITIVES DETECTED: %d\n", s.FalsePositives)
	}
	return bw.Flush()
}
