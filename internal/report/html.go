package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/sweep"
)

// traceMaxPoints caps the number of points per HTML trace series.
const traceMaxPoints = 2000

// RenderSweepHTML writes a go-echarts page with one line chart per
// sensitivity curve.
func RenderSweepHTML(w io.Writer, records []sweep.Record) error {
	if len(records) == 0 {
		return ErrNoSamples
	}

	page := components.NewPage()
	page.PageTitle = "Wound alert robustness sweep"
	for _, c := range SensitivityCurves(records) {
		x := make([]string, len(c.Points))
		y := make([]opts.LineData, len(c.Points))
		for i, pt := range c.Points {
			x[i] = strconv.FormatFloat(pt.X, 'g', -1, 64)
			y[i] = opts.LineData{Value: pt.Y}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: fmt.Sprintf("%d values", len(c.Points))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel, NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel, NameLocation: "middle", NameGap: 40}),
		)
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		}
		if c.Reference != nil {
			seriesOpts = append(seriesOpts, charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: c.ReferenceLabel, YAxis: *c.Reference}))
		}
		line.SetXAxis(x).AddSeries(string(c.Param), y, seriesOpts...)
		page.AddCharts(line)
	}
	return page.Render(w)
}

// RenderTraceHTML writes a go-echarts page with the pH, temperature and
// alert traces of one run. Long runs are decimated to traceMaxPoints.
func RenderTraceHTML(w io.Writer, samples []sim.Sample, o TraceOptions) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	stride := (len(samples) + traceMaxPoints - 1) / traceMaxPoints

	var x []string
	var ph, phClean, temp, tempClean, alertState []opts.LineData
	for i := 0; i < len(samples); i += stride {
		s := samples[i]
		x = append(x, strconv.FormatFloat(s.THours, 'f', 2, 64))
		ph = append(ph, opts.LineData{Value: s.PH})
		phClean = append(phClean, opts.LineData{Value: s.CleanPH})
		temp = append(temp, opts.LineData{Value: s.Temperature})
		tempClean = append(tempClean, opts.LineData{Value: s.CleanTemp})
		a := 0
		if s.Alert {
			a = 1
		}
		alertState = append(alertState, opts.LineData{Value: a})
	}

	newChart := func(title, yName string) *charts.Line {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
			charts.WithTitleOpts(opts.Title{Title: title}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Time (hours)", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: yName, Scale: opts.Bool(true)}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		)
		return line
	}
	noSymbol := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})

	phChart := newChart(o.Title+" pH", "pH")
	phChart.SetXAxis(x).
		AddSeries("measured", ph, noSymbol).
		AddSeries("true", phClean, noSymbol,
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: o.PHThreshold}))

	tempSeries := []charts.SeriesOpts{noSymbol}
	if o.Baseline != nil {
		tempSeries = append(tempSeries, charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "baseline + ΔT", YAxis: *o.Baseline + o.TemperatureDelta}))
	}
	tempChart := newChart(o.Title+" temperature", "°C")
	tempChart.SetXAxis(x).
		AddSeries("measured", temp, noSymbol).
		AddSeries("true", tempClean, tempSeries...)

	alertChart := newChart(o.Title+" alert", "alert")
	alertChart.SetXAxis(x).
		AddSeries("alert", alertState, noSymbol, charts.WithLineChartOpts(opts.LineChart{Step: "start"}))

	page := components.NewPage()
	page.PageTitle = "Wound monitoring trace"
	page.AddCharts(phChart, tempChart, alertChart)
	return page.Render(w)
}
