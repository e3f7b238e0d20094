// Package report renders simulation traces and sweep results as PNG figures
// (gonum/plot) and interactive HTML pages (go-echarts).
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/sweep"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no samples to plot")

var (
	colorClean     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorNoisy     = color.RGBA{R: 255, G: 127, B: 14, A: 160}
	colorThreshold = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorAlert     = color.RGBA{R: 148, G: 0, B: 0, A: 255}
	colorReference = color.Black

	seriesColors = []color.Color{
		color.RGBA{R: 31, G: 119, B: 180, A: 255},
		color.RGBA{R: 255, G: 127, B: 14, A: 255},
		color.RGBA{R: 44, G: 160, B: 44, A: 255},
		color.RGBA{R: 214, G: 39, B: 40, A: 255},
	}
)

// TraceOptions annotates a trace plot with the detector thresholds.
type TraceOptions struct {
	Title            string
	PHThreshold      float64
	TemperatureDelta float64
	// Baseline is the locked temperature baseline; nil omits the ΔT line.
	Baseline *float64
}

// SaveTracePlot writes three stacked panels to path as PNG: pH clean and
// noisy against the threshold, temperature clean and noisy against
// baseline+ΔT, and the alert state.
func SaveTracePlot(path string, samples []sim.Sample, o TraceOptions) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	cleanPH := make(plotter.XYs, len(samples))
	noisyPH := make(plotter.XYs, len(samples))
	cleanTemp := make(plotter.XYs, len(samples))
	noisyTemp := make(plotter.XYs, len(samples))
	alertState := make(plotter.XYs, len(samples))
	for i, s := range samples {
		days := s.THours / 24
		cleanPH[i] = plotter.XY{X: days, Y: s.CleanPH}
		noisyPH[i] = plotter.XY{X: days, Y: s.PH}
		cleanTemp[i] = plotter.XY{X: days, Y: s.CleanTemp}
		noisyTemp[i] = plotter.XY{X: days, Y: s.Temperature}
		if s.Alert {
			alertState[i] = plotter.XY{X: days, Y: 1}
		} else {
			alertState[i] = plotter.XY{X: days, Y: 0}
		}
	}

	pPH := plot.New()
	pPH.Title.Text = o.Title
	pPH.Y.Label.Text = "pH"
	if err := addLine(pPH, "measured", noisyPH, colorNoisy, 0.5); err != nil {
		return err
	}
	if err := addLine(pPH, "true", cleanPH, colorClean, 1.5); err != nil {
		return err
	}
	addHLine(pPH, fmt.Sprintf("threshold (%.2f)", o.PHThreshold), o.PHThreshold, colorThreshold)

	pTemp := plot.New()
	pTemp.Y.Label.Text = "Temperature (°C)"
	if err := addLine(pTemp, "measured", noisyTemp, colorNoisy, 0.5); err != nil {
		return err
	}
	if err := addLine(pTemp, "true", cleanTemp, colorClean, 1.5); err != nil {
		return err
	}
	if o.Baseline != nil {
		addHLine(pTemp, fmt.Sprintf("baseline + ΔT (%.2f °C)", *o.Baseline+o.TemperatureDelta),
			*o.Baseline+o.TemperatureDelta, colorThreshold)
	}

	pAlert := plot.New()
	pAlert.X.Label.Text = "Time (days)"
	pAlert.Y.Label.Text = "Alert"
	pAlert.Y.Min, pAlert.Y.Max = -0.1, 1.1
	alertLine, err := plotter.NewLine(alertState)
	if err != nil {
		return fmt.Errorf("alert line: %w", err)
	}
	alertLine.StepStyle = plotter.PreStep
	alertLine.Color = colorAlert
	alertLine.Width = vg.Points(1.5)
	pAlert.Add(alertLine)

	for _, p := range []*plot.Plot{pPH, pTemp} {
		p.Legend.Top = true
		p.Legend.Left = true
		p.Legend.XOffs = 10
		p.Add(plotter.NewGrid())
	}

	return saveTiles(path, [][]*plot.Plot{{pPH}, {pTemp}, {pAlert}}, 14*vg.Inch, 10*vg.Inch)
}

// SaveSensitivityPlot writes the 2×2 trade-off curves of a sweep to path as
// PNG. Only infection runs are plotted; repeated trials are averaged.
// Suites missing from records leave an empty panel.
func SaveSensitivityPlot(path string, records []sweep.Record) error {
	if len(records) == 0 {
		return ErrNoSamples
	}
	curves := SensitivityCurves(records)

	panels := [4]*plot.Plot{}
	for i, c := range curves {
		p := plot.New()
		p.Title.Text = c.Title
		p.X.Label.Text = c.XLabel
		p.Y.Label.Text = c.YLabel
		p.Add(plotter.NewGrid())
		if len(c.Points) > 0 {
			line, points, err := plotter.NewLinePoints(c.Points)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Title, err)
			}
			line.Color = seriesColors[i]
			line.Width = vg.Points(2)
			points.Color = seriesColors[i]
			points.Radius = vg.Points(4)
			p.Add(line, points)
		} else {
			p.Title.Text += " (no data)"
			p.X.Min, p.X.Max = 0, 1
			p.Y.Min, p.Y.Max = 0, 1
		}
		if c.Reference != nil {
			addHLine(p, c.ReferenceLabel, *c.Reference, colorReference)
			p.Legend.Top = true
		}
		panels[i] = p
	}

	return saveTiles(path, [][]*plot.Plot{{panels[0], panels[1]}, {panels[2], panels[3]}}, 14*vg.Inch, 10*vg.Inch)
}

// Curve is one sensitivity panel: mean infection outcome per suite value.
type Curve struct {
	Suite          string
	Param          sweep.Param
	Title          string
	XLabel         string
	YLabel         string
	Points         plotter.XYs
	Reference      *float64
	ReferenceLabel string
}

var violationReference = 75.0

// SensitivityCurves extracts the four trade-off curves from sweep records in
// panel order: ΔT, pH, sampling interval (alert days) and noise (peak
// violation %). Values that never alerted are left out of alert-time curves.
func SensitivityCurves(records []sweep.Record) []Curve {
	curves := []Curve{
		{Param: sweep.ParamDTThreshold, Title: "Temperature Sensitivity", XLabel: "ΔT threshold (°C)", YLabel: "Alert time (days)"},
		{Param: sweep.ParamPHThreshold, Title: "pH Sensitivity", XLabel: "pH threshold", YLabel: "Alert time (days)"},
		{Param: sweep.ParamSamplingInterval, Title: "Sampling Rate Impact", XLabel: "Sampling interval (minutes)", YLabel: "Alert time (days)"},
		{Param: sweep.ParamNoiseMultiplier, Title: "Noise Robustness", XLabel: "Noise multiplier", YLabel: "Peak violation rate (%)",
			Reference: &violationReference, ReferenceLabel: "75% threshold"},
	}

	summary := sweep.Summarize(records)
	for i := range curves {
		c := &curves[i]
		for _, s := range summary.Suites {
			if s.Param != c.Param {
				continue
			}
			c.Suite = s.Test
			c.Title = s.Test + ": " + c.Title
			for _, v := range s.Infection {
				switch {
				case c.Param == sweep.ParamNoiseMultiplier:
					c.Points = append(c.Points, plotter.XY{X: v.Value, Y: v.MeanPeakViolationRate * 100})
				case v.Alerts > 0:
					c.Points = append(c.Points, plotter.XY{X: v.Value, Y: v.MeanAlertDays()})
				}
			}
			break
		}
	}
	return curves
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color, width float64) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("%s line: %w", name, err)
	}
	l.Color = c
	l.Width = vg.Points(width)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

func addHLine(p *plot.Plot, name string, y float64, c color.Color) {
	f := plotter.NewFunction(func(float64) float64 { return y })
	f.Color = c
	f.Width = vg.Points(1.5)
	f.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(f)
	p.Legend.Add(name, f)
}

func saveTiles(path string, plots [][]*plot.Plot, width, height vg.Length) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
