// Command woundsim runs one simulated monitoring session for a wound
// scenario and reports whether and when the infection alert fired.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/wound.alert/internal/config"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/report"
	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/version"
)

var (
	configPath   = flag.String("config", "", "Simulation config file (.json, .yaml or .yml)")
	scenario     = flag.String("scenario", "infection", "Scenario: infection or normal")
	days         = flag.Float64("days", sim.DefaultSimulationDays, "Simulated duration in days")
	interval     = flag.Float64("interval", 15, "Sampling interval in minutes")
	phThreshold  = flag.Float64("ph-threshold", 7.5, "pH alert threshold")
	dtThreshold  = flag.Float64("dt-threshold", 1.0, "Temperature rise above baseline (°C)")
	persistence  = flag.Float64("persistence", 12, "Persistence window in hours")
	violation    = flag.Float64("violation", 0.75, "Fraction of the window that must co-violate")
	noise        = flag.Float64("noise", 1.0, "Noise multiplier applied to both sensors")
	seed         = flag.Uint64("seed", 0, "Random seed (0 = random)")
	traceCSV     = flag.String("trace", "", "Write the per-sample trace to this CSV file")
	plotPNG      = flag.String("plot", "", "Write the trace plot to this PNG file")
	traceHTML    = flag.String("html", "", "Write an interactive trace page to this HTML file")
	quiet        = flag.Bool("quiet", false, "Suppress diagnostic logging")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

// flagOverrides copies explicitly set flags onto cfg so they win over the
// config file; unset flags leave file values (or defaults) alone.
func flagOverrides(cfg *config.SimulationConfig, set map[string]bool) {
	if set["scenario"] {
		cfg.Scenario = scenario
	}
	if set["days"] {
		cfg.SimulationDays = days
	}
	if set["interval"] {
		cfg.SamplingIntervalMinutes = interval
	}
	if set["ph-threshold"] {
		cfg.PHThreshold = phThreshold
	}
	if set["dt-threshold"] {
		cfg.TemperatureDeltaThreshold = dtThreshold
	}
	if set["persistence"] {
		cfg.PersistenceHours = persistence
	}
	if set["violation"] {
		cfg.ViolationThreshold = violation
	}
	if set["noise"] {
		cfg.NoiseMultiplier = noise
	}
	if set["seed"] {
		cfg.Seed = seed
	}
}

func loadConfig(set map[string]bool) (*config.SimulationConfig, error) {
	cfg := config.EmptySimulationConfig()
	if *configPath != "" {
		loaded, err := config.LoadSimulationConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	flagOverrides(cfg, set)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func printBanner(w io.Writer, rc sim.RunConfig) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "ALERT LOGIC CONFIGURATION")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Scenario: %s (%.1f days)\n", rc.Scenario, rc.SimulationDays)
	fmt.Fprintf(w, "Sampling interval: %g min\n", rc.Alert.SamplingIntervalMinutes)
	fmt.Fprintf(w, "pH threshold: %g\n", rc.Alert.PHThreshold)
	fmt.Fprintf(w, "ΔT threshold: %g °C\n", rc.Alert.TemperatureDeltaThreshold)
	fmt.Fprintf(w, "Window size: %d samples (%.1f h)\n", rc.Alert.WindowSize(),
		float64(rc.Alert.WindowSize())*rc.Alert.SamplingIntervalMinutes/60)
	fmt.Fprintf(w, "Violation threshold: %.0f%%\n", rc.Alert.ViolationThreshold*100)
	fmt.Fprintf(w, "Baseline calibration: first %g h\n", rc.Alert.BaselineCalibrationHours)
	fmt.Fprintf(w, "Noise: pH σ=%g, T σ=%g, multiplier %g\n",
		rc.PHNoise.NoiseSigma, rc.TemperatureNoise.NoiseSigma, rc.NoiseMultiplier)
	fmt.Fprintln(w, rule)
}

func printSummary(w io.Writer, res *sim.RunResult) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nVALIDATION SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "Scenario: %s (seed %d)\n", res.Scenario, res.Seed)
	if res.Baseline != nil {
		fmt.Fprintf(w, "Temperature baseline: %.3f °C\n", *res.Baseline)
	} else {
		fmt.Fprintln(w, "Temperature baseline: not locked (run shorter than calibration)")
	}
	fmt.Fprintf(w, "Alert triggered: %v\n", res.AlertTriggered)
	if d, ok := res.FirstAlertDays(); ok {
		fmt.Fprintf(w, "First alert at: %.1f hours (%.1f days)\n", *res.FirstAlertHours, d)
	}
	fmt.Fprintf(w, "Peak violation rate: %.1f%%\n", res.PeakViolationRate*100)
	fmt.Fprintf(w, "%s\n", rule)
}

func writeOutputs(res *sim.RunResult, rc sim.RunConfig) error {
	opts := report.TraceOptions{
		Title:            fmt.Sprintf("%s scenario", rc.Scenario),
		PHThreshold:      rc.Alert.PHThreshold,
		TemperatureDelta: rc.Alert.TemperatureDeltaThreshold,
		Baseline:         res.Baseline,
	}
	if *traceCSV != "" {
		f, err := os.Create(*traceCSV)
		if err != nil {
			return err
		}
		if err := sim.WriteTraceCSV(f, res.Samples); err != nil {
			f.Close()
			return fmt.Errorf("write trace: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("Trace written to %s", *traceCSV)
	}
	if *plotPNG != "" {
		if err := report.SaveTracePlot(*plotPNG, res.Samples, opts); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		log.Printf("Plot written to %s", *plotPNG)
	}
	if *traceHTML != "" {
		f, err := os.Create(*traceHTML)
		if err != nil {
			return err
		}
		if err := report.RenderTraceHTML(f, res.Samples, opts); err != nil {
			f.Close()
			return fmt.Errorf("html: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("Trace page written to %s", *traceHTML)
	}
	return nil
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String("woundsim"))
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := loadConfig(set)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	rc, err := cfg.RunConfig()
	if err != nil {
		log.Fatalf("Failed to build run: %v", err)
	}
	rc.Record = *traceCSV != "" || *plotPNG != "" || *traceHTML != ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(os.Stdout, rc)
	res, err := sim.Run(ctx, rc)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	printSummary(os.Stdout, res)

	if err := writeOutputs(res, rc); err != nil {
		log.Fatalf("Failed to write outputs: %v", err)
	}
}
