// Command sweep runs the robustness suites against both wound scenarios and
// writes the results CSV, sensitivity figures and a summary report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/wound.alert/internal/config"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/report"
	"github.com/banshee-data/wound.alert/internal/sweep"
	"github.com/banshee-data/wound.alert/internal/timeutil"
	"github.com/banshee-data/wound.alert/internal/version"
)

const (
	resultsFile     = "robustness_results.csv"
	sensitivityFile = "sensitivity_curves.png"
	htmlFile        = "sensitivity_curves.html"
	reportFile      = "summary_report.txt"
)

var (
	outDir       = flag.String("out", "sweep-results", "Output directory")
	configPath   = flag.String("config", "", "Base simulation config file (.json, .yaml or .yml)")
	trials       = flag.Int("trials", 1, "Trials per configuration")
	parallel     = flag.Int("parallel", 0, "Concurrent runs (0 = GOMAXPROCS)")
	seed         = flag.Uint64("seed", 0, "Base seed; trial i uses seed+i (0 = config seed, or random when unset)")
	suites       = flag.String("suites", "", "Comma-separated suites to run, by name or parameter (default all)")
	progress     = flag.Duration("progress", 5*time.Second, "Progress log interval (0 disables)")
	noPlots      = flag.Bool("no-plots", false, "Skip PNG and HTML output")
	quiet        = flag.Bool("quiet", false, "Suppress diagnostic logging")
	printVersion = flag.Bool("version", false, "Print version and exit")

	// Per-suite value overrides: comma list or min:max:step.
	valueFlags = map[sweep.Param]*string{
		sweep.ParamSamplingInterval:   flag.String("sampling", "", "Override sampling interval values (minutes)"),
		sweep.ParamNoiseMultiplier:    flag.String("noise", "", "Override noise multiplier values"),
		sweep.ParamPHThreshold:        flag.String("ph", "", "Override pH threshold values"),
		sweep.ParamDTThreshold:        flag.String("dt", "", "Override ΔT threshold values"),
		sweep.ParamViolationThreshold: flag.String("violation", "", "Override violation threshold values"),
	}
)

// selectSuites filters the default suites by name or parameter and applies
// value overrides.
func selectSuites(filter string, overrides map[sweep.Param]string) ([]sweep.Suite, error) {
	all := sweep.DefaultSuites()
	for i := range all {
		list := overrides[all[i].Param]
		if list == "" {
			continue
		}
		values, err := sweep.ParseParamList(list)
		if err != nil {
			return nil, fmt.Errorf("%s values: %w", all[i].Param, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s values: %q yields no values", all[i].Param, list)
		}
		all[i].Values = values
	}
	if strings.TrimSpace(filter) == "" {
		return all, nil
	}

	var out []sweep.Suite
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		found := false
		for _, s := range all {
			if strings.EqualFold(s.Name, name) || string(s.Param) == strings.ToLower(name) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
	}
	return out, nil
}

func writeResults(dir string, records []sweep.Record, plots bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, resultsFile))
	if err != nil {
		return err
	}
	if err := sweep.NewCSVWriter(f).WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	rf, err := os.Create(filepath.Join(dir, reportFile))
	if err != nil {
		return err
	}
	if err := sweep.WriteReport(rf, sweep.Summarize(records)); err != nil {
		rf.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := rf.Close(); err != nil {
		return err
	}

	if !plots {
		return nil
	}
	if err := report.SaveSensitivityPlot(filepath.Join(dir, sensitivityFile), records); err != nil {
		return fmt.Errorf("sensitivity plot: %w", err)
	}
	hf, err := os.Create(filepath.Join(dir, htmlFile))
	if err != nil {
		return err
	}
	if err := report.RenderSweepHTML(hf, records); err != nil {
		hf.Close()
		return fmt.Errorf("sensitivity html: %w", err)
	}
	return hf.Close()
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String("sweep"))
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	opts := sweep.DefaultOptions()
	if *configPath != "" {
		cfg, err := config.LoadSimulationConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		base, err := cfg.RunConfig()
		if err != nil {
			log.Fatalf("Invalid base configuration: %v", err)
		}
		opts.Base = base
		params := sweep.ParamsFromRunConfig(base)
		opts.BaseParams = &params
	}

	overrides := map[sweep.Param]string{}
	for p, v := range valueFlags {
		overrides[p] = *v
	}
	selected, err := selectSuites(*suites, overrides)
	if err != nil {
		log.Fatalf("Invalid suite selection: %v", err)
	}
	opts.Suites = selected
	opts.Trials = *trials
	opts.Parallelism = *parallel
	opts.Seed = *seed
	opts.ProgressInterval = *progress

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := sweep.NewRunner(timeutil.RealClock{})
	records, err := runner.Run(ctx, opts)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	if err := writeResults(*outDir, records, !*noPlots); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
	if err := sweep.WriteReport(os.Stdout, sweep.Summarize(records)); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}
	log.Printf("Results saved to %s", *outDir)
}
