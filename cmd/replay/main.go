// Command replay feeds a recorded pH/temperature CSV through the alert
// detector and optionally checks the outcome against expectations.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/wound.alert/internal/alert"
	"github.com/banshee-data/wound.alert/internal/config"
	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/replay"
	"github.com/banshee-data/wound.alert/internal/version"
)

// exitExpectation distinguishes a failed expectation from a broken input.
const exitExpectation = 2

var (
	inPath       = flag.String("in", "", "Recorded CSV (t_hours, ph, temp columns)")
	configPath   = flag.String("config", "", "Simulation config file supplying the alert settings")
	floorHours   = flag.Bool("floor-hours", false, "Truncate timestamps to whole hours before each update")
	expectAlert  = flag.Bool("expect-alert", false, "Require the alert to fire (or, with =false, not to)")
	expectHours  = flag.Float64("expect-hours", 0, "Require the first alert at this time in hours")
	tolerance    = flag.Float64("tolerance", 1, "Tolerance in hours for -expect-hours")
	asJSON       = flag.Bool("json", false, "Print the result as JSON")
	quiet        = flag.Bool("quiet", false, "Suppress diagnostic logging")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

// expectation builds the checks requested on the command line; flags that
// were not given are left unchecked.
func expectation(set map[string]bool) replay.Expectation {
	var e replay.Expectation
	if set["expect-alert"] {
		v := *expectAlert
		e.Alert = &v
	}
	if set["expect-hours"] {
		v := *expectHours
		e.Hours = &v
	}
	e.Tolerance = *tolerance
	return e
}

func alertConfig(path string) (alert.Config, error) {
	if path == "" {
		return alert.DefaultConfig(), nil
	}
	cfg, err := config.LoadSimulationConfig(path)
	if err != nil {
		return alert.Config{}, err
	}
	return cfg.AlertConfig(), nil
}

// replayFile loads path and replays it through a fresh detector.
func replayFile(path string, cfg alert.Config, opts replay.Options) (replay.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return replay.Result{}, err
	}
	defer f.Close()

	readings, err := replay.LoadCSV(f)
	if err != nil {
		return replay.Result{}, fmt.Errorf("load %s: %w", path, err)
	}
	det, err := alert.New(cfg)
	if err != nil {
		return replay.Result{}, fmt.Errorf("alert detector: %w", err)
	}
	return replay.Replay(det, readings, opts), nil
}

func printResult(w io.Writer, res replay.Result, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "Readings: %d\n", res.Readings)
	if res.Baseline != nil {
		fmt.Fprintf(w, "Temperature baseline: %.3f °C\n", *res.Baseline)
	} else {
		fmt.Fprintln(w, "Temperature baseline: not locked")
	}
	fmt.Fprintf(w, "Alert triggered: %v\n", res.AlertTriggered)
	if res.FirstAlertHours != nil {
		fmt.Fprintf(w, "First alert at: %.2f hours (%.2f days)\n", *res.FirstAlertHours, *res.FirstAlertHours/24)
	}
	fmt.Fprintf(w, "Alert samples: %d\n", res.AlertSamples)
	fmt.Fprintf(w, "Final violation rate: %.1f%%\n", res.Final.ViolationRate*100)
	return nil
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String("replay"))
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}
	if *inPath == "" {
		log.Fatal("-in is required")
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := alertConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	res, err := replayFile(*inPath, cfg, replay.Options{FloorHours: *floorHours})
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	if err := printResult(os.Stdout, res, *asJSON); err != nil {
		log.Fatalf("Failed to print result: %v", err)
	}

	if err := expectation(set).Verify(res); err != nil {
		if errors.Is(err, replay.ErrExpectationFailed) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitExpectation)
		}
		log.Fatal(err)
	}
}
