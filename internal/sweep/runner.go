package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/wound.alert/internal/monitoring"
	"github.com/banshee-data/wound.alert/internal/sim"
	"github.com/banshee-data/wound.alert/internal/timeutil"
	"github.com/banshee-data/wound.alert/internal/wound"
)

// ErrSweepInProgress is returned when Run is called while another sweep on
// the same Runner has not finished.
var ErrSweepInProgress = errors.New("sweep already in progress")

// maxRuns bounds a single sweep.
const maxRuns = 10000

var logf = monitoring.WithPrefix("[sweep] ")

// SweepStatus represents the current state of a sweep run
type SweepStatus string

const (
	SweepStatusIdle     SweepStatus = "idle"
	SweepStatusRunning  SweepStatus = "running"
	SweepStatusComplete SweepStatus = "complete"
	SweepStatusError    SweepStatus = "error"
)

// SweepState is a snapshot of the runner's progress.
type SweepState struct {
	RunID       string      `json:"run_id,omitempty"`
	Status      SweepStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	TotalRuns   int         `json:"total_runs"`
	Completed   int         `json:"completed_runs"`
	Error       string      `json:"error,omitempty"`
}

// Options configures one sweep.
type Options struct {
	// Suites to run; defaults to DefaultSuites.
	Suites []Suite
	// Scenarios each value is run against; defaults to infection and normal.
	Scenarios []wound.Scenario
	// Base supplies everything the Params do not override.
	Base sim.RunConfig
	// BaseParams is the operating point suites vary from; defaults to BaselineParams.
	BaseParams *Params
	// Trials replicates every configuration; values below 1 mean 1.
	Trials int
	// Parallelism bounds concurrent runs; values below 1 mean GOMAXPROCS.
	Parallelism int
	// Seed fixes trial seeds to Seed+trial so every configuration sees the
	// same noise streams. Zero falls back to Base.Seed+trial, and when both
	// are zero every run draws a fresh seed.
	Seed uint64
	// ProgressInterval is the period of progress log lines; zero disables them.
	ProgressInterval time.Duration
}

// DefaultOptions returns the reference sweep.
func DefaultOptions() Options {
	return Options{
		Suites:    DefaultSuites(),
		Scenarios: []wound.Scenario{wound.ScenarioInfection, wound.ScenarioNormal},
		Base:      sim.DefaultRunConfig(wound.ScenarioInfection),
	}
}

type job struct {
	index  int
	suite  Suite
	value  float64
	params Params
	trial  int
	cfg    sim.RunConfig
}

// Runner executes sweeps one at a time.
type Runner struct {
	clock timeutil.Clock
	mu    sync.RWMutex
	state SweepState
}

// NewRunner creates a runner; a nil clock means the real clock.
func NewRunner(clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		clock: clock,
		state: SweepState{Status: SweepStatusIdle},
	}
}

// State returns a copy of the current sweep state.
func (r *Runner) State() SweepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// plan expands the options into jobs and validates every run configuration
// before anything is executed.
func plan(opts Options) ([]job, error) {
	base := BaselineParams()
	if opts.BaseParams != nil {
		base = *opts.BaseParams
	}
	trials := max(opts.Trials, 1)
	seed := opts.Seed
	if seed == 0 {
		seed = opts.Base.Seed
	}

	var jobs []job
	for _, suite := range opts.Suites {
		if len(suite.Values) == 0 {
			return nil, fmt.Errorf("suite %q has no values", suite.Name)
		}
		for _, scenario := range opts.Scenarios {
			for _, v := range suite.Values {
				params, err := base.With(suite.Param, v)
				if err != nil {
					return nil, fmt.Errorf("suite %q: %w", suite.Name, err)
				}
				cfg := params.Apply(opts.Base)
				cfg.Scenario = scenario
				cfg.Record = false
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("suite %q %s=%g: %w", suite.Name, suite.Param, v, err)
				}
				for trial := 0; trial < trials; trial++ {
					if len(jobs) >= maxRuns {
						return nil, fmt.Errorf("sweep too large: more than %d runs", maxRuns)
					}
					c := cfg
					c.Seed = 0
					if seed != 0 {
						c.Seed = seed + uint64(trial)
					}
					jobs = append(jobs, job{index: len(jobs), suite: suite, value: v, params: params, trial: trial, cfg: c})
				}
			}
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no runs to sweep")
	}
	return jobs, nil
}

// Run executes the sweep and returns one record per run in suite, scenario,
// value, trial order. The first failing run cancels the rest.
func (r *Runner) Run(ctx context.Context, opts Options) ([]Record, error) {
	if len(opts.Suites) == 0 {
		opts.Suites = DefaultSuites()
	}
	if len(opts.Scenarios) == 0 {
		opts.Scenarios = []wound.Scenario{wound.ScenarioInfection, wound.ScenarioNormal}
	}
	jobs, err := plan(opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.state.Status == SweepStatusRunning {
		r.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	now := r.clock.Now()
	r.state = SweepState{
		RunID:     uuid.NewString(),
		Status:    SweepStatusRunning,
		StartedAt: &now,
		TotalRuns: len(jobs),
	}
	runID := r.state.RunID
	r.mu.Unlock()

	logf("sweep %s: %d suites, %d runs", runID, len(opts.Suites), len(jobs))

	stopProgress := r.reportProgress(opts.ProgressInterval)
	defer stopProgress()

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	records := make([]Record, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := sim.Run(gctx, j.cfg)
			if err != nil {
				return fmt.Errorf("%s %s=%g %s trial %d: %w",
					j.suite.Name, j.suite.Param, j.value, j.cfg.Scenario, j.trial, err)
			}
			records[j.index] = Record{
				Test:              j.suite.Name,
				Param:             j.suite.Param,
				Scenario:          j.cfg.Scenario,
				Trial:             j.trial,
				Seed:              res.Seed,
				Params:            j.params,
				AlertTriggered:    res.AlertTriggered,
				AlertTimeHours:    res.FirstAlertHours,
				PeakViolationRate: res.PeakViolationRate,
			}
			r.mu.Lock()
			r.state.Completed++
			r.mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	r.mu.Lock()
	done := r.clock.Now()
	r.state.CompletedAt = &done
	completed := r.state.Completed
	if err != nil {
		r.state.Status = SweepStatusError
		r.state.Error = fmt.Sprintf("sweep stopped at run %d/%d: %v", completed, len(jobs), err)
	} else {
		r.state.Status = SweepStatusComplete
	}
	started := *r.state.StartedAt
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	logf("sweep %s complete: %d runs in %s", runID, completed, r.clock.Since(started).Round(time.Millisecond))
	return records, nil
}

// reportProgress logs completed/total every interval until the returned
// stop function is called.
func (r *Runner) reportProgress(interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	ticker := r.clock.NewTicker(interval)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C():
				s := r.State()
				logf("progress: %d/%d runs", s.Completed, s.TotalRuns)
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(quit)
		wg.Wait()
	}
}
