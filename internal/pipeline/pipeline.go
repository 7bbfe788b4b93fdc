// Package pipeline drives the bootstrap stages in their fixed order and
// carries the state each stage hands to the next.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/deps"
	"github.com/onestopradio/stationctl/internal/envfile"
	"github.com/onestopradio/stationctl/internal/logging"
	"github.com/onestopradio/stationctl/internal/migrate"
	"github.com/onestopradio/stationctl/internal/sandbox"
	"github.com/onestopradio/stationctl/internal/smoketest"
	"github.com/onestopradio/stationctl/internal/toolchain"
)

// Run is the shared state threaded through the stages. Each stage reads what
// earlier stages produced and fills in its own fields.
type Run struct {
	ID        string
	StartedAt time.Time
	Settings  *config.Settings

	Toolchain  toolchain.Info
	Sandbox    sandbox.Handle
	SandboxEnv []string
	Install    deps.Report
	EnvFile    envfile.Snapshot
	Applied    []migrate.Applied
	Probe      smoketest.Result

	Warnings []Warning
}

// Warning records a non-fatal stage error that the run survived.
type Warning struct {
	Stage string
	Err   error
}

// NewRun allocates run state for one pipeline execution.
func NewRun(settings *config.Settings) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Settings:  settings,
	}
}

// Stage is one step of the bootstrap pipeline.
type Stage interface {
	Name() string
	// Fatal reports whether an error from this stage aborts the run.
	Fatal() bool
	Run(ctx context.Context, run *Run) error
}

type funcStage struct {
	name  string
	fatal bool
	fn    func(ctx context.Context, run *Run) error
}

func (s funcStage) Name() string                            { return s.name }
func (s funcStage) Fatal() bool                             { return s.fatal }
func (s funcStage) Run(ctx context.Context, run *Run) error { return s.fn(ctx, run) }

// NewStage wraps a function as a Stage.
func NewStage(name string, fatal bool, fn func(ctx context.Context, run *Run) error) Stage {
	return funcStage{name: name, fatal: fatal, fn: fn}
}

// Event represents a progress event during a run.
type Event struct {
	Stage    string
	Status   string // "started", "completed", "warning", "failed"
	Duration time.Duration
	Error    error
}

// Callback is called for each pipeline event if set.
type Callback func(event Event)

// StageResult is the recorded outcome of one stage.
type StageResult struct {
	Stage    string
	Status   string
	Duration time.Duration
	Err      error
}

// Report summarizes a finished (or aborted) run.
type Report struct {
	RunID    string
	Stages   []StageResult
	Warnings []Warning
	Duration time.Duration
}

// Failed reports whether a fatal stage error aborted the run.
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Status == "failed" {
			return true
		}
	}
	return false
}

// Runner executes stages in order.
type Runner struct {
	Callback Callback
}

// Execute drives the stages. A fatal stage error aborts the remainder and is
// returned; a non-fatal error is recorded as a warning and the run continues.
// The report covers every stage that ran either way.
func (r *Runner) Execute(ctx context.Context, run *Run, stages []Stage) (*Report, error) {
	report := &Report{RunID: run.ID}
	defer func() {
		report.Duration = time.Since(run.StartedAt)
		report.Warnings = run.Warnings
	}()

	emit := func(event Event) {
		if r.Callback != nil {
			r.Callback(event)
		}
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run cancelled: %w", err)
		}

		start := time.Now()
		emit(Event{Stage: stage.Name(), Status: "started"})

		err := stage.Run(ctx, run)
		elapsed := time.Since(start)
		if err == nil {
			emit(Event{Stage: stage.Name(), Status: "completed", Duration: elapsed})
			report.Stages = append(report.Stages, StageResult{Stage: stage.Name(), Status: "completed", Duration: elapsed})
			continue
		}

		if stage.Fatal() {
			emit(Event{Stage: stage.Name(), Status: "failed", Duration: elapsed, Error: err})
			report.Stages = append(report.Stages, StageResult{Stage: stage.Name(), Status: "failed", Duration: elapsed, Err: err})
			return report, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		logging.Warn("stage degraded", "stage", stage.Name(), "error", err)
		emit(Event{Stage: stage.Name(), Status: "warning", Duration: elapsed, Error: err})
		report.Stages = append(report.Stages, StageResult{Stage: stage.Name(), Status: "warning", Duration: elapsed, Err: err})
		run.Warnings = append(run.Warnings, Warning{Stage: stage.Name(), Err: err})
	}

	return report, nil
}
