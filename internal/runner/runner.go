// Package runner executes scenarios end to end: it reserves the shared
// resources, builds the application, spawns it, captures and orders its
// output, verifies the outcome, and reports.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ipcrunner/internal/build"
	"ipcrunner/internal/capture"
	"ipcrunner/internal/chrono"
	"ipcrunner/internal/config"
	"ipcrunner/internal/metrics"
	"ipcrunner/internal/resources"
	"ipcrunner/internal/scenario"
	"ipcrunner/internal/supervisor"
	"ipcrunner/internal/verify"
	"ipcrunner/pkg/logging"

	"github.com/google/uuid"
)

// Options configures a Runner.
type Options struct {
	Harness config.HarnessConfig

	// NoBuild skips the build step even when the configuration enables it.
	NoBuild bool
	// KeepArtifacts leaves the files written by the run in place.
	KeepArtifacts bool
	// FailFast stops the suite after the first scenario that does not pass.
	FailFast bool
	// Stream reports every line as it is captured.
	Stream bool
	// BuildProgress receives the build spinner.
	BuildProgress io.Writer

	// ReportDir, when set, receives a detailed JSON report of the suite.
	ReportDir string
	// MetricsFile, when set, receives the metrics in Prometheus text format.
	MetricsFile string
}

// Runner executes scenarios sequentially. The application under test uses
// fixed resource names, so two scenarios can never run at once.
type Runner struct {
	opts     Options
	reporter Reporter
	metrics  *metrics.Collector
}

// New creates a Runner. A nil collector disables metrics.
func New(opts Options, reporter Reporter, collector *metrics.Collector) *Runner {
	if collector == nil && opts.MetricsFile != "" {
		collector = metrics.New()
	}
	return &Runner{opts: opts, reporter: reporter, metrics: collector}
}

// Run executes scenarios in order and reports the suite. The returned error
// only covers writing the report or the metrics file; scenario outcomes are
// in the SuiteResult.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*SuiteResult, error) {
	suite := &SuiteResult{
		StartTime:       time.Now(),
		TotalScenarios:  len(scenarios),
		ScenarioResults: make([]ScenarioResult, 0, len(scenarios)),
	}

	r.reporter.ReportStart(scenarios)

	for _, s := range scenarios {
		result := r.RunScenario(ctx, s)
		suite.ScenarioResults = append(suite.ScenarioResults, result)
		r.updateCounters(suite, result)
		r.reporter.ReportScenarioResult(result)

		if result.Result == ResultInterrupted {
			break
		}
		if r.opts.FailFast && result.Result != ResultPassed {
			logging.Info("Runner", "Stopping after %s (fail fast)", s.Name)
			break
		}
	}

	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)

	r.reporter.ReportSuiteResult(*suite)

	var errs []error
	if r.opts.ReportDir != "" {
		path, err := SaveReport(r.opts.ReportDir, *suite)
		if err != nil {
			errs = append(errs, err)
		} else {
			logging.Info("Runner", "Detailed report saved to %s", path)
		}
	}
	if r.metrics != nil && r.opts.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(r.opts.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics file: %w", err))
		}
	}

	return suite, errors.Join(errs...)
}

func (r *Runner) updateCounters(suite *SuiteResult, result ScenarioResult) {
	switch result.Result {
	case ResultPassed:
		suite.PassedScenarios++
	case ResultFailed:
		suite.FailedScenarios++
	case ResultError:
		suite.ErrorScenarios++
	case ResultInterrupted:
		suite.InterruptedScenarios++
	}
}

// RunScenario executes one scenario. Resources reserved for the run are
// released on every path out of it.
func (r *Runner) RunScenario(ctx context.Context, s scenario.Scenario) (result ScenarioResult) {
	result = ScenarioResult{
		RunID:     uuid.NewString(),
		Scenario:  s,
		Name:      s.Name,
		Source:    s.Source,
		Result:    ResultPassed,
		StartTime: time.Now(),
	}
	r.reporter.ReportScenarioStart(s)
	logging.Info("Runner", "Running %s (run %s, %d clients)", s.Name, result.RunID, s.ClientCount)

	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		r.recordMetrics(result)
	}()

	h := r.opts.Harness

	reservation, err := resources.Reserve(h.Path(h.LockFile))
	if err != nil {
		return r.fail(result, ResultError, err)
	}
	defer func() {
		if err := reservation.ReleaseAll(); err != nil {
			logging.Warn("Runner", "Cleanup after %s was incomplete: %v", s.Name, err)
		}
	}()

	if err := r.reserve(reservation); err != nil {
		return r.fail(result, ResultError, err)
	}

	if h.Build.Enabled && !r.opts.NoBuild {
		out, err := build.Run(ctx, build.Options{Dir: h.WorkDir, Command: h.Build.Command, Progress: r.opts.BuildProgress})
		result.BuildOutput = out
		if err != nil {
			result.BuildFailed = true
			return r.fail(result, r.errorOrInterrupt(ctx), err)
		}
	}

	sup := supervisor.New(supervisor.Options{
		WorkDir:       h.WorkDir,
		Server:        supervisor.Program{Path: h.Server.Path, Args: h.Server.Args},
		Client:        supervisor.Program{Path: h.Client.Path, Args: h.Client.Args},
		CommandsFile:  h.Artifacts.Commands,
		ServerWarmup:  h.Timing.ServerWarmup,
		ClientStagger: h.Timing.ClientStagger,
		StopTimeout:   h.Timing.ServerExitTimeout,
	})

	if err := sup.Launch(ctx, s.Commands, s.ClientCount); err != nil {
		result.Processes = summarize(sup.Processes())
		return r.fail(result, r.errorOrInterrupt(ctx), err)
	}

	capOpts := capture.Options{
		ShutdownGrace:     h.Timing.ShutdownGrace,
		ServerExitTimeout: h.Timing.ServerExitTimeout,
		RunTimeout:        h.Timing.RunTimeout,
	}
	if r.opts.Stream {
		capOpts.OnEvent = r.reporter.ReportEvent
	}

	clients := sup.Clients()
	sources := make([]capture.Source, 0, len(clients))
	for _, c := range clients {
		sources = append(sources, c)
	}

	mux := capture.New(capOpts)
	captured, capErr := mux.Run(ctx, sup.Server(), sources)

	for _, label := range sup.Shutdown(h.Timing.ServerExitTimeout) {
		captured.Anomalies = append(captured.Anomalies, fmt.Sprintf("%s did not exit within %s", label, h.Timing.ServerExitTimeout))
	}
	if err := mux.Wait(); err != nil {
		logging.Warn("Runner", "Output reader failed: %v", err)
	}

	result.Processes = summarize(sup.Processes())
	result.EventCount = len(captured.Events)
	result.LineCounts = captured.LineCounts
	result.Anomalies = captured.Anomalies
	result.Log = chrono.Merge(captured.Events, chrono.Options{Rollover: h.Ordering.Rollover})

	if capErr != nil {
		return r.fail(result, r.errorOrInterrupt(ctx), capErr)
	}

	verifier := verify.New(verify.Options{
		WorkDir:          h.WorkDir,
		OutputFile:       h.Artifacts.Output,
		ClientOutputFile: h.Artifacts.ClientOutputFile,
		SuppressMarker:   h.Verify.SuppressMarker,
		KeepMarker:       h.Verify.KeepMarker,
	})
	result.Verification = verifier.Verify(s, result.Log)

	if !result.Verification.Passed() {
		result.Result = ResultFailed
	}
	logging.Info("Runner", "%s: %s", s.Name, result.Result)
	return result
}

// Resources lists the fixed-name message queues and artifact files a run of
// the application touches.
func Resources(h config.HarnessConfig) (queues, artifacts []resources.Resource) {
	for _, q := range h.Queues.QueuePaths() {
		queues = append(queues, resources.Queue(q))
	}

	artifacts = []resources.Resource{
		resources.Artifact(h.Path(h.Artifacts.Commands)),
		resources.Artifact(h.Path(h.Artifacts.Output)),
	}
	if h.Artifacts.ClientOutputGlob != "" {
		artifacts = append(artifacts, resources.ArtifactGlob(h.Path(h.Artifacts.ClientOutputGlob)))
	}
	return queues, artifacts
}

// reserve claims the message queues and the artifact files.
func (r *Runner) reserve(res *resources.Reservation) error {
	queues, artifacts := Resources(r.opts.Harness)
	if err := res.Acquire(queues...); err != nil {
		return fmt.Errorf("failed to clear message queues: %w", err)
	}

	var err error
	if r.opts.KeepArtifacts {
		err = res.Clear(artifacts...)
	} else {
		err = res.Acquire(artifacts...)
	}
	if err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	return nil
}

func (r *Runner) fail(result ScenarioResult, outcome Result, err error) ScenarioResult {
	result.Result = outcome
	result.Error = err.Error()
	if outcome == ResultInterrupted {
		logging.Warn("Runner", "%s interrupted", result.Name)
	} else {
		logging.Error("Runner", err, "%s could not be run", result.Name)
	}
	return result
}

// errorOrInterrupt classifies a failure: a cancelled context means the
// user interrupted the run.
func (r *Runner) errorOrInterrupt(ctx context.Context) Result {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ResultInterrupted
	}
	return ResultError
}

func (r *Runner) recordMetrics(result ScenarioResult) {
	if r.metrics == nil {
		return
	}
	checks := make([]metrics.CheckRecord, 0, len(result.Verification.Checks))
	for _, c := range result.Verification.Checks {
		checks = append(checks, metrics.CheckRecord{Kind: string(c.Kind), Passed: c.Passed})
	}
	r.metrics.RecordRun(metrics.RunRecord{
		Scenario:  result.Name,
		Result:    string(result.Result),
		Duration:  result.Duration,
		Checks:    checks,
		Lines:     result.LineCounts,
		Anomalies: len(result.Anomalies),
		BuildFail: result.BuildFailed,
		Finished:  result.EndTime,
	})
}

func summarize(procs []*supervisor.ManagedProcess) []ProcessSummary {
	out := make([]ProcessSummary, 0, len(procs))
	for _, p := range procs {
		out = append(out, ProcessSummary{
			Label:    p.Label(),
			PID:      p.Pid(),
			ExitCode: p.ExitCode(),
			Exited:   p.Exited(),
		})
	}
	return out
}
