package runner

import (
	"time"

	"ipcrunner/internal/chrono"
	"ipcrunner/internal/scenario"
	"ipcrunner/internal/verify"
)

// Result represents the result of a scenario run
type Result string

const (
	// ResultPassed indicates every requested check passed
	ResultPassed Result = "PASSED"
	// ResultFailed indicates at least one check failed
	ResultFailed Result = "FAILED"
	// ResultError indicates the run could not be carried out (lock, build, spawn)
	ResultError Result = "ERROR"
	// ResultInterrupted indicates the user cancelled the run
	ResultInterrupted Result = "INTERRUPTED"
)

// ProcessSummary describes one spawned process after the run
type ProcessSummary struct {
	Label    string `json:"label"`
	PID      int    `json:"pid"`
	ExitCode int    `json:"exit_code"`
	Exited   bool   `json:"exited"`
}

// ScenarioResult represents the result of a single scenario run
type ScenarioResult struct {
	// RunID identifies the run in logs and reports
	RunID string `json:"run_id"`
	// Scenario is the scenario that was executed
	Scenario scenario.Scenario `json:"-"`
	// Name and Source repeat the scenario identity for reports
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	// Result is the overall result of the scenario
	Result Result `json:"result"`
	// StartTime when scenario execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when scenario execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of scenario execution
	Duration time.Duration `json:"duration"`
	// Error message if the scenario could not be run
	Error string `json:"error,omitempty"`
	// BuildOutput is the combined output of the build step
	BuildOutput string `json:"build_output,omitempty"`
	// BuildFailed is set when the build step failed
	BuildFailed bool `json:"build_failed,omitempty"`
	// Processes summarizes the spawned processes
	Processes []ProcessSummary `json:"processes,omitempty"`
	// EventCount is the number of captured lines, SYSTEM included
	EventCount int `json:"event_count"`
	// LineCounts is the number of captured lines per label
	LineCounts map[string]int `json:"line_counts,omitempty"`
	// Log is the reconstructed execution log
	Log chrono.MergedLog `json:"log"`
	// Verification holds every check that ran
	Verification verify.Result `json:"verification"`
	// Anomalies are run-level irregularities that do not fail the verdict
	Anomalies []string `json:"anomalies,omitempty"`
}

// SuiteResult represents the result of running several scenarios
type SuiteResult struct {
	StartTime            time.Time        `json:"start_time"`
	EndTime              time.Time        `json:"end_time"`
	Duration             time.Duration    `json:"duration"`
	TotalScenarios       int              `json:"total_scenarios"`
	PassedScenarios      int              `json:"passed_scenarios"`
	FailedScenarios      int              `json:"failed_scenarios"`
	ErrorScenarios       int              `json:"error_scenarios"`
	InterruptedScenarios int              `json:"interrupted_scenarios"`
	ScenarioResults      []ScenarioResult `json:"scenario_results"`
}

// Passed reports whether every scenario that ran passed.
func (s SuiteResult) Passed() bool {
	return s.FailedScenarios == 0 && s.ErrorScenarios == 0
}

// Interrupted reports whether the suite was cut short by the user.
func (s SuiteResult) Interrupted() bool {
	return s.InterruptedScenarios > 0
}

// Reporter defines how run progress and results are reported
type Reporter interface {
	// ReportStart is called when suite execution begins
	ReportStart(scenarios []scenario.Scenario)
	// ReportScenarioStart is called when a scenario begins
	ReportScenarioStart(s scenario.Scenario)
	// ReportEvent is called for every captured line while streaming
	ReportEvent(ev chrono.Event)
	// ReportScenarioResult is called when a scenario completes
	ReportScenarioResult(result ScenarioResult)
	// ReportSuiteResult is called when all scenarios complete
	ReportSuiteResult(result SuiteResult)
}
