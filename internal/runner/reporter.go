package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ipcrunner/internal/chrono"
	"ipcrunner/internal/scenario"
	"ipcrunner/internal/verify"
	strutil "ipcrunner/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const rule = "============================================================"

// consoleReporter prints human readable progress, the execution log and the
// verification outcome
type consoleReporter struct {
	out     io.Writer
	verbose bool
	stream  bool
	mu      sync.Mutex
}

// NewConsoleReporter creates the default reporter. With stream set, lines are
// printed as they are captured instead of as a merged log afterwards.
func NewConsoleReporter(out io.Writer, verbose, stream bool) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &consoleReporter{out: out, verbose: verbose, stream: stream}
}

func (r *consoleReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// ReportStart is called when suite execution begins
func (r *consoleReporter) ReportStart(scenarios []scenario.Scenario) {
	if len(scenarios) > 1 {
		r.printf("🧪 Running %d scenarios\n\n", len(scenarios))
	}
}

// ReportScenarioStart is called when a scenario begins
func (r *consoleReporter) ReportScenarioStart(s scenario.Scenario) {
	r.printf("Test: %s\n", s.Name)
	if s.Description != "" {
		r.printf("Description: %s\n", s.Description)
	}
	if r.verbose {
		r.printf("   • Clients: %d\n", s.ClientCount)
		r.printf("   • Commands: %d\n", len(s.Commands))
		if s.Source != "" {
			r.printf("   • Source: %s\n", s.Source)
		}
	}
	r.printf("\n")
	if r.stream {
		r.printf("--- Live output ---\n")
	}
}

// ReportEvent prints a captured line while streaming
func (r *consoleReporter) ReportEvent(ev chrono.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Label == chrono.SystemLabel {
		r.printf("\n%s\n", ev.Line)
		return
	}
	r.printf("[%-8s] %s\n", ev.Label, ev.Line)
}

// ReportScenarioResult is called when a scenario completes
func (r *consoleReporter) ReportScenarioResult(result ScenarioResult) {
	if result.Error != "" {
		r.printf("%s %s\n", getResultSymbol(result.Result), result.Error)
		if result.BuildFailed && result.BuildOutput != "" {
			r.printf("   📄 Build output:\n%s\n", indentText(trimLogs(result.BuildOutput, 4000), "      "))
		}
	}

	if !r.stream && result.Log.Len() > 0 {
		r.printf("\n%s\nCHRONOLOGICAL EXECUTION LOG\n%s\n", rule, rule)
		r.printf("%s", chrono.Format(result.Log))
		r.printf("%s\n", rule)
	}

	if r.verbose && len(result.Processes) > 0 {
		r.printProcesses(result.Processes)
	}

	if len(result.Anomalies) > 0 {
		r.printf("\n%s Anomalies:\n", text.FgYellow.Sprint("⚠️"))
		for _, a := range result.Anomalies {
			r.printf("   • %s\n", a)
		}
	}

	if len(result.Verification.Checks) > 0 {
		r.printChecks(result.Verification)
	} else if result.Error == "" && result.Result != ResultInterrupted {
		r.printf("\nNo expectations given, nothing to verify.\n")
	}

	r.printf("\n%s %s: %s (%v)\n\n", getResultSymbol(result.Result), result.Name,
		colorResult(result.Result), result.Duration.Round(time.Millisecond))
}

func (r *consoleReporter) printProcesses(procs []ProcessSummary) {
	t := newTable(r.out)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PROCESS"),
		text.FgHiCyan.Sprint("PID"),
		text.FgHiCyan.Sprint("EXIT CODE"),
	})
	for _, p := range procs {
		code := "running"
		if p.Exited {
			code = fmt.Sprintf("%d", p.ExitCode)
		}
		t.AppendRow(table.Row{p.Label, p.PID, code})
	}
	r.printf("\n")
	t.Render()
}

func (r *consoleReporter) printChecks(res verify.Result) {
	r.printf("\n")
	t := newTable(r.out)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CHECK"),
		text.FgHiCyan.Sprint("RESULT"),
		text.FgHiCyan.Sprint("DETAILS"),
	})
	for _, c := range res.Checks {
		t.AppendRow(table.Row{c.Name(), checkStatus(c), strutil.Truncate(checkSummary(c), strutil.DefaultCellMaxLen)})
	}
	t.Render()

	for _, c := range res.Checks {
		if c.Passed && !r.verbose {
			continue
		}
		r.printCheckDetail(c)
	}
}

func (r *consoleReporter) printCheckDetail(c verify.CheckResult) {
	switch c.Kind {
	case verify.KindServerLog, verify.KindClientLog, verify.KindLegacyClientLog:
		if len(c.Missing) == 0 {
			return
		}
		r.printf("\n✗ Missing %d expected %s pattern(s):\n", len(c.Missing), c.Name())
		for _, m := range c.Missing {
			r.printf("  - %s\n", m)
		}
	default:
		r.printf("\n--- %s ---\n", c.Name())
		if c.Reason != "" {
			r.printf("✗ %s\n", c.Reason)
			return
		}
		r.printf("Expected: %s\n", c.Want)
		r.printf("Actual:   %s\n", c.Got)
		if c.Diff != "" {
			r.printf("%s", c.Diff)
		}
	}
}

// ReportSuiteResult is called when all scenarios complete
func (r *consoleReporter) ReportSuiteResult(suite SuiteResult) {
	if suite.TotalScenarios <= 1 {
		return
	}

	r.printf("🏁 Test Suite Complete\n")
	r.printf("⏱️  Duration: %v\n", suite.Duration.Round(time.Millisecond))
	r.printf("📊 Results:\n")
	r.printf("   ✅ Passed: %d\n", suite.PassedScenarios)
	if suite.FailedScenarios > 0 {
		r.printf("   ❌ Failed: %d\n", suite.FailedScenarios)
	}
	if suite.ErrorScenarios > 0 {
		r.printf("   💥 Errors: %d\n", suite.ErrorScenarios)
	}
	if suite.InterruptedScenarios > 0 {
		r.printf("   ⏹️  Interrupted: %d\n", suite.InterruptedScenarios)
	}
	notRun := suite.TotalScenarios - len(suite.ScenarioResults)
	if notRun > 0 {
		r.printf("   ⏭️  Not run: %d\n", notRun)
	}
	r.printf("   📈 Total: %d\n", suite.TotalScenarios)

	switch {
	case suite.Interrupted():
		r.printf("\n⏹️  Test run interrupted\n")
	case suite.Passed():
		r.printf("\n🎉 All tests passed!\n")
	default:
		r.printf("\n💔 Some tests failed\n")
	}
}

// NewQuietReporter creates a reporter that only outputs failures and a summary
func NewQuietReporter(out io.Writer) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &quietReporter{out: out}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(scenarios []scenario.Scenario) {}

func (r *quietReporter) ReportScenarioStart(s scenario.Scenario) {}

func (r *quietReporter) ReportEvent(ev chrono.Event) {}

func (r *quietReporter) ReportScenarioResult(result ScenarioResult) {
	switch result.Result {
	case ResultFailed:
		var names []string
		for _, c := range result.Verification.Failed() {
			names = append(names, c.Name())
		}
		fmt.Fprintf(r.out, "%s %s: failed checks: %s\n", getResultSymbol(result.Result), result.Name, strings.Join(names, ", "))
	case ResultError, ResultInterrupted:
		fmt.Fprintf(r.out, "%s %s: %s\n", getResultSymbol(result.Result), result.Name, result.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(suite SuiteResult) {
	switch {
	case suite.Interrupted():
		fmt.Fprintf(r.out, "⏹️  Test run interrupted\n")
	case suite.Passed():
		fmt.Fprintf(r.out, "✅ All %d tests passed (%v)\n", len(suite.ScenarioResults), suite.Duration.Round(time.Millisecond))
	default:
		fmt.Fprintf(r.out, "❌ %d/%d tests failed (%v)\n",
			suite.FailedScenarios+suite.ErrorScenarios,
			suite.TotalScenarios,
			suite.Duration.Round(time.Millisecond))
	}
}

// NewJSONReporter creates a reporter that outputs JSON for CI/CD integration
func NewJSONReporter(out io.Writer) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &jsonReporter{out: out}
}

// jsonReporter writes the whole suite as one JSON document at the end
type jsonReporter struct {
	out io.Writer
}

func (r *jsonReporter) ReportStart(scenarios []scenario.Scenario) {}

func (r *jsonReporter) ReportScenarioStart(s scenario.Scenario) {}

func (r *jsonReporter) ReportEvent(ev chrono.Event) {}

func (r *jsonReporter) ReportScenarioResult(result ScenarioResult) {}

func (r *jsonReporter) ReportSuiteResult(suite SuiteResult) {
	jsonBytes, _ := json.MarshalIndent(suite, "", "  ")
	fmt.Fprintln(r.out, string(jsonBytes))
}

// SaveReport writes a detailed JSON report into dir and returns its path.
func SaveReport(dir string, suite SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := suite.StartTime.Format("20060102-150405")
	fullPath := filepath.Join(dir, fmt.Sprintf("ipcrunner-report-%s.json", timestamp))

	jsonData, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(fullPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return fullPath, nil
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func checkStatus(c verify.CheckResult) string {
	if c.Passed {
		return text.FgGreen.Sprint("✓ passed")
	}
	return text.FgRed.Sprint("✗ failed")
}

func checkSummary(c verify.CheckResult) string {
	switch c.Kind {
	case verify.KindServerLog, verify.KindClientLog, verify.KindLegacyClientLog:
		return fmt.Sprintf("%d/%d patterns found", c.Matched, c.Expected)
	default:
		if c.Reason != "" {
			return c.Reason
		}
		if c.Passed {
			return "matches exactly"
		}
		return "content differs"
	}
}

// getResultSymbol returns an appropriate symbol for the scenario result
func getResultSymbol(result Result) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultError:
		return "💥"
	case ResultInterrupted:
		return "⏹️"
	default:
		return "❓"
	}
}

func colorResult(result Result) string {
	switch result {
	case ResultPassed:
		return text.FgGreen.Sprint(string(result))
	case ResultFailed, ResultError:
		return text.FgRed.Sprint(string(result))
	default:
		return text.FgYellow.Sprint(string(result))
	}
}

// trimLogs trims logs to a reasonable length for display
func trimLogs(logs string, maxChars int) string {
	if len(logs) <= maxChars {
		return logs
	}

	// Try to break at a reasonable line boundary
	truncated := logs[:maxChars]
	lastNewline := strings.LastIndex(truncated, "\n")
	if lastNewline > maxChars/2 {
		truncated = logs[:lastNewline]
	}

	return truncated + "\n... (truncated, see full report for complete logs)"
}

// indentText adds indentation to each line of text
func indentText(s string, indent string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
