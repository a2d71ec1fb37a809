package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ipcrunner/internal/config"
	"ipcrunner/internal/runner"
	"ipcrunner/internal/scenario"

	"github.com/spf13/cobra"
)

// InterruptMessage is printed when the user stops a run.
const InterruptMessage = "Interrupted by user. Cleaning up..."

// runOptions holds the flags of the run and watch commands.
type runOptions struct {
	pipe          bool
	noBuild       bool
	keepArtifacts bool
	scenario      string
	failFast      bool
	format        string
	reportDir     string
	metricsFile   string
	timeout       time.Duration
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.pipe, "pipe", false, "Print output lines as they arrive instead of the ordered log afterwards")
	cmd.Flags().BoolVar(&o.noBuild, "no-build", false, "Skip the build step")
	cmd.Flags().BoolVar(&o.keepArtifacts, "keep-artifacts", false, "Leave input and output files in place after the run")
	cmd.Flags().StringVar(&o.scenario, "scenario", "", "Run only the scenario with this name")
	cmd.Flags().BoolVar(&o.failFast, "fail-fast", false, "Stop after the first scenario that does not pass")
	cmd.Flags().StringVar(&o.format, "format", "text", "Report format (text, json, quiet)")
	cmd.Flags().StringVar(&o.reportDir, "report", "", "Directory to save a detailed JSON report in")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Maximum duration of one scenario run (overrides timing.run_timeout)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "quiet"}, cobra.ShellCompDirectiveDefault
	})
	_ = cmd.RegisterFlagCompletionFunc("scenario", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return scenarioNames(args[0]), cobra.ShellCompDirectiveNoFileComp
	})
}

// validate checks flag values that cobra cannot check on its own.
func (o *runOptions) validate() error {
	switch o.format {
	case "text", "json", "quiet":
	default:
		return fmt.Errorf("invalid format '%s', must be one of: text, json, quiet", o.format)
	}
	if o.timeout < 0 {
		return fmt.Errorf("--timeout must not be negative, got %s", o.timeout)
	}
	return nil
}

// runnerOptions applies the flags to the harness configuration.
func (o *runOptions) runnerOptions(harness config.HarnessConfig) runner.Options {
	if o.timeout > 0 {
		harness.Timing.RunTimeout = o.timeout
	}
	return runner.Options{
		Harness:       harness,
		NoBuild:       o.noBuild,
		KeepArtifacts: o.keepArtifacts,
		FailFast:      o.failFast,
		Stream:        o.pipe,
		BuildProgress: os.Stderr,
		ReportDir:     o.reportDir,
		MetricsFile:   o.metricsFile,
	}
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario-file|dir>",
		Short: "Run one scenario file or every scenario in a directory",
		Long: `Run builds the application (unless --no-build), then for each scenario
writes the commands file, starts the server and the clients, captures their
output until they finish, prints the chronologically ordered execution log
and verifies the expectations.

Scenario files are JSON or YAML. A directory is searched recursively and its
scenarios run one after another.

Examples:
  ipcrunner run tests/basic.json
  ipcrunner run tests/ --fail-fast
  ipcrunner run tests/basic.json --pipe --no-build
  ipcrunner run tests/ --format json --report reports/`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle interrupts gracefully
			stop := cancelOnInterrupt(ctx, cmd.ErrOrStderr(), cancel)
			defer stop()

			return runScenarios(ctx, cmd.OutOrStdout(), opts, args[0])
		},
	}
	opts.addFlags(cmd)
	return cmd
}

var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

// cancelOnInterrupt calls cancel on the first interrupt or SIGTERM and
// prints InterruptMessage. Signal delivery is restored to the default right
// away, so a second Ctrl+C kills the process while cleanup is still running.
func cancelOnInterrupt(ctx context.Context, errOut io.Writer, cancel context.CancelFunc) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signalNotify(sigChan, os.Interrupt, syscall.SIGTERM)

	var once sync.Once
	stop = func() { once.Do(func() { signalStop(sigChan) }) }

	go func() {
		select {
		case <-sigChan:
			stop()
			fmt.Fprintf(errOut, "\n%s\n", InterruptMessage)
			cancel()
		case <-ctx.Done():
		}
	}()
	return stop
}

// runScenarios loads and runs the scenarios at path. An interrupted run is
// not an error.
func runScenarios(ctx context.Context, out io.Writer, opts *runOptions, path string) error {
	harness, err := loadHarness()
	if err != nil {
		return err
	}

	scenarios, err := loadScenarios(path, opts.scenario)
	if err != nil {
		return err
	}

	r := runner.New(opts.runnerOptions(harness), newReporter(opts.format, out, opts.pipe), nil)
	suite, err := r.Run(ctx, scenarios)
	if err != nil {
		return err
	}

	if suite.Interrupted() {
		return nil
	}
	if !suite.Passed() {
		return errScenariosFailed
	}
	return nil
}

// newReporter selects the reporter for the --format flag.
func newReporter(format string, out io.Writer, stream bool) runner.Reporter {
	switch format {
	case "json":
		return runner.NewJSONReporter(out)
	case "quiet":
		return runner.NewQuietReporter(out)
	default:
		return runner.NewConsoleReporter(out, global.verbose, stream)
	}
}

// scenarioNames is used for shell completion of --scenario.
func scenarioNames(path string) []string {
	scenarios, err := scenario.Load(path)
	if err != nil {
		return nil
	}
	return scenario.Names(scenarios)
}
