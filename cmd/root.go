package cmd

import (
	"errors"
	"fmt"
	"os"

	"ipcrunner/internal/config"
	"ipcrunner/internal/scenario"
	"ipcrunner/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates every scenario passed, or the run was interrupted.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a failed scenario, an invalid scenario file, a
	// build failure or any other command error.
	ExitCodeError = 1
)

// errScenariosFailed is returned when the suite ran but did not pass.
var errScenariosFailed = errors.New("one or more scenarios did not pass")

// globalFlags are shared by every command that touches the application.
type globalFlags struct {
	configPath string
	workDir    string
	verbose    bool
	debug      bool
	logFormat  string
}

var global globalFlags

// rootCmd represents the base command for the ipcrunner application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ipcrunner",
	Short: "Run scenario tests against a multi-process IPC application",
	Long: `ipcrunner builds a client/server application that talks over message
queues, starts one server and several clients, captures their interleaved
output, rebuilds the chronological execution log from the timestamps the
processes print, and checks the log and the output files against the
expectations declared in a scenario file.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ipcrunner version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var ce *config.ConfigurationError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	return ExitCodeError
}

func initLogging(cmd *cobra.Command) error {
	level := logging.LevelWarn
	switch {
	case global.debug:
		level = logging.LevelDebug
	case global.verbose:
		level = logging.LevelInfo
	}

	format := logging.Format(global.logFormat)
	if format != logging.FormatText && format != logging.FormatJSON {
		return fmt.Errorf("invalid --log-format %q, must be 'text' or 'json'", global.logFormat)
	}

	logging.Init(logging.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	return nil
}

// loadHarness reads the harness configuration and applies flag overrides.
func loadHarness() (config.HarnessConfig, error) {
	cfg, err := config.LoadConfig(global.configPath)
	if err != nil {
		return cfg, err
	}
	if global.workDir != "" {
		cfg.WorkDir = global.workDir
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return config.Resolve(cfg)
}

// loadScenarios loads path and narrows it to the named scenario if one is given.
func loadScenarios(path, name string) ([]scenario.Scenario, error) {
	scenarios, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	filtered := scenario.Filter(scenarios, name)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no scenario named %q in %s (available: %v)", name, path, scenario.Names(scenarios))
	}
	return filtered, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&global.configPath, "config", "", "Harness configuration file (default: ./"+config.DefaultConfigFileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&global.workDir, "workdir", "", "Directory of the application under test (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVar(&global.verbose, "verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&global.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&global.logFormat, "log-format", string(logging.FormatText), "Log format (text, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCleanCmd())
}
