package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ipcrunner/internal/config"
	"ipcrunner/internal/scenario"
	strutil "ipcrunner/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario-file|dir>",
		Short: "Check scenario files and the harness configuration without running anything",
		Long: `Validate loads every scenario file under the given path and the harness
configuration, and prints a summary table. Unlike run, it keeps going after
an invalid file so that every problem is listed at once.

Exits with status 1 if any file is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateScenarios(cmd.OutOrStdout(), args[0])
		},
	}
}

// validationRow is the outcome for one scenario file.
type validationRow struct {
	file     string
	scenario scenario.Scenario
	err      error
}

func validateScenarios(out io.Writer, path string) error {
	invalid := 0

	if _, err := loadHarness(); err != nil {
		invalid++
		fmt.Fprintf(out, "❌ Harness configuration: %s\n\n", configErrorDetail(err))
	}

	files, err := scenarioFiles(path)
	if err != nil {
		return err
	}

	rows := make([]validationRow, 0, len(files))
	for _, f := range files {
		s, err := scenario.LoadFile(f)
		rows = append(rows, validationRow{file: f, scenario: s, err: err})
		if err != nil {
			invalid++
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("FILE"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("CLIENTS"),
		text.FgHiCyan.Sprint("COMMANDS"),
		text.FgHiCyan.Sprint("CLIENT LOGS"),
		text.FgHiCyan.Sprint("PATTERNS"),
		text.FgHiCyan.Sprint("OUTPUTS"),
		text.FgHiCyan.Sprint("STATUS"),
	})

	var warnings []string
	for _, row := range rows {
		if row.err != nil {
			t.AppendRow(table.Row{row.file, "-", "-", "-", "-", "-", "-", text.FgRed.Sprint("✗ " + strutil.Truncate(row.err.Error(), strutil.DefaultCellMaxLen))})
			continue
		}
		s := row.scenario
		outputs := len(s.ExpectedOutputClients)
		if s.ExpectedOutput != "" {
			outputs++
		}
		status := text.FgGreen.Sprint("✓ valid")
		if len(s.Warnings) > 0 {
			status = text.FgYellow.Sprintf("⚠ %d warning(s)", len(s.Warnings))
			for _, w := range s.Warnings {
				warnings = append(warnings, fmt.Sprintf("%s: %s", row.file, w))
			}
		}
		t.AppendRow(table.Row{
			row.file, s.Name, s.ClientCount, len(s.Commands),
			s.ExpectedLogs.ClientKind.String(), s.ExpectedLogs.PatternCount(), outputs, status,
		})
	}
	t.Render()

	if len(warnings) > 0 {
		fmt.Fprintf(out, "\n⚠️  Warnings:\n   • %s\n", strings.Join(warnings, "\n   • "))
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid file(s)", invalid)
	}
	fmt.Fprintf(out, "\n✅ %d scenario(s) valid\n", len(rows))
	return nil
}

// scenarioFiles lists the scenario files at path, which may be a single file.
func scenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &scenario.LoadError{Path: path, Reason: "file not found", Err: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := scenario.Files(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &scenario.LoadError{Path: path, Reason: "no scenario files found"}
	}
	return files, nil
}

// configErrorDetail expands configuration errors with their suggestions.
func configErrorDetail(err error) string {
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		return ce.DetailedError()
	}
	return err.Error()
}
