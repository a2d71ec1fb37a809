package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ipcrunner/internal/config"
	"ipcrunner/internal/watcher"
	"ipcrunner/pkg/logging"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	opts := &runOptions{}
	var extraPaths []string

	cmd := &cobra.Command{
		Use:   "watch <scenario-file|dir>",
		Short: "Re-run scenarios whenever scenario or source files change",
		Long: `Watch runs the scenarios once, then again every time a scenario file or a
source file of the application changes. The work directory and the scenario
path are watched by default; add more with --watch-path.

Build outputs and the files the harness writes itself are ignored.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			stop := cancelOnInterrupt(ctx, cmd.ErrOrStderr(), cancel)
			defer stop()

			return watchScenarios(ctx, cmd.OutOrStdout(), opts, args[0], extraPaths)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringSliceVar(&extraPaths, "watch-path", nil, "Additional files or directories to watch")
	return cmd
}

// watchScenarios runs the scenarios at path and repeats on every relevant
// change until ctx is cancelled.
func watchScenarios(ctx context.Context, out io.Writer, opts *runOptions, path string, extra []string) error {
	harness, err := loadHarness()
	if err != nil {
		return err
	}

	changes := make(chan []string, 1)
	w := watcher.New(watcher.Config{
		Paths:   watchPaths(harness, path, extra),
		Exclude: watchExcludes(harness, opts),
		OnChange: func(changed []string) {
			select {
			case changes <- changed:
			default:
			}
		},
	})
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			logging.Warn("Watch", "Failed to stop watcher: %v", err)
		}
	}()

	for {
		err := runScenarios(ctx, out, opts, path)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, errScenariosFailed) {
			// Scenario files may be mid-edit; wait for the next change.
			fmt.Fprintf(out, "❌ %v\n", err)
		}

		fmt.Fprintf(out, "👀 Watching for changes (Ctrl+C to stop)...\n")
		select {
		case <-ctx.Done():
			return nil
		case changed := <-changes:
			fmt.Fprintf(out, "\n🔄 Changed: %s\n\n", relativeList(harness.WorkDir, changed))
		}
	}
}

// watchPaths returns the absolute paths to watch. Events carry the watched
// path as prefix, and the exclude patterns are absolute.
func watchPaths(harness config.HarnessConfig, path string, extra []string) []string {
	paths := make([]string, 0, 2+len(extra))
	for _, p := range append([]string{harness.WorkDir, path}, extra...) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		paths = append(paths, p)
	}
	return paths
}

// watchExcludes extends the default excludes with every file the harness
// itself writes, so a run never triggers the next one.
func watchExcludes(harness config.HarnessConfig, opts *runOptions) []string {
	excludes := append([]string{}, watcher.DefaultExclude...)

	art := harness.Artifacts
	for _, name := range []string{art.Commands, art.Output, harness.LockFile} {
		if name != "" {
			excludes = append(excludes, watcher.FilePattern(harness.Path(name)))
		}
	}
	for _, glob := range []string{art.ClientOutputGlob, art.ClientOutputFile("*")} {
		if glob != "" {
			excludes = append(excludes, watcher.GlobPattern(harness.Path(glob)))
		}
	}

	if opts.reportDir != "" {
		excludes = append(excludes, watcher.TreePattern(opts.reportDir))
	}
	if opts.metricsFile != "" {
		// The metrics file is written through a temporary file next to it.
		excludes = append(excludes, watcher.FilePattern(opts.metricsFile)+"*")
	}
	return excludes
}

func relativeList(base string, paths []string) string {
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		if r, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(r, "..") {
			p = r
		}
		rel = append(rel, p)
	}
	return strings.Join(rel, ", ")
}
