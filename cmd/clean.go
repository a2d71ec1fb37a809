package cmd

import (
	"fmt"
	"io"

	"ipcrunner/internal/resources"
	"ipcrunner/internal/runner"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover message queues and artifact files",
		Long: `Clean removes the message queues and the input and output files that a run
of the application leaves behind, for example after the harness was killed.
Files that do not exist are skipped, so clean can be run any number of times.

Clean refuses to run while another ipcrunner run holds the work directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clean(cmd.OutOrStdout())
		},
	}
}

func clean(out io.Writer) error {
	harness, err := loadHarness()
	if err != nil {
		return err
	}

	reservation, err := resources.Reserve(harness.Path(harness.LockFile))
	if err != nil {
		return err
	}

	queues, artifacts := runner.Resources(harness)
	removeErr := resources.Remove(append(queues, artifacts...)...)
	if err := reservation.ReleaseAll(); err != nil && removeErr == nil {
		removeErr = err
	}
	if removeErr != nil {
		return fmt.Errorf("cleanup incomplete: %w", removeErr)
	}

	fmt.Fprintf(out, "🧹 Cleaned %d message queue(s) and the artifacts in %s\n", len(queues), harness.WorkDir)
	return nil
}
