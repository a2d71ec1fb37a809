// Package build runs the build step of the application under test.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"ipcrunner/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Error is a failed build. Output holds the combined stdout and stderr of
// the build command.
type Error struct {
	Command  []string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("build command %q failed with exit code %d", strings.Join(e.Command, " "), e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a build.
type Options struct {
	Dir     string
	Command []string
	// Progress receives a spinner while the build runs, when it is a terminal.
	Progress io.Writer
}

// Run executes the build command in Dir and returns its combined output.
// A non-zero exit is reported as *Error.
func Run(ctx context.Context, opts Options) (string, error) {
	if len(opts.Command) == 0 {
		return "", errors.New("empty build command")
	}

	logging.Info("Build", "Running %s in %s", strings.Join(opts.Command, " "), opts.Dir)

	if s := newSpinner(opts.Progress, opts.Command); s != nil {
		s.Start()
		defer s.Stop()
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	out, err := cmd.CombinedOutput()
	output := string(out)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return output, &Error{Command: opts.Command, ExitCode: exitCode, Output: output, Err: err}
	}

	logging.Debug("Build", "Build succeeded")
	return output, nil
}

func newSpinner(w io.Writer, command []string) *spinner.Spinner {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " Building (" + strings.Join(command, " ") + ")..."
	s.FinalMSG = text.FgHiBlack.Sprint("Build finished") + "\n"
	return s
}
