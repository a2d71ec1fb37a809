package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"ipcrunner/pkg/logging"
)

// ErrWaitTimeout is returned by Wait when the process outlives the timeout.
var ErrWaitTimeout = errors.New("timed out waiting for process exit")

// ManagedProcess is one spawned program. Its stdout and stderr share a
// single pipe so the harness sees them as one ordered stream.
type ManagedProcess struct {
	label     string
	cmd       *exec.Cmd
	output    *os.File
	startedAt time.Time
	done      chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
	exited   bool
}

// start spawns path with args in dir and begins waiting for it in the
// background.
func start(label, dir, path string, args []string) (*ManagedProcess, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe for %s: %w", label, err)
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("failed to start %s (%s): %w", label, path, err)
	}
	// The child holds its own copy; ours would keep the pipe from reaching EOF.
	_ = w.Close()

	p := &ManagedProcess{
		label:     label,
		cmd:       cmd,
		output:    r,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		exitCode:  -1,
	}
	go p.wait()

	logging.Debug("Supervisor", "Started %s (PID %d): %s %v", label, cmd.Process.Pid, path, args)
	return p, nil
}

func (p *ManagedProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exited = true
	p.waitErr = err
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	p.mu.Unlock()

	logging.Debug("Supervisor", "%s exited with code %d", p.label, p.ExitCode())
	close(p.done)
}

// Label returns SERVER or CLIENT{i}.
func (p *ManagedProcess) Label() string { return p.label }

// Output is the read end of the merged stdout/stderr pipe.
func (p *ManagedProcess) Output() io.Reader { return p.output }

// Done is closed once the process has exited and been reaped.
func (p *ManagedProcess) Done() <-chan struct{} { return p.done }

// Pid returns the OS process id.
func (p *ManagedProcess) Pid() int { return p.cmd.Process.Pid }

// StartedAt returns the spawn time.
func (p *ManagedProcess) StartedAt() time.Time { return p.startedAt }

// Exited reports whether the process has exited.
func (p *ManagedProcess) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// ExitCode returns the exit status, or -1 while running or when the process
// was ended by a signal.
func (p *ManagedProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Terminate asks the process group to stop.
func (p *ManagedProcess) Terminate() error {
	if p.Exited() {
		return nil
	}
	logging.Debug("Supervisor", "Terminating %s (PID %d)", p.label, p.Pid())
	return terminateGroup(p.cmd.Process)
}

// Kill forcibly stops the process group.
func (p *ManagedProcess) Kill() error {
	if p.Exited() {
		return nil
	}
	logging.Debug("Supervisor", "Killing %s (PID %d)", p.label, p.Pid())
	return killGroup(p.cmd.Process)
}

// Wait blocks until the process exits or timeout elapses.
func (p *ManagedProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w after %s", p.label, ErrWaitTimeout, timeout)
	}
}

// closeOutput releases the read end of the pipe. Pending reads return an error.
func (p *ManagedProcess) closeOutput() {
	_ = p.output.Close()
}
