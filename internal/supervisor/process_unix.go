//go:build !windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcAttr puts the child in a new process group so signals reach
// anything it forks.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(p *os.Process) error {
	return signalGroup(p.Pid, unix.SIGTERM)
}

func killGroup(p *os.Process) error {
	return signalGroup(p.Pid, unix.SIGKILL)
}

// signalGroup signals the process group led by pid, falling back to the
// process alone.
func signalGroup(pid int, sig unix.Signal) error {
	if err := unix.Kill(-pid, sig); err != nil {
		if err2 := unix.Kill(pid, sig); err2 != nil && err2 != unix.ESRCH {
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %w", pid, err, pid, err2)
		}
	}
	return nil
}
