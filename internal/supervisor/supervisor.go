// Package supervisor spawns the server and clients of the application under
// test and owns their lifetimes.
//
// Launch writes the command artifact, starts the server, gives it a warm-up
// period, then starts the clients one by one with a fixed stagger. Every
// process runs in the harness work directory inside its own process group,
// with stdout and stderr merged into one pipe.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ipcrunner/internal/chrono"
	"ipcrunner/pkg/logging"
)

// Program is an executable and its leading arguments.
type Program struct {
	Path string
	Args []string
}

// Options configures a Supervisor.
type Options struct {
	// WorkDir should be absolute; relative program paths are joined to it.
	WorkDir string
	Server  Program
	// Client is started as <Path> <Args...> <index>.
	Client Program
	// CommandsFile receives the scenario commands, one per line.
	CommandsFile string

	ServerWarmup  time.Duration
	ClientStagger time.Duration
	// StopTimeout bounds the cleanup of a launch that failed half way.
	StopTimeout time.Duration
}

// Supervisor manages the processes of one run.
type Supervisor struct {
	opts Options

	mu      sync.Mutex
	server  *ManagedProcess
	clients []*ManagedProcess
	closed  bool
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &Supervisor{opts: opts}
}

// WriteCommands writes the command artifact: each command followed by a newline.
func (s *Supervisor) WriteCommands(commands []string) error {
	var b strings.Builder
	for _, c := range commands {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	path := s.resolveFile(s.opts.CommandsFile)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write command file %s: %w", path, err)
	}
	logging.Debug("Supervisor", "Wrote %d commands to %s", len(commands), path)
	return nil
}

// Launch writes the commands and spawns the server followed by clientCount
// clients. Cancelling ctx aborts the launch during any of its waits. On
// failure every process started so far is stopped.
func (s *Supervisor) Launch(ctx context.Context, commands []string, clientCount int) (err error) {
	if err := s.WriteCommands(commands); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if stuck := s.Shutdown(s.opts.StopTimeout); len(stuck) > 0 {
				logging.Warn("Supervisor", "Processes did not stop after failed launch: %v", stuck)
			}
		}
	}()

	server, err := start(chrono.ServerLabel, s.opts.WorkDir, s.resolveProgram(s.opts.Server.Path), s.opts.Server.Args)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
	logging.Info("Supervisor", "Server started (PID %d)", server.Pid())

	if err := sleep(ctx, s.opts.ServerWarmup); err != nil {
		return err
	}

	for i := 0; i < clientCount; i++ {
		args := append(append([]string{}, s.opts.Client.Args...), strconv.Itoa(i))
		client, err := start(chrono.ClientLabel(i), s.opts.WorkDir, s.resolveProgram(s.opts.Client.Path), args)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.clients = append(s.clients, client)
		s.mu.Unlock()
		logging.Info("Supervisor", "Client %d started (PID %d)", i, client.Pid())

		if err := sleep(ctx, s.opts.ClientStagger); err != nil {
			return err
		}
	}

	return nil
}

// Server returns the server process, or nil before Launch.
func (s *Supervisor) Server() *ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// Clients returns the client processes in spawn order.
func (s *Supervisor) Clients() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ManagedProcess(nil), s.clients...)
}

// Processes returns the server followed by the clients.
func (s *Supervisor) Processes() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*ManagedProcess
	if s.server != nil {
		all = append(all, s.server)
	}
	return append(all, s.clients...)
}

// Shutdown terminates every process still running, waits up to timeout for
// all of them, kills the stragglers and closes the output streams. It
// returns the labels of processes that had to be killed. Later calls only
// report nothing.
func (s *Supervisor) Shutdown(timeout time.Duration) []string {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	procs := s.Processes()
	for _, p := range procs {
		if err := p.Terminate(); err != nil {
			logging.Debug("Supervisor", "Terminate %s: %v", p.Label(), err)
		}
	}

	deadline := time.Now().Add(timeout)
	var stuck []string
	for _, p := range procs {
		if err := p.Wait(time.Until(deadline)); err != nil {
			stuck = append(stuck, p.Label())
			logging.Warn("Supervisor", "%s did not exit within %s, killing", p.Label(), timeout)
			if kerr := p.Kill(); kerr != nil {
				logging.Error("Supervisor", kerr, "Failed to kill %s", p.Label())
			}
			_ = p.Wait(time.Second)
		}
	}

	for _, p := range procs {
		p.closeOutput()
	}
	return stuck
}

// resolveFile anchors a relative file name in the work directory.
func (s *Supervisor) resolveFile(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.opts.WorkDir, path)
}

// resolveProgram anchors relative program paths such as ./build/server in
// the work directory; bare names are left for a PATH lookup.
func (s *Supervisor) resolveProgram(path string) string {
	if !strings.ContainsRune(path, '/') && !strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	return s.resolveFile(path)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
