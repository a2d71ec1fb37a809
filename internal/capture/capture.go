package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"ipcrunner/internal/chrono"
	"ipcrunner/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// ShutdownMessage is the line of the SYSTEM event recorded when every client
// has finished.
const ShutdownMessage = "All clients finished. Shutting down server..."

// Source is a labeled output stream tied to a process.
type Source interface {
	Label() string
	Output() io.Reader
	// Done is closed when the process has exited.
	Done() <-chan struct{}
}

// Server is the source the coordinator stops at the end of the run.
type Server interface {
	Source
	Terminate() error
	Kill() error
}

// Options configures a capture run.
type Options struct {
	// ShutdownGrace is how long output keeps draining between the SYSTEM
	// event and the termination request.
	ShutdownGrace time.Duration
	// ServerExitTimeout bounds the wait for the server after termination.
	ServerExitTimeout time.Duration
	// RunTimeout bounds the whole capture; zero means no bound.
	RunTimeout time.Duration
	// OnEvent, when set, sees every event as it is recorded.
	OnEvent func(chrono.Event)
}

// Result is what a capture run observed.
type Result struct {
	Events    []chrono.Event
	Anomalies []string
	// LineCounts counts recorded lines per label.
	LineCounts map[string]int
	// ShutdownRequested is true once the SYSTEM event was recorded.
	ShutdownRequested bool
	// ServerTerminated is true when Terminate was sent to the server.
	ServerTerminated bool
	// ServerKilled is true when the server had to be killed.
	ServerKilled bool
	// TimedOut is true when RunTimeout ended the capture.
	TimedOut bool
}

type message struct {
	stream int
	line   string
	eof    bool
	exited bool
}

type stream struct {
	src    Source
	eof    bool
	exited bool
	client bool
}

func (s *stream) active() bool {
	return !s.eof || !s.exited
}

// KillDrainTimeout bounds how long output is still read after the server was
// killed.
const KillDrainTimeout = 500 * time.Millisecond

// Multiplexer fans the output of several processes into one event sequence.
// A Multiplexer is used for a single Run.
type Multiplexer struct {
	opts    Options
	readers errgroup.Group
	stop    chan struct{}
}

// New creates a Multiplexer.
func New(opts Options) *Multiplexer {
	return &Multiplexer{opts: opts, stop: make(chan struct{})}
}

// Run captures until every stream is inactive, the server exit timeout
// expires, the run timeout expires, or ctx is cancelled. On cancellation the
// events seen so far are returned together with the context error.
func (m *Multiplexer) Run(ctx context.Context, server Server, clients []Source) (Result, error) {
	defer close(m.stop)

	streams := make([]*stream, 0, len(clients)+1)
	streams = append(streams, &stream{src: server})
	for _, c := range clients {
		streams = append(streams, &stream{src: c, client: true})
	}

	msgs := make(chan message)
	for i, st := range streams {
		m.startReader(i, st.src, msgs)
		m.watchExit(i, st.src, msgs)
	}

	c := &coordinator{
		opts:    m.opts,
		server:  server,
		streams: streams,
		result:  Result{LineCounts: make(map[string]int)},
	}

	var runTimeout <-chan time.Time
	if m.opts.RunTimeout > 0 {
		t := time.NewTimer(m.opts.RunTimeout)
		defer t.Stop()
		runTimeout = t.C
	}
	defer c.stopTimers()

	c.checkClients()
	for c.anyActive() {
		select {
		case <-ctx.Done():
			logging.Warn("Capture", "Capture cancelled after %d events", len(c.result.Events))
			return c.result, ctx.Err()

		case msg := <-msgs:
			c.handle(msg)

		case <-c.graceC:
			c.graceC = nil
			c.graceOver = true
			c.terminateServer()

		case <-c.exitC:
			c.exitC = nil
			c.killServer()
			c.drainServer(ctx, msgs, KillDrainTimeout)
			return c.result, nil

		case <-runTimeout:
			c.result.TimedOut = true
			c.anomaly(fmt.Sprintf("run did not finish within %s", m.opts.RunTimeout))
			return c.result, nil
		}
	}

	return c.result, nil
}

// Wait blocks until every reader goroutine has returned. Readers return at
// end of stream, so the process outputs must be closed or drained first.
func (m *Multiplexer) Wait() error {
	return m.readers.Wait()
}

func (m *Multiplexer) startReader(idx int, src Source, msgs chan<- message) {
	m.readers.Go(func() error {
		r := bufio.NewReader(src.Output())
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case msgs <- message{stream: idx, line: strings.TrimRightFunc(line, unicode.IsSpace)}:
				case <-m.stop:
					return nil
				}
			}
			if err != nil {
				select {
				case msgs <- message{stream: idx, eof: true}:
				case <-m.stop:
				}
				if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
					return nil
				}
				return fmt.Errorf("reading %s output: %w", src.Label(), err)
			}
		}
	})
}

func (m *Multiplexer) watchExit(idx int, src Source, msgs chan<- message) {
	go func() {
		select {
		case <-src.Done():
		case <-m.stop:
			return
		}
		select {
		case msgs <- message{stream: idx, exited: true}:
		case <-m.stop:
		}
	}()
}

// coordinator is the state owned by the control loop.
type coordinator struct {
	opts    Options
	server  Server
	streams []*stream
	result  Result

	graceTimer *time.Timer
	graceC     <-chan time.Time
	// graceOver is set once the grace period after the SYSTEM event ended;
	// from then on exited clients no longer hold the capture open.
	graceOver bool
	exitTimer *time.Timer
	exitC     <-chan time.Time
}

func (c *coordinator) handle(msg message) {
	st := c.streams[msg.stream]
	switch {
	case msg.eof:
		st.eof = true
	case msg.exited:
		st.exited = true
	default:
		c.record(st.src.Label(), msg.line)
		return
	}
	if !st.active() {
		logging.Debug("Capture", "%s stream finished", st.src.Label())
	}
	if msg.exited && st.client {
		c.checkClients()
	}
}

func (c *coordinator) record(label, line string) {
	ev := chrono.Event{Seq: len(c.result.Events), Label: label, Line: line}
	c.result.Events = append(c.result.Events, ev)
	c.result.LineCounts[label]++
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

// checkClients starts the shutdown sequence the first time every client
// process has exited. Their streams keep draining during the grace period.
func (c *coordinator) checkClients() {
	if c.result.ShutdownRequested {
		return
	}
	for _, st := range c.streams {
		if st.client && !st.exited {
			return
		}
	}

	c.result.ShutdownRequested = true
	c.record(chrono.SystemLabel, ShutdownMessage)
	logging.Info("Capture", "All clients finished, stopping server in %s", c.opts.ShutdownGrace)

	c.graceTimer = time.NewTimer(c.opts.ShutdownGrace)
	c.graceC = c.graceTimer.C
}

func (c *coordinator) terminateServer() {
	if c.result.ServerTerminated {
		return
	}
	c.result.ServerTerminated = true
	if err := c.server.Terminate(); err != nil {
		logging.Warn("Capture", "Failed to terminate server: %v", err)
	}
	c.exitTimer = time.NewTimer(c.opts.ServerExitTimeout)
	c.exitC = c.exitTimer.C
}

func (c *coordinator) killServer() {
	c.anomaly(fmt.Sprintf("server did not exit within %s", c.opts.ServerExitTimeout))
	c.result.ServerKilled = true
	if err := c.server.Kill(); err != nil {
		logging.Warn("Capture", "Failed to kill server: %v", err)
	}
}

func (c *coordinator) anomaly(msg string) {
	logging.Warn("Capture", "%s", msg)
	c.result.Anomalies = append(c.result.Anomalies, msg)
}

func (c *coordinator) anyActive() bool {
	for _, st := range c.streams {
		if st.client && st.exited && c.graceOver {
			continue
		}
		if st.active() {
			return true
		}
	}
	return false
}

// drainServer records output still buffered in the server pipe until its end
// of stream, ctx cancellation or timeout.
func (c *coordinator) drainServer(ctx context.Context, msgs <-chan message, timeout time.Duration) {
	server := c.streams[0]
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for !server.eof {
		select {
		case msg := <-msgs:
			c.handle(msg)
		case <-timer.C:
			logging.Debug("Capture", "Server output still open %s after kill", timeout)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *coordinator) stopTimers() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	if c.exitTimer != nil {
		c.exitTimer.Stop()
	}
}
