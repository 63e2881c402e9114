package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charliek/sidecarhost/internal/domain"
)

var errKilled = errors.New("signal: killed")

// fakeProcess is an in-memory Process whose output is fed through io.Pipe
type fakeProcess struct {
	pid        int
	stdoutR    *io.PipeReader
	stdoutW    *io.PipeWriter
	stderrR    *io.PipeReader
	stderrW    *io.PipeWriter
	ignoreTerm bool

	exitOnce   sync.Once
	exited     chan struct{}
	exitErr    error
	terminated atomic.Bool
	killed     atomic.Bool
}

func newFakeProcess(pid int, captureStderr bool, ignoreTerm bool) *fakeProcess {
	p := &fakeProcess{pid: pid, ignoreTerm: ignoreTerm, exited: make(chan struct{})}
	p.stdoutR, p.stdoutW = io.Pipe()
	if captureStderr {
		p.stderrR, p.stderrW = io.Pipe()
	}
	return p
}

// exit closes the output pipes and makes Wait return err
func (p *fakeProcess) exit(err error) {
	p.exitOnce.Do(func() {
		_ = p.stdoutW.Close()
		if p.stderrW != nil {
			_ = p.stderrW.Close()
		}
		p.exitErr = err
		close(p.exited)
	})
}

func (p *fakeProcess) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.exited
	return p.exitErr
}

func (p *fakeProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerm {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit(errKilled)
	return nil
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdoutR }

func (p *fakeProcess) Stderr() io.Reader {
	if p.stderrR == nil {
		return nil
	}
	return p.stderrR
}

func (p *fakeProcess) Close() error {
	_ = p.stdoutR.CloseWithError(os.ErrClosed)
	if p.stderrR != nil {
		_ = p.stderrR.CloseWithError(os.ErrClosed)
	}
	return nil
}

// fakeRunner records every process it starts
type fakeRunner struct {
	mu         sync.Mutex
	procs      []*fakeProcess
	startErr   error
	ignoreTerm bool
	// onStart runs in its own goroutine after each start
	onStart func(p *fakeProcess)
}

func (r *fakeRunner) Start(ctx context.Context, cmd Command) (Process, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.mu.Lock()
	p := newFakeProcess(1000+len(r.procs), cmd.CaptureStderr, r.ignoreTerm)
	r.procs = append(r.procs, p)
	onStart := r.onStart
	r.mu.Unlock()

	if onStart != nil {
		go onStart(p)
	}
	return p, nil
}

func (r *fakeRunner) started() []*fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeProcess(nil), r.procs...)
}

func (r *fakeRunner) last() *fakeProcess {
	procs := r.started()
	if len(procs) == 0 {
		return nil
	}
	return procs[len(procs)-1]
}

// captureSink collects lines written by the supervisor
type captureSink struct {
	mu    sync.Mutex
	lines []domain.OutputLine
}

func (c *captureSink) Write(line domain.OutputLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *captureSink) Lines() []domain.OutputLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.OutputLine(nil), c.lines...)
}

func (c *captureSink) Texts() []string {
	var out []string
	for _, l := range c.Lines() {
		out = append(out, l.Line)
	}
	return out
}

// staticResolver always resolves to the same path
func staticResolver(path string) Resolver {
	return ResolverFunc(func() (string, error) { return path, nil })
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSupervisor(runner ProcessRunner, sink Sink, mutate ...func(*Config)) *Supervisor {
	cfg := DefaultConfig()
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.DrainTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	return New(runner, sink, WithConfig(cfg), WithLogger(testLogger()))
}

type helperT interface {
	require.TestingT
	Helper()
}

func waitDone(t helperT, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for sidecar instance to finish")
	}
}
