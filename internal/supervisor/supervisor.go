package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/domain"
	"github.com/charliek/sidecarhost/internal/metrics"
)

// Resolver locates the sidecar binary
type Resolver interface {
	Resolve() (string, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func() (string, error)

// Resolve calls f()
func (f ResolverFunc) Resolve() (string, error) {
	return f()
}

// Sink receives every drained output line. Write must not block for long.
type Sink interface {
	Write(line domain.OutputLine)
}

// Metrics records supervisor events. *metrics.Metrics implements it.
type Metrics interface {
	SpawnAttempt(result string)
	SetUp(up bool)
	LineReceived(stream domain.Stream)
	Exited(reason string)
	SetHealth(status domain.HealthStatus)
}

// Config holds the settings for one supervised sidecar
type Config struct {
	// Name identifies the sidecar in errors and logs
	Name string
	// Source labels output lines; defaults to Name
	Source          string
	Args            []string
	Env             []string
	Dir             string
	CaptureStderr   bool
	ShutdownTimeout time.Duration
	DrainTimeout    time.Duration
	LineBuffer      int
	// Health enables the HTTP health check when non-nil
	Health *domain.HealthConfig
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Name:            constants.DefaultSidecarName,
		CaptureStderr:   true,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		DrainTimeout:    constants.OutputDrainTimeout,
		LineBuffer:      constants.DefaultLineChannelSize,
	}
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithConfig sets the sidecar configuration
func WithConfig(cfg Config) Option {
	return func(s *Supervisor) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger for supervisor events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Handle is the exclusively-owned handle to one running sidecar instance
type Handle struct {
	id        string
	path      string
	proc      Process
	startedAt time.Time

	lines    chan domain.OutputLine
	readers  sync.WaitGroup
	exited   chan struct{} // closed once Wait has returned
	done     chan struct{} // closed once the instance is fully torn down
	stopping atomic.Bool
	health   *HealthChecker
}

// Supervisor launches one sidecar, holds the only handle to it, drains its
// output into a Sink and terminates it on Shutdown. All access to the
// handle goes through a single mutex so spawn and shutdown are atomic with
// respect to each other.
type Supervisor struct {
	mu sync.Mutex

	cfg     Config
	runner  ProcessRunner
	sink    Sink
	logger  *slog.Logger
	metrics Metrics

	// handle is the live instance, nil when nothing is held
	handle *Handle
	// last is the most recent instance, kept after exit for Info and Done
	last  *Handle
	state domain.SidecarState
	info  domain.SidecarInfo

	lineCount atomic.Int64
}

// New creates a supervisor. A nil runner uses ExecRunner.
func New(runner ProcessRunner, sink Sink, opts ...Option) *Supervisor {
	if runner == nil {
		runner = NewExecRunner()
	}

	s := &Supervisor{
		cfg:     DefaultConfig(),
		runner:  runner,
		sink:    sink,
		logger:  slog.Default(),
		metrics: noopMetrics{},
		state:   domain.SidecarStateUnstarted,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.Source == "" {
		s.cfg.Source = s.cfg.Name
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if s.cfg.DrainTimeout <= 0 {
		s.cfg.DrainTimeout = constants.OutputDrainTimeout
	}
	if s.cfg.LineBuffer <= 0 {
		s.cfg.LineBuffer = constants.DefaultLineChannelSize
	}
	s.info = domain.SidecarInfo{Name: s.cfg.Name, State: s.state}

	return s
}

// Spawn resolves and launches the sidecar, stores its handle and starts
// draining its output. It returns as soon as the process is launched and
// never waits for output. On failure the state is left without a handle.
func (s *Supervisor) Spawn(ctx context.Context, resolver Resolver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.spawnFailed(domain.NewSpawnError(domain.SpawnAlreadyRunning, s.cfg.Name, nil))
	}

	path, err := resolver.Resolve()
	if err != nil {
		return s.spawnFailed(domain.NewSpawnError(domain.SpawnResolutionFailed, s.cfg.Name, err))
	}

	proc, err := s.runner.Start(ctx, Command{
		Path:          path,
		Args:          s.cfg.Args,
		Env:           s.cfg.Env,
		Dir:           s.cfg.Dir,
		CaptureStderr: s.cfg.CaptureStderr,
	})
	if err != nil {
		return s.spawnFailed(domain.NewSpawnError(domain.SpawnLaunchFailed, s.cfg.Name, err))
	}

	h := &Handle{
		id:        uuid.NewString(),
		path:      path,
		proc:      proc,
		startedAt: time.Now(),
		lines:     make(chan domain.OutputLine, s.cfg.LineBuffer),
		exited:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.handle = h
	s.last = h
	s.state = domain.SidecarStateRunning
	s.lineCount.Store(0)
	s.info = domain.SidecarInfo{
		Name:      s.cfg.Name,
		State:     s.state,
		Instance:  h.id,
		PID:       proc.PID(),
		Path:      path,
		StartedAt: h.startedAt,
	}

	forwarded := s.startDraining(h)
	if s.cfg.Health != nil && s.cfg.Health.URL != "" {
		h.health = NewHealthChecker(*s.cfg.Health, s.logger, s.metrics.SetHealth)
		h.health.Start(context.Background())
	}
	go s.monitor(h, forwarded)

	s.metrics.SpawnAttempt(metrics.ResultOK)
	s.metrics.SetUp(true)
	s.logger.Info("sidecar started", "name", s.cfg.Name, "pid", proc.PID(), "path", path, "instance", h.id)
	return nil
}

func (s *Supervisor) spawnFailed(err *domain.SpawnError) error {
	s.metrics.SpawnAttempt(metrics.SpawnResult(err))
	s.logger.Error("failed to spawn sidecar", "name", s.cfg.Name, "kind", err.Kind, "error", err)
	return err
}

// startDraining starts one reader per captured stream and a single
// forwarder that writes lines to the sink in arrival order. The returned
// channel closes once the forwarder has written every line.
func (s *Supervisor) startDraining(h *Handle) <-chan struct{} {
	type source struct {
		stream domain.Stream
		r      io.Reader
	}
	streams := []source{{domain.StreamStdout, h.proc.Stdout()}}
	if stderr := h.proc.Stderr(); stderr != nil {
		streams = append(streams, source{domain.StreamStderr, stderr})
	}

	for _, st := range streams {
		h.readers.Add(1)
		raw := make(chan string, s.cfg.LineBuffer)
		go func() {
			if err := Drain(st.r, raw); err != nil && !errors.Is(err, os.ErrClosed) {
				s.logger.Debug("sidecar output read ended", "stream", st.stream, "error", err)
			}
		}()
		go func() {
			defer h.readers.Done()
			for text := range raw {
				h.lines <- domain.OutputLine{
					Timestamp: time.Now(),
					Instance:  h.id,
					Source:    s.cfg.Source,
					Stream:    st.stream,
					Line:      text,
				}
			}
		}()
	}

	go func() {
		h.readers.Wait()
		close(h.lines)
	}()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for line := range h.lines {
			if s.sink != nil {
				s.sink.Write(line)
			}
			s.lineCount.Add(1)
			s.metrics.LineReceived(line.Stream)
		}
	}()
	return forwarded
}

// monitor waits for the instance to exit, lets its output drain and
// releases the handle if it is still the stored one.
func (s *Supervisor) monitor(h *Handle, forwarded <-chan struct{}) {
	err := h.proc.Wait()
	close(h.exited)

	// Grandchildren may keep the pipes open after the sidecar itself exits
	select {
	case <-forwarded:
	case <-time.After(s.cfg.DrainTimeout):
		s.logger.Warn("sidecar output capture timed out (some output may be missing)", "name", s.cfg.Name, "instance", h.id)
		_ = h.proc.Close()
		select {
		case <-forwarded:
		case <-time.After(constants.KillGracePeriod):
		}
	}
	_ = h.proc.Close()

	if h.health != nil {
		h.health.Stop()
	}

	code := exitCode(err)
	now := time.Now()

	s.mu.Lock()
	cleared := false
	if s.handle == h {
		s.handle = nil
		s.state = domain.SidecarStateStopped
		cleared = true
	}
	if s.info.Instance == h.id {
		s.info.StoppedAt = now
		s.info.ExitCode = &code
	}
	if s.handle == nil {
		s.metrics.SetUp(false)
	}
	s.mu.Unlock()

	reason := metrics.ExitCrashed
	switch {
	case h.stopping.Load():
		reason = metrics.ExitShutdown
	case code == 0:
		reason = metrics.ExitClean
	}
	s.metrics.Exited(reason)

	if reason == metrics.ExitCrashed {
		s.logger.Warn("sidecar exited unexpectedly", "name", s.cfg.Name, "instance", h.id, "exit_code", code, "cleared", cleared)
	} else {
		s.logger.Info("sidecar exited", "name", s.cfg.Name, "instance", h.id, "exit_code", code, "reason", reason)
	}

	close(h.done)
}

// Shutdown takes the handle out of the state and terminates the instance:
// SIGTERM, then SIGKILL once the shutdown timeout or ctx expires. It never
// fails; problems are logged. Calling it with nothing held is a no-op.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	if h != nil {
		h.stopping.Store(true)
		s.state = domain.SidecarStateStopped
		s.metrics.SetUp(false)
	}
	s.mu.Unlock()

	if h == nil {
		s.logger.Debug("shutdown requested with no sidecar running", "name", s.cfg.Name)
		return
	}

	s.logger.Info("stopping sidecar", "name", s.cfg.Name, "pid", h.proc.PID(), "instance", h.id)

	if err := h.proc.Terminate(); err != nil {
		s.logger.Warn("failed to terminate sidecar (it may have already exited)", "name", s.cfg.Name, "error", err)
	}

	timer := time.NewTimer(s.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-h.exited:
		return
	case <-timer.C:
	case <-ctx.Done():
	}

	s.logger.Warn("sidecar did not exit in time, killing", "name", s.cfg.Name, "pid", h.proc.PID())
	if err := h.proc.Kill(); err != nil {
		s.logger.Warn("failed to kill sidecar", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-h.exited:
	case <-time.After(constants.KillGracePeriod):
		s.logger.Error("sidecar still running after kill", "name", s.cfg.Name, "pid", h.proc.PID())
	}
}

// State returns the current lifecycle state
func (s *Supervisor) State() domain.SidecarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether a live handle is held
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// PID returns the pid of the current or most recent instance, or 0 if
// nothing was spawned
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.PID
}

// Info returns a snapshot of the current or most recent instance
func (s *Supervisor) Info() domain.SidecarInfo {
	s.mu.Lock()
	info := s.info
	info.State = s.state
	var health *HealthChecker
	if s.handle != nil {
		health = s.handle.health
	}
	s.mu.Unlock()

	info.Lines = s.lineCount.Load()
	info.Health = domain.HealthStatusUnknown
	if health != nil {
		hs := health.State()
		info.Health = hs.Status
		info.HealthDetails = &hs
	}
	if info.State.IsRunning() {
		info.Resources = SampleResources(info.PID)
	}
	return info
}

// Done returns a channel that closes when the current or most recent
// instance has exited and its output has been drained. If nothing was ever
// spawned the returned channel is already closed.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.last.done
}

// exitCode extracts the exit code from a Wait error. A process killed by a
// signal reports the negated signal number.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return -int(status.Signal())
		}
		return status.ExitStatus()
	}
	return exitErr.ExitCode()
}

type noopMetrics struct{}

func (noopMetrics) SpawnAttempt(string)           {}
func (noopMetrics) SetUp(bool)                    {}
func (noopMetrics) LineReceived(domain.Stream)    {}
func (noopMetrics) Exited(string)                 {}
func (noopMetrics) SetHealth(domain.HealthStatus) {}
