// Package host ties the sidecar supervisor to the rest of the application:
// it builds the supervisor from configuration, starts the sidecar without
// letting a failure take the host down, and tears everything down on exit.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/charliek/sidecarhost/internal/config"
	"github.com/charliek/sidecarhost/internal/domain"
	"github.com/charliek/sidecarhost/internal/locator"
	"github.com/charliek/sidecarhost/internal/logs"
	"github.com/charliek/sidecarhost/internal/metrics"
	"github.com/charliek/sidecarhost/internal/runstate"
	"github.com/charliek/sidecarhost/internal/supervisor"
)

// Options configures a Host
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Mirror, when set, receives every sidecar line as "[source] line"
	Mirror *slog.Logger
	// Runner overrides process creation; nil launches real processes
	Runner supervisor.ProcessRunner
	// Resolver overrides binary lookup; nil uses a locator built from Config
	Resolver supervisor.Resolver
}

// Host owns the supervisor and everything that feeds on it
type Host struct {
	cfg     *config.Config
	logger  *slog.Logger
	logs    *logs.Manager
	metrics *metrics.Metrics
	sup     *supervisor.Supervisor

	resolver supervisor.Resolver
	locator  *locator.Locator
	pidFile  *runstate.PIDFile

	// sidecarMu serializes pid file bookkeeping around spawn and shutdown
	sidecarMu sync.Mutex
	stopOnce  sync.Once
}

// New builds a host from configuration. It fails only on configuration
// errors; nothing is launched until Start.
func New(opts Options) (*Host, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cfg.LoadEnv()
	if err != nil {
		return nil, err
	}

	logMgr := logs.NewManager(logs.ManagerConfig{
		BufferSize:         cfg.Logs.BufferSize,
		SubscriptionBuffer: cfg.Logs.SubscriptionBuffer,
		Mirror:             opts.Mirror,
	})
	m := metrics.New(filepath.Base(cfg.Sidecar.Name))

	h := &Host{
		cfg:      cfg,
		logger:   logger,
		logs:     logMgr,
		metrics:  m,
		resolver: opts.Resolver,
	}

	if h.resolver == nil {
		h.locator = NewLocator(cfg)
		h.resolver = h.locator
	}

	if path := cfg.PIDFilePath(); path != "" {
		h.pidFile = runstate.NewPIDFile(path)
	}

	h.sup = supervisor.New(opts.Runner, logMgr,
		supervisor.WithConfig(supervisor.Config{
			Name:            cfg.Sidecar.Name,
			Source:          cfg.Sidecar.Prefix,
			Args:            cfg.Sidecar.Args,
			Env:             env,
			Dir:             cfg.WorkDir(),
			CaptureStderr:   cfg.Sidecar.CaptureStderrEnabled(),
			ShutdownTimeout: cfg.Sidecar.ShutdownTimeoutDuration(),
			Health:          cfg.Sidecar.Health.ToDomain(),
		}),
		supervisor.WithLogger(logger.With("component", "supervisor")),
		supervisor.WithMetrics(m),
	)

	return h, nil
}

// NewLocator builds the binary locator for the configured sidecar. Without
// configured dirs the config directory is searched.
func NewLocator(cfg *config.Config) *locator.Locator {
	dirs := cfg.SearchDirs()
	if len(dirs) == 0 && cfg.Dir != "" {
		dirs = []string{cfg.Dir}
	}
	return locator.New(cfg.Sidecar.Name, dirs...)
}

// Start reaps a sidecar orphaned by a previous run and spawns a new one.
// A spawn failure is logged and returned for reporting only; the host keeps
// running without its sidecar.
func (h *Host) Start(ctx context.Context) error {
	if h.pidFile != nil {
		killed, err := h.pidFile.ReapStale(h.cfg.Sidecar.Name)
		if err != nil {
			h.logger.Warn("failed to reap stale sidecar", "pid_file", h.pidFile.Path(), "error", err)
		} else if killed {
			h.logger.Info("reaped stale sidecar from previous run", "pid_file", h.pidFile.Path())
		}
	}

	return h.StartSidecar(ctx)
}

// StartSidecar spawns the sidecar if none is running
func (h *Host) StartSidecar(ctx context.Context) error {
	h.sidecarMu.Lock()
	defer h.sidecarMu.Unlock()

	// The supervisor logs and counts spawn failures
	if err := h.sup.Spawn(ctx, h.resolver); err != nil {
		return err
	}

	if h.pidFile != nil {
		pid := h.sup.PID()
		if err := h.pidFile.Write(pid); err != nil {
			h.logger.Warn("failed to write sidecar pid file", "path", h.pidFile.Path(), "error", err)
		} else {
			go h.clearPIDOnExit(h.sup.Done(), pid)
		}
	}
	return nil
}

// clearPIDOnExit removes the pid file once the instance has exited, unless a
// newer instance has already replaced it
func (h *Host) clearPIDOnExit(done <-chan struct{}, pid int) {
	<-done

	h.sidecarMu.Lock()
	defer h.sidecarMu.Unlock()
	if recorded, err := h.pidFile.Read(); err == nil && recorded == pid {
		if err := h.pidFile.Remove(); err != nil {
			h.logger.Warn("failed to remove sidecar pid file", "path", h.pidFile.Path(), "error", err)
		}
	}
}

// StopSidecar shuts the sidecar down. It never fails.
func (h *Host) StopSidecar(ctx context.Context) {
	h.sidecarMu.Lock()
	defer h.sidecarMu.Unlock()

	h.sup.Shutdown(ctx)
	if h.pidFile != nil {
		if err := h.pidFile.Remove(); err != nil {
			h.logger.Warn("failed to remove sidecar pid file", "path", h.pidFile.Path(), "error", err)
		}
	}
}

// Stop shuts the sidecar down and closes the log subscriptions. Safe to
// call more than once.
func (h *Host) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		h.StopSidecar(ctx)
		h.logs.Close()
		h.logger.Info("host stopped")
	})
}

// Greet returns the greeting shown by the front end
func (h *Host) Greet(name string) string {
	return Greet(name)
}

// Greet formats the greeting for name
func Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}

// Info returns a snapshot of the sidecar
func (h *Host) Info() domain.SidecarInfo {
	return h.sup.Info()
}

// Config returns the host configuration
func (h *Host) Config() *config.Config {
	return h.cfg
}

// Logs returns the sidecar output sink
func (h *Host) Logs() *logs.Manager {
	return h.logs
}

// Metrics returns the host metrics
func (h *Host) Metrics() *metrics.Metrics {
	return h.metrics
}

// Locator returns the binary locator, or nil when a custom resolver is used
func (h *Host) Locator() *locator.Locator {
	return h.locator
}

// Supervisor returns the underlying supervisor
func (h *Host) Supervisor() *supervisor.Supervisor {
	return h.sup
}
