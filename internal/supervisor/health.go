package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/charliek/sidecarhost/internal/domain"
)

// maxHealthErrorLen bounds the stored error text from a failed check
const maxHealthErrorLen = 1000

// HealthChecker periodically checks the sidecar's HTTP health endpoint and
// tracks the resulting status. It never gates spawn.
type HealthChecker struct {
	mu sync.RWMutex

	// config holds the check configuration (url, interval, timeout, etc.)
	config domain.HealthConfig
	// client performs the check requests
	client *http.Client
	logger *slog.Logger
	// onChange is invoked with the new status whenever it changes
	onChange func(domain.HealthStatus)

	status              domain.HealthStatus
	lastCheck           time.Time
	lastError           string
	consecutiveFailures int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(config domain.HealthConfig, logger *slog.Logger, onChange func(domain.HealthStatus)) *HealthChecker {
	config = config.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthChecker{
		config:   config,
		client:   &http.Client{},
		logger:   logger,
		onChange: onChange,
		status:   domain.HealthStatusUnknown,
		done:     make(chan struct{}),
	}
}

// Start starts the check loop
func (h *HealthChecker) Start(ctx context.Context) {
	h.mu.Lock()
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.mu.Unlock()

	go h.run()
}

// Stop stops the check loop and waits for it to exit
func (h *HealthChecker) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-h.done
}

// State returns the current health state
func (h *HealthChecker) State() domain.HealthState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return domain.HealthState{
		Enabled:             true,
		Status:              h.status,
		LastCheck:           h.lastCheck,
		LastError:           h.lastError,
		ConsecutiveFailures: h.consecutiveFailures,
	}
}

// Status returns the current health status
func (h *HealthChecker) Status() domain.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *HealthChecker) run() {
	defer close(h.done)

	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()

	select {
	case <-ctx.Done():
		return
	case <-time.After(h.config.StartPeriod):
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.runCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runCheck(ctx)
		}
	}
}

// runCheck performs a single check. Any 2xx response counts as healthy.
func (h *HealthChecker) runCheck(ctx context.Context) {
	err := h.request(ctx)
	if ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	prev := h.status
	h.lastCheck = time.Now()
	if err != nil {
		msg := err.Error()
		if len(msg) > maxHealthErrorLen {
			msg = msg[:maxHealthErrorLen] + "..."
		}
		h.lastError = msg
		h.consecutiveFailures++
		if h.consecutiveFailures >= h.config.Retries {
			h.status = domain.HealthStatusUnhealthy
		}
	} else {
		h.lastError = ""
		h.consecutiveFailures = 0
		h.status = domain.HealthStatusHealthy
	}
	current := h.status
	failures := h.consecutiveFailures
	h.mu.Unlock()

	if current != prev {
		h.logger.Info("sidecar health changed", "url", h.config.URL, "from", prev, "to", current, "failures", failures)
		if h.onChange != nil {
			h.onChange(current)
		}
	}
}

func (h *HealthChecker) request(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, h.config.URL, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return nil
}
