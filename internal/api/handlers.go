package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/domain"
	"github.com/charliek/sidecarhost/internal/logs"
)

// ErrCodeInvalidRequest is returned for malformed query parameters
const ErrCodeInvalidRequest = "INVALID_REQUEST"

// Controller is the host surface the API drives. *host.Host implements it.
type Controller interface {
	Info() domain.SidecarInfo
	StartSidecar(ctx context.Context) error
	StopSidecar(ctx context.Context)
	Greet(name string) string
}

// HandlerOptions holds the optional parts of the handlers
type HandlerOptions struct {
	ConfigFile string
	// SidecarEnv is reported (redacted) in status responses
	SidecarEnv map[string]string
	ShutdownFn func()
	Logger     *slog.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	ctrl       Controller
	logManager *logs.Manager
	configFile string
	sidecarEnv map[string]string
	shutdownFn func()
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(ctrl Controller, logMgr *logs.Manager, opts HandlerOptions) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		ctrl:       ctrl,
		logManager: logMgr,
		configFile: opts.ConfigFile,
		sidecarEnv: opts.SidecarEnv,
		shutdownFn: opts.ShutdownFn,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:        "running",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		ConfigFile:    h.configFile,
		APIVersion:    "v1",
		Sidecar:       ToSidecarResponse(h.ctrl.Info(), h.sidecarEnv),
	}

	writeJSON(w, http.StatusOK, resp)
}

// Greet handles GET /api/v1/greet?name=
func (h *Handlers) Greet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GreetResponse{Message: h.ctrl.Greet(r.URL.Query().Get("name"))})
}

// StartSidecar handles POST /api/v1/sidecar/start
func (h *Handlers) StartSidecar(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.StartSidecar(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// StopSidecar handles POST /api/v1/sidecar/stop
func (h *Handlers) StopSidecar(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Info().State.IsRunning() {
		h.writeError(w, domain.ErrNotRunning)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DefaultRequestTimeout)
	defer cancel()
	h.ctrl.StopSidecar(ctx)

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetLogs handles GET /api/v1/logs
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := parseLogParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  ErrCodeInvalidRequest,
		})
		return
	}

	lines, total, err := h.logManager.QueryLast(filter, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := LogsResponse{
		Logs:          make([]LogLineResponse, len(lines)),
		FilteredCount: len(lines),
		TotalCount:    total,
	}

	for i, l := range lines {
		resp.Logs[i] = ToLogLineResponse(l)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Shutdown handles POST /api/v1/shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})

	// Trigger shutdown asynchronously
	go func() {
		time.Sleep(100 * time.Millisecond) // Let response complete
		if h.shutdownFn != nil {
			h.shutdownFn()
		}
	}()
}

// parseLogFilter extracts the stream and pattern filter from the request
func parseLogFilter(r *http.Request) (domain.LineFilter, error) {
	filter := domain.LineFilter{}

	if streams := r.URL.Query().Get("stream"); streams != "" {
		for _, s := range strings.Split(streams, ",") {
			switch stream := domain.Stream(strings.TrimSpace(s)); stream {
			case domain.StreamStdout, domain.StreamStderr:
				filter.Streams = append(filter.Streams, stream)
			default:
				return filter, fmt.Errorf("unknown stream %q", s)
			}
		}
	}

	filter.Pattern = r.URL.Query().Get("pattern")
	if r.URL.Query().Get("regex") == "true" {
		filter.IsRegex = true
	}

	return filter, nil
}

// parseLogParams extracts log filter parameters and the line limit from request
func parseLogParams(r *http.Request) (domain.LineFilter, int, error) {
	filter, err := parseLogFilter(r)
	if err != nil {
		return filter, 0, err
	}

	// Lines limit (default 100, max 10000 to prevent DoS)
	limit := constants.DefaultLogLimit
	if linesStr := r.URL.Query().Get("lines"); linesStr != "" {
		if l, err := strconv.Atoi(linesStr); err == nil && l > 0 {
			limit = min(l, constants.MaxLogLines)
		}
	}

	return filter, limit, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrorCode(err)
	message := err.Error()

	switch code {
	case domain.ErrCodeResolutionFailed, domain.ErrCodeLaunchFailed:
		status = http.StatusServiceUnavailable
	case domain.ErrCodeAlreadyRunning, domain.ErrCodeNotRunning:
		status = http.StatusConflict
	case domain.ErrCodeInvalidPattern:
		status = http.StatusBadRequest
	default:
		// Unknown errors are logged but not echoed to avoid leaking internals
		h.logger.Error("internal error", "error", err)
		message = "an internal error occurred"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
