package api

import (
	"strings"
	"time"

	"github.com/charliek/sidecarhost/internal/domain"
)

// sensitiveEnvPatterns contains patterns that indicate sensitive environment variables
var sensitiveEnvPatterns = []string{
	"PASSWORD",
	"SECRET",
	"KEY",
	"TOKEN",
	"CREDENTIAL",
	"PRIVATE",
	"AUTH",
	"API_KEY",
	"APIKEY",
	"ACCESS_KEY",
	"ACCESSKEY",
}

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	ConfigFile    string          `json:"config_file,omitempty"`
	APIVersion    string          `json:"api_version"`
	Sidecar       SidecarResponse `json:"sidecar"`
}

// SidecarResponse describes the supervised sidecar
type SidecarResponse struct {
	Name          string            `json:"name"`
	Status        string            `json:"status"`
	Instance      string            `json:"instance,omitempty"`
	PID           int               `json:"pid"`
	Path          string            `json:"path,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartedAt     string            `json:"started_at,omitempty"`
	StoppedAt     string            `json:"stopped_at,omitempty"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	Lines         int64             `json:"lines"`
	Health        string            `json:"health"`
	Healthcheck   *HealthcheckInfo  `json:"healthcheck,omitempty"`
	Resources     *domain.Resources `json:"resources,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// HealthcheckInfo represents health check details
type HealthcheckInfo struct {
	Enabled             bool   `json:"enabled"`
	LastCheck           string `json:"last_check,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// LogsResponse represents the response for GET /logs
type LogsResponse struct {
	Logs          []LogLineResponse `json:"logs"`
	FilteredCount int               `json:"filtered_count"`
	TotalCount    int               `json:"total_count"`
}

// LogLineResponse represents a single output line
type LogLineResponse struct {
	Timestamp string `json:"timestamp"`
	Instance  string `json:"instance"`
	Source    string `json:"source"`
	Stream    string `json:"stream"`
	Line      string `json:"line"`
}

// GreetResponse represents the response for GET /greet
type GreetResponse struct {
	Message string `json:"message"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToSidecarResponse converts domain.SidecarInfo to SidecarResponse
func ToSidecarResponse(info domain.SidecarInfo, env map[string]string) SidecarResponse {
	resp := SidecarResponse{
		Name:          info.Name,
		Status:        string(info.State),
		Instance:      info.Instance,
		PID:           info.PID,
		Path:          info.Path,
		UptimeSeconds: info.UptimeSeconds(),
		ExitCode:      info.ExitCode,
		Lines:         info.Lines,
		Health:        string(info.Health),
		Resources:     info.Resources,
		Env:           filterSensitiveEnv(env),
	}
	if !info.StartedAt.IsZero() {
		resp.StartedAt = info.StartedAt.Format(time.RFC3339)
	}
	if !info.StoppedAt.IsZero() {
		resp.StoppedAt = info.StoppedAt.Format(time.RFC3339)
	}

	if info.HealthDetails != nil {
		resp.Healthcheck = &HealthcheckInfo{
			Enabled:             info.HealthDetails.Enabled,
			LastError:           info.HealthDetails.LastError,
			ConsecutiveFailures: info.HealthDetails.ConsecutiveFailures,
		}
		if !info.HealthDetails.LastCheck.IsZero() {
			resp.Healthcheck.LastCheck = info.HealthDetails.LastCheck.Format(time.RFC3339)
		}
	}

	return resp
}

// filterSensitiveEnv filters out sensitive environment variables
// Variables matching sensitive patterns have their values replaced with "[REDACTED]"
func filterSensitiveEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}

	filtered := make(map[string]string, len(env))
	for key, value := range env {
		if isSensitiveEnvVar(key) {
			filtered[key] = "[REDACTED]"
		} else {
			filtered[key] = value
		}
	}
	return filtered
}

// isSensitiveEnvVar checks if an environment variable name matches sensitive patterns
func isSensitiveEnvVar(name string) bool {
	upperName := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.Contains(upperName, pattern) {
			return true
		}
	}
	return false
}

// ToLogLineResponse converts domain.OutputLine to LogLineResponse
func ToLogLineResponse(line domain.OutputLine) LogLineResponse {
	return LogLineResponse{
		Timestamp: line.Timestamp.Format(time.RFC3339Nano),
		Instance:  line.Instance,
		Source:    line.Source,
		Stream:    string(line.Stream),
		Line:      line.Line,
	}
}
