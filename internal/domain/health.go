package domain

import "time"

// HealthStatus represents the health state of the sidecar
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// String returns the string representation of HealthStatus
func (s HealthStatus) String() string {
	return string(s)
}

// HealthConfig defines the HTTP health check for a sidecar
type HealthConfig struct {
	URL         string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// WithDefaults returns a copy of the config with default values applied
func (c HealthConfig) WithDefaults() HealthConfig {
	result := c
	if result.Interval == 0 {
		result.Interval = 10 * time.Second
	}
	if result.Timeout == 0 {
		result.Timeout = 2 * time.Second
	}
	if result.Retries == 0 {
		result.Retries = 3
	}
	if result.StartPeriod == 0 {
		result.StartPeriod = 2 * time.Second
	}
	return result
}

// HealthState represents the current health check state
type HealthState struct {
	Enabled             bool         `json:"enabled"`
	Status              HealthStatus `json:"status"`
	LastCheck           time.Time    `json:"last_check,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
}
