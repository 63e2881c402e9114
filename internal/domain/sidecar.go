package domain

import "time"

// SidecarState is the lifecycle state of a supervised sidecar instance.
// An instance moves Unstarted -> Running -> Stopped; Stopped is terminal and
// a new spawn creates a fresh instance.
type SidecarState string

const (
	// SidecarStateUnstarted indicates no spawn has succeeded yet
	SidecarStateUnstarted SidecarState = "unstarted"
	// SidecarStateRunning indicates a live handle is held
	SidecarStateRunning SidecarState = "running"
	// SidecarStateStopped indicates the last instance was shut down or exited on its own
	SidecarStateStopped SidecarState = "stopped"
)

// String returns the string representation of SidecarState
func (s SidecarState) String() string {
	return string(s)
}

// IsRunning returns true if a live sidecar is held
func (s SidecarState) IsRunning() bool {
	return s == SidecarStateRunning
}

// Resources is a point-in-time resource sample of the sidecar process
type Resources struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// SidecarInfo represents the runtime state of the sidecar
type SidecarInfo struct {
	Name          string       `json:"name"`
	State         SidecarState `json:"state"`
	Instance      string       `json:"instance,omitempty"`
	PID           int          `json:"pid"`
	Path          string       `json:"path,omitempty"`
	StartedAt     time.Time    `json:"started_at,omitempty"`
	StoppedAt     time.Time    `json:"stopped_at,omitempty"`
	ExitCode      *int         `json:"exit_code,omitempty"`
	Lines         int64        `json:"lines"`
	Health        HealthStatus `json:"health"`
	HealthDetails *HealthState `json:"healthcheck,omitempty"`
	Resources     *Resources   `json:"resources,omitempty"`
}

// UptimeSeconds returns the number of seconds the sidecar has been running
func (i SidecarInfo) UptimeSeconds() int64 {
	if i.StartedAt.IsZero() || !i.State.IsRunning() {
		return 0
	}
	return int64(time.Since(i.StartedAt).Seconds())
}
