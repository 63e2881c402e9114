package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/sidecarhost/internal/domain"
)

func TestFilterSensitiveEnv(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]string
		expected map[string]string
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty input",
			input:    map[string]string{},
			expected: map[string]string{},
		},
		{
			name:     "no sensitive vars",
			input:    map[string]string{"PORT": "8000", "RUST_LOG": "info"},
			expected: map[string]string{"PORT": "8000", "RUST_LOG": "info"},
		},
		{
			name: "sensitive vars",
			input: map[string]string{
				"DB_PASSWORD":   "dbpass",
				"api_key":       "k",
				"GITHUB_TOKEN":  "t",
				"BACKEND_HOST":  "127.0.0.1",
				"PASSWRD":       "notmatched",
				"PRIVATE_CERTS": "/etc/certs",
			},
			expected: map[string]string{
				"DB_PASSWORD":   "[REDACTED]",
				"api_key":       "[REDACTED]",
				"GITHUB_TOKEN":  "[REDACTED]",
				"BACKEND_HOST":  "127.0.0.1",
				"PASSWRD":       "notmatched",
				"PRIVATE_CERTS": "[REDACTED]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filterSensitiveEnv(tt.input))
		})
	}
}

func TestToSidecarResponse(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	code := 3

	t.Run("stopped sidecar", func(t *testing.T) {
		info := domain.SidecarInfo{
			Name:      "backend",
			State:     domain.SidecarStateStopped,
			Instance:  "abc",
			PID:       0,
			StartedAt: started,
			StoppedAt: started.Add(time.Minute),
			ExitCode:  &code,
			Lines:     12,
			Health:    domain.HealthStatusUnknown,
		}

		resp := ToSidecarResponse(info, nil)

		assert.Equal(t, "stopped", resp.Status)
		assert.Equal(t, "2026-01-02T03:04:05Z", resp.StartedAt)
		assert.Equal(t, "2026-01-02T03:05:05Z", resp.StoppedAt)
		require.NotNil(t, resp.ExitCode)
		assert.Equal(t, 3, *resp.ExitCode)
		assert.Equal(t, int64(0), resp.UptimeSeconds)
		assert.Equal(t, int64(12), resp.Lines)
		assert.Nil(t, resp.Healthcheck)
	})

	t.Run("unstarted sidecar has no timestamps", func(t *testing.T) {
		resp := ToSidecarResponse(domain.SidecarInfo{Name: "backend", State: domain.SidecarStateUnstarted}, nil)
		assert.Empty(t, resp.StartedAt)
		assert.Empty(t, resp.StoppedAt)
		assert.Nil(t, resp.ExitCode)
	})

	t.Run("health details", func(t *testing.T) {
		info := domain.SidecarInfo{
			Name:   "backend",
			State:  domain.SidecarStateRunning,
			Health: domain.HealthStatusUnhealthy,
			HealthDetails: &domain.HealthState{
				Enabled:             true,
				Status:              domain.HealthStatusUnhealthy,
				LastCheck:           started,
				LastError:           "connection refused",
				ConsecutiveFailures: 3,
			},
			Resources: &domain.Resources{RSSBytes: 1024, CPUPercent: 1.5},
		}

		resp := ToSidecarResponse(info, nil)

		require.NotNil(t, resp.Healthcheck)
		assert.True(t, resp.Healthcheck.Enabled)
		assert.Equal(t, "connection refused", resp.Healthcheck.LastError)
		assert.Equal(t, 3, resp.Healthcheck.ConsecutiveFailures)
		assert.Equal(t, "2026-01-02T03:04:05Z", resp.Healthcheck.LastCheck)
		assert.Equal(t, "unhealthy", resp.Health)
		require.NotNil(t, resp.Resources)
		assert.Equal(t, uint64(1024), resp.Resources.RSSBytes)
	})
}

func TestToLogLineResponse(t *testing.T) {
	line := domain.OutputLine{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		Instance:  "abc",
		Source:    "backend",
		Stream:    domain.StreamStderr,
		Line:      "boom",
	}

	resp := ToLogLineResponse(line)

	assert.Equal(t, "2026-01-02T03:04:05.000000006Z", resp.Timestamp)
	assert.Equal(t, "abc", resp.Instance)
	assert.Equal(t, "backend", resp.Source)
	assert.Equal(t, "stderr", resp.Stream)
	assert.Equal(t, "boom", resp.Line)
}
