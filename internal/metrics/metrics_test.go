package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/sidecarhost/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	m := New("backend")

	m.SpawnAttempt(ResultOK)
	m.SpawnAttempt(ResultOK)
	m.SpawnAttempt(ResultResolutionFailed)
	m.LineReceived(domain.StreamStdout)
	m.LineReceived(domain.StreamStderr)
	m.LineReceived(domain.StreamStdout)
	m.Exited(ExitShutdown)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.spawnsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawnsTotal.WithLabelValues(ResultResolutionFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linesTotal.WithLabelValues("stdout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linesTotal.WithLabelValues("stderr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exitsTotal.WithLabelValues(ExitShutdown)))
}

func TestMetrics_Gauges(t *testing.T) {
	m := New("backend")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.up))
	assert.Equal(t, -1.0, testutil.ToFloat64(m.healthStatus))

	m.SetUp(true)
	m.SetHealth(domain.HealthStatusHealthy)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.up))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthStatus))

	m.SetUp(false)
	m.SetHealth(domain.HealthStatusUnhealthy)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.up))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthStatus))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("backend")
	m.SetUp(true)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sidecar_up{sidecar="backend"} 1`)
}

func TestSpawnResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ResultOK},
		{"resolution", domain.NewSpawnError(domain.SpawnResolutionFailed, "backend", nil), ResultResolutionFailed},
		{"launch", domain.NewSpawnError(domain.SpawnLaunchFailed, "backend", nil), ResultLaunchFailed},
		{"already running", domain.NewSpawnError(domain.SpawnAlreadyRunning, "backend", nil), ResultAlreadyRunning},
		{"other", errors.New("boom"), ResultLaunchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpawnResult(tt.err))
		})
	}
}
