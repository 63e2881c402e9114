package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSidecarState_String(t *testing.T) {
	tests := []struct {
		state SidecarState
		want  string
	}{
		{SidecarStateUnstarted, "unstarted"},
		{SidecarStateRunning, "running"},
		{SidecarStateStopped, "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestSidecarState_IsRunning(t *testing.T) {
	assert.False(t, SidecarStateUnstarted.IsRunning())
	assert.True(t, SidecarStateRunning.IsRunning())
	assert.False(t, SidecarStateStopped.IsRunning())
}

func TestSidecarInfo_UptimeSeconds(t *testing.T) {
	t.Run("zero when not started", func(t *testing.T) {
		info := SidecarInfo{}
		assert.Equal(t, int64(0), info.UptimeSeconds())
	})

	t.Run("zero when stopped", func(t *testing.T) {
		info := SidecarInfo{
			State:     SidecarStateStopped,
			StartedAt: time.Now().Add(-10 * time.Second),
		}
		assert.Equal(t, int64(0), info.UptimeSeconds())
	})

	t.Run("calculates uptime", func(t *testing.T) {
		info := SidecarInfo{
			State:     SidecarStateRunning,
			StartedAt: time.Now().Add(-10 * time.Second),
		}

		uptime := info.UptimeSeconds()
		assert.GreaterOrEqual(t, uptime, int64(9))
		assert.LessOrEqual(t, uptime, int64(11))
	})
}
