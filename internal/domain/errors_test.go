package domain

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"resolution failed", ErrResolutionFailed, ErrCodeResolutionFailed},
		{"launch failed", ErrLaunchFailed, ErrCodeLaunchFailed},
		{"already running", ErrAlreadyRunning, ErrCodeAlreadyRunning},
		{"not running", ErrNotRunning, ErrCodeNotRunning},
		{"invalid pattern", ErrInvalidPattern, ErrCodeInvalidPattern},
		{"spawn error", NewSpawnError(SpawnLaunchFailed, "backend", os.ErrPermission), ErrCodeLaunchFailed},
		{"unknown error", errors.New("some error"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestSpawnError(t *testing.T) {
	t.Run("matches sentinel for kind", func(t *testing.T) {
		err := NewSpawnError(SpawnResolutionFailed, "backend", errors.New("no candidates"))
		assert.ErrorIs(t, err, ErrResolutionFailed)
		assert.NotErrorIs(t, err, ErrLaunchFailed)
		assert.NotErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("unwraps cause", func(t *testing.T) {
		err := NewSpawnError(SpawnLaunchFailed, "backend", os.ErrPermission)
		assert.ErrorIs(t, err, ErrLaunchFailed)
		assert.ErrorIs(t, err, os.ErrPermission)
	})

	t.Run("message", func(t *testing.T) {
		err := NewSpawnError(SpawnAlreadyRunning, "backend", nil)
		assert.Equal(t, "spawn backend: already_running", err.Error())

		err = NewSpawnError(SpawnLaunchFailed, "backend", errors.New("exec format error"))
		assert.Equal(t, "spawn backend: launch_failed: exec format error", err.Error())
	})

	t.Run("errors.As", func(t *testing.T) {
		var wrapped error = NewSpawnError(SpawnLaunchFailed, "backend", nil)
		var spawnErr *SpawnError
		assert.True(t, errors.As(wrapped, &spawnErr))
		assert.Equal(t, SpawnLaunchFailed, spawnErr.Kind)
	})
}
