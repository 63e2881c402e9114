// Package runstate persists what a running host needs to be found and
// cleaned up after: the host's own state file (pid and API address, read
// by client commands) and the sidecar's pid file.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charliek/sidecarhost/internal/constants"
)

const (
	// StateFileName is the name of the host state file
	StateFileName = "sidecarhost.state"
)

// State holds the runtime state of a running host instance.
//
// State is not safe for concurrent use. The host writes it once at startup
// and clients only read it.
type State struct {
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Host       string    `json:"host"`
	StartedAt  time.Time `json:"started_at"`
	ConfigFile string    `json:"config_file"`
	Sidecar    string    `json:"sidecar"`
}

// Addr returns the API base URL recorded in the state
func (s *State) Addr() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// Write writes the state to the state file in the given directory
func (s *State) Write(dir string) error {
	if s.PID <= 0 {
		return fmt.Errorf("invalid PID: %d", s.PID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if err := EnsureStateDir(dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	f, err := os.OpenFile(StatePath(dir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing state file: %w", err)
	}

	return nil
}

// LoadState reads the state from the state file in the given directory
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}

	return &state, nil
}

// RemoveState removes the state file from the given directory
func RemoveState(dir string) error {
	if err := os.Remove(StatePath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// StateDir returns the path to the state directory in the given directory.
// If dir is empty, uses the current working directory.
func StateDir(dir string) string {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return constants.StateDirName
		}
	}
	return filepath.Join(dir, constants.StateDirName)
}

// StatePath returns the full path to the state file
func StatePath(dir string) string {
	return filepath.Join(StateDir(dir), StateFileName)
}

// EnsureStateDir creates the state directory if it doesn't exist
func EnsureStateDir(dir string) error {
	if err := os.MkdirAll(StateDir(dir), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// GetRunningState returns the state of a live host instance.
// Returns ErrHostNotRunning if none is recorded or its process is gone.
func GetRunningState(dir string) (*State, error) {
	state, err := LoadState(dir)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrHostNotRunning
		}
		return nil, err
	}
	if !ProcessExists(state.PID) {
		return nil, ErrHostNotRunning
	}
	return state, nil
}

// CleanupStale removes the state file left by a host that is no longer
// running. It returns ErrHostRunning if the recorded host is still alive.
func CleanupStale(dir string) error {
	state, err := LoadState(dir)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		// Corrupt state cannot describe a live host
		return RemoveState(dir)
	}

	if state.PID != os.Getpid() && ProcessExists(state.PID) {
		return ErrHostRunning
	}

	return RemoveState(dir)
}
