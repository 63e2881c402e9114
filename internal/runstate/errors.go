package runstate

import "errors"

var (
	// ErrStateNotFound is returned when no state file exists
	ErrStateNotFound = errors.New("state file not found")
	// ErrHostRunning is returned when another host instance owns the state directory
	ErrHostRunning = errors.New("sidecarhost is already running")
	// ErrHostNotRunning is returned when no live host instance is recorded
	ErrHostNotRunning = errors.New("sidecarhost is not running")
)
