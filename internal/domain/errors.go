package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrResolutionFailed = errors.New("sidecar binary not found")
	ErrLaunchFailed     = errors.New("sidecar launch failed")
	ErrAlreadyRunning   = errors.New("sidecar already running")
	ErrNotRunning       = errors.New("sidecar not running")
	ErrInvalidPattern   = errors.New("invalid filter pattern")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeResolutionFailed = "RESOLUTION_FAILED"
	ErrCodeLaunchFailed     = "LAUNCH_FAILED"
	ErrCodeAlreadyRunning   = "ALREADY_RUNNING"
	ErrCodeNotRunning       = "NOT_RUNNING"
	ErrCodeInvalidPattern   = "INVALID_PATTERN"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// SpawnErrorKind classifies why a spawn attempt failed
type SpawnErrorKind string

const (
	SpawnResolutionFailed SpawnErrorKind = "resolution_failed"
	SpawnLaunchFailed     SpawnErrorKind = "launch_failed"
	SpawnAlreadyRunning   SpawnErrorKind = "already_running"
)

// String returns the string representation of SpawnErrorKind
func (k SpawnErrorKind) String() string {
	return string(k)
}

// SpawnError is returned by every failed spawn attempt.
// errors.Is matches the sentinel for its Kind as well as the wrapped cause.
type SpawnError struct {
	Kind SpawnErrorKind
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("spawn %s: %s", e.Name, e.Kind)
	}
	return fmt.Sprintf("spawn %s: %s: %v", e.Name, e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *SpawnError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k SpawnErrorKind) sentinel() error {
	switch k {
	case SpawnResolutionFailed:
		return ErrResolutionFailed
	case SpawnLaunchFailed:
		return ErrLaunchFailed
	case SpawnAlreadyRunning:
		return ErrAlreadyRunning
	default:
		return nil
	}
}

// NewSpawnError creates a SpawnError of the given kind
func NewSpawnError(kind SpawnErrorKind, name string, err error) *SpawnError {
	return &SpawnError{Kind: kind, Name: name, Err: err}
}

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrResolutionFailed):
		return ErrCodeResolutionFailed
	case errors.Is(err, ErrLaunchFailed):
		return ErrCodeLaunchFailed
	case errors.Is(err, ErrAlreadyRunning):
		return ErrCodeAlreadyRunning
	case errors.Is(err, ErrNotRunning):
		return ErrCodeNotRunning
	case errors.Is(err, ErrInvalidPattern):
		return ErrCodeInvalidPattern
	default:
		return ErrCodeInternal
	}
}
