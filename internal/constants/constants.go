// Package constants provides shared configuration values used across sidecarhost.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "sidecarhost.yaml"

	// DefaultSidecarName is the sidecar binary base name used when none is configured
	DefaultSidecarName = "backend"

	// DefaultAPIHost is the default host for the API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the API server
	DefaultAPIPort = 5556

	// DefaultAPIAddress is the default API address for client connections
	DefaultAPIAddress = "http://127.0.0.1:5556"
)

// Timeout and duration defaults
const (
	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is how long the sidecar gets to exit after SIGTERM
	DefaultShutdownTimeout = 5 * time.Second

	// KillGracePeriod is how long to wait for exit after SIGKILL
	KillGracePeriod = time.Second

	// OutputDrainTimeout is the maximum time to wait for output readers to
	// finish after the sidecar exits. Grandchildren may still hold the pipe.
	OutputDrainTimeout = 5 * time.Second

	// WatchDebounce is how long the binary must stay quiet before a restart
	WatchDebounce = 300 * time.Millisecond
)

// Log configuration
const (
	// DefaultLogLimit is the default number of log lines to return
	DefaultLogLimit = 100

	// MaxLogLines is the maximum number of log lines that can be requested
	MaxLogLines = 10000
)

// Buffer sizes
const (
	// DefaultLogBufferSize is the default size for the output ring buffer
	DefaultLogBufferSize = 1000

	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// DefaultLineChannelSize is the buffer between the draining readers and the sink
	DefaultLineChannelSize = 256

	// ScannerBufferSize is the initial buffer size for line scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum line length accepted from the sidecar
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// State directory layout
const (
	// StateDirName is the directory (relative to the config file) for runtime state
	StateDirName = ".sidecarhost"

	// TokenFileName holds the API bearer token when auth is enabled
	TokenFileName = "token"
)
