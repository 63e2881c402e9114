package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/domain"
)

// Config represents the top-level sidecarhost configuration
type Config struct {
	Sidecar SidecarConfig `yaml:"sidecar"`
	API     APIConfig     `yaml:"api"`
	Logs    LogsConfig    `yaml:"logs"`

	// Dir is the directory containing the config file. Relative paths in the
	// config resolve against it.
	Dir string `yaml:"-"`
}

// SidecarConfig describes the sidecar binary and how to run it
type SidecarConfig struct {
	Name            string             `yaml:"name"`
	Dirs            []string           `yaml:"dirs"`
	Args            []string           `yaml:"args"`
	Env             map[string]string  `yaml:"env"`
	EnvFile         string             `yaml:"env_file"`
	WorkDir         string             `yaml:"work_dir"`
	CaptureStderr   *bool              `yaml:"capture_stderr,omitempty"` // nil = true
	Prefix          string             `yaml:"prefix"`
	ShutdownTimeout string             `yaml:"shutdown_timeout"`
	Health          *HealthcheckConfig `yaml:"health,omitempty"`
	PIDFile         string             `yaml:"pid_file"`
	// Watch restarts the sidecar when its binary is rebuilt
	Watch bool `yaml:"watch"`
}

// HealthcheckConfig defines the HTTP health check in YAML
type HealthcheckConfig struct {
	URL         string `yaml:"url"`
	Interval    string `yaml:"interval"`
	Timeout     string `yaml:"timeout"`
	Retries     int    `yaml:"retries"`
	StartPeriod string `yaml:"start_period"`
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil = true
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Auth    *bool  `yaml:"auth,omitempty"` // nil = auto-determine based on host
}

// LogsConfig sizes the in-memory output buffer
type LogsConfig struct {
	BufferSize         int `yaml:"buffer_size"`
	SubscriptionBuffer int `yaml:"subscription_buffer"`
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if abs, err := filepath.Abs(path); err == nil {
		cfg.Dir = filepath.Dir(abs)
	} else {
		cfg.Dir = filepath.Dir(path)
	}
	return cfg, nil
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Sidecar.Name == "" {
		cfg.Sidecar.Name = constants.DefaultSidecarName
	}
	if cfg.Sidecar.Prefix == "" {
		cfg.Sidecar.Prefix = filepath.Base(cfg.Sidecar.Name)
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = constants.DefaultAPIPort
	}
	if cfg.API.Host == "" {
		cfg.API.Host = constants.DefaultAPIHost
	}
	if cfg.Logs.BufferSize == 0 {
		cfg.Logs.BufferSize = constants.DefaultLogBufferSize
	}
	if cfg.Logs.SubscriptionBuffer == 0 {
		cfg.Logs.SubscriptionBuffer = constants.DefaultSubscriptionBuffer
	}
}

// APIEnabled reports whether the local API server should run
func (c *Config) APIEnabled() bool {
	return c.API.Enabled == nil || *c.API.Enabled
}

// ResolvePath resolves a path from the config against the config directory
func (c *Config) ResolvePath(path string) string {
	return resolvePath(path, c.Dir)
}

// SearchDirs returns the configured binary search directories, resolved
// against the config directory
func (c *Config) SearchDirs() []string {
	dirs := make([]string, 0, len(c.Sidecar.Dirs))
	for _, d := range c.Sidecar.Dirs {
		dirs = append(dirs, c.ResolvePath(d))
	}
	return dirs
}

// WorkDir returns the resolved working directory, or "" to inherit the host's
func (c *Config) WorkDir() string {
	if c.Sidecar.WorkDir == "" {
		return ""
	}
	return c.ResolvePath(c.Sidecar.WorkDir)
}

// PIDFilePath returns the resolved pid file path, or "" when disabled
func (c *Config) PIDFilePath() string {
	if c.Sidecar.PIDFile == "" {
		return ""
	}
	return c.ResolvePath(c.Sidecar.PIDFile)
}

// CaptureStderrEnabled reports whether the sidecar's stderr is drained as well
func (s SidecarConfig) CaptureStderrEnabled() bool {
	return s.CaptureStderr == nil || *s.CaptureStderr
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout or the default
func (s SidecarConfig) ShutdownTimeoutDuration() time.Duration {
	if s.ShutdownTimeout == "" {
		return constants.DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil {
		return constants.DefaultShutdownTimeout
	}
	return d
}

// ToDomain converts the YAML health config to the domain type. Durations are
// validated by Validate; unparseable values fall back to defaults.
func (h *HealthcheckConfig) ToDomain() *domain.HealthConfig {
	if h == nil {
		return nil
	}
	hc := &domain.HealthConfig{
		URL:     h.URL,
		Retries: h.Retries,
	}
	if d, err := time.ParseDuration(h.Interval); err == nil {
		hc.Interval = d
	}
	if d, err := time.ParseDuration(h.Timeout); err == nil {
		hc.Timeout = d
	}
	if d, err := time.ParseDuration(h.StartPeriod); err == nil {
		hc.StartPeriod = d
	}
	result := hc.WithDefaults()
	return &result
}
