package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/sidecarhost/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"negative port", func(c *Config) { c.API.Port = -1 }, "api.port"},
		{"port too large", func(c *Config) { c.API.Port = 65536 }, "api.port"},
		{"relative path name", func(c *Config) { c.Sidecar.Name = "bin/backend" }, "sidecar.name"},
		{"absolute path name", func(c *Config) { c.Sidecar.Name = "/opt/backend" }, ""},
		{"bad shutdown timeout", func(c *Config) { c.Sidecar.ShutdownTimeout = "5 seconds" }, "sidecar.shutdown_timeout"},
		{"negative shutdown timeout", func(c *Config) { c.Sidecar.ShutdownTimeout = "-1s" }, "non-negative"},
		{"env key with equals", func(c *Config) { c.Sidecar.Env = map[string]string{"A=B": "x"} }, "sidecar.env"},
		{"health without url", func(c *Config) { c.Sidecar.Health = &HealthcheckConfig{} }, "url is required"},
		{"health bad scheme", func(c *Config) { c.Sidecar.Health = &HealthcheckConfig{URL: "ftp://x/health"} }, "http(s)"},
		{"health bad timeout", func(c *Config) {
			c.Sidecar.Health = &HealthcheckConfig{URL: "http://127.0.0.1:8000/health", Timeout: "x"}
		}, "sidecar.health.timeout"},
		{"negative buffer", func(c *Config) { c.Logs.BufferSize = -5 }, "logs.buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSidecarName(t *testing.T) {
	assert.NoError(t, ValidateSidecarName("backend"))
	assert.NoError(t, ValidateSidecarName("/usr/local/bin/backend"))

	err := ValidateSidecarName("")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	assert.Error(t, ValidateSidecarName("my backend"))
}
