package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/charliek/sidecarhost/internal/domain"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors
func Validate(config *Config) error {
	var errs []string

	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	sc := config.Sidecar
	if err := ValidateSidecarName(sc.Name); err != nil {
		errs = append(errs, "sidecar."+err.Error())
	}
	if err := validateDuration(sc.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("sidecar.shutdown_timeout: %v", err))
	}
	for key := range sc.Env {
		if key == "" || strings.ContainsAny(key, "= \t\n") {
			errs = append(errs, fmt.Sprintf("sidecar.env.%s: invalid variable name", key))
		}
	}

	if hc := sc.Health; hc != nil {
		if hc.URL == "" {
			errs = append(errs, "sidecar.health.url: url is required")
		} else if u, err := url.Parse(hc.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("sidecar.health.url: must be an absolute http(s) url, got %q", hc.URL))
		}
		if hc.Retries < 0 {
			errs = append(errs, "sidecar.health.retries: must be non-negative")
		}
		for field, value := range map[string]string{
			"interval":     hc.Interval,
			"timeout":      hc.Timeout,
			"start_period": hc.StartPeriod,
		} {
			if err := validateDuration(value); err != nil {
				errs = append(errs, fmt.Sprintf("sidecar.health.%s: %v", field, err))
			}
		}
	}

	if config.Logs.BufferSize < 0 {
		errs = append(errs, "logs.buffer_size: must be non-negative")
	}
	if config.Logs.SubscriptionBuffer < 0 {
		errs = append(errs, "logs.subscription_buffer: must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateSidecarName checks that name is either an absolute path or a bare
// binary name without path separators
func ValidateSidecarName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "sidecar name cannot be empty"}
	}
	if filepath.IsAbs(name) {
		return nil
	}
	if strings.ContainsAny(name, " \t\n/\\") {
		return &ValidationError{Field: "name", Message: "sidecar name cannot contain whitespace or path separators"}
	}
	return nil
}

func validateDuration(value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	if d < 0 {
		return fmt.Errorf("must be non-negative, got %s", value)
	}
	return nil
}
