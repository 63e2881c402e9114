package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/joho/godotenv"

	"github.com/charliek/sidecarhost/internal/constants"
)

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// LoadEnv builds the sidecar's extra environment as sorted KEY=VALUE pairs.
// Priority (lowest to highest):
// 1. sidecar.env_file
// 2. sidecar.env
func (c *Config) LoadEnv() ([]string, error) {
	var fileEnv map[string]string
	if c.Sidecar.EnvFile != "" {
		var err error
		fileEnv, err = LoadEnvFile(c.ResolvePath(c.Sidecar.EnvFile))
		if err != nil {
			return nil, fmt.Errorf("loading sidecar env file: %w", err)
		}
	}

	merged := MergeEnv(fileEnv, c.Sidecar.Env)
	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}

// resolvePath resolves a potentially relative path against a base directory
func resolvePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	candidates := []string{
		constants.DefaultConfigFile,
		"sidecarhost.yml",
		".sidecarhost.yaml",
		".sidecarhost.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("no config file found (tried: %v)", candidates)
}

// CheckFilePermissions checks if a file has secure permissions.
// On Unix-like systems, it verifies the file is not world-writable.
func CheckFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}

	// World-writable = others have write (0002)
	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("config file %s has insecure permissions: world-writable files can be modified by any user. Please run: chmod o-w %s", path, path)
	}

	return nil
}
