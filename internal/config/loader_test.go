package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	t.Run("empty path returns nil", func(t *testing.T) {
		env, err := LoadEnvFile("")
		assert.NoError(t, err)
		assert.Nil(t, env)
	})

	t.Run("loads env file", func(t *testing.T) {
		dir := t.TempDir()
		envPath := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("FOO=bar\nBAZ=qux"), 0644))

		env, err := LoadEnvFile(envPath)
		require.NoError(t, err)
		assert.Equal(t, "bar", env["FOO"])
		assert.Equal(t, "qux", env["BAZ"])
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := LoadEnvFile("nonexistent.env")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestMergeEnv(t *testing.T) {
	env1 := map[string]string{"A": "1", "B": "2"}
	env2 := map[string]string{"B": "3", "C": "4"}

	result := MergeEnv(env1, nil, env2)
	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, result)
}

func TestConfig_LoadEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=8000\nMODE=file\n"), 0644))

	cfg := Default()
	cfg.Dir = dir
	cfg.Sidecar.EnvFile = ".env"
	cfg.Sidecar.Env = map[string]string{"MODE": "inline", "DEBUG": "1"}

	env, err := cfg.LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"DEBUG=1", "MODE=inline", "PORT=8000"}, env)
}

func TestConfig_LoadEnv_MissingFile(t *testing.T) {
	cfg := Default()
	cfg.Dir = t.TempDir()
	cfg.Sidecar.EnvFile = "missing.env"

	_, err := cfg.LoadEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sidecar env file")
}

func TestConfig_LoadEnv_Empty(t *testing.T) {
	env, err := Default().LoadEnv()
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/abs/path", resolvePath("/abs/path", "/base"))
	assert.Equal(t, filepath.Join("/base", "rel"), resolvePath("rel", "/base"))
	assert.Equal(t, "rel", resolvePath("rel", ""))
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := FindConfigFile()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(".sidecarhost.yml", []byte("sidecar: {}\n"), 0644))
	path, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, ".sidecarhost.yml", path)

	require.NoError(t, os.WriteFile("sidecarhost.yaml", []byte("sidecar: {}\n"), 0644))
	path, err = FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "sidecarhost.yaml", path)
}
