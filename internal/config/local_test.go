package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLocalConfig(t *testing.T, content string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, configDirName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o600))
}

func TestLoadLocal(t *testing.T) {
	t.Run("loads a valid config", func(t *testing.T) {
		writeLocalConfig(t, `
lightspeed:
  client_id: my-client-id
  client_secret: my-client-secret
user_id: alice
`)

		cfg, err := LoadLocal()
		require.NoError(t, err)
		require.Equal(t, "my-client-id", cfg.Lightspeed.ClientID)
		require.Equal(t, "my-client-secret", cfg.Lightspeed.ClientSecret)
		require.Equal(t, "alice", cfg.UserID)
	})

	t.Run("user ID defaults when unset", func(t *testing.T) {
		writeLocalConfig(t, `
lightspeed:
  client_id: my-client-id
  client_secret: my-client-secret
`)

		cfg, err := LoadLocal()
		require.NoError(t, err)
		require.Equal(t, defaultUserID, cfg.UserID)
	})

	t.Run("missing credentials are rejected", func(t *testing.T) {
		writeLocalConfig(t, `
lightspeed:
  client_id: my-client-id
`)

		_, err := LoadLocal()
		require.Error(t, err)
		require.Contains(t, err.Error(), "client_secret is required")
	})

	t.Run("missing file suggests init", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		_, err := LoadLocal()
		require.Error(t, err)
		require.Contains(t, err.Error(), "posbridge init")
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		writeLocalConfig(t, "lightspeed: [not a map")

		_, err := LoadLocal()
		require.Error(t, err)
	})
}

func TestLocalConfigExists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.False(t, LocalConfigExists())

	writeLocalConfig(t, "lightspeed:\n  client_id: x\n  client_secret: y\n")
	require.True(t, LocalConfigExists())
}

func TestConfigPaths(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	dir, err := ConfigDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/tester", configDirName), dir)

	configPath, err := ConfigFilePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, configFileName), configPath)

	connectionPath, err := ConnectionFilePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, connectionFileName), connectionPath)
}
