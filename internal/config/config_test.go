package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and XDG at a temp dir and clears BIFROST_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	for _, key := range []string{
		"BIFROST_CONFIG", "BIFROST_CONFIG_CONTENT", "BIFROST_PORT", "BIFROST_HOST",
		"BIFROST_LOG_LEVEL", "BIFROST_HEARTBEAT_INTERVAL", "BIFROST_PROVIDER_TIMEOUT", "BIFROST_LSP_DISABLED",
		"BIFROST_MAX_PENDING",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return tmpDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := isolate(t)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval.Std())
	assert.Zero(t, cfg.ProviderTimeout.Std(), "provider calls are unbounded by default")
	assert.Equal(t, DefaultMaxPending, cfg.MaxPendingMessages)
	assert.True(t, cfg.CORSEnabled())
}

func TestLoad_ProjectJSONC(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "bifrost.jsonc"), `{
		// listener settings
		"port": 9100,
		"provider_timeout": "5s",
		"cors": false,
		"lsp": {
			"servers": {
				"go": {"command": ["gopls", "serve"], "patterns": ["**/*.go"]}
			}
		}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout.Std())
	assert.False(t, cfg.CORSEnabled())
	require.NotNil(t, cfg.LSP)
	assert.Equal(t, []string{"gopls", "serve"}, cfg.LSP.Servers["go"].Command)
}

func TestLoad_YAMLOverridesGlobal(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, ".config", "bifrost", "bifrost.json"), `{"port": 7000, "host": "0.0.0.0"}`)
	writeFile(t, filepath.Join(tmpDir, "project", ".bifrost", "bifrost.yaml"), "port: 7100\nlog_level: DEBUG\n")

	cfg, err := Load(filepath.Join(tmpDir, "project"))
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Port, "project config wins over global")
	assert.Equal(t, "0.0.0.0", cfg.Host, "global value kept when not overridden")
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoad_Interpolation(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("BIFROST_TEST_GOPLS", "/opt/gopls")
	writeFile(t, filepath.Join(tmpDir, "host.txt"), "10.0.0.1\n")

	writeFile(t, filepath.Join(tmpDir, "bifrost.json"), `{
		"host": "{file:host.txt}",
		"lsp": {"servers": {"go": {"command": ["{env:BIFROST_TEST_GOPLS}"]}}}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, []string{"/opt/gopls"}, cfg.LSP.Servers["go"].Command)
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := isolate(t)
	writeFile(t, filepath.Join(tmpDir, "bifrost.json"), `{"port": 9100}`)

	t.Setenv("BIFROST_PORT", "9200")
	t.Setenv("BIFROST_PROVIDER_TIMEOUT", "750ms")
	t.Setenv("BIFROST_LSP_DISABLED", "true")
	t.Setenv("BIFROST_MAX_PENDING", "32")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.MaxPendingMessages)

	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.ProviderTimeout.Std())
	assert.True(t, cfg.LSP.Disabled)
}

func TestLoad_DotEnv(t *testing.T) {
	tmpDir := isolate(t)
	writeFile(t, filepath.Join(tmpDir, ".env"), "BIFROST_HOST=192.168.1.5\n")
	t.Cleanup(func() { os.Unsetenv("BIFROST_HOST") })

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.5", cfg.Host)
}

func TestLoad_InlineContent(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("BIFROST_CONFIG_CONTENT", `{"preview_cache_size": 16}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.PreviewCacheSize)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		tmpDir := isolate(t)
		writeFile(t, filepath.Join(tmpDir, "bifrost.json"), `{"port": }`)

		_, err := Load(tmpDir)
		assert.Error(t, err)
	})

	t.Run("malformed env", func(t *testing.T) {
		tmpDir := isolate(t)
		t.Setenv("BIFROST_PORT", "eighty")

		_, err := Load(tmpDir)
		assert.Error(t, err)
	})
}

func TestGetPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	paths := GetPaths()
	assert.Equal(t, "/xdg/config/bifrost", paths.Config)
	assert.Equal(t, "/xdg/state/bifrost/bifrost.log", paths.LogFile())
}
