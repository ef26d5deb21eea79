package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent-snapper.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeSettings(t, `
snap_path = "/snap/bin/snap"
state_dir = "/tmp/agent-snapper"
log_level = "debug"
log_json = true
status_interval = "1m"
`)

	settings, err := LoadSettings(path, false)
	require.NoError(t, err)
	assert.Equal(t, "/snap/bin/snap", settings.SnapPath)
	assert.Equal(t, "/tmp/agent-snapper", settings.StateDir)
	assert.Equal(t, "debug", settings.LogLevel)
	assert.True(t, settings.LogJSON)
	assert.Equal(t, time.Minute, settings.StatusInterval.Duration)
	// unset fields keep their defaults
	assert.Equal(t, 30*time.Second, settings.RetryInterval.Duration)
	assert.Equal(t, "127.0.0.1:9464", settings.MetricsAddr)
}

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	settings, err = LoadSettings(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "absent.toml"), false)
	assert.Error(t, err)
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: `snap_pth = "/usr/bin/snap"`},
		{name: "bad duration", body: `retry_interval = "soon"`},
		{name: "bad syntax", body: `state_dir = `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeSettings(t, tt.body), false)
			assert.Error(t, err)
		})
	}
}
