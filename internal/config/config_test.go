package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAMLAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkbrokerd.yaml")
	body := []byte("lib_dir: /opt/lib\ngrace_period: 10s\nlog_level: debug\nlog_json: true\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/lib", cfg.LibDir)
	assert.Equal(t, 10*time.Second, cfg.GracePeriod)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, Default().DataDir, cfg.DataDir, "unset fields keep their default value")
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/pkbrokerd.yaml")
	assert.Error(t, err)
}
