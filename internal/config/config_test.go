package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "./patterns", cfg.General.PatternsDir)
	assert.Equal(t, "./output", cfg.General.OutputDir)
	assert.True(t, cfg.Model.Enabled)
	assert.Equal(t, "http://localhost:11434", cfg.Model.ServerURL)
	assert.Equal(t, 90*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 2, cfg.Engine.MaxRepairAttempts)
	assert.Equal(t, "http-route", cfg.Engine.DefaultDomain)
	assert.InDelta(t, 0.6, cfg.Engine.ExtractConfidenceThreshold, 1e-9)
	assert.Equal(t, ":8470", cfg.API.Listen)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lysithea.toml")
	content := `[general]
patterns_dir = "/srv/patterns"

[model]
enabled = false

[engine]
max_repair_attempts = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/patterns", cfg.General.PatternsDir)
	assert.False(t, cfg.Model.Enabled)
	assert.Equal(t, 5, cfg.Engine.MaxRepairAttempts)
	// Untouched sections keep their defaults.
	assert.Equal(t, "./output", cfg.General.OutputDir)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LYSITHEA_MODEL_NAME", "qwen2.5-coder:7b")
	t.Setenv("LYSITHEA_API_LISTEN", ":9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Model.Name)
	assert.Equal(t, ":9000", cfg.API.Listen)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	broken := *cfg
	broken.General.PatternsDir = ""
	assert.Error(t, Validate(&broken))

	broken = *cfg
	broken.Engine.MaxRepairAttempts = -1
	assert.Error(t, Validate(&broken))

	broken = *cfg
	broken.Engine.ExtractConfidenceThreshold = 1.5
	assert.Error(t, Validate(&broken))

	broken = *cfg
	broken.Model.Name = ""
	assert.Error(t, Validate(&broken))

	// A disabled model needs no endpoint details.
	broken.Model.Enabled = false
	assert.NoError(t, Validate(&broken))
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lysithea.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Error(t, InitConfig(path))
}
