package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/battctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setArgs(t *testing.T, args ...string) {
	t.Helper()

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = append([]string{"battctl"}, args...)
}

func TestLoad(t *testing.T) {
	setArgs(t)

	configContent := []byte(`
interval = 2
platform = "pinephone"
critical_capacity = 25
balance_margin = 15
hysteresis = 4
step_cooldown = 20
trend_window = 8
light_load = 250
monitor = true
log_level = "debug"
telemetry = true
database = "/path/to/telemetry.db"
`)
	configPath := filepath.Join(t.TempDir(), "battctl.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("BATTCTL_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Interval, "Expected Interval 2")
	assert.Equal(t, "pinephone", cfg.Platform, "Expected Platform pinephone")
	assert.Equal(t, 25, cfg.CriticalCapacity, "Expected CriticalCapacity 25")
	assert.Equal(t, 15, cfg.BalanceMargin, "Expected BalanceMargin 15")
	assert.Equal(t, 4, cfg.Hysteresis, "Expected Hysteresis 4")
	assert.Equal(t, 20, cfg.StepCooldown, "Expected StepCooldown 20")
	assert.Equal(t, 8, cfg.TrendWindow, "Expected TrendWindow 8")
	assert.Equal(t, 250, cfg.LightLoad, "Expected LightLoad 250")
	assert.True(t, cfg.Monitor, "Expected Monitor true")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.True(t, cfg.Telemetry, "Expected Telemetry true")
	assert.Equal(t, "/path/to/telemetry.db", cfg.TelemetryDB, "Expected TelemetryDB /path/to/telemetry.db")
}

func TestLoadDefaults(t *testing.T) {
	setArgs(t)

	// Ensure no config file is used
	t.Setenv("BATTCTL_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 1, cfg.Interval, "Expected default Interval 1")
	assert.Equal(t, "auto", cfg.Platform, "Expected default Platform auto")
	assert.Equal(t, 20, cfg.CriticalCapacity, "Expected default CriticalCapacity 20")
	assert.Equal(t, 10, cfg.BalanceMargin, "Expected default BalanceMargin 10")
	assert.Equal(t, 3, cfg.Hysteresis, "Expected default Hysteresis 3")
	assert.Equal(t, 10, cfg.StepCooldown, "Expected default StepCooldown 10")
	assert.Equal(t, 5, cfg.TrendWindow, "Expected default TrendWindow 5")
	assert.Equal(t, 300, cfg.LightLoad, "Expected default LightLoad 300")
	assert.False(t, cfg.Monitor, "Expected default Monitor false")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Telemetry, "Expected default Telemetry false")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	setArgs(t)

	configContent := []byte(`
This is not a valid TOML file
`)
	configPath := filepath.Join(t.TempDir(), "battctl.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("BATTCTL_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestInvalidLogLevel(t *testing.T) {
	setArgs(t)

	configContent := []byte(`
log_level = "invalid"
`)
	configPath := filepath.Join(t.TempDir(), "battctl.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("BATTCTL_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestInvalidInterval(t *testing.T) {
	setArgs(t)

	configContent := []byte(`
interval = 0
`)
	configPath := filepath.Join(t.TempDir(), "battctl.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("BATTCTL_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid interval")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	configContent := []byte(`
platform = "pinephone"
log_level = "warning"
`)
	configPath := filepath.Join(t.TempDir(), "battctl.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("BATTCTL_CONFIG", configPath)
	setArgs(t, "--log-level", "debug", "--monitor")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.True(t, cfg.Monitor, "Expected Monitor to be set by flag")
	assert.Equal(t, "pinephone", cfg.Platform, "Expected Platform from the file to survive")
}
