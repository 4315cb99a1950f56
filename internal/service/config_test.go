package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
symbols: [EURUSD, XAUUSD]
timeframe:
  htf: 4h
  ltf: 15m
provider:
  name: mock
recorder:
  driver: noop
engine:
  swing_window: 3
  weights:
    structure_bias: 0.4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, cfg.Symbols)
	assert.Equal(t, "15m", cfg.Timeframe.LTF)
	assert.Equal(t, "mock", cfg.Provider.Name)
	assert.Equal(t, 3, cfg.Engine.SwingWindow)
	assert.InDelta(t, 0.4, cfg.Engine.Weights["structure_bias"], 1e-12)

	// 未配置的键使用默认值
	assert.Equal(t, 70.0, cfg.Engine.PublishThresh)
	assert.Equal(t, 85.0, cfg.Engine.OverrideThresh)
	assert.Equal(t, 30*time.Second, cfg.Predictor.RunTimeout)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SMC_ENGINE_SWING_WINDOW", "7")
	t.Setenv("SMC_PROVIDER_NAME", "yahoo")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.SwingWindow)
	assert.Equal(t, "yahoo", cfg.Provider.Name)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "4h", cfg.Timeframe.HTF)
	assert.Equal(t, "1h", cfg.Timeframe.LTF)
	assert.Equal(t, DefaultEngineConfig().SwingWindow, cfg.Engine.SwingWindow)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "engine:\n  swing_window: 0\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "provider:\n  name: bloomberg\n"))
	assert.Error(t, err)

	e := DefaultEngineConfig()
	e.VisualHintMode = "sometimes"
	assert.Error(t, e.Validate())

	e = DefaultEngineConfig()
	e.Weights = map[string]float64{"order_block": -1}
	assert.Error(t, e.Validate())
}
