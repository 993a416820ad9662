package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "gatt", cfg.BLE.Backend)
	assert.Equal(t, 5*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, []string{"6e400001-b5a3-f393-e0a9-e50e24dcca9e", "heart_rate", "battery_service"}, cfg.BLE.OptionalServices)
	assert.Equal(t, "gemini", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, DefaultModel, cfg.LLM.Providers[0].Model)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, strings.HasSuffix(cfg.Logger.Output, "bluepulse.log"))
	assert.NoError(t, Validate(cfg))
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().BLE, cfg.BLE)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
ble:
  backend: goble
  device: "AA:BB:CC:DD:EE:FF"
  scan_timeout: 8s
analysis:
  requests_per_min: 4
llm:
  default_provider: local
  providers:
    - name: local
      type: openai
      base_url: "http://localhost:11434/v1"
      model: llama3
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "goble", cfg.BLE.Backend)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.BLE.Device)
	assert.Equal(t, 8*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, 4, cfg.Analysis.RequestsPerMin)
	assert.Equal(t, 2, cfg.Analysis.BurstSize, "unset fields keep defaults")
	require.Len(t, cfg.LLM.Providers, 1, "file providers replace the defaults")
	assert.Equal(t, "local", cfg.LLM.Providers[0].Name)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadWithoutProvidersKeepsDefaultProvider(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "ble:\n  backend: mock\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.AnalysisProvider())
	assert.Equal(t, "gemini", cfg.AnalysisProvider().Type)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "ble: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "ble:\n  backend: mock\n")
	require.NoError(t, os.Chmod(path, 0o666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLUEPULSE_BLE_BACKEND", "mock")
	t.Setenv("BLUEPULSE_BLE_DEVICE", "Thermo")
	t.Setenv("BLUEPULSE_BLE_HCI_DEVICE", "1")
	t.Setenv("BLUEPULSE_BLE_SCAN_TIMEOUT", "2s")
	t.Setenv("BLUEPULSE_BLE_OPTIONAL_SERVICES", "heart_rate, ,180f")
	t.Setenv("BLUEPULSE_ANALYSIS_ENABLED", "false")
	t.Setenv("BLUEPULSE_LLM_MODEL", "gemini-2.5-flash")
	t.Setenv("BLUEPULSE_LOGGER_LEVEL", "debug")
	t.Setenv("BLUEPULSE_TRACER_ENABLED", "true")
	t.Setenv("BLUEPULSE_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "mock", cfg.BLE.Backend)
	assert.Equal(t, "Thermo", cfg.BLE.Device)
	assert.Equal(t, 1, cfg.BLE.HCIDevice)
	assert.Equal(t, 2*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, []string{"heart_rate", "180f"}, cfg.BLE.OptionalServices)
	assert.False(t, cfg.Analysis.Enabled)
	assert.Equal(t, "gemini-2.5-flash", cfg.Provider("gemini").Model)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, "stdout", cfg.Tracer.Exporter)
}

func TestEnvOverridesIgnoreInvalidNumbers(t *testing.T) {
	t.Setenv("BLUEPULSE_BLE_HCI_DEVICE", "-3")
	t.Setenv("BLUEPULSE_BLE_SCAN_TIMEOUT", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	assert.Equal(t, 0, cfg.BLE.HCIDevice)
	assert.Equal(t, 5*time.Second, cfg.BLE.ScanTimeout)
}

func TestAPIKeyResolution(t *testing.T) {
	t.Run("provider specific wins", func(t *testing.T) {
		t.Setenv("API_KEY", "generic")
		t.Setenv("BLUEPULSE_LLM_PROVIDER_GEMINI_API_KEY", "specific")
		cfg := Defaults()
		ApplyEnvOverrides(cfg)
		assert.Equal(t, "specific", cfg.Provider("gemini").APIKey)
	})
	t.Run("gemini falls back to API_KEY", func(t *testing.T) {
		t.Setenv("BLUEPULSE_LLM_PROVIDER_GEMINI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("API_KEY", "generic")
		cfg := Defaults()
		ApplyEnvOverrides(cfg)
		assert.Equal(t, "generic", cfg.Provider("gemini").APIKey)
	})
	t.Run("openai does not use API_KEY", func(t *testing.T) {
		t.Setenv("API_KEY", "generic")
		cfg := Defaults()
		cfg.LLM.Providers = []ProviderConfig{{Name: "my-llm", Type: "openai"}}
		ApplyEnvOverrides(cfg)
		assert.Empty(t, cfg.LLM.Providers[0].APIKey)

		t.Setenv("BLUEPULSE_LLM_PROVIDER_MY_LLM_API_KEY", "sk-1")
		ApplyEnvOverrides(cfg)
		assert.Equal(t, "sk-1", cfg.LLM.Providers[0].APIKey)
	})
}

func TestEncryptDecryptValue(t *testing.T) {
	enc, err := EncryptValue("AIza-secret", "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, enc, "AIza")

	dec, err := DecryptValue(enc, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret", dec)

	_, err = DecryptValue(enc, "wrong")
	assert.Error(t, err)

	_, err = DecryptValue("no-separator", "hunter2")
	assert.Error(t, err)
}

func TestLoadDecryptsSecrets(t *testing.T) {
	enc, err := EncryptValue("AIza-secret", "hunter2")
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "config.yaml", `
llm:
  default_provider: gemini
  providers:
    - name: gemini
      type: gemini
      api_key: "enc:`+enc+`"
`)
	t.Setenv("BLUEPULSE_CONFIG_KEY", "hunter2")
	t.Setenv("BLUEPULSE_LLM_PROVIDER_GEMINI_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret", cfg.Provider("gemini").APIKey)

	t.Setenv("BLUEPULSE_CONFIG_KEY", "wrong")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt secrets")
}
