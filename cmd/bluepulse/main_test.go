package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/adapter/ble/mock"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

func TestApplyFlagsOverridesBackendAndDevice(t *testing.T) {
	cfg := config.Defaults()
	applyFlags(cfg, &rootFlags{Backend: "mock", Device: "Thermo"})
	assert.Equal(t, "mock", cfg.BLE.Backend)
	assert.Equal(t, "Thermo", cfg.BLE.Device)
}

func TestApplyFlagsProviderModelKey(t *testing.T) {
	cfg := config.Defaults()
	applyFlags(cfg, &rootFlags{Model: "gemini-2.5-flash", APIKey: "AIza"})
	pc := cfg.AnalysisProvider()
	require.NotNil(t, pc)
	assert.Equal(t, "gemini-2.5-flash", pc.Model)
	assert.Equal(t, "AIza", pc.APIKey)
}

func TestApplyFlagsAddsUnknownProvider(t *testing.T) {
	cfg := config.Defaults()
	applyFlags(cfg, &rootFlags{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-1"})

	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, "openai", cfg.Analysis.Provider)
	pc := cfg.AnalysisProvider()
	require.NotNil(t, pc)
	assert.Equal(t, "openai", pc.Type)
	assert.Equal(t, "gpt-4o-mini", pc.Model)
	assert.NoError(t, config.Validate(cfg))
}

func TestLoadConfigRejectsBadBackend(t *testing.T) {
	t.Setenv("BLUEPULSE_BLE_BACKEND", "")
	_, err := loadConfig(&rootFlags{ConfigPath: t.TempDir() + "/missing.yaml", Backend: "usb"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
	assert.Contains(t, err.Error(), "ble.backend")
}

func TestRunScanPrintsTable(t *testing.T) {
	tr := mock.New(
		mock.NewDevice("AA:01", "Weak"),
		mock.NewDevice("AA:02", ""),
	)
	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), tr, time.Millisecond, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ADDRESS")
	assert.Contains(t, out.String(), "AA:01")
	assert.Contains(t, out.String(), "-")
}

func TestRunScanNoDevices(t *testing.T) {
	var out bytes.Buffer
	err := runScan(context.Background(), mock.New(), time.Millisecond, &out)
	assert.ErrorIs(t, err, domain.ErrNoDevicesFound)
}

type failingScanner struct{ err error }

func (f failingScanner) Scan(context.Context, time.Duration) ([]domain.DeviceInfo, error) {
	return nil, f.err
}

func TestRunScanWrapsTransportError(t *testing.T) {
	var out bytes.Buffer
	err := runScan(context.Background(), failingScanner{err: domain.ErrTransportFailure}, time.Millisecond, &out)
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.True(t, strings.HasPrefix(err.Error(), "scan: "))
	assert.Empty(t, out.String())
}

func TestEncryptSecret(t *testing.T) {
	_, err := encryptSecret("v", "")
	assert.Error(t, err)

	out, err := encryptSecret("AIza-secret", "hunter2")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "enc:"))
	dec, err := config.DecryptValue(strings.TrimPrefix(out, "enc:"), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret", dec)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "bluepulse dev")
}

func TestEncryptSecretCommandRequiresArg(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"encrypt-secret"})
	assert.Error(t, cmd.Execute())
}
