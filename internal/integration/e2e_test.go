//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/adapter/ble/backend"
	"bluepulse/internal/adapter/ble/mock"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

func TestE2E_AnalysisWithRealGemini(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	SkipIfUnset(t, cfg.GeminiKey, "GEMINI_API_KEY")

	ctx := NewTestContext(t, cfg.TestTimeout)

	appCfg := config.Defaults()
	appCfg.LLM.Providers[0].APIKey = cfg.GeminiKey
	s := NewStack(t, mock.New(mock.EchoDevice()), appCfg)

	require.NoError(t, s.Manager.Connect(ctx))
	require.NoError(t, s.Manager.Send(ctx, "HR=72;SpO2=98"))
	WaitForEntry(t, s.Log, domain.EntryReceived, "HR=72", 2*time.Second)

	res := s.Analyzer.AnalyzeLatest(ctx)
	t.Logf("analysis: %s", res.Text)
	assert.False(t, res.Placeholder, "got placeholder %q", res.Text)
	assert.NotEmpty(t, res.Text)
}

func TestE2E_HardwareConnect(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	SkipIfUnset(t, cfg.Device, "BLUEPULSE_TEST_DEVICE")
	if cfg.SkipSlow {
		t.Skip("Skipping slow hardware test")
	}

	ctx := NewTestContext(t, cfg.TestTimeout)

	appCfg := config.Defaults()
	appCfg.BLE.Device = cfg.Device
	bt, err := backend.New(appCfg.BLE, backend.Chooser(cfg.Device, nil), nil)
	if err != nil {
		t.Skipf("no BLE backend: %v", err)
	}
	t.Cleanup(func() { _ = bt.Close() })

	s := NewStack(t, bt, appCfg)
	require.NoError(t, s.Manager.Connect(ctx))
	st := s.Manager.State()
	assert.True(t, st.Connected)
	t.Logf("connected to %s (notify %s, write %s)", st.PeerName, st.NotifyUUID, st.WriteUUID)
}
