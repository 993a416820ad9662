package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/adapter/ble/mock"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
	"bluepulse/internal/usecase/analysis"
)

// geminiStub answers generateContent calls with a fixed text and records the
// prompts it saw.
func geminiStub(t *testing.T, reply string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu      sync.Mutex
		prompts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			mu.Lock()
			prompts = append(prompts, req.Contents[0].Parts[0].Text)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": reply}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), prompts...)
	}
}

func stubConfig(baseURL string) *config.Config {
	cfg := config.Defaults()
	cfg.LLM.Providers = []config.ProviderConfig{{
		Name: "gemini", Type: "gemini", BaseURL: baseURL, APIKey: "test-key", Model: "gemini-test",
	}}
	cfg.Analysis.RequestsPerMin = 0
	return cfg
}

func TestPipelineEchoAndAnalyze(t *testing.T) {
	srv, prompts := geminiStub(t, "  An echoed ASCII command.  ")
	s := NewStack(t, mock.New(mock.EchoDevice()), stubConfig(srv.URL))
	ctx := NewTestContext(t, 5*time.Second)

	require.NoError(t, s.Manager.Connect(ctx))
	st := s.Manager.State()
	require.True(t, st.Connected)
	assert.Equal(t, "BluePulse Echo", st.PeerName)
	assert.Equal(t, domain.UARTTXCharUUID, st.NotifyUUID)

	require.NoError(t, s.Manager.Send(ctx, "AT+ID"))
	got := WaitForEntry(t, s.Log, domain.EntryReceived, "AT+ID", time.Second)
	assert.Equal(t, "AT+ID\n", got.Content)

	res := s.Analyzer.AnalyzeLatest(ctx)
	assert.False(t, res.Placeholder)
	assert.Equal(t, "An echoed ASCII command.", res.Text)
	assert.Equal(t, got.ID, res.Source.ID)
	require.Len(t, prompts(), 1)
	assert.Contains(t, prompts()[0], `"AT+ID`)

	s.Manager.Disconnect()
	assert.False(t, s.Manager.State().Connected)

	var kinds []domain.EntryKind
	for _, e := range s.Log.Entries() {
		kinds = append(kinds, e.Kind)
	}
	require.Len(t, kinds, 5)
	assert.Equal(t, []domain.EntryKind{domain.EntryStatus, domain.EntryStatus}, kinds[:2])
	// The echo may land before the Sent entry.
	assert.ElementsMatch(t, []domain.EntryKind{domain.EntrySent, domain.EntryReceived}, kinds[2:4])
	assert.Equal(t, domain.EntryStatus, kinds[4])
}

func TestPipelinePublishesEvents(t *testing.T) {
	srv, _ := geminiStub(t, "ok")
	s := NewStack(t, mock.New(mock.EchoDevice()), stubConfig(srv.URL))
	ctx := NewTestContext(t, 5*time.Second)

	var (
		mu     sync.Mutex
		events = map[domain.EventType]int{}
	)
	unsub := s.Bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		events[e.Type]++
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, s.Manager.Connect(ctx))
	s.Analyzer.AnalyzeLatest(ctx)
	s.Manager.Disconnect()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return events[domain.EventConnectionChanged] >= 2 &&
			events[domain.EventLogAppended] >= 3 &&
			events[domain.EventAnalysisCompleted] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPipelineSpontaneousDisconnect(t *testing.T) {
	dev := mock.EchoDevice()
	s := NewStack(t, mock.New(dev), stubConfig("http://127.0.0.1:1"))
	ctx := NewTestContext(t, 5*time.Second)

	require.NoError(t, s.Manager.Connect(ctx))
	dev.DropLink()

	WaitForEntry(t, s.Log, domain.EntryStatus, "Device disconnected.", time.Second)
	assert.False(t, s.Manager.State().Connected)

	n := 0
	for _, e := range s.Log.Entries() {
		if e.Content == "Device disconnected." {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestPipelineAnalysisWithoutKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.Providers[0].APIKey = ""
	s := NewStack(t, mock.New(mock.EchoDevice()), cfg)
	ctx := NewTestContext(t, 5*time.Second)

	res := s.Analyzer.AnalyzeLatest(ctx)
	assert.Equal(t, analysis.TextNoData, res.Text)

	require.NoError(t, s.Manager.Connect(ctx))
	require.NoError(t, s.Manager.Send(ctx, "x"))
	WaitForEntry(t, s.Log, domain.EntryReceived, "x", time.Second)

	res = s.Analyzer.AnalyzeLatest(ctx)
	assert.True(t, res.Placeholder)
	assert.Equal(t, analysis.TextNoAPIKey, res.Text)
}

func TestPipelineProviderFailureIsPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStack(t, mock.New(mock.EchoDevice()), stubConfig(srv.URL))
	ctx := NewTestContext(t, 5*time.Second)
	require.NoError(t, s.Manager.Connect(ctx))
	require.NoError(t, s.Manager.Send(ctx, "42"))
	WaitForEntry(t, s.Log, domain.EntryReceived, "42", time.Second)

	res := s.Analyzer.AnalyzeLatest(ctx)
	assert.True(t, res.Placeholder)
	assert.Equal(t, analysis.TextFailed, res.Text)
	assert.False(t, strings.Contains(res.Text, "boom"))
}
