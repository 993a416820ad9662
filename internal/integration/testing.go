// Package integration wires the real terminal stack together for end-to-end
// tests: mock or hardware BLE, message log, event bus, connection manager and
// analysis.
package integration

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"bluepulse/internal/adapter/llm"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
	"bluepulse/internal/usecase/analysis"
	"bluepulse/internal/usecase/connection"
	"bluepulse/internal/usecase/eventbus"
	"bluepulse/internal/usecase/messagelog"
)

// Config holds integration test configuration from environment.
type Config struct {
	GeminiKey   string
	HCIDevice   string
	Device      string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment.
func LoadConfig() *Config {
	return &Config{
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		HCIDevice:   os.Getenv("BLUEPULSE_TEST_HCI"),
		Device:      os.Getenv("BLUEPULSE_TEST_DEVICE"),
		TestTimeout: 60 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfUnset skips the test when value is empty.
func SkipIfUnset(t *testing.T, value, env string) {
	t.Helper()
	if value == "" {
		t.Skipf("Skipping integration test: %s not set", env)
	}
}

// SkipIfShort skips integration tests in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Stack is the assembled terminal without its UI.
type Stack struct {
	Bus      *eventbus.Bus
	Log      *messagelog.Log
	Manager  *connection.Manager
	Analyzer *analysis.Service
}

// NewStack wires bt and the analysis settings in cfg the way the binary does.
func NewStack(t *testing.T, bt domain.Bluetooth, cfg *config.Config) *Stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	bus := eventbus.New(logger)
	t.Cleanup(bus.Close)
	log := messagelog.New(messagelog.WithBus(bus))

	mgr := connection.New(connection.Config{
		Bluetooth:        bt,
		Log:              log,
		Bus:              bus,
		Logger:           logger,
		OptionalServices: cfg.BLE.OptionalServices,
	})
	t.Cleanup(mgr.Disconnect)

	sum, err := llm.NewSummarizer(cfg, logger)
	if err != nil {
		t.Fatalf("build summarizer: %v", err)
	}
	return &Stack{
		Bus:     bus,
		Log:     log,
		Manager: mgr,
		Analyzer: analysis.New(analysis.Config{
			Summarizer:     sum,
			Log:            log,
			Bus:            bus,
			Logger:         logger,
			Timeout:        cfg.Analysis.Timeout,
			RequestsPerMin: cfg.Analysis.RequestsPerMin,
			BurstSize:      cfg.Analysis.BurstSize,
		}),
	}
}

// WaitForEntry polls the log until an entry of kind containing substr
// appears or timeout elapses.
func WaitForEntry(t *testing.T, log *messagelog.Log, kind domain.EntryKind, substr string, timeout time.Duration) domain.LogEntry {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, e := range log.Entries() {
			if e.Kind == kind && strings.Contains(e.Content, substr) {
				return e
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s entry containing %q within %s", kind, substr, timeout)
	return domain.LogEntry{}
}
