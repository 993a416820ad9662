package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.BLE.Backend = "webbluetooth" }, `ble.backend "webbluetooth" is invalid`},
		{"zero scan timeout", func(c *Config) { c.BLE.ScanTimeout = 0 }, "ble.scan_timeout must be > 0"},
		{"blank optional service", func(c *Config) { c.BLE.OptionalServices = []string{" "} }, "ble.optional_services[0]"},
		{"analysis timeout", func(c *Config) { c.Analysis.Timeout = 0 }, "analysis.timeout must be > 0"},
		{"burst", func(c *Config) { c.Analysis.BurstSize = 0 }, "analysis.burst_size"},
		{"analysis provider", func(c *Config) { c.Analysis.Provider = "ghost" }, `analysis.provider "ghost"`},
		{"provider type", func(c *Config) { c.LLM.Providers[0].Type = "bedrock" }, `type "bedrock" is invalid`},
		{"duplicate provider", func(c *Config) {
			c.LLM.Providers = append(c.LLM.Providers, c.LLM.Providers[0])
		}, "duplicate provider name"},
		{"default provider", func(c *Config) { c.LLM.DefaultProvider = "ghost" }, `llm.default_provider "ghost"`},
		{"temperature", func(c *Config) { c.LLM.Providers[0].Temperature = 3 }, "temperature"},
		{"log level", func(c *Config) { c.Logger.Level = "loud" }, `logger.level "loud"`},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }, `logger.format "xml"`},
		{"tracer exporter", func(c *Config) {
			c.Tracer.Enabled = true
			c.Tracer.Exporter = "jaeger"
		}, `tracer.exporter "jaeger"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Error(), tt.want)
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.BLE.Backend = ""
	cfg.Logger.Format = ""

	var ve *ValidationError
	require.ErrorAs(t, Validate(cfg), &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestValidateDisabledAnalysisSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.Enabled = false
	cfg.Analysis.Timeout = 0
	assert.NoError(t, Validate(cfg))
}

func TestValidateMissingAPIKeyAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers[0].APIKey = ""
	assert.NoError(t, Validate(cfg))
}
