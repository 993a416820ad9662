package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// A missing API key is not an error: analysis then reports it to the user.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBLE(cfg, ve)
	validateAnalysis(cfg, ve)
	validateLLM(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validBackends = map[string]bool{
	"gatt":  true,
	"goble": true,
	"mock":  true,
}

func validateBLE(cfg *Config, ve *ValidationError) {
	if !validBackends[cfg.BLE.Backend] {
		ve.Add("ble.backend %q is invalid (want: gatt, goble, mock)", cfg.BLE.Backend)
	}
	if cfg.BLE.ScanTimeout <= 0 {
		ve.Add("ble.scan_timeout must be > 0")
	}
	if cfg.BLE.HCIDevice < 0 {
		ve.Add("ble.hci_device must be >= 0")
	}
	for i, s := range cfg.BLE.OptionalServices {
		if strings.TrimSpace(s) == "" {
			ve.Add("ble.optional_services[%d] must not be empty", i)
		}
	}
}

func validateAnalysis(cfg *Config, ve *ValidationError) {
	if !cfg.Analysis.Enabled {
		return
	}
	if cfg.Analysis.Timeout <= 0 {
		ve.Add("analysis.timeout must be > 0 when analysis is enabled")
	}
	if cfg.Analysis.RequestsPerMin < 0 {
		ve.Add("analysis.requests_per_min must be >= 0")
	}
	if cfg.Analysis.RequestsPerMin > 0 && cfg.Analysis.BurstSize <= 0 {
		ve.Add("analysis.burst_size must be > 0 when requests_per_min is set")
	}
	if cfg.Analysis.MaxInputBytes < 0 {
		ve.Add("analysis.max_input_bytes must be >= 0")
	}
	if cfg.Analysis.Provider != "" && cfg.Provider(cfg.Analysis.Provider) == nil {
		ve.Add("analysis.provider %q does not match any configured provider", cfg.Analysis.Provider)
	}
	for i, name := range cfg.Analysis.Fallbacks {
		if cfg.Provider(name) == nil {
			ve.Add("analysis.fallbacks[%d] %q does not match any configured provider", i, name)
		}
	}
}

var validProviderTypes = map[string]bool{
	"gemini": true,
	"openai": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if len(cfg.LLM.Providers) == 0 {
		return
	}

	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: gemini, openai)", i, p.Type)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			ve.Add("llm.providers[%d] (%s): temperature must be within [0, 2]", i, p.Name)
		}
	}

	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	} else if !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[cfg.Logger.Format] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
	if cfg.Logger.Output == "" {
		ve.Add("logger.output must not be empty")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, noop)", cfg.Tracer.Exporter)
	}
}
