// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI and CLI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"bluepulse/internal/adapter/tui/theme"
	"bluepulse/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Bluetooth Unavailable"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError as a multi-line block.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

// Short returns the title with the first hint, sized for a status line.
func (fe FriendlyError) Short() string {
	if len(fe.Hints) == 0 {
		return fe.Title
	}
	return fe.Title + ": " + fe.Hints[0]
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinels first so errors.Is works through wrapping.
	{
		match: is(domain.ErrUnsupportedPlatform),
		produce: constantError("Bluetooth Unavailable", "This platform has no supported Bluetooth backend.",
			[]string{"Run on Linux with BlueZ and an HCI adapter", "Use --backend mock to try the terminal without hardware"}),
	},
	{
		match:   is(domain.ErrUserCancelled),
		produce: constantError("Selection Cancelled", "No device was chosen.", []string{"Press Ctrl+B to scan again"}),
	},
	{
		match: is(domain.ErrNoDevicesFound),
		produce: constantError("No Devices Found", "Nothing was advertising during the scan window.",
			[]string{"Make sure the device is powered and advertising", "Increase ble.scan_timeout in config", "Check --device matches the name or address"}),
	},
	{
		match:   is(domain.ErrConnectInProgress),
		produce: constantError("Already Connecting", "A connection attempt is still running.", []string{"Wait for the current attempt to finish"}),
	},
	{
		match:   is(domain.ErrAlreadyConnected),
		produce: constantError("Already Connected", "A device is already connected.", []string{"Press Ctrl+D to disconnect first"}),
	},
	{
		match:   is(domain.ErrNotConnected),
		produce: constantError("Not Connected", "There is no device to send to.", []string{"Press Ctrl+B to connect"}),
	},
	{
		match: is(domain.ErrNoWritableCharacteristic),
		produce: constantError("Nothing To Write To", "The device exposes no writable characteristic.",
			[]string{"Add the device's service to ble.optional_services", "Check the firmware exposes a UART RX characteristic"}),
	},
	{
		match: is(domain.ErrSendFailure),
		produce: constantError("Send Failed", "The device rejected the write.",
			[]string{"Try again", "Reconnect if the link looks stale"}),
	},
	{
		match: is(domain.ErrTransportFailure),
		produce: constantError("Bluetooth Error", "The Bluetooth stack reported a failure.",
			[]string{"Check the adapter is up (hciconfig / bluetoothctl)", "Run with the capabilities needed for raw HCI access"}),
	},
	{
		match: is(domain.ErrSummarizationUnavailable),
		produce: constantError("Analysis Unavailable", "No analysis provider is configured.",
			[]string{"Set API_KEY or BLUEPULSE_LLM_PROVIDER_<NAME>_API_KEY", "Pass --key on the command line"}),
	},
	{
		match: is(domain.ErrDecryption),
		produce: constantError("Secret Decryption Failed", "An enc: value in the config could not be decrypted.",
			[]string{"Check BLUEPULSE_CONFIG_KEY", "Re-create the value with 'bluepulse encrypt-secret'"}),
	},
	{
		match:   is(domain.ErrConfigLoad),
		produce: constantError("Configuration Error", "The configuration could not be loaded.", []string{"Check the file path passed with --config", "Fix the YAML syntax"}),
	},

	// Permission problems from raw HCI sockets.
	{
		match: containsAny("operation not permitted", "permission denied"),
		produce: constantError("Permission Denied", "Raw Bluetooth access was refused.",
			[]string{"Run with sudo or grant CAP_NET_ADMIN and CAP_NET_RAW", "Stop bluetoothd if it holds the adapter"}),
	},
	{
		match: containsAny("no such device", "hci"),
		produce: constantError("Adapter Not Found", "The configured HCI adapter could not be opened.",
			[]string{"Check ble.hci_device", "List adapters with 'hciconfig'"}),
	},

	// Network / connectivity patterns (string matching for external errors).
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the analysis service.", []string{"Check your internet connection", "Verify llm.providers[].base_url in config"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The operation took too long to complete.", []string{"Try again", "Increase analysis.timeout or ble.scan_timeout in config"}),
	},
	{
		match:   containsAny("401", "403", "unauthorized", "invalid api key", "authentication failed"),
		produce: constantError("Authentication Failed", "The API key was rejected.", []string{"Check your API key environment variable", "Verify the key hasn't expired"}),
	},
	{
		match:   containsAny("429", "rate limit", "too many requests"),
		produce: constantError("Rate Limited", "Too many requests sent to the API provider.", []string{"Wait a moment before retrying", "Lower analysis.requests_per_min"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Set logger.level to debug and check the log file"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
