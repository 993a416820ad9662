// Package backend selects the BLE central implementation named in config.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bluepulse/internal/adapter/ble"
	"bluepulse/internal/adapter/ble/gatt"
	"bluepulse/internal/adapter/ble/goble"
	"bluepulse/internal/adapter/ble/mock"
	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

// Transport is a BLE central that can also scan headlessly.
type Transport interface {
	domain.Bluetooth
	domain.Scanner
	Close() error
}

// New builds the configured backend. On platforms without a hardware stack
// it returns domain.ErrUnsupportedPlatform; callers then run without
// Bluetooth rather than exiting.
func New(cfg config.BLEConfig, chooser domain.Chooser, logger *slog.Logger) (Transport, error) {
	opts := ble.Options{
		HCIDevice:   cfg.HCIDevice,
		ScanTimeout: cfg.ScanTimeout,
		Chooser:     chooser,
		Logger:      logger,
	}

	switch cfg.Backend {
	case "mock":
		t := mock.New(mock.EchoDevice())
		if chooser != nil {
			t.SetChooser(chooser)
		}
		return t, nil
	case "gatt", "":
		t, err := gatt.New(opts)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "goble":
		t, err := goble.New(opts)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown ble backend %q", cfg.Backend)
	}
}

// Chooser returns the chooser for a configured device target, or
// interactive when no target is set.
func Chooser(device string, interactive domain.Chooser) domain.Chooser {
	if device != "" {
		return ble.MatchChooser(device)
	}
	return interactive
}

// Lazy defers the choice of chooser until RequestDevice runs, so a UI
// constructed after the transport can still supply the picker.
type Lazy struct {
	fn func() domain.Chooser
}

// NewLazy wraps fn.
func NewLazy(fn func() domain.Chooser) *Lazy { return &Lazy{fn: fn} }

// Choose implements domain.Chooser.
func (l *Lazy) Choose(ctx context.Context, devices []domain.DeviceInfo) (string, error) {
	c := l.fn()
	if c == nil {
		return ble.MatchChooser("")(ctx, devices)
	}
	return c(ctx, devices)
}
