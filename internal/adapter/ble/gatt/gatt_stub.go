//go:build !linux

package gatt

import (
	"context"
	"time"

	"bluepulse/internal/adapter/ble"
	"bluepulse/internal/domain"
)

// Transport is unavailable on this platform.
type Transport struct{}

// New always fails: the gatt backend drives Linux HCI sockets.
func New(ble.Options) (*Transport, error) { return nil, domain.ErrUnsupportedPlatform }

func (*Transport) Scan(context.Context, time.Duration) ([]domain.DeviceInfo, error) {
	return nil, domain.ErrUnsupportedPlatform
}

func (*Transport) RequestDevice(context.Context, domain.RequestOptions) (domain.Device, error) {
	return nil, domain.ErrUnsupportedPlatform
}

func (*Transport) Close() error { return nil }
