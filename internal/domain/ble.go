package domain

import (
	"context"
	"strings"
	"time"
)

// Properties is the GATT characteristic property bit set.
type Properties uint8

const (
	PropRead Properties = 1 << iota
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
)

// CanNotify reports whether the characteristic can push values to us.
func (p Properties) CanNotify() bool { return p&(PropNotify|PropIndicate) != 0 }

// CanWrite reports whether the characteristic accepts writes of either kind.
func (p Properties) CanWrite() bool { return p&(PropWrite|PropWriteWithoutResponse) != 0 }

func (p Properties) String() string {
	var parts []string
	for _, f := range []struct {
		bit  Properties
		name string
	}{
		{PropRead, "read"},
		{PropWriteWithoutResponse, "writeWithoutResponse"},
		{PropWrite, "write"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	} {
		if p&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// RequestOptions controls the device picker.
type RequestOptions struct {
	AcceptAllDevices bool
	// OptionalServices are service UUIDs the session may access after
	// connection. Short names like "battery_service" are accepted.
	OptionalServices []string
}

// DeviceInfo describes an advertising peripheral seen during a scan.
type DeviceInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	RSSI     int       `json:"rssi"`
	LastSeen time.Time `json:"last_seen"`
}

// DisplayName returns the advertised name or the address when unnamed.
func (d DeviceInfo) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Bluetooth is the host BLE central capability.
type Bluetooth interface {
	// RequestDevice lets the user pick one peripheral. Returns
	// ErrUserCancelled when the picker is dismissed.
	RequestDevice(ctx context.Context, opts RequestOptions) (Device, error)
}

// Scanner lists advertising peripherals without connecting.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]DeviceInfo, error)
}

// Device is a selected peripheral that has not necessarily been opened.
type Device interface {
	ID() string
	// Name may be empty.
	Name() string
	// OnDisconnect registers fn to run when the link drops. Only the most
	// recent registration is kept.
	OnDisconnect(fn func())
	Open(ctx context.Context) (Session, error)
}

// Session is an open GATT connection.
type Session interface {
	// Services returns primary services in discovery order.
	Services(ctx context.Context) ([]Service, error)
	Close() error
}

// Service is a GATT primary service.
type Service interface {
	UUID() string
	// Characteristics returns the service's characteristics in discovery order.
	Characteristics(ctx context.Context) ([]Characteristic, error)
}

// Characteristic is a GATT characteristic.
type Characteristic interface {
	UUID() string
	Properties() Properties
	// Subscribe enables notifications (or indications) and calls fn with each
	// payload. fn runs on a transport goroutine and must not block.
	Subscribe(ctx context.Context, fn func([]byte)) error
	// Write sends data, with response when the characteristic supports it.
	Write(ctx context.Context, data []byte) error
}

// Chooser picks one device ID from the scan results. It returns
// ErrUserCancelled when nothing is chosen.
type Chooser func(ctx context.Context, devices []DeviceInfo) (string, error)
