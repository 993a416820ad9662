// Package mock provides an in-memory BLE central for demos and tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bluepulse/internal/adapter/ble"
	"bluepulse/internal/domain"
)

// Transport is an in-memory domain.Bluetooth with a fixed set of peripherals.
type Transport struct {
	mu      sync.Mutex
	devices []*Device
	chooser domain.Chooser
}

// New creates a transport that advertises the given devices.
func New(devices ...*Device) *Transport {
	return &Transport{devices: devices}
}

// SetChooser replaces the picker. The default picks the first device.
func (t *Transport) SetChooser(c domain.Chooser) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chooser = c
}

// Scan lists the advertised devices.
func (t *Transport) Scan(ctx context.Context, _ time.Duration) ([]domain.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]domain.DeviceInfo, 0, len(t.devices))
	for _, d := range t.devices {
		infos = append(infos, domain.DeviceInfo{ID: d.id, Name: d.name, RSSI: d.rssi, LastSeen: time.Now()})
	}
	return infos, nil
}

// RequestDevice runs the chooser over the advertised devices.
func (t *Transport) RequestDevice(ctx context.Context, _ domain.RequestOptions) (domain.Device, error) {
	infos, err := t.Scan(ctx, 0)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	chooser := t.chooser
	t.mu.Unlock()

	info, err := ble.Choose(ctx, infos, chooser)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range t.devices {
		if d.id == info.ID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("mock: unknown device %q: %w", info.ID, domain.ErrNoDevicesFound)
}

// Close drops every open link.
func (t *Transport) Close() error {
	t.mu.Lock()
	devices := append([]*Device(nil), t.devices...)
	t.mu.Unlock()
	for _, d := range devices {
		d.DropLink()
	}
	return nil
}

// Device is an in-memory peripheral.
type Device struct {
	id       string
	name     string
	rssi     int
	services []*Service

	mu          sync.Mutex
	onDisc      func()
	openErr     error
	servicesErr error
	open        bool
	opens       int
	closes      int
}

// NewDevice creates a peripheral exposing services in the given order.
func NewDevice(id, name string, services ...*Service) *Device {
	return &Device{id: id, name: name, rssi: -50, services: services}
}

func (d *Device) ID() string   { return d.id }
func (d *Device) Name() string { return d.name }

// OnDisconnect registers the link-loss callback.
func (d *Device) OnDisconnect(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisc = fn
}

// FailOpen makes the next Open calls fail with err (nil clears it).
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// FailDiscovery makes service discovery fail with err (nil clears it).
func (d *Device) FailDiscovery(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servicesErr = err
}

// Open connects to the peripheral.
func (d *Device) Open(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.open = true
	d.opens++
	return &session{dev: d}, nil
}

// DropLink simulates the peripheral going out of range.
func (d *Device) DropLink() {
	d.mu.Lock()
	wasOpen := d.open
	d.open = false
	fn := d.onDisc
	d.mu.Unlock()
	if wasOpen && fn != nil {
		fn()
	}
}

// IsOpen reports whether a session is currently open.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Closes returns how many times a session was closed by the central.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type session struct {
	dev *Device
}

func (s *session) Services(ctx context.Context) ([]domain.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if !s.dev.open {
		return nil, fmt.Errorf("mock: session closed: %w", domain.ErrTransportFailure)
	}
	if s.dev.servicesErr != nil {
		return nil, s.dev.servicesErr
	}
	out := make([]domain.Service, len(s.dev.services))
	for i, svc := range s.dev.services {
		out[i] = svc
	}
	return out, nil
}

// Close ends the session. Like real stacks, the disconnect callback fires
// for the closed link as well.
func (s *session) Close() error {
	s.dev.mu.Lock()
	wasOpen := s.dev.open
	s.dev.open = false
	s.dev.closes++
	fn := s.dev.onDisc
	s.dev.mu.Unlock()
	if wasOpen {
		for _, svc := range s.dev.services {
			for _, c := range svc.chars {
				c.unsubscribe()
			}
		}
		if fn != nil {
			fn()
		}
	}
	return nil
}

// Service is an in-memory GATT service.
type Service struct {
	uuid  string
	chars []*Characteristic
}

// NewService creates a service with characteristics in the given order.
func NewService(uuid string, chars ...*Characteristic) *Service {
	return &Service{uuid: uuid, chars: chars}
}

func (s *Service) UUID() string { return s.uuid }

func (s *Service) Characteristics(ctx context.Context) ([]domain.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Characteristic, len(s.chars))
	for i, c := range s.chars {
		out[i] = c
	}
	return out, nil
}

// Characteristic is an in-memory GATT characteristic.
type Characteristic struct {
	uuid  string
	props domain.Properties

	mu           sync.Mutex
	subscriber   func([]byte)
	writes       [][]byte
	writeErr     error
	subscribeErr error
	onWrite      func([]byte)
}

// NewCharacteristic creates a characteristic with the given properties.
func NewCharacteristic(uuid string, props domain.Properties) *Characteristic {
	return &Characteristic{uuid: uuid, props: props}
}

func (c *Characteristic) UUID() string                  { return c.uuid }
func (c *Characteristic) Properties() domain.Properties { return c.props }

func (c *Characteristic) Subscribe(_ context.Context, fn func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.props.CanNotify() {
		return fmt.Errorf("mock: %s does not notify: %w", c.uuid, domain.ErrTransportFailure)
	}
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subscriber = fn
	return nil
}

func (c *Characteristic) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	if !c.props.CanWrite() {
		c.mu.Unlock()
		return fmt.Errorf("mock: %s is not writable: %w", c.uuid, domain.ErrTransportFailure)
	}
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return nil
}

// Notify pushes a value to the current subscriber, if any.
func (c *Characteristic) Notify(data []byte) bool {
	c.mu.Lock()
	fn := c.subscriber
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(append([]byte(nil), data...))
	return true
}

// Subscribed reports whether notifications are enabled.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriber != nil
}

// Writes returns a copy of every payload written so far.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// FailWrite makes writes fail with err (nil clears it).
func (c *Characteristic) FailWrite(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// FailSubscribe makes Subscribe fail with err (nil clears it).
func (c *Characteristic) FailSubscribe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeErr = err
}

// OnWrite registers a hook called after each successful write.
func (c *Characteristic) OnWrite(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = fn
}

func (c *Characteristic) unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriber = nil
}

// EchoDevice returns a Nordic UART peripheral that notifies every line
// written to RX back on TX.
func EchoDevice() *Device {
	tx := NewCharacteristic(domain.UARTTXCharUUID, domain.PropNotify)
	rx := NewCharacteristic(domain.UARTRXCharUUID, domain.PropWrite|domain.PropWriteWithoutResponse)
	rx.OnWrite(func(data []byte) {
		go tx.Notify(data)
	})
	battery := NewService(domain.CanonicalUUID("battery_service"),
		NewCharacteristic(domain.CanonicalUUID("2a19"), domain.PropRead|domain.PropNotify))
	return NewDevice("c0:ff:ee:00:00:01", "BluePulse Echo",
		NewService(domain.UARTServiceUUID, tx, rx),
		battery,
	)
}

var (
	_ domain.Bluetooth      = (*Transport)(nil)
	_ domain.Scanner        = (*Transport)(nil)
	_ domain.Device         = (*Device)(nil)
	_ domain.Characteristic = (*Characteristic)(nil)
)
