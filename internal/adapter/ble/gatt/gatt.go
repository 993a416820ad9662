//go:build linux

// Package gatt is the BLE central backend built on paypal/gatt. It drives
// the HCI socket directly, so bluetoothd must not hold the adapter.
package gatt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paypal/gatt"

	"bluepulse/internal/adapter/ble"
	"bluepulse/internal/domain"
)

// Transport is a domain.Bluetooth over a paypal/gatt device. The gatt
// device reports connects and disconnects through global handlers, which
// Transport routes to the waiting Open call or the open device by
// peripheral ID.
type Transport struct {
	dev     gatt.Device
	opts    ble.Options
	logger  *slog.Logger
	ready   chan struct{}
	scanMu  sync.Mutex
	readyMu sync.Once

	mu        sync.Mutex
	collector *ble.Collector
	seen      map[string]gatt.Peripheral
	pending   map[string]chan error
	links     map[string]*device
}

// New opens the HCI device and starts waiting for it to power on.
func New(opts ble.Options) (*Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d, err := gatt.NewDevice(gatt.LnxDeviceID(opts.HCIDevice, false))
	if err != nil {
		return nil, fmt.Errorf("open hci%d: %w: %w", opts.HCIDevice, domain.ErrTransportFailure, err)
	}

	t := &Transport{
		dev:     d,
		opts:    opts,
		logger:  logger,
		ready:   make(chan struct{}),
		seen:    make(map[string]gatt.Peripheral),
		pending: make(map[string]chan error),
		links:   make(map[string]*device),
	}

	d.Handle(
		gatt.PeripheralDiscovered(t.onDiscovered),
		gatt.PeripheralConnected(t.onConnected),
		gatt.PeripheralDisconnected(t.onDisconnected),
	)
	if err := d.Init(t.onState); err != nil {
		return nil, fmt.Errorf("init hci%d: %w: %w", opts.HCIDevice, domain.ErrTransportFailure, err)
	}
	return t, nil
}

func (t *Transport) onState(_ gatt.Device, s gatt.State) {
	t.logger.Debug("gatt adapter state", "state", s.String())
	if s == gatt.StatePoweredOn {
		t.readyMu.Do(func() { close(t.ready) })
	}
}

func (t *Transport) waitReady(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("adapter not powered on: %w", ctx.Err())
	}
}

// Scan collects advertisements for timeout (the configured scan timeout
// when zero).
func (t *Transport) Scan(ctx context.Context, timeout time.Duration) ([]domain.DeviceInfo, error) {
	if timeout <= 0 {
		timeout = t.opts.Timeout()
	}
	t.scanMu.Lock()
	defer t.scanMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}

	coll := t.beginScan()
	t.dev.Scan([]gatt.UUID{}, false)
	<-ctx.Done()
	t.dev.StopScanning()
	t.endScan()

	if ctx.Err() == context.Canceled {
		return nil, ctx.Err()
	}
	devices := coll.List()
	t.logger.Debug("gatt scan finished", "devices", len(devices))
	return devices, nil
}

// beginScan installs a fresh collector and forgets peripherals from earlier
// scans, so only the latest results can be chosen.
func (t *Transport) beginScan() *ble.Collector {
	coll := ble.NewCollector()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collector = coll
	t.seen = make(map[string]gatt.Peripheral)
	return coll
}

func (t *Transport) endScan() {
	t.mu.Lock()
	t.collector = nil
	t.mu.Unlock()
}

func (t *Transport) onDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.collector == nil {
		return
	}
	name := a.LocalName
	if name == "" {
		name = p.Name()
	}
	t.seen[p.ID()] = p
	t.collector.Add(domain.DeviceInfo{ID: p.ID(), Name: name, RSSI: rssi, LastSeen: time.Now()})
}

// RequestDevice scans and hands the results to the configured chooser.
func (t *Transport) RequestDevice(ctx context.Context, _ domain.RequestOptions) (domain.Device, error) {
	devices, err := t.Scan(ctx, 0)
	if err != nil {
		return nil, err
	}
	info, err := ble.Choose(ctx, devices, t.opts.Chooser)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	p, ok := t.seen[info.ID]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("peripheral %s vanished: %w", info.ID, domain.ErrNoDevicesFound)
	}
	return &device{t: t, p: p, name: info.Name}, nil
}

func (t *Transport) connect(ctx context.Context, d *device) error {
	id := d.p.ID()
	done := make(chan error, 1)

	t.mu.Lock()
	if _, busy := t.pending[id]; busy {
		t.mu.Unlock()
		return domain.ErrConnectInProgress
	}
	t.pending[id] = done
	t.mu.Unlock()

	t.dev.Connect(d.p)

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("connect %s: %w: %w", id, domain.ErrTransportFailure, err)
		}
		t.mu.Lock()
		t.links[id] = d
		t.mu.Unlock()
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		t.dev.CancelConnection(d.p)
		return ctx.Err()
	}
}

func (t *Transport) onConnected(p gatt.Peripheral, err error) {
	t.mu.Lock()
	done, ok := t.pending[p.ID()]
	delete(t.pending, p.ID())
	t.mu.Unlock()
	if ok {
		done <- err
	}
}

func (t *Transport) onDisconnected(p gatt.Peripheral, err error) {
	t.mu.Lock()
	d, ok := t.links[p.ID()]
	delete(t.links, p.ID())
	t.mu.Unlock()
	if !ok {
		return
	}
	t.logger.Info("gatt peripheral disconnected", "device", p.ID(), "error", err)
	d.fireDisconnect()
}

// Close cancels every open link and stops scanning.
func (t *Transport) Close() error {
	t.dev.StopScanning()
	t.mu.Lock()
	links := make([]*device, 0, len(t.links))
	for _, d := range t.links {
		links = append(links, d)
	}
	t.mu.Unlock()
	for _, d := range links {
		t.dev.CancelConnection(d.p)
	}
	return nil
}

type device struct {
	t    *Transport
	p    gatt.Peripheral
	name string

	mu     sync.Mutex
	onDisc func()
}

func (d *device) ID() string   { return d.p.ID() }
func (d *device) Name() string { return d.name }

func (d *device) OnDisconnect(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisc = fn
}

func (d *device) fireDisconnect() {
	d.mu.Lock()
	fn := d.onDisc
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *device) Open(ctx context.Context) (domain.Session, error) {
	if err := d.t.connect(ctx, d); err != nil {
		return nil, err
	}
	return &session{d: d}, nil
}

type session struct {
	d *device
}

func (s *session) Services(ctx context.Context) ([]domain.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ss, err := s.d.p.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w: %w", domain.ErrTransportFailure, err)
	}
	out := make([]domain.Service, len(ss))
	for i, svc := range ss {
		out[i] = &service{p: s.d.p, s: svc}
	}
	return out, nil
}

func (s *session) Close() error {
	s.d.t.dev.CancelConnection(s.d.p)
	return nil
}

type service struct {
	p gatt.Peripheral
	s *gatt.Service
}

func (s *service) UUID() string { return domain.CanonicalUUID(s.s.UUID().String()) }

func (s *service) Characteristics(ctx context.Context) ([]domain.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs, err := s.p.DiscoverCharacteristics(nil, s.s)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics of %s: %w: %w", s.UUID(), domain.ErrTransportFailure, err)
	}
	out := make([]domain.Characteristic, len(cs))
	for i, c := range cs {
		out[i] = &characteristic{p: s.p, c: c}
	}
	return out, nil
}

type characteristic struct {
	p gatt.Peripheral
	c *gatt.Characteristic
}

func (c *characteristic) UUID() string { return domain.CanonicalUUID(c.c.UUID().String()) }

func (c *characteristic) Properties() domain.Properties { return mapProperties(c.c.Properties()) }

// Subscribe enables notifications, falling back to indications. The CCCD
// must be discovered before gatt can write it.
func (c *characteristic) Subscribe(ctx context.Context, fn func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.p.DiscoverDescriptors(nil, c.c); err != nil {
		return fmt.Errorf("discover descriptors of %s: %w: %w", c.UUID(), domain.ErrTransportFailure, err)
	}
	handler := func(_ *gatt.Characteristic, b []byte, err error) {
		if err == nil {
			fn(b)
		}
	}
	var err error
	if c.c.Properties()&gatt.CharNotify != 0 {
		err = c.p.SetNotifyValue(c.c, handler)
	} else {
		err = c.p.SetIndicateValue(c.c, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w: %w", c.UUID(), domain.ErrTransportFailure, err)
	}
	return nil
}

func (c *characteristic) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	noRsp := c.c.Properties()&gatt.CharWrite == 0
	if err := c.p.WriteCharacteristic(c.c, data, noRsp); err != nil {
		return fmt.Errorf("write %s: %w", c.UUID(), err)
	}
	return nil
}

func mapProperties(p gatt.Property) domain.Properties {
	var out domain.Properties
	if p&gatt.CharRead != 0 {
		out |= domain.PropRead
	}
	if p&gatt.CharWriteNR != 0 {
		out |= domain.PropWriteWithoutResponse
	}
	if p&gatt.CharWrite != 0 {
		out |= domain.PropWrite
	}
	if p&gatt.CharNotify != 0 {
		out |= domain.PropNotify
	}
	if p&gatt.CharIndicate != 0 {
		out |= domain.PropIndicate
	}
	return out
}

var (
	_ domain.Bluetooth = (*Transport)(nil)
	_ domain.Scanner   = (*Transport)(nil)
)
