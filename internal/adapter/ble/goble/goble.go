//go:build linux

// Package goble is the BLE central backend built on go-ble/ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"

	blecore "bluepulse/internal/adapter/ble"
	"bluepulse/internal/domain"
)

// Transport is a domain.Bluetooth over a go-ble HCI device.
type Transport struct {
	dev    ble.Device
	opts   blecore.Options
	logger *slog.Logger
	scanMu sync.Mutex
}

// New opens the HCI device.
func New(opts blecore.Options) (*Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dev, err := linux.NewDevice(ble.OptDeviceID(opts.HCIDevice))
	if err != nil {
		return nil, fmt.Errorf("open hci%d: %w: %w", opts.HCIDevice, domain.ErrTransportFailure, err)
	}
	return &Transport{dev: dev, opts: opts, logger: logger}, nil
}

// Scan collects advertisements for timeout (the configured scan timeout
// when zero). Reaching the timeout is the normal end of a scan.
func (t *Transport) Scan(ctx context.Context, timeout time.Duration) ([]domain.DeviceInfo, error) {
	if timeout <= 0 {
		timeout = t.opts.Timeout()
	}
	t.scanMu.Lock()
	defer t.scanMu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coll := blecore.NewCollector()
	err := t.dev.Scan(sctx, true, func(a ble.Advertisement) {
		coll.Add(domain.DeviceInfo{
			ID:       a.Addr().String(),
			Name:     a.LocalName(),
			RSSI:     a.RSSI(),
			LastSeen: time.Now(),
		})
	})
	if err != nil && !(errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("scan: %w: %w", domain.ErrTransportFailure, err)
	}

	devices := coll.List()
	t.logger.Debug("go-ble scan finished", "devices", len(devices))
	return devices, nil
}

// RequestDevice scans and hands the results to the configured chooser.
func (t *Transport) RequestDevice(ctx context.Context, _ domain.RequestOptions) (domain.Device, error) {
	devices, err := t.Scan(ctx, 0)
	if err != nil {
		return nil, err
	}
	info, err := blecore.Choose(ctx, devices, t.opts.Chooser)
	if err != nil {
		return nil, err
	}
	return &device{t: t, addr: info.ID, name: info.Name}, nil
}

// Close releases the HCI device.
func (t *Transport) Close() error {
	return t.dev.Stop()
}

type device struct {
	t    *Transport
	addr string
	name string

	mu     sync.Mutex
	onDisc func()
}

func (d *device) ID() string   { return d.addr }
func (d *device) Name() string { return d.name }

func (d *device) OnDisconnect(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisc = fn
}

func (d *device) Open(ctx context.Context) (domain.Session, error) {
	cln, err := d.t.dev.Dial(ctx, ble.NewAddr(d.addr))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dial %s: %w: %w", d.addr, domain.ErrTransportFailure, err)
	}

	go func() {
		<-cln.Disconnected()
		d.t.logger.Info("go-ble peripheral disconnected", "device", d.addr)
		d.mu.Lock()
		fn := d.onDisc
		d.mu.Unlock()
		if fn != nil {
			fn()
		}
	}()
	return &session{cln: cln}, nil
}

type session struct {
	cln ble.Client
}

func (s *session) Services(ctx context.Context) ([]domain.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ss, err := s.cln.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w: %w", domain.ErrTransportFailure, err)
	}
	out := make([]domain.Service, len(ss))
	for i, svc := range ss {
		out[i] = &service{cln: s.cln, s: svc}
	}
	return out, nil
}

func (s *session) Close() error {
	return s.cln.CancelConnection()
}

type service struct {
	cln ble.Client
	s   *ble.Service
}

func (s *service) UUID() string { return domain.CanonicalUUID(s.s.UUID.String()) }

func (s *service) Characteristics(ctx context.Context) ([]domain.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs, err := s.cln.DiscoverCharacteristics(nil, s.s)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics of %s: %w: %w", s.UUID(), domain.ErrTransportFailure, err)
	}
	out := make([]domain.Characteristic, len(cs))
	for i, c := range cs {
		out[i] = &characteristic{cln: s.cln, c: c}
	}
	return out, nil
}

type characteristic struct {
	cln ble.Client
	c   *ble.Characteristic
}

func (c *characteristic) UUID() string { return domain.CanonicalUUID(c.c.UUID.String()) }

func (c *characteristic) Properties() domain.Properties { return mapProperties(c.c.Property) }

// Subscribe enables notifications, or indications when the characteristic
// lacks notify. go-ble needs the CCCD from descriptor discovery first.
func (c *characteristic) Subscribe(ctx context.Context, fn func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.cln.DiscoverDescriptors(nil, c.c); err != nil {
		return fmt.Errorf("discover descriptors of %s: %w: %w", c.UUID(), domain.ErrTransportFailure, err)
	}
	ind := c.c.Property&ble.CharNotify == 0
	if err := c.cln.Subscribe(c.c, ind, func(b []byte) { fn(b) }); err != nil {
		return fmt.Errorf("subscribe %s: %w: %w", c.UUID(), domain.ErrTransportFailure, err)
	}
	return nil
}

func (c *characteristic) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	noRsp := c.c.Property&ble.CharWrite == 0
	if err := c.cln.WriteCharacteristic(c.c, data, noRsp); err != nil {
		return fmt.Errorf("write %s: %w", c.UUID(), err)
	}
	return nil
}

func mapProperties(p ble.Property) domain.Properties {
	var out domain.Properties
	if p&ble.CharRead != 0 {
		out |= domain.PropRead
	}
	if p&ble.CharWriteNR != 0 {
		out |= domain.PropWriteWithoutResponse
	}
	if p&ble.CharWrite != 0 {
		out |= domain.PropWrite
	}
	if p&ble.CharNotify != 0 {
		out |= domain.PropNotify
	}
	if p&ble.CharIndicate != 0 {
		out |= domain.PropIndicate
	}
	return out
}

var (
	_ domain.Bluetooth = (*Transport)(nil)
	_ domain.Scanner   = (*Transport)(nil)
)
