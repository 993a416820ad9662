// Package connection owns the single BLE session of the terminal: device
// selection, characteristic discovery, notifications and writes.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"bluepulse/internal/domain"
	"bluepulse/internal/infra/tracer"
)

const (
	fallbackPeerName  = "Connected Device"
	fallbackDialName  = "Device"
	statusConnected   = "Connected!"
	statusDisconnect  = "Device disconnected."
	notifyQueueLength = 64
)

// Recorder receives log entries produced by the manager.
type Recorder interface {
	Append(kind domain.EntryKind, content string)
}

// State is a read-only snapshot of the connection.
type State struct {
	Connected  bool
	Connecting bool
	PeerName   string
	DeviceID   string
	NotifyUUID string
	WriteUUID  string
}

// Config holds manager dependencies.
type Config struct {
	// Bluetooth may be nil on platforms without BLE support.
	Bluetooth domain.Bluetooth
	Log       Recorder
	Bus       domain.EventBus
	Logger    *slog.Logger
	// OptionalServices defaults to domain.DefaultOptionalServices.
	OptionalServices []string
}

// Manager serializes all connection state transitions.
type Manager struct {
	bt       domain.Bluetooth
	log      Recorder
	bus      domain.EventBus
	logger   *slog.Logger
	services []string

	mu         sync.Mutex
	gen        uint64 // bumped on every attempt and every teardown
	attempt    uint64 // generation of the in-flight Connect
	connecting bool
	lost       bool // link dropped while the current attempt was in flight
	active     *session
}

// session is the state committed by a successful Connect.
type session struct {
	gen      uint64
	device   domain.Device
	conn     domain.Session
	peerName string
	notify   domain.Characteristic
	write    domain.Characteristic

	inbox chan []byte
	stop  chan struct{}
	done  chan struct{}
}

// New creates a Manager.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	services := cfg.OptionalServices
	if len(services) == 0 {
		services = domain.DefaultOptionalServices
	}
	return &Manager{
		bt:       cfg.Bluetooth,
		log:      cfg.Log,
		bus:      cfg.Bus,
		logger:   logger,
		services: services,
	}
}

// State returns a snapshot of the current connection.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{Connecting: m.connecting}
	if s := m.active; s != nil {
		st.Connected = true
		st.PeerName = s.peerName
		st.DeviceID = s.device.ID()
		if s.notify != nil {
			st.NotifyUUID = s.notify.UUID()
		}
		if s.write != nil {
			st.WriteUUID = s.write.UUID()
		}
	}
	return st
}

// Connect asks the user to pick a device, opens a session and subscribes to
// the first characteristic that can notify. Every failure is recorded as a
// single error entry and returned; the state stays empty.
func (m *Manager) Connect(ctx context.Context) (err error) {
	if m.bt == nil {
		m.log.Append(domain.EntryError, "This platform does not support Bluetooth.")
		return domain.ErrUnsupportedPlatform
	}

	gen, err := m.beginConnect()
	if err != nil {
		m.log.Append(domain.EntryError, errorText(err))
		return err
	}

	ctx, span := tracer.StartSpan(ctx, "ble.connect")
	defer span.End()

	var conn domain.Session
	defer func() {
		if err == nil {
			tracer.SetOK(span)
			return
		}
		if conn != nil {
			_ = conn.Close()
		}
		m.abortConnect(gen)
		tracer.RecordError(span, err)
		m.logger.Warn("connect failed", "error", err, "code", domain.ErrorCodeOf(err))
		m.log.Append(domain.EntryError, errorText(err))
	}()

	device, err := m.bt.RequestDevice(ctx, domain.RequestOptions{
		AcceptAllDevices: true,
		OptionalServices: m.services,
	})
	if err != nil {
		return err
	}

	dialName := device.Name()
	if dialName == "" {
		dialName = fallbackDialName
	}
	m.log.Append(domain.EntryStatus, fmt.Sprintf("Connecting to %s...", dialName))
	span.SetAttributes(tracer.StringAttr("ble.device", device.ID()))

	device.OnDisconnect(func() { m.linkLost(gen) })

	conn, err = device.Open(ctx)
	if err != nil {
		return err
	}

	notify, err := findCharacteristic(ctx, conn, domain.Properties.CanNotify)
	if err != nil {
		return err
	}

	s := &session{
		gen:      gen,
		device:   device,
		conn:     conn,
		peerName: device.Name(),
		notify:   notify,
		write:    notify,
		inbox:    make(chan []byte, notifyQueueLength),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if s.peerName == "" {
		s.peerName = fallbackPeerName
	}

	if notify != nil {
		if err = notify.Subscribe(ctx, s.deliver); err != nil {
			return err
		}
	}

	if err = m.commit(ctx, gen, s); err != nil {
		return err
	}

	m.logger.Info("connected",
		"device", device.ID(),
		"name", s.peerName,
		"notify", uuidOf(notify),
	)
	return nil
}

// Disconnect closes the session if one is open and resets the state. It is
// idempotent and always records a status entry.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	s := m.detach()
	m.mu.Unlock()
	m.finish(s)
}

// Send writes text plus a trailing newline to the write target. Blank input
// and a missing connection are rejected without any log entry.
func (m *Manager) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyInput
	}

	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return domain.ErrNotConnected
	}

	ctx, span := tracer.StartSpan(ctx, "ble.send")
	defer span.End()

	target := s.write
	if target == nil || !target.Properties().CanWrite() {
		found, err := findCharacteristic(ctx, s.conn, domain.Properties.CanWrite)
		if err != nil {
			tracer.RecordError(span, err)
			m.log.Append(domain.EntryError, "Send failed: "+err.Error())
			return domain.NewDomainError("Connection.Send", domain.ErrSendFailure, err.Error())
		}
		if found == nil {
			tracer.RecordError(span, domain.ErrNoWritableCharacteristic)
			m.log.Append(domain.EntryError, domain.ErrNoWritableCharacteristic.Error())
			return domain.ErrNoWritableCharacteristic
		}
		target = found
	}

	payload := []byte(text + "\n")
	span.SetAttributes(tracer.StringAttr("ble.char", target.UUID()), tracer.IntAttr("ble.bytes", len(payload)))
	if err := target.Write(ctx, payload); err != nil {
		tracer.RecordError(span, err)
		m.logger.Warn("write failed", "char", target.UUID(), "error", err)
		m.log.Append(domain.EntryError, "Send failed: "+err.Error())
		return domain.NewDomainError("Connection.Send", domain.ErrSendFailure, err.Error())
	}

	tracer.SetOK(span)
	m.logger.Debug("sent", "char", target.UUID(), "bytes", len(payload))
	m.log.Append(domain.EntrySent, text)
	return nil
}

func (m *Manager) beginConnect() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connecting {
		return 0, domain.ErrConnectInProgress
	}
	if m.active != nil {
		return 0, domain.ErrAlreadyConnected
	}
	m.gen++
	m.attempt = m.gen
	m.connecting = true
	m.lost = false
	return m.gen, nil
}

func (m *Manager) abortConnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt == gen {
		m.connecting = false
	}
}

// commit publishes s as the active session. The Connected entry and event
// are recorded under the lock, so a teardown racing with commit always lands
// after them.
func (m *Manager) commit(ctx context.Context, gen uint64, s *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.lost {
		return fmt.Errorf("device disconnected during setup: %w", domain.ErrTransportFailure)
	}
	m.connecting = false
	m.active = s
	go m.pump(s)
	m.log.Append(domain.EntryStatus, statusConnected)
	m.emitState(ctx, true, s.peerName)
	return nil
}

// detach clears the active session and invalidates its generation. Caller
// holds m.mu.
func (m *Manager) detach() *session {
	s := m.active
	m.active = nil
	m.gen++
	return s
}

// finish runs teardown side effects outside the lock: the transport may call
// back into linkLost from Close.
func (m *Manager) finish(s *session) {
	if s != nil {
		close(s.stop)
		_ = s.conn.Close()
		<-s.done
		m.logger.Info("disconnected", "device", s.device.ID())
	}
	m.log.Append(domain.EntryStatus, statusDisconnect)
	m.emitState(context.Background(), false, "")
}

// linkLost handles the transport's asynchronous disconnect signal.
func (m *Manager) linkLost(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.active == nil {
		// Still connecting; commit will fail.
		m.lost = true
		m.mu.Unlock()
		return
	}
	s := m.detach()
	m.mu.Unlock()
	m.finish(s)
}

// deliver runs on the transport's goroutine. Payloads beyond the queue are
// dropped rather than blocking the stack.
func (s *session) deliver(data []byte) {
	select {
	case <-s.stop:
	case s.inbox <- append([]byte(nil), data...):
	default:
	}
}

func (m *Manager) pump(s *session) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case data := <-s.inbox:
			m.log.Append(domain.EntryReceived, decode(data))
		}
	}
}

func (m *Manager) emitState(ctx context.Context, connected bool, peer string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(ctx, domain.EventConnectionChanged, domain.ConnectionChangedPayload{Connected: connected, PeerName: peer})
}

// findCharacteristic walks services then characteristics in discovery order
// and returns the first match, or nil.
func findCharacteristic(ctx context.Context, conn domain.Session, match func(domain.Properties) bool) (domain.Characteristic, error) {
	services, err := conn.Services(ctx)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		chars, err := svc.Characteristics(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range chars {
			if match(c.Properties()) {
				return c, nil
			}
		}
	}
	return nil, nil
}

func decode(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

func uuidOf(c domain.Characteristic) string {
	if c == nil {
		return ""
	}
	return c.UUID()
}

// errorText is the user-facing message for err.
func errorText(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}
