package terminal

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"bluepulse/internal/domain"
)

// sender is the part of tea.Program used to inject messages.
type sender interface {
	Send(msg tea.Msg)
}

// Options control the terminal program.
type Options struct {
	AltScreen bool
	Mouse     bool
}

// Program runs the Bubble Tea UI and bridges the event bus and the device
// picker into its update loop.
type Program struct {
	deps   Deps
	opts   Options
	bus    domain.EventBus
	logger *slog.Logger

	mu      sync.Mutex
	program sender
}

// NewProgram creates a Program. bus may be nil, in which case the log view
// only refreshes after the UI's own commands complete.
func NewProgram(deps Deps, bus domain.EventBus, opts Options) *Program {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{deps: deps, opts: opts, bus: bus, logger: logger}
}

// Run starts the UI and blocks until it exits or ctx is cancelled.
func (p *Program) Run(ctx context.Context) error {
	deps := p.deps
	deps.Context = ctx

	var teaOpts []tea.ProgramOption
	if p.opts.AltScreen {
		teaOpts = append(teaOpts, tea.WithAltScreen())
	}
	if p.opts.Mouse {
		teaOpts = append(teaOpts, tea.WithMouseCellMotion())
	}
	prog := tea.NewProgram(NewModel(deps), teaOpts...)
	p.setSender(prog)
	defer p.setSender(nil)

	if p.bus != nil {
		unsubLog := p.bus.Subscribe(domain.EventLogAppended, func(_ context.Context, _ domain.Event) {
			p.send(LogChangedMsg{})
		})
		unsubConn := p.bus.Subscribe(domain.EventConnectionChanged, func(_ context.Context, _ domain.Event) {
			p.send(StateChangedMsg{})
		})
		defer unsubLog()
		defer unsubConn()
	}

	go func() {
		<-ctx.Done()
		p.send(QuitMsg{})
	}()

	_, err := prog.Run()
	return err
}

// Choose shows the device picker and waits for the user. It satisfies
// domain.Chooser and is safe to call from the BLE transport goroutine.
func (p *Program) Choose(ctx context.Context, devices []domain.DeviceInfo) (string, error) {
	if !p.send(nil) {
		return "", domain.ErrUserCancelled
	}

	reply := make(chan PickReply, 1)
	p.send(PickRequestMsg{Devices: devices, Reply: reply})

	select {
	case r := <-reply:
		if r.Cancelled {
			return "", domain.ErrUserCancelled
		}
		p.logger.Debug("device chosen", "device", r.ID)
		return r.ID, nil
	case <-ctx.Done():
		p.send(pickAbortMsg{Reply: reply})
		return "", ctx.Err()
	}
}

func (p *Program) setSender(s sender) {
	p.mu.Lock()
	p.program = s
	p.mu.Unlock()
}

// send forwards msg to the running program and reports whether one was
// attached. A nil msg only probes.
func (p *Program) send(msg tea.Msg) bool {
	p.mu.Lock()
	s := p.program
	p.mu.Unlock()
	if s == nil {
		return false
	}
	if msg != nil {
		s.Send(msg)
	}
	return true
}
