package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/components"
	"bluepulse/internal/adapter/tui/theme"
	"bluepulse/internal/adapter/tui/uxerror"
	"bluepulse/internal/domain"
	"bluepulse/internal/usecase/analysis"
	"bluepulse/internal/usecase/connection"
)

const appTitle = "BluePulse"

// Connector is the connection manager surface the UI drives.
type Connector interface {
	State() connection.State
	Connect(ctx context.Context) error
	Disconnect()
	Send(ctx context.Context, text string) error
}

// Analyzer explains the latest received payload.
type Analyzer interface {
	AnalyzeLatest(ctx context.Context) analysis.Result
}

// EntrySource is the read side of the message log.
type EntrySource interface {
	Entries() []domain.LogEntry
}

// Deps are dependencies injected into the model.
type Deps struct {
	Conn Connector
	// Analyzer may be nil when analysis is disabled.
	Analyzer   Analyzer
	Log        EntrySource
	Logger     *slog.Logger
	Context    context.Context
	Backend    string
	Model      string
	TimeFormat string
}

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps
	ctx  context.Context

	logView   components.LogViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	picker    components.PickerModel
	modal     components.ModalModel
	spinner   spinner.Model

	state         connection.State
	connecting    bool
	analyzing     bool
	sending       bool
	connectCancel context.CancelFunc
	pickReply     chan<- PickReply
	width         int
	height        int
	quitting      bool
}

var slashCommands = []components.CommandDef{
	{Name: "/connect", Description: "Scan and connect to a device"},
	{Name: "/disconnect", Description: "Close the current connection"},
	{Name: "/analyze", Description: "Explain the last received data"},
	{Name: "/help", Description: "Show keys and commands"},
	{Name: "/quit", Description: "Exit"},
}

// NewModel creates the root model.
func NewModel(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	lv := components.NewLogView()
	lv.SetTimeFormat(deps.TimeFormat)

	sb := components.NewStatusBar()
	sb.Backend = deps.Backend
	sb.Model = deps.Model

	m := Model{
		deps:      deps,
		ctx:       ctx,
		logView:   lv,
		input:     components.NewInputArea(slashCommands),
		statusBar: sb,
		picker:    components.NewPicker(),
		modal:     components.NewModal(),
		spinner:   s,
	}
	m.refreshState()
	m.refreshEntries()
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.modal.SetSize(m.width, m.height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case SendDoneMsg:
		m.sending = false
		if msg.Err == nil {
			m.input.Reset()
			m.statusBar.Extra = ""
		} else {
			m.statusBar.Extra = uxerror.Humanize(msg.Err).Short()
		}
		m.refreshEntries()
		m.layout()
		return m, nil

	case ConnectDoneMsg:
		m.connecting = false
		if m.connectCancel != nil {
			m.connectCancel()
			m.connectCancel = nil
		}
		switch {
		case msg.Err == nil:
			m.statusBar.Extra = ""
		case errors.Is(msg.Err, domain.ErrUserCancelled), errors.Is(msg.Err, context.Canceled):
			m.statusBar.Extra = "Connection cancelled"
		default:
			m.statusBar.Extra = uxerror.Humanize(msg.Err).Short()
		}
		m.refreshState()
		m.refreshEntries()
		return m, nil

	case AnalysisDoneMsg:
		m.analyzing = false
		m.modal.SetSize(m.width, m.height)
		m.modal.Open("Analysis", analysisMarkdown(msg.Result, m.deps.TimeFormat))
		m.input.Blur()
		return m, nil

	case PickRequestMsg:
		if m.pickReply != nil {
			m.pickReply <- PickReply{Cancelled: true}
		}
		m.pickReply = msg.Reply
		m.picker.SetWidth(m.width)
		m.picker.Open(msg.Devices)
		m.statusBar.Extra = ""
		m.input.Blur()
		return m, nil

	case components.PickerResultMsg:
		if m.pickReply != nil {
			m.pickReply <- PickReply{ID: msg.ID, Cancelled: msg.Cancelled}
			m.pickReply = nil
		}
		if !msg.Cancelled {
			m.statusBar.Extra = "Connecting" + theme.SymbolEllipsis
		}
		return m, m.input.Focus()

	case pickAbortMsg:
		if m.pickReply == msg.Reply {
			m.pickReply = nil
			m.picker.Close()
			return m, m.input.Focus()
		}
		return m, nil

	case LogChangedMsg:
		m.refreshEntries()
		return m, nil

	case StateChangedMsg:
		m.refreshState()
		m.refreshEntries()
		return m, nil

	case QuitMsg:
		return m.quit()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.overlayOpen() {
		if _, isMouse := msg.(tea.MouseMsg); !isMouse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	if m.modal.Visible {
		return m.modal.View()
	}
	if m.picker.Visible {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleBar(),
		m.logView.View(),
		components.Divider(m.width),
		m.input.View(),
		m.statusBar.View(),
	)
}

func (m Model) titleBar() string {
	left := theme.AppTitle.Render(appTitle) + " " + theme.AppSubtitle.Render("BLE terminal")

	var badges []string
	if m.analyzing {
		badges = append(badges, m.spinner.View()+" "+theme.TextInfo.Render("Analyzing"+theme.SymbolEllipsis))
	}
	switch {
	case m.state.Connected:
		badges = append(badges, theme.BadgeConnected.Render(theme.SymbolLinked+" "+m.state.PeerName))
	case m.connecting:
		badges = append(badges, theme.BadgeIdle.Render(m.spinner.View()+" Connecting"+theme.SymbolEllipsis))
	default:
		badges = append(badges, theme.BadgeIdle.Render(theme.SymbolUnlinked+" Disconnected"))
	}
	right := strings.Join(badges, " ")

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	titleH := 1
	dividerH := 1
	statusH := 1
	contentH := max(m.height-titleH-dividerH-statusH-m.input.Height(), 3)

	m.statusBar.SetWidth(m.width)
	m.input.SetWidth(m.width)
	m.picker.SetWidth(m.width)
	m.logView.SetSize(m.width, contentH)
}

func (m Model) overlayOpen() bool {
	return m.modal.Visible || m.picker.Visible
}

func (m *Model) refreshEntries() {
	if m.deps.Log == nil {
		return
	}
	m.logView.SetEntries(m.deps.Log.Entries())
}

func (m *Model) refreshState() {
	if m.deps.Conn != nil {
		m.state = m.deps.Conn.State()
	}
	m.input.SetConnected(m.state.Connected)
	m.statusBar.Hints = hintsFor(m.state.Connected)
}

// isMouseEscapeLeak detects mouse escape sequences that arrive as key input
// instead of tea.MouseMsg during fast wheel scrolling. Covers SGR, X11 and
// URXVT encodings.
func isMouseEscapeLeak(s string) bool {
	digitsOnly := func(body string) bool {
		for _, r := range body {
			if r != ';' && (r < '0' || r > '9') {
				return false
			}
		}
		return true
	}
	switch {
	case len(s) >= 5 && s[0] == '<' && (s[len(s)-1] == 'M' || s[len(s)-1] == 'm'):
		return digitsOnly(s[1 : len(s)-1])
	case len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm'):
		return true
	case len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M':
		return digitsOnly(s[1 : len(s)-1])
	}
	return false
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	if m.picker.Visible {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	if m.modal.Visible {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		if !m.modal.Visible {
			return m, tea.Batch(cmd, m.input.Focus())
		}
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.connecting && m.connectCancel != nil {
			m.connectCancel()
			m.statusBar.Extra = "Cancelling" + theme.SymbolEllipsis
			return m, nil
		}
		return m.quit()

	case tea.KeyCtrlB:
		return m.startConnect()

	case tea.KeyCtrlD:
		return m.startDisconnect()

	case tea.KeyCtrlA:
		return m.startAnalyze()

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		if m.sending {
			return m, nil
		}
	}

	before := m.input.Height()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Height() != before {
		m.layout()
	}
	return m, cmd
}

func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		m.input.Reset()
		return m.handleSlashCommand(cmd, args)
	}
	if !m.state.Connected || m.sending {
		return m, nil
	}
	m.sending = true
	return m, sendCmd(m.ctx, m.deps.Conn, components.UnescapeSlash(value))
}

func (m Model) handleSlashCommand(cmd string, _ []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/connect":
		return m.startConnect()
	case "/disconnect":
		return m.startDisconnect()
	case "/analyze", "/analyse":
		return m.startAnalyze()
	case "/help":
		m.modal.SetSize(m.width, m.height)
		m.modal.Open("Help", helpMarkdown())
		m.input.Blur()
		return m, nil
	case "/quit", "/exit":
		return m.quit()
	default:
		m.statusBar.Extra = fmt.Sprintf("Unknown command %s, try /help", cmd)
		return m, nil
	}
}

func (m Model) startConnect() (tea.Model, tea.Cmd) {
	switch {
	case m.connecting:
		m.statusBar.Extra = uxerror.Humanize(domain.ErrConnectInProgress).Short()
		return m, nil
	case m.state.Connected:
		m.statusBar.Extra = uxerror.Humanize(domain.ErrAlreadyConnected).Short()
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.connectCancel = cancel
	m.connecting = true
	m.statusBar.Extra = "Scanning" + theme.SymbolEllipsis
	return m, tea.Batch(connectCmd(ctx, m.deps.Conn), m.spinner.Tick)
}

func (m Model) startDisconnect() (tea.Model, tea.Cmd) {
	m.statusBar.Extra = ""
	return m, disconnectCmd(m.deps.Conn)
}

func (m Model) startAnalyze() (tea.Model, tea.Cmd) {
	if m.analyzing {
		return m, nil
	}
	if m.deps.Analyzer == nil {
		m.statusBar.Extra = "Analysis is disabled"
		return m, nil
	}
	m.analyzing = true
	return m, tea.Batch(analyzeCmd(m.ctx, m.deps.Analyzer), m.spinner.Tick)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.connectCancel != nil {
		m.connectCancel()
		m.connectCancel = nil
	}
	if m.pickReply != nil {
		m.pickReply <- PickReply{Cancelled: true}
		m.pickReply = nil
	}
	m.quitting = true
	return m, tea.Quit
}

func analysisMarkdown(r analysis.Result, layout string) string {
	if layout == "" {
		layout = components.DefaultTimeFormat
	}
	var sb strings.Builder
	if r.Source.ID != "" {
		sb.WriteString("**Received at ")
		sb.WriteString(r.Source.Timestamp.Local().Format(layout))
		sb.WriteString("**\n\n```\n")
		sb.WriteString(r.Source.Content)
		sb.WriteString("\n```\n\n")
	}
	if r.Placeholder {
		sb.WriteString("_")
		sb.WriteString(r.Text)
		sb.WriteString("_\n")
	} else {
		sb.WriteString(r.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func helpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Keys\n\n")
	for _, h := range []components.KeyHint{
		{Key: "Enter", Desc: "Send the prompt to the device"},
		{Key: "Ctrl+B", Desc: "Scan and connect"},
		{Key: "Ctrl+D", Desc: "Disconnect"},
		{Key: "Ctrl+A", Desc: "Analyze the last received data"},
		{Key: "PgUp/PgDn", Desc: "Scroll the log"},
		{Key: "Ctrl+C", Desc: "Cancel a scan, or quit"},
	} {
		fmt.Fprintf(&sb, "- **%s** %s\n", h.Key, h.Desc)
	}
	sb.WriteString("\n# Commands\n\n")
	for _, c := range slashCommands {
		fmt.Fprintf(&sb, "- `%s` %s\n", c.Name, c.Description)
	}
	sb.WriteString("\nStart a line with `//` to send a literal `/`, e.g. `//reset` sends `/reset`.\n")
	return sb.String()
}

func hintsFor(connected bool) []components.KeyHint {
	if connected {
		return []components.KeyHint{
			{Key: "Enter", Desc: "Send"},
			{Key: "Ctrl+D", Desc: "Disconnect"},
			{Key: "Ctrl+A", Desc: "Analyze"},
			{Key: "PgUp/PgDn", Desc: "Scroll"},
			{Key: "Ctrl+C", Desc: "Quit"},
		}
	}
	return []components.KeyHint{
		{Key: "Ctrl+B", Desc: "Connect"},
		{Key: "Ctrl+A", Desc: "Analyze"},
		{Key: "/help", Desc: "Help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}
