package terminal

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// connectCmd runs Connect off the update loop. The manager may block in the
// scan window and the picker for several seconds.
func connectCmd(ctx context.Context, conn Connector) tea.Cmd {
	return func() tea.Msg {
		return ConnectDoneMsg{Err: conn.Connect(ctx)}
	}
}

func disconnectCmd(conn Connector) tea.Cmd {
	return func() tea.Msg {
		conn.Disconnect()
		return StateChangedMsg{}
	}
}

func sendCmd(ctx context.Context, conn Connector, text string) tea.Cmd {
	return func() tea.Msg {
		return SendDoneMsg{Text: text, Err: conn.Send(ctx, text)}
	}
}

func analyzeCmd(ctx context.Context, a Analyzer) tea.Cmd {
	return func() tea.Msg {
		return AnalysisDoneMsg{Result: a.AnalyzeLatest(ctx)}
	}
}
