// Package terminal implements the Bubble Tea front end of the BLE terminal:
// message log, command prompt, device picker and analysis overlay.
package terminal

import (
	"bluepulse/internal/domain"
	"bluepulse/internal/usecase/analysis"
)

// LogChangedMsg tells the model to re-read the message log.
type LogChangedMsg struct{}

// StateChangedMsg tells the model to re-read the connection state.
type StateChangedMsg struct{}

// ConnectDoneMsg signals that a Connect call returned.
type ConnectDoneMsg struct {
	Err error
}

// SendDoneMsg signals that a Send call returned. Text is what was sent.
type SendDoneMsg struct {
	Text string
	Err  error
}

// AnalysisDoneMsg carries the outcome of an analysis request.
type AnalysisDoneMsg struct {
	Result analysis.Result
}

// PickReply is the answer to a PickRequestMsg.
type PickReply struct {
	ID        string
	Cancelled bool
}

// PickRequestMsg asks the model to show the device picker. Exactly one reply
// is sent on Reply, which must be buffered.
type PickRequestMsg struct {
	Devices []domain.DeviceInfo
	Reply   chan<- PickReply
}

// pickAbortMsg closes a picker whose requester gave up.
type pickAbortMsg struct {
	Reply chan<- PickReply
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
