// Package peer implements the BGP peer finite-state machine (RFC 4271
// §8): per-peer session state, timers, capability negotiation, and
// connection collision resolution, wrapped around a pair of framed
// TCP byte streams.
package peer

import "fmt"

// State is a BGP FSM state (RFC 4271 §8.2.1).
type State int

const (
	StateIdle State = iota
	StateConnect
	StateActive
	StateOpenSent
	StateOpenConfirm
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnect:
		return "Connect"
	case StateActive:
		return "Active"
	case StateOpenSent:
		return "OpenSent"
	case StateOpenConfirm:
		return "OpenConfirm"
	case StateEstablished:
		return "Established"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a BGP FSM input event (RFC 4271 §8.1).
type Event int

const (
	EventManualStart Event = iota
	EventManualStop
	EventAutomaticStart
	EventTcpCrAcked
	EventTcpConnectionConfirmed
	EventTcpConnectionFails
	EventBGPOpen
	EventBGPHeaderErr
	EventBGPOpenMsgErr
	EventNotifMsgVerErr
	EventNotifMsg
	EventKeepaliveMsg
	EventUpdateMsg
	EventUpdateMsgErr
	EventConnectRetryTimerExpires
	EventHoldTimerExpires
	EventKeepaliveTimerExpires
)

func (e Event) String() string {
	names := [...]string{
		"ManualStart", "ManualStop", "AutomaticStart", "TcpCrAcked",
		"TcpConnectionConfirmed", "TcpConnectionFails", "BGPOpen",
		"BGPHeaderErr", "BGPOpenMsgErr", "NotifMsgVerErr", "NotifMsg",
		"KeepaliveMsg", "UpdateMsg", "UpdateMsgErr",
		"ConnectRetryTimerExpires", "HoldTimerExpires", "KeepaliveTimerExpires",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Action is what the FSM loop must do in response to a transition,
// beyond moving to NextState. Several bits may apply to one transition.
type Action int

const (
	ActionNone Action = 1 << iota
	ActionInitiateConnect
	ActionSendOpen
	ActionSendKeepalive
	ActionSendNotification
	ActionStartConnectRetryTimer
	ActionStopConnectRetryTimer
	ActionStartHoldTimer
	ActionStopTimers
	ActionCloseConnection
	ActionEmitEstablished
	ActionEmitTerminated
)

// Transition is one (action set, next state) pair.
type Transition struct {
	Actions   Action
	NextState State
}

// table[state][event] is the RFC 4271 §8.2.1 transition matrix.
// Combinations not listed here make Lookup return ok=false, and
// applyTransition then ignores the event and leaves the state
// unchanged (e.g. KeepaliveMsg in Idle).
var table = map[State]map[Event]Transition{
	StateIdle: {
		EventManualStart:    {ActionInitiateConnect | ActionStartConnectRetryTimer, StateConnect},
		EventAutomaticStart: {ActionInitiateConnect | ActionStartConnectRetryTimer, StateConnect},
	},
	StateConnect: {
		EventManualStop:               {ActionStopTimers | ActionCloseConnection, StateIdle},
		EventConnectRetryTimerExpires: {ActionInitiateConnect | ActionStartConnectRetryTimer, StateConnect},
		EventTcpConnectionConfirmed:   {ActionStopConnectRetryTimer | ActionSendOpen | ActionStartHoldTimer, StateOpenSent},
		EventTcpCrAcked:               {ActionStopConnectRetryTimer | ActionSendOpen | ActionStartHoldTimer, StateOpenSent},
		EventTcpConnectionFails:       {ActionStartConnectRetryTimer, StateActive},
		EventBGPOpen:                  {ActionStopConnectRetryTimer | ActionSendOpen | ActionSendKeepalive, StateOpenConfirm},
	},
	StateActive: {
		EventManualStop:               {ActionStopTimers | ActionCloseConnection, StateIdle},
		EventConnectRetryTimerExpires: {ActionInitiateConnect | ActionStartConnectRetryTimer, StateConnect},
		EventTcpConnectionConfirmed:   {ActionStopConnectRetryTimer | ActionSendOpen | ActionStartHoldTimer, StateOpenSent},
		EventTcpCrAcked:               {ActionStopConnectRetryTimer | ActionSendOpen | ActionStartHoldTimer, StateOpenSent},
		EventTcpConnectionFails:       {ActionStartConnectRetryTimer, StateIdle},
	},
	StateOpenSent: {
		EventManualStop:         {ActionSendNotification | ActionStopTimers | ActionCloseConnection, StateIdle},
		EventTcpConnectionFails: {ActionStartConnectRetryTimer, StateActive},
		EventBGPOpen:            {ActionSendKeepalive | ActionStartHoldTimer, StateOpenConfirm},
		EventBGPHeaderErr:       {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
		EventBGPOpenMsgErr:      {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
		EventNotifMsgVerErr:     {ActionCloseConnection, StateIdle},
		EventHoldTimerExpires:   {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
	},
	StateOpenConfirm: {
		EventManualStop:              {ActionSendNotification | ActionStopTimers | ActionCloseConnection, StateIdle},
		EventTcpConnectionFails:      {ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
		EventNotifMsgVerErr:          {ActionCloseConnection, StateIdle},
		EventKeepaliveMsg:            {ActionStartHoldTimer, StateEstablished},
		EventKeepaliveTimerExpires:   {ActionSendKeepalive | ActionStartHoldTimer, StateOpenConfirm},
		EventHoldTimerExpires:        {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
		EventNotifMsg:                {ActionCloseConnection | ActionStartConnectRetryTimer, StateIdle},
		EventBGPOpen:                 {ActionNone, StateOpenConfirm}, // no-op; collisions are resolved in handleInput when a second connection is delivered
	},
	StateEstablished: {
		EventManualStop:             {ActionSendNotification | ActionStopTimers | ActionCloseConnection | ActionEmitTerminated, StateIdle},
		EventTcpConnectionFails:     {ActionCloseConnection | ActionStartConnectRetryTimer | ActionEmitTerminated, StateIdle},
		EventNotifMsgVerErr:         {ActionCloseConnection | ActionEmitTerminated, StateIdle},
		EventNotifMsg:               {ActionCloseConnection | ActionStartConnectRetryTimer | ActionEmitTerminated, StateIdle},
		EventKeepaliveMsg:           {ActionStartHoldTimer, StateEstablished},
		EventUpdateMsg:              {ActionStartHoldTimer, StateEstablished},
		EventUpdateMsgErr:           {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer | ActionEmitTerminated, StateIdle},
		EventKeepaliveTimerExpires:  {ActionSendKeepalive | ActionStartHoldTimer, StateEstablished},
		EventHoldTimerExpires:       {ActionSendNotification | ActionCloseConnection | ActionStartConnectRetryTimer | ActionEmitTerminated, StateIdle},
	},
}

// Lookup returns the transition for (state, event). The ok result is
// false for a combination RFC 4271 leaves unspecified; callers must
// treat that as "ignore the event, stay put" rather than an error.
func Lookup(s State, e Event) (Transition, bool) {
	byEvent, ok := table[s]
	if !ok {
		return Transition{}, false
	}
	t, ok := byEvent[e]
	return t, ok
}

// allStates and allEvents back the exhaustiveness test (P6): every
// (state, event) pair must resolve to *some* defined behavior, even if
// that behavior is "stay put". Lookup's ok=false already encodes that,
// so totality here means Lookup never panics for any combination in
// these two lists — asserted in fsm_test.go.
var allStates = [...]State{StateIdle, StateConnect, StateActive, StateOpenSent, StateOpenConfirm, StateEstablished}

var allEvents = [...]Event{
	EventManualStart, EventManualStop, EventAutomaticStart, EventTcpCrAcked,
	EventTcpConnectionConfirmed, EventTcpConnectionFails, EventBGPOpen,
	EventBGPHeaderErr, EventBGPOpenMsgErr, EventNotifMsgVerErr, EventNotifMsg,
	EventKeepaliveMsg, EventUpdateMsg, EventUpdateMsgErr,
	EventConnectRetryTimerExpires, EventHoldTimerExpires, EventKeepaliveTimerExpires,
}
