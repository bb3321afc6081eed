package peer

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/wire"
)

// input is one event delivered to the FSM loop, carrying whatever
// payload that event needs (a decoded message, a fresh socket, a
// decode error) alongside the RFC 4271 event tag.
type input struct {
	event  Event
	conn   net.Conn
	msg    bgp.Message
	decErr *wire.DecodeError
}

// Peer runs one BGP peer's finite-state machine. It owns exactly one
// TCP connection at a time; Deliver hands it a freshly accepted or
// dialed socket, and the FSM decides whether to use it or close it
// (RFC 4271 §6.8 collision resolution).
type Peer struct {
	props  Properties
	cfg    Config
	logger *zap.Logger

	events chan OutputEvent
	inbox  chan input

	mu                sync.Mutex
	state             State
	conn              net.Conn
	asn4              bool
	negotiatedCaps    []bgp.Capability
	connectRetryCount int

	connectRetryTimer *time.Timer
	holdTimer         *time.Timer
	keepaliveTimer    *time.Timer
}

// New constructs an idle Peer. Run must be called to start its loop.
func New(props Properties, cfg Config, logger *zap.Logger) *Peer {
	return &Peer{
		props:  props,
		cfg:    cfg,
		logger: logger,
		events: make(chan OutputEvent, 64),
		inbox:  make(chan input, 16),
		state:  StateIdle,
	}
}

// Events returns the channel the supervisor/collaborators read
// SessionEstablished/SessionTerminated/MessageEvent from.
func (p *Peer) Events() <-chan OutputEvent { return p.events }

// State reports the current FSM state (safe for concurrent reads).
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// BGPID returns the configured peer BGP identifier, the supervisor's
// map key.
func (p *Peer) BGPID() uint32 { return p.props.PeerBGPID }

// Address returns the peer's configured address, used by the Listener
// to route an inbound connection before the OPEN exchange reveals the
// peer's BGP Identifier.
func (p *Peer) Address() net.IP { return p.props.PeerAddr }

// Deliver hands Peer a newly accepted or dialed socket as a
// TcpConnectionConfirmed event, applying RFC 4271 §6.8 collision
// resolution if one is already active.
func (p *Peer) Deliver(conn net.Conn) {
	p.inbox <- input{event: EventTcpConnectionConfirmed, conn: conn}
}

// DeliverMessage feeds a decoded inbound BGP message to the FSM.
func (p *Peer) DeliverMessage(msg bgp.Message) {
	event := EventUpdateMsg
	switch msg.MessageType() {
	case bgp.MessageTypeOpen:
		event = EventBGPOpen
	case bgp.MessageTypeKeepAlive:
		event = EventKeepaliveMsg
	case bgp.MessageTypeNotification:
		event = EventNotifMsg
	case bgp.MessageTypeUpdate:
		event = EventUpdateMsg
	case bgp.MessageTypeRouteRefresh:
		event = EventUpdateMsg
	}
	p.inbox <- input{event: event, msg: msg}
}

// DeliverDecodeError feeds a framing/parse failure observed on the
// wire to the FSM, classified per RFC 4271 §6.
func (p *Peer) DeliverDecodeError(err *wire.DecodeError) {
	event := EventBGPOpenMsgErr
	if err.Kind == wire.ErrMessageHeader || err.Kind == wire.ErrTruncated {
		event = EventBGPHeaderErr
	}
	p.inbox <- input{event: event, decErr: err}
}

// ConnectionFailed reports that the active socket's read or write
// loop ended in error or EOF.
func (p *Peer) ConnectionFailed() { p.inbox <- input{event: EventTcpConnectionFails} }

// Start begins an active session attempt (ManualStart). Passive peers
// should call this too; PassiveTcpEstablishment only controls whether
// the FSM loop dials out while in Connect/Active.
func (p *Peer) Start() { p.inbox <- input{event: EventManualStart} }

// Stop gracefully tears the session down (ManualStop); idempotent.
func (p *Peer) Stop() { p.inbox <- input{event: EventManualStop} }

// Run drives the FSM loop until ctx is cancelled. It is the only
// goroutine that mutates FSM state, satisfying the single-writer rule
// from the concurrency model.
func (p *Peer) Run(ctx context.Context) {
	p.connectRetryTimer = newStoppedTimer()
	p.holdTimer = newStoppedTimer()
	p.keepaliveTimer = newStoppedTimer()
	defer p.connectRetryTimer.Stop()
	defer p.holdTimer.Stop()
	defer p.keepaliveTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.applyTransition(EventManualStop, input{event: EventManualStop})
			return
		case in := <-p.inbox:
			p.handleInput(in)
			if p.State() == StateIdle && in.event == EventManualStop {
				return
			}
		case <-p.connectRetryTimer.C:
			p.handleInput(input{event: EventConnectRetryTimerExpires})
		case <-p.holdTimer.C:
			p.handleInput(input{event: EventHoldTimerExpires})
		case <-p.keepaliveTimer.C:
			p.handleInput(input{event: EventKeepaliveTimerExpires})
		}
	}
}

func (p *Peer) handleInput(in input) {
	if in.event == EventTcpConnectionConfirmed {
		p.mu.Lock()
		hasActive := p.conn != nil
		p.mu.Unlock()
		if hasActive {
			p.resolveCollision(in.conn)
			return
		}
		p.mu.Lock()
		p.conn = in.conn
		p.mu.Unlock()
	}
	p.applyTransition(in.event, in)
}

// resolveCollision implements RFC 4271 §6.8: the connection whose
// local BGP Identifier is numerically greater survives.
func (p *Peer) resolveCollision(newConn net.Conn) {
	if p.props.LocalBGPID > p.props.PeerBGPID {
		p.logger.Info("collision resolution: keeping existing connection", zap.Uint32("peer_bgp_id", p.props.PeerBGPID))
		sendNotificationOn(newConn, bgp.ErrCodeCease)
		_ = newConn.Close()
		return
	}
	p.logger.Info("collision resolution: replacing existing connection", zap.Uint32("peer_bgp_id", p.props.PeerBGPID))
	p.mu.Lock()
	old := p.conn
	p.conn = newConn
	p.mu.Unlock()
	if old != nil {
		sendNotificationOn(old, bgp.ErrCodeCease)
		_ = old.Close()
	}
	p.emit(OutputEvent{Terminated: &SessionTerminated{PeerBGPID: p.props.PeerBGPID, Reason: ReasonCollisionLost}})
}

func (p *Peer) applyTransition(event Event, in input) {
	from := p.State()
	t, ok := Lookup(from, event)
	if !ok {
		p.logger.Debug("event ignored in state", zap.Stringer("state", from), zap.Stringer("event", event))
		return
	}

	p.runActions(t.Actions, in)

	p.mu.Lock()
	p.state = t.NextState
	p.mu.Unlock()

	if t.NextState == StateEstablished && from != StateEstablished {
		p.emit(OutputEvent{Established: &SessionEstablished{PeerBGPID: p.props.PeerBGPID, Capabilities: p.negotiatedCaps}})
	}
}

func (p *Peer) runActions(actions Action, in input) {
	if actions&ActionStopConnectRetryTimer != 0 {
		p.connectRetryTimer.Stop()
	}
	if actions&ActionStartConnectRetryTimer != 0 {
		p.connectRetryCount++
		resetTimer(p.connectRetryTimer, p.cfg.ConnectRetryTime)
	}
	if actions&ActionStopTimers != 0 {
		p.connectRetryTimer.Stop()
		p.holdTimer.Stop()
		p.keepaliveTimer.Stop()
	}
	if actions&ActionStartHoldTimer != 0 {
		p.startHoldAndKeepaliveTimers(in)
	}
	if actions&ActionInitiateConnect != 0 {
		p.maybeDial()
	}
	if actions&ActionSendOpen != 0 {
		p.sendOpen()
	}
	if actions&ActionSendKeepalive != 0 {
		p.sendKeepalive()
	}
	if actions&ActionSendNotification != 0 {
		p.sendNotification(in)
	}
	if actions&ActionCloseConnection != 0 {
		p.closeConnection()
	}
	if actions&ActionEmitTerminated != 0 {
		p.emitTerminated(in)
	}
}

func (p *Peer) startHoldAndKeepaliveTimers(in input) {
	if open, ok := in.msg.(bgp.OpenMessage); ok {
		hold := NegotiateHoldTime(p.cfg.HoldTime, open.HoldTime)
		p.asn4 = open.SupportsASN4()
		p.negotiatedCaps = NegotiateCapabilities(p.cfg.LocalCapabilities, open.Capabilities, p.cfg.EchoCapabilities)
		if hold == 0 {
			p.holdTimer.Stop()
			p.keepaliveTimer.Stop()
			return
		}
		resetTimer(p.holdTimer, hold)
		resetTimer(p.keepaliveTimer, hold/3)
		return
	}
	resetTimer(p.holdTimer, p.cfg.HoldTime)
	if p.cfg.HoldTime > 0 {
		resetTimer(p.keepaliveTimer, p.cfg.KeepaliveTime)
	}
}

func (p *Peer) maybeDial() {
	if p.props.PassiveTcpEstablishment {
		return
	}
	go func() {
		addr := net.JoinHostPort(p.props.PeerAddr.String(), strconv.Itoa(p.props.PeerPort))
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			p.logger.Debug("outbound dial failed", zap.String("addr", addr), zap.Error(err))
			p.ConnectionFailed()
			return
		}
		p.Deliver(conn)
	}()
}

func (p *Peer) sendOpen() {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	open := bgp.OpenMessage{
		Version:       4,
		MyASN:         asn16(p.props.LocalASN),
		HoldTime:      uint16(p.cfg.HoldTime / time.Second),
		BGPIdentifier: p.props.LocalBGPID,
		Capabilities:  p.cfg.LocalCapabilities,
	}
	buf, err := bgp.Encode(open, bgp.EncodeContext{})
	if err != nil {
		p.logger.Error("failed to encode OPEN", zap.Error(err))
		return
	}
	if _, err := conn.Write(buf); err != nil {
		p.logger.Warn("failed to write OPEN", zap.Error(err))
		p.ConnectionFailed()
	}
}

func (p *Peer) sendKeepalive() {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	buf, err := bgp.Encode(bgp.KeepAliveMessage{}, bgp.EncodeContext{})
	if err != nil {
		return
	}
	if _, err := conn.Write(buf); err != nil {
		p.logger.Warn("failed to write KEEPALIVE", zap.Error(err))
		p.ConnectionFailed()
	}
}

func (p *Peer) sendNotification(in input) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	code := bgp.ErrCodeFSM
	if in.decErr != nil && in.decErr.Kind == wire.ErrMessageHeader {
		code = bgp.ErrCodeMessageHeader
	}
	sendNotificationOn(conn, code)
}

// sendNotificationOn encodes and writes a NOTIFICATION with the given
// error code directly to conn, independent of which connection p
// currently considers its live one. Used by sendNotification for
// p.conn and by collision resolution for the losing connection,
// which is either the new one (never made p.conn) or the old one
// being replaced.
func sendNotificationOn(conn net.Conn, code bgp.NotificationErrorCode) {
	notif := bgp.NotificationMessage{ErrorCode: code}
	buf, err := bgp.Encode(notif, bgp.EncodeContext{})
	if err != nil {
		return
	}
	_, _ = conn.Write(buf)
}

func (p *Peer) closeConnection() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (p *Peer) emitTerminated(in input) {
	reason := ReasonTcpFailure
	switch in.event {
	case EventManualStop:
		reason = ReasonManualStop
	case EventNotifMsg:
		reason = ReasonNotificationReceived
	case EventUpdateMsgErr, EventHoldTimerExpires:
		reason = ReasonNotificationSent
	}
	var notif *bgp.NotificationMessage
	if n, ok := in.msg.(bgp.NotificationMessage); ok {
		notif = &n
	}
	p.emit(OutputEvent{Terminated: &SessionTerminated{PeerBGPID: p.props.PeerBGPID, Reason: reason, Notification: notif}})
}

func (p *Peer) emit(ev OutputEvent) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("peer event channel full, blocking", zap.Uint32("peer_bgp_id", p.props.PeerBGPID))
		p.events <- ev
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d <= 0 {
		return
	}
	t.Reset(d)
}

func asn16(a bgp.ASN) uint16 {
	if a > 0xFFFF {
		return 23456 // AS_TRANS, RFC 6793 §4.2.4
	}
	return uint16(a)
}
