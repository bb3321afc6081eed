package peer

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/bgp"
)

// runBGPSpeaker is a minimal test double for the far end of a peer
// session: it sends OPEN+KEEPALIVE once it reads our OPEN, enough to
// drive the FSM from OpenSent through to Established.
func runBGPSpeaker(t *testing.T, conn net.Conn, remoteASN uint16, remoteBGPID uint32, asn4 bool) {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Logf("speaker: read our OPEN failed: %v", err)
		return
	}
	_, msg, err := bgp.Decode(buf[:n], bgp.DecodeContext{})
	if err != nil {
		t.Logf("speaker: decode failed: %v", err)
		return
	}
	if msg.MessageType() != bgp.MessageTypeOpen {
		t.Logf("speaker: expected OPEN, got %s", msg.MessageType())
		return
	}

	var caps []bgp.Capability
	if asn4 {
		caps = append(caps, bgp.FourOctetASN{ASN: bgp.ASN(remoteASN)})
	}
	open := bgp.OpenMessage{Version: 4, MyASN: remoteASN, HoldTime: 90, BGPIdentifier: remoteBGPID, Capabilities: caps}
	openBuf, err := bgp.Encode(open, bgp.EncodeContext{})
	if err != nil {
		t.Fatalf("speaker: encode open: %v", err)
	}
	if _, err := conn.Write(openBuf); err != nil {
		return
	}

	ka, _ := bgp.Encode(bgp.KeepAliveMessage{}, bgp.EncodeContext{})
	conn.Write(ka)
	// Read the KEEPALIVE the FSM sends on entering OpenConfirm: a
	// net.Pipe write blocks until the far end reads it.
	conn.Read(buf)
}

// feedConnection is the FSM loop's read-side collaborator in
// production; tests drive it directly to avoid depending on the
// supervisor/listener plumbing.
func feedConnection(p *Peer, conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			p.ConnectionFailed()
			return
		}
		rest := buf[:n]
		for len(rest) > 0 {
			tail, msg, err := bgp.Decode(rest, bgp.DecodeContext{ASN4: p.asn4})
			if err != nil {
				return
			}
			p.DeliverMessage(msg)
			rest = tail
		}
	}
}

func TestSessionEstablishesAndReportsASN4(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	props := Properties{LocalASN: 65001, PeerASN: 65002, LocalBGPID: 0xC0000201, PeerBGPID: 0xC0000202, PassiveTcpEstablishment: true}
	cfg := DefaultConfig()
	cfg.LocalCapabilities = []bgp.Capability{bgp.FourOctetASN{ASN: 65001}}

	p := New(props, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go p.Run(ctx)
	go runBGPSpeaker(t, serverConn, 65002, 0xC0000202, true)
	go feedConnection(p, clientConn)

	p.Start()
	p.Deliver(clientConn)

	select {
	case ev := <-p.Events():
		if ev.Established == nil {
			t.Fatalf("expected Established event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session establishment")
	}

	if !p.asn4 {
		t.Fatal("expected asn4 to be negotiated true")
	}
}

// readNotification reads one message off conn and fails the test
// unless it is a NOTIFICATION with the given error code.
func readNotification(t *testing.T, conn net.Conn, wantCode bgp.NotificationErrorCode) {
	t.Helper()
	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reading notification: %v", err)
	}
	_, msg, err := bgp.Decode(buf[:n], bgp.DecodeContext{})
	if err != nil {
		t.Fatalf("decoding notification: %v", err)
	}
	notif, ok := msg.(bgp.NotificationMessage)
	if !ok {
		t.Fatalf("expected NOTIFICATION, got %s", msg.MessageType())
	}
	if notif.ErrorCode != wantCode {
		t.Fatalf("expected error code %v, got %v", wantCode, notif.ErrorCode)
	}
}

// establishSession drives a Peer to Established over conn/peerConn and
// returns once it sees the Established event.
func establishSession(t *testing.T, p *Peer, conn, peerConn net.Conn, remoteASN uint16, remoteBGPID uint32) {
	t.Helper()
	go runBGPSpeaker(t, peerConn, remoteASN, remoteBGPID, false)
	go feedConnection(p, conn)

	p.Start()
	p.Deliver(conn)

	select {
	case ev := <-p.Events():
		if ev.Established == nil {
			t.Fatalf("expected Established event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session establishment")
	}
}

// TestCollisionResolutionKeepsExistingSendsCease covers RFC 4271 §6.8's
// "keep the existing connection" branch: the losing (new) connection
// must receive NOTIFICATION(Cease) before it is closed.
func TestCollisionResolutionKeepsExistingSendsCease(t *testing.T) {
	conn1, peerConn1 := net.Pipe()
	defer conn1.Close()
	defer peerConn1.Close()

	props := Properties{LocalASN: 65001, PeerASN: 65002, LocalBGPID: 0xC0000299, PeerBGPID: 0xC0000202, PassiveTcpEstablishment: true}
	p := New(props, DefaultConfig(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go p.Run(ctx)

	establishSession(t, p, conn1, peerConn1, 65002, 0xC0000202)

	conn2, peerConn2 := net.Pipe()
	defer conn2.Close()
	defer peerConn2.Close()

	done := make(chan struct{})
	go func() {
		readNotification(t, peerConn2, bgp.ErrCodeCease)
		close(done)
	}()

	p.Deliver(conn2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NOTIFICATION(Cease) on the losing connection")
	}
}

// TestCollisionResolutionReplacesExistingSendsCease covers the
// "replace the existing connection" branch: the previously-established
// connection must receive NOTIFICATION(Cease) before it is closed, and
// a SessionTerminated(ReasonCollisionLost) event follows.
func TestCollisionResolutionReplacesExistingSendsCease(t *testing.T) {
	conn1, peerConn1 := net.Pipe()
	defer conn1.Close()
	defer peerConn1.Close()

	props := Properties{LocalASN: 65001, PeerASN: 65002, LocalBGPID: 0xC0000201, PeerBGPID: 0xC0000299, PassiveTcpEstablishment: true}
	p := New(props, DefaultConfig(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go p.Run(ctx)

	establishSession(t, p, conn1, peerConn1, 65002, 0xC0000299)

	done := make(chan struct{})
	go func() {
		readNotification(t, peerConn1, bgp.ErrCodeCease)
		close(done)
	}()

	conn2, peerConn2 := net.Pipe()
	defer conn2.Close()
	defer peerConn2.Close()
	p.Deliver(conn2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NOTIFICATION(Cease) on the replaced connection")
	}

	select {
	case ev := <-p.Events():
		if ev.Terminated == nil || ev.Terminated.Reason != ReasonCollisionLost {
			t.Fatalf("expected SessionTerminated(ReasonCollisionLost), got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SessionTerminated event")
	}
}
