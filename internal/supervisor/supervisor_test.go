package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/peer"
)

func testPeer(bgpID uint32, addr string) *peer.Peer {
	return peer.New(
		peer.Properties{PeerBGPID: bgpID, PeerAddr: net.ParseIP(addr), PassiveTcpEstablishment: true},
		peer.DefaultConfig(),
		zap.NewNop(),
	)
}

func TestAddPeerRejectsDuplicateBGPID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, zap.NewNop())

	if err := s.AddPeer(testPeer(1, "192.0.2.1")); err != nil {
		t.Fatalf("unexpected error adding first peer: %v", err)
	}
	if err := s.AddPeer(testPeer(1, "192.0.2.2")); err == nil {
		t.Fatal("expected error adding a peer with a duplicate BGP ID")
	}
}

func TestPeerByAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, zap.NewNop())
	_ = s.AddPeer(testPeer(1, "192.0.2.1"))

	p, ok := s.PeerByAddress(net.ParseIP("192.0.2.1"))
	if !ok || p.BGPID() != 1 {
		t.Fatalf("expected to find peer 1, got %+v ok=%v", p, ok)
	}
	if _, ok := s.PeerByAddress(net.ParseIP("192.0.2.99")); ok {
		t.Fatal("expected no peer for an unregistered address")
	}
}

func TestShutdownStopsAllPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, zap.NewNop())
	_ = s.AddPeer(testPeer(1, "192.0.2.1"))
	_ = s.AddPeer(testPeer(2, "192.0.2.2"))

	done := make(chan error, 1)
	go func() { done <- s.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Shutdown")
	}
}
