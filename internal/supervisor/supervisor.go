// Package supervisor owns the set of BGP peer FSMs and the TCP
// listener that accepts inbound sessions and routes them to the
// correct peer.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/peer"
	"github.com/netgauze-go/netgauze/internal/wire"
)

// Supervisor owns a peer_bgp_id -> *peer.Peer map. It performs no BGP
// logic itself, only routing and lifecycle, per the spec's division of
// responsibility between the FSM and its owner.
type Supervisor struct {
	logger *zap.Logger

	mu    sync.RWMutex
	peers map[uint32]*peer.Peer

	group  *errgroup.Group
	gctx   context.Context
}

// New constructs an empty Supervisor bound to ctx: peer tasks spawned
// via AddPeer are tracked by an errgroup derived from ctx, so Wait
// returns the first peer task's terminal error (if any) and cancelling
// ctx tears every peer down.
func New(ctx context.Context, logger *zap.Logger) *Supervisor {
	g, gctx := errgroup.WithContext(ctx)
	return &Supervisor{
		logger: logger,
		peers:  make(map[uint32]*peer.Peer),
		group:  g,
		gctx:   gctx,
	}
}

// AddPeer registers p and starts its FSM loop as a tracked task. It is
// an error to add a peer whose BGPID collides with one already
// registered, since peer identity must be unique within one
// supervisor.
func (s *Supervisor) AddPeer(p *peer.Peer) error {
	s.mu.Lock()
	if _, exists := s.peers[p.BGPID()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: peer with BGP ID %d already registered", p.BGPID())
	}
	s.peers[p.BGPID()] = p
	s.mu.Unlock()

	s.group.Go(func() error {
		p.Run(s.gctx)
		return nil
	})
	return nil
}

// RemovePeer stops and unregisters the peer identified by bgpID, if any.
func (s *Supervisor) RemovePeer(bgpID uint32) {
	s.mu.Lock()
	p, ok := s.peers[bgpID]
	delete(s.peers, bgpID)
	s.mu.Unlock()
	if ok {
		p.Stop()
	}
}

// PeerHandler returns the peer registered under bgpID, if any.
func (s *Supervisor) PeerHandler(bgpID uint32) (*peer.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[bgpID]
	return p, ok
}

// Peers returns a snapshot of every registered peer, used by the
// health/readiness HTTP surface to report per-peer session state.
func (s *Supervisor) Peers() []*peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*peer.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// PeerByAddress finds a registered peer whose configured address
// matches addr, used by the Listener to route an inbound connection
// by source IP rather than by BGP Identifier (which isn't known until
// after the OPEN exchange).
func (s *Supervisor) PeerByAddress(addr net.IP) (*peer.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.peers {
		if p.Address().Equal(addr) {
			return p, true
		}
	}
	return nil, false
}

// Wait blocks until every peer task has returned, propagating the
// first non-nil error (peer tasks themselves return nil on graceful
// stop; a non-nil error here indicates a bug in a peer's Run loop
// rather than a normal session termination, which surfaces instead as
// a SessionTerminated event on that peer's Events channel).
func (s *Supervisor) Wait() error { return s.group.Wait() }

// Shutdown stops every registered peer and waits for their tasks to
// finish.
func (s *Supervisor) Shutdown() error {
	s.mu.RLock()
	peers := make([]*peer.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		p.Stop()
	}
	return s.Wait()
}

// DecodeFrame decodes exactly one BGP message from buf and returns any
// failure as a *wire.DecodeError (a failure of another type is
// reported as ErrMessageHeader), the form Peer.DeliverDecodeError
// takes; that method maps it to BGPHeaderErr or BGPOpenMsgErr. No
// other code in this module calls DecodeFrame.
func DecodeFrame(buf []byte, ctx bgp.DecodeContext) ([]byte, bgp.Message, *wire.DecodeError) {
	tail, msg, err := bgp.Decode(buf, ctx)
	if err == nil {
		return tail, msg, nil
	}
	decErr, ok := err.(*wire.DecodeError)
	if !ok {
		decErr = wire.NewDecodeError(0, wire.ErrMessageHeader, "%v", err)
	}
	return buf, nil, decErr
}
