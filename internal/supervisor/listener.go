package supervisor

import (
	"context"
	"net"

	"go.uber.org/zap"
)

// Listener binds one or more local addresses and routes inbound TCP
// connections to the matching registered peer by source IP. A
// connection from an address with no registered peer is closed
// immediately unless AcceptUnconfigured is set, in which case
// OnUnconfigured decides what to do with it (e.g. create a passive
// peer on demand).
type Listener struct {
	supervisor         *Supervisor
	logger             *zap.Logger
	AcceptUnconfigured bool
	OnUnconfigured     func(conn net.Conn, remote net.IP)

	listeners []net.Listener
}

// NewListener returns a Listener bound to supervisor.
func NewListener(s *Supervisor, logger *zap.Logger) *Listener {
	return &Listener{supervisor: s, logger: logger}
}

// Serve binds addrs (host:port strings, v4 or v6) and accepts
// connections until ctx is cancelled. Each address runs its own accept
// loop as a tracked supervisor task.
func (l *Listener) Serve(ctx context.Context, addrs []string) error {
	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			l.closeAll()
			return err
		}
		l.listeners = append(l.listeners, ln)
		bound := ln
		l.supervisor.group.Go(func() error {
			return l.acceptLoop(ctx, bound)
		})
	}

	go func() {
		<-ctx.Done()
		l.closeAll()
	}()
	return nil
}

func (l *Listener) closeAll() {
	for _, ln := range l.listeners {
		_ = ln.Close()
	}
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				l.logger.Warn("accept failed", zap.Error(err))
				return nil
			}
		}
		l.route(conn)
	}
}

func (l *Listener) route(conn net.Conn) {
	remoteAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		conn.Close()
		return
	}
	remote := remoteAddr.IP

	p, ok := l.supervisor.PeerByAddress(remote)
	if !ok {
		if l.AcceptUnconfigured && l.OnUnconfigured != nil {
			l.OnUnconfigured(conn, remote)
			return
		}
		l.logger.Info("closing connection from unconfigured peer", zap.String("remote", remote.String()))
		conn.Close()
		return
	}
	p.Deliver(conn)
}
