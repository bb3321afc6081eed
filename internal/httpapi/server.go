// Package httpapi exposes the collector daemon's health, readiness
// and Prometheus metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/netgauze-go/netgauze/internal/peer"
)

// PeerLister abstracts the supervisor's peer registry for testability.
type PeerLister interface {
	Peers() []*peer.Peer
}

// FlowStatus abstracts the flow collector's readiness for testability.
type FlowStatus interface {
	Listening() bool
}

type Server struct {
	srv        *http.Server
	peers      PeerLister
	flowStatus FlowStatus
	logger     *zap.Logger
}

func NewServer(addr string, peers PeerLister, flowStatus FlowStatus, logger *zap.Logger) *Server {
	s := &Server{
		peers:      peers,
		flowStatus: flowStatus,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReadyz reports not_ready unless the flow collector is bound and
// every registered peer is currently Established; any peer in another
// state (including one whose session has since dropped) is reported
// by BGP ID with its state name so an operator can tell which neighbor
// is the holdout.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.flowStatus != nil && s.flowStatus.Listening() {
		checks["flow"] = "ok"
	} else {
		checks["flow"] = "not_listening"
		allOK = false
	}

	if s.peers != nil {
		for _, p := range s.peers.Peers() {
			key := "peer_" + strconv.FormatUint(uint64(p.BGPID()), 10)
			if p.State() == peer.StateEstablished {
				checks[key] = "established"
			} else {
				checks[key] = p.State().String()
				allOK = false
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
