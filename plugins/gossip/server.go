package gossip

import (
	"net"

	"github.com/iotaledger/hive.go/logger"

	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

var serverLog = logger.NewLogger("GossipServer")

// Server owns the gossip TCP listener and the set of configured bootstrap
// peers to dial, handing every accepted or dialled connection to a
// Handshaker (spec.md §4.10).
type Server struct {
	handshaker *Handshaker
	listenAddr string
	bootstrap  []string

	listener net.Listener
}

// NewServer creates a Server bound to listenAddr (e.g. ":15600") and the
// configured bootstrap peer addresses to dial on startup.
func NewServer(h *Handshaker, listenAddr string, bootstrap []string) *Server {
	return &Server{handshaker: h, listenAddr: listenAddr, bootstrap: bootstrap}
}

// Run listens, dials the bootstrap peers, and blocks accepting inbound
// connections until shutdownSignal fires.
func (s *Server) Run(shutdownSignal <-chan struct{}) {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		serverLog.Panicf("listening on %s: %v", s.listenAddr, err)
	}
	s.listener = ln

	go func() {
		<-shutdownSignal
		s.listener.Close()
	}()

	for _, addr := range s.bootstrap {
		go s.dial(addr)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.accept(conn)
	}
}

func (s *Server) accept(conn net.Conn) {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		conn.Close()
		return
	}
	if err := s.handshaker.HandleConnection(conn, tcpAddr.String(), tcpAddr, peer.Inbound); err != nil {
		serverLog.Infof("inbound connection from %s rejected: %v", tcpAddr, err)
	}
}

func (s *Server) dial(addr string) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		serverLog.Warnf("resolving bootstrap peer %s: %v", addr, err)
		return
	}
	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		serverLog.Warnf("dialling bootstrap peer %s: %v", addr, err)
		return
	}
	if err := s.handshaker.HandleConnection(conn, tcpAddr.String(), tcpAddr, peer.Outbound); err != nil {
		serverLog.Infof("outbound connection to %s rejected: %v", addr, err)
	}
}
