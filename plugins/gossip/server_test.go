package gossip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerAcceptClosesNonTCPConnections(t *testing.T) {
	s := NewServer(nil, ":0", nil)

	client, remote := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		s.accept(remote)
		close(done)
	}()

	// a pipe connection's RemoteAddr is not a *net.TCPAddr, so accept must
	// close it without ever dereferencing the nil handshaker.
	<-done

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	assert.Error(t, err)
}

func TestServerDialReportsUnresolvableAddress(t *testing.T) {
	s := NewServer(nil, ":0", nil)

	assert.NotPanics(t, func() {
		s.dial("not a valid address")
	})
}
