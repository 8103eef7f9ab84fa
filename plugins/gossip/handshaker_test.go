package gossip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/events"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/gossip"
	"github.com/trinarytangle/tanglenode/pkg/protocol/tlv"
)

func newTestHandshaker(coordinatorHash [gossip.HashLength]byte) *Handshaker {
	return &Handshaker{
		cfg: Config{
			ListenPort:            15600,
			CoordinatorPubKeyHash: coordinatorHash,
			MWM:                   14,
			SupportedVersions:     []byte{1},
			HandshakeWindow:       time.Minute,
		},
	}
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	remote := gossip.Handshake{
		Timestamp:             time.Now().Add(-time.Hour),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
	}

	err := h.validate(remote, &net.TCPAddr{Port: 15600}, peer.Inbound)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestValidateRejectsCoordinatorMismatch(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	var otherHash [gossip.HashLength]byte
	otherHash[0] = 1
	remote := gossip.Handshake{
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: otherHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
	}

	err := h.validate(remote, &net.TCPAddr{Port: 15600}, peer.Inbound)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestValidateRejectsMWMMismatch(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	remote := gossip.Handshake{
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   15,
		SupportedVersions:     []byte{1},
	}

	err := h.validate(remote, &net.TCPAddr{Port: 15600}, peer.Inbound)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestValidateRejectsNoSharedVersion(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	remote := gossip.Handshake{
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{2},
	}

	err := h.validate(remote, &net.TCPAddr{Port: 15600}, peer.Inbound)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestValidateRejectsOutboundPortMismatch(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	remote := gossip.Handshake{
		Port:                  15601,
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
	}

	err := h.validate(remote, &net.TCPAddr{Port: 15600}, peer.Outbound)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestValidateAcceptsWellFormedInboundHandshake(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	h := newTestHandshaker(coordHash)
	remote := gossip.Handshake{
		Port:                  15601,
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
	}

	// validate() only checks the announced port for outbound connections,
	// since it dialled that port itself; for inbound, HandleConnection binds
	// the dedup/registration address to the announced port separately (see
	// TestHandleConnectionDedupsInboundByAnnouncedPort below) rather than
	// comparing it here against the ephemeral source port.
	err := h.validate(remote, &net.TCPAddr{Port: 53021}, peer.Inbound)
	assert.NoError(t, err)
}

// driveRemoteHandshake plays the remote side of one connection: it reads the
// node's own handshake (discarding it) then sends back a well-formed
// handshake announcing announcedPort.
func driveRemoteHandshake(t *testing.T, conn net.Conn, coordHash [gossip.HashLength]byte, announcedPort uint16) {
	t.Helper()
	if _, _, err := tlv.ReadMessage(conn); err != nil {
		t.Fatalf("reading own handshake: %v", err)
	}
	remote := gossip.Handshake{
		Port:                  announcedPort,
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
	}
	frame, err := tlv.Encode(byte(gossip.MessageTypeHandshake), gossip.EncodeHandshake(remote))
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

// TestHandleConnectionDedupsInboundByAnnouncedPort exercises the spec.md
// §4.10/§3 invariant end-to-end: two inbound connections from the same IP
// announcing the same listen port must be recognized as the same peer even
// though their resolved sockets (ephemeral source ports) differ. This is the
// behavior TestValidateAcceptsWellFormedInboundHandshake cannot cover, since
// validate() itself never binds the registration address.
func TestHandleConnectionDedupsInboundByAnnouncedPort(t *testing.T) {
	var coordHash [gossip.HashLength]byte
	manager := peering.New()
	h := New(Config{
		ListenPort:            15600,
		CoordinatorPubKeyHash: coordHash,
		MWM:                   14,
		SupportedVersions:     []byte{1},
		HandshakeWindow:       time.Minute,
	}, manager, metrics.NewServerMetrics(), nil, nil, nil, func() peer.Heartbeat { return peer.Heartbeat{} })

	promoted := make(chan struct{}, 1)
	manager.Events.PeerHandshaked.Attach(events.NewClosure(func(*peer.Peer) {
		promoted <- struct{}{}
	}))

	serverConn1, clientConn1 := net.Pipe()
	t.Cleanup(func() { serverConn1.Close(); clientConn1.Close() })

	done1 := make(chan error, 1)
	go func() {
		addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53021}
		done1 <- h.HandleConnection(serverConn1, "peerA:53021", addr, peer.Inbound)
	}()
	driveRemoteHandshake(t, clientConn1, coordHash, 15601)

	select {
	case <-promoted:
	case <-time.After(time.Second):
		t.Fatal("first connection was never promoted")
	}

	serverConn2, clientConn2 := net.Pipe()
	t.Cleanup(func() { serverConn2.Close(); clientConn2.Close() })

	done2 := make(chan error, 1)
	go func() {
		addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53099}
		done2 <- h.HandleConnection(serverConn2, "peerA:53099", addr, peer.Inbound)
	}()
	driveRemoteHandshake(t, clientConn2, coordHash, 15601)

	select {
	case err := <-done2:
		assert.ErrorIs(t, err, ErrDuplicatePeer)
	case <-time.After(time.Second):
		t.Fatal("second connection was never rejected as a duplicate")
	}

	clientConn1.Close()
	serverConn1.Close()
	select {
	case <-done1:
	case <-time.After(time.Second):
		t.Fatal("first connection never returned")
	}
}

func TestDecompressHashPadsShortTrytes(t *testing.T) {
	out := decompressHash([]byte("ABC"))
	assert.Len(t, out, 81)
	assert.Equal(t, "ABC", string(out[:3]))
	assert.Equal(t, "999", string(out[78:81]))
}

func TestDecompressHashTruncatesLongTrytes(t *testing.T) {
	full := make([]byte, 90)
	for i := range full {
		full[i] = 'A'
	}
	out := decompressHash(full)
	assert.Len(t, out, 81)
}
