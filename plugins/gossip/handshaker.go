// Package gossip runs the per-connection Handshaker/Peer Worker state
// machine (spec.md §4.10) and the message-handler loop that feeds every
// other worker in the pipeline. Grounded on the handshake field set
// described in original_source `bee-protocol/src/worker/peer/handshaker.rs`
// and realized in the teacher's goroutine-per-connection idiom.
package gossip

import (
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/gossip"
	"github.com/trinarytangle/tanglenode/pkg/protocol/hasher"
	"github.com/trinarytangle/tanglenode/pkg/protocol/responder"
	"github.com/trinarytangle/tanglenode/pkg/protocol/sender"
	"github.com/trinarytangle/tanglenode/pkg/protocol/tlv"
)

var log = logger.NewLogger("Gossip")

// ErrDuplicatePeer is returned when a handshaked peer already exists for
// the connection's resolved address.
var ErrDuplicatePeer = errors.New("gossip: duplicate peer")

// ErrHandshakeRejected is returned when the remote handshake fails any of
// the validation checks of spec.md §4.10.
var ErrHandshakeRejected = errors.New("gossip: handshake rejected")

const senderQueueCapacity = 64

// Config carries the local node's own handshake fields and window.
type Config struct {
	ListenPort            uint16
	CoordinatorPubKeyHash [gossip.HashLength]byte
	MWM                   uint8
	SupportedVersions     []byte
	HandshakeWindow       time.Duration
}

// Handshaker drives the per-connection state machine and, once Done, the
// message-handler loop.
type Handshaker struct {
	cfg     Config
	manager *peering.Manager
	metrics *metrics.ServerMetrics

	hasher       *hasher.Hasher
	txResponder  *responder.TransactionResponder
	msResponder  *responder.MilestoneResponder
	heartbeatNow func() peer.Heartbeat
}

// New creates a Handshaker bound to the node's peer manager and the
// downstream workers the message loop dispatches into.
func New(cfg Config, manager *peering.Manager, m *metrics.ServerMetrics, h *hasher.Hasher, txResponder *responder.TransactionResponder, msResponder *responder.MilestoneResponder, heartbeatNow func() peer.Heartbeat) *Handshaker {
	return &Handshaker{
		cfg:          cfg,
		manager:      manager,
		metrics:      m,
		hasher:       h,
		txResponder:  txResponder,
		msResponder:  msResponder,
		heartbeatNow: heartbeatNow,
	}
}

// tlvEndpoint adapts a net.Conn plus a fixed message type to sender.Endpoint:
// every payload handed to a sender.Queue is TLV-framed under that type
// before being written to the wire.
type tlvEndpoint struct {
	conn        net.Conn
	messageType gossip.Type
}

func (e tlvEndpoint) Send(payload []byte) error {
	frame, err := tlv.Encode(byte(e.messageType), payload)
	if err != nil {
		return err
	}
	_, err = e.conn.Write(frame)
	return err
}

// HandleConnection runs the handshake then, on success, the message loop,
// blocking until the connection closes or is rejected. id is the stable
// endpoint id (e.g. "host:port") used for peer-manager bookkeeping.
func (h *Handshaker) HandleConnection(conn net.Conn, id string, addr *net.TCPAddr, origin peer.Origin) error {
	defer conn.Close()

	own := gossip.Handshake{
		Port:                  h.cfg.ListenPort,
		Timestamp:             time.Now(),
		CoordinatorPubKeyHash: h.cfg.CoordinatorPubKeyHash,
		MWM:                   h.cfg.MWM,
		SupportedVersions:     h.cfg.SupportedVersions,
	}
	if err := (tlvEndpoint{conn: conn, messageType: gossip.MessageTypeHandshake}).Send(gossip.EncodeHandshake(own)); err != nil {
		return errors.Wrap(err, "sending own handshake")
	}

	hdr, payload, err := tlv.ReadMessage(conn)
	if err != nil {
		return errors.Wrap(err, "reading peer handshake")
	}
	if gossip.Type(hdr.MessageType) != gossip.MessageTypeHandshake {
		return errors.Wrap(ErrHandshakeRejected, "expected handshake as first message")
	}
	remote, err := gossip.DecodeHandshake(payload)
	if err != nil {
		return errors.Wrap(ErrHandshakeRejected, err.Error())
	}

	if err := h.validate(remote, addr, origin); err != nil {
		return err
	}

	// Inbound connections arrive from an ephemeral source port, not the
	// peer's listening port, so the dedup/registration address has to be
	// rebuilt from the handshake's announced port before it can identify
	// the peer (spec.md §4.10); outbound connections already dialled that
	// port, so addr is already correct.
	registeredAddr := addr
	if origin == peer.Inbound {
		registeredAddr = &net.TCPAddr{IP: addr.IP, Port: int(remote.Port)}
	}

	if h.manager.HasActivePeerForAddress(registeredAddr.String()) {
		return ErrDuplicatePeer
	}

	p := peer.New(id, registeredAddr, origin)
	h.spawnSenders(p, conn)
	h.manager.Add(p)
	if !h.manager.Promote(p) {
		p.Shutdown()
		return ErrDuplicatePeer
	}
	defer h.manager.Remove(id)

	p.EnqueueForSending(peer.SenderHeartbeat, gossip.EncodeHeartbeat(h.heartbeatNow()))
	// Ask the freshly handshaked peer for its latest milestone directly,
	// bypassing the shared priority queue: this request targets this one
	// peer, not whichever peer the requester would otherwise pick.
	p.EnqueueForSending(peer.SenderMilestoneRequest, gossip.EncodeMilestoneRequest(gossip.LatestMilestoneRequestIndex))

	log.Infof("peer handshaked: %s", id)
	return h.messageLoop(conn, p)
}

// validate checks the handshake fields spec.md §4.10 requires before a
// connection may be promoted.
func (h *Handshaker) validate(remote gossip.Handshake, addr *net.TCPAddr, origin peer.Origin) error {
	if skew := time.Since(remote.Timestamp); skew > h.cfg.HandshakeWindow || skew < -h.cfg.HandshakeWindow {
		return errors.Wrap(ErrHandshakeRejected, "handshake timestamp outside window")
	}
	if remote.CoordinatorPubKeyHash != h.cfg.CoordinatorPubKeyHash {
		return errors.Wrap(ErrHandshakeRejected, "coordinator public key mismatch")
	}
	if remote.MWM != h.cfg.MWM {
		return errors.Wrap(ErrHandshakeRejected, "minimum weight magnitude mismatch")
	}
	own := gossip.Handshake{SupportedVersions: h.cfg.SupportedVersions}
	if !own.SharesVersionWith(remote) {
		return errors.Wrap(ErrHandshakeRejected, "no shared protocol version")
	}
	if origin == peer.Outbound && remote.Port != uint16(addr.Port) {
		return errors.Wrap(ErrHandshakeRejected, "announced port does not match dialled port")
	}
	return nil
}

func (h *Handshaker) spawnSenders(p *peer.Peer, conn net.Conn) {
	kinds := []struct {
		kind peer.SenderKind
		typ  gossip.Type
	}{
		{peer.SenderMilestoneRequest, gossip.MessageTypeMilestoneRequest},
		{peer.SenderTransactionBroadcast, gossip.MessageTypeTransactionBroadcast},
		{peer.SenderTransactionRequest, gossip.MessageTypeTransactionRequest},
		{peer.SenderHeartbeat, gossip.MessageTypeHeartbeat},
	}
	for _, k := range kinds {
		endpoint := tlvEndpoint{conn: conn, messageType: k.typ}
		p.SetSender(k.kind, sender.New(p.ID, senderQueueCapacity, endpoint))
	}
}

// decompressHash restores a compressed (trailing-9s-trimmed) transaction
// hash to its full 81-tryte form, the hash-sized counterpart of
// pkg/model/tangle.Decompress.
func decompressHash(compressed []byte) trinary.Hash {
	trytes := string(compressed)
	if len(trytes) >= 81 {
		return trinary.Hash(trytes[:81])
	}
	return trinary.Hash(trytes + strings.Repeat("9", 81-len(trytes)))
}

// messageLoop reads TLV-framed messages off conn until it errors or closes,
// dispatching each to the worker responsible for its message type.
func (h *Handshaker) messageLoop(conn net.Conn, p *peer.Peer) error {
	for {
		hdr, payload, err := tlv.ReadMessage(conn)
		if err != nil {
			return err
		}

		switch gossip.Type(hdr.MessageType) {
		case gossip.MessageTypeTransactionBroadcast:
			h.hasher.Submit(hasher.Incoming{Origin: p, RawData: gossip.DecodeTransactionBroadcast(payload)})
		case gossip.MessageTypeTransactionRequest:
			compressed, err := gossip.DecodeTransactionRequest(payload)
			if err != nil {
				h.metrics.InvalidRequests.Inc()
				continue
			}
			h.txResponder.Respond(responder.TransactionRequest{
				Request: responder.Request{Peer: p},
				Hash:    decompressHash(compressed),
			})
		case gossip.MessageTypeMilestoneRequest:
			index, err := gossip.DecodeMilestoneRequest(payload)
			if err != nil {
				h.metrics.InvalidRequests.Inc()
				continue
			}
			h.msResponder.Respond(responder.MilestoneRequest{
				Request: responder.Request{Peer: p},
				Index:   index,
			})
		case gossip.MessageTypeHeartbeat:
			hb, err := gossip.DecodeHeartbeat(payload)
			if err != nil {
				h.metrics.InvalidMessages.Inc()
				continue
			}
			p.SetHeartbeat(hb)
		default:
			h.metrics.InvalidMessages.Inc()
		}
	}
}
