package gossip

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

// ErrInvalidHeartbeat is returned when a heartbeat payload is malformed.
var ErrInvalidHeartbeat = errors.New("gossip: invalid heartbeat payload")

// heartbeatLength is the fixed wire length of MessageTypeHeartbeat's payload.
const heartbeatLength = 4 + 4 + 4 + 1 + 1

// EncodeHeartbeat serializes a heartbeat (spec.md §6, §4.13).
func EncodeHeartbeat(h peer.Heartbeat) []byte {
	buf := make([]byte, heartbeatLength)
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.SolidMilestoneIndex))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.PrunedIndex))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.LatestMilestoneIndex))
	buf[12] = h.ConnectedPeers
	buf[13] = h.SyncedPeers
	return buf
}

// DecodeHeartbeat parses a heartbeat payload.
func DecodeHeartbeat(data []byte) (peer.Heartbeat, error) {
	if len(data) != heartbeatLength {
		return peer.Heartbeat{}, errors.Wrap(ErrInvalidHeartbeat, "unexpected length")
	}
	return peer.Heartbeat{
		SolidMilestoneIndex:  milestone.Index(binary.BigEndian.Uint32(data[0:4])),
		PrunedIndex:          milestone.Index(binary.BigEndian.Uint32(data[4:8])),
		LatestMilestoneIndex: milestone.Index(binary.BigEndian.Uint32(data[8:12])),
		ConnectedPeers:       data[12],
		SyncedPeers:          data[13],
	}, nil
}
