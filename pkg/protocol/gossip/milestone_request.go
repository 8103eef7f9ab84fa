package gossip

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// ErrInvalidMilestoneRequest is returned when a milestone-request payload is malformed.
var ErrInvalidMilestoneRequest = errors.New("gossip: invalid milestone-request payload")

// LatestMilestoneRequestIndex is a sentinel index meaning "send me the
// latest milestone you know", rather than a specific historical index.
const LatestMilestoneRequestIndex milestone.Index = 0

// EncodeMilestoneRequest serializes a milestone-index request.
func EncodeMilestoneRequest(index milestone.Index) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(index))
	return buf
}

// DecodeMilestoneRequest parses a milestone-request payload.
func DecodeMilestoneRequest(data []byte) (milestone.Index, error) {
	if len(data) != 4 {
		return 0, errors.Wrap(ErrInvalidMilestoneRequest, "unexpected length")
	}
	return milestone.Index(binary.BigEndian.Uint32(data)), nil
}
