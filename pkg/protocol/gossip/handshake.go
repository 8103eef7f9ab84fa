package gossip

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidHandshake is returned when a handshake payload is malformed.
var ErrInvalidHandshake = errors.New("gossip: invalid handshake payload")

// Handshake is the payload of MessageTypeHandshake: listen port, sender
// timestamp, coordinator public-key hash, minimum weight magnitude and the
// set of supported protocol versions (spec.md §6, §4.10).
type Handshake struct {
	Port                  uint16
	Timestamp             time.Time
	CoordinatorPubKeyHash [HashLength]byte
	MWM                   uint8
	SupportedVersions     []byte // bit-set, variable length
}

// SupportsVersion reports whether version v (1-indexed, matching bit v-1)
// is set in the handshake's supported-versions bit-set.
func (h Handshake) SupportsVersion(v uint8) bool {
	byteIdx := int(v-1) / 8
	bitIdx := uint((v - 1) % 8)
	if byteIdx >= len(h.SupportedVersions) {
		return false
	}
	return h.SupportedVersions[byteIdx]&(1<<bitIdx) != 0
}

// SharesVersionWith reports whether h and other have at least one
// supported version in common (spec.md §4.10).
func (h Handshake) SharesVersionWith(other Handshake) bool {
	n := len(h.SupportedVersions)
	if len(other.SupportedVersions) < n {
		n = len(other.SupportedVersions)
	}
	for i := 0; i < n; i++ {
		if h.SupportedVersions[i]&other.SupportedVersions[i] != 0 {
			return true
		}
	}
	return false
}

// EncodeHandshake serializes h into its wire payload.
func EncodeHandshake(h Handshake) []byte {
	buf := make([]byte, 2+8+HashLength+1+len(h.SupportedVersions))
	binary.BigEndian.PutUint16(buf[0:2], h.Port)
	binary.BigEndian.PutUint64(buf[2:10], uint64(h.Timestamp.Unix()))
	copy(buf[10:10+HashLength], h.CoordinatorPubKeyHash[:])
	buf[10+HashLength] = h.MWM
	copy(buf[11+HashLength:], h.SupportedVersions)
	return buf
}

// DecodeHandshake parses a handshake payload.
func DecodeHandshake(data []byte) (Handshake, error) {
	const fixedLen = 2 + 8 + HashLength + 1
	if len(data) < fixedLen {
		return Handshake{}, errors.Wrap(ErrInvalidHandshake, "too short")
	}

	var h Handshake
	h.Port = binary.BigEndian.Uint16(data[0:2])
	h.Timestamp = time.Unix(int64(binary.BigEndian.Uint64(data[2:10])), 0)
	copy(h.CoordinatorPubKeyHash[:], data[10:10+HashLength])
	h.MWM = data[10+HashLength]
	if rest := data[fixedLen:]; len(rest) > 0 {
		h.SupportedVersions = append([]byte(nil), rest...)
	}
	return h, nil
}
