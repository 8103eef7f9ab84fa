// Package tlv implements the gossip wire framing: a 3-byte header
// {message-type:u8, length:u16-be} followed by length bytes of payload
// (spec.md §6). A bespoke 3-byte header has no ecosystem framing library
// that fits (length-prefixed framing libraries target 4+ byte headers or
// impose their own message-type conventions); it is implemented directly
// on encoding/binary, which is the stdlib-justification entry for this
// part in DESIGN.md.
package tlv

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderLength is the fixed TLV header size in bytes.
const HeaderLength = 3

// MaxPayloadLength is the largest payload representable by the u16-be
// length field.
const MaxPayloadLength = 1<<16 - 1

var (
	// ErrPayloadTooLarge is returned by Encode when payload exceeds MaxPayloadLength.
	ErrPayloadTooLarge = errors.New("tlv: payload exceeds maximum length")
	// ErrShortHeader is returned by ParseHeader when fewer than HeaderLength bytes are given.
	ErrShortHeader = errors.New("tlv: short header")
)

// Header is the decoded {message-type, length} pair.
type Header struct {
	MessageType byte
	Length      uint16
}

// Encode serializes messageType and payload into a single TLV-framed buffer.
func Encode(messageType byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLength+len(payload))
	buf[0] = messageType
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[3:], payload)
	return buf, nil
}

// ParseHeader decodes the fixed-size header from the front of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderLength {
		return Header{}, ErrShortHeader
	}
	return Header{
		MessageType: data[0],
		Length:      binary.BigEndian.Uint16(data[1:3]),
	}, nil
}

// ReadMessage reads one TLV-framed message from r: the header, then exactly
// Length payload bytes.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, nil, errors.Wrap(err, "tlv: reading header")
	}
	h, err := ParseHeader(hdr[:])
	if err != nil {
		return Header{}, nil, err
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, errors.Wrap(err, "tlv: reading payload")
		}
	}
	return h, payload, nil
}
