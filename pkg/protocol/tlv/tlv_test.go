package tlv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello tangle")
	buf, err := Encode(0x04, payload)
	require.NoError(t, err)

	hdr, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), hdr.MessageType)
	assert.Equal(t, uint16(len(payload)), hdr.Length)
	assert.Equal(t, payload, buf[HeaderLength:])
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(0x01, make([]byte, MaxPayloadLength+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestParseHeaderRejectsShortInput(t *testing.T) {
	_, err := ParseHeader([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestReadMessageFramesStream(t *testing.T) {
	msg1, _ := Encode(0x05, []byte("abc"))
	msg2, _ := Encode(0x06, []byte("defgh"))

	r := bytes.NewReader(append(msg1, msg2...))

	h1, p1, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, byte(0x05), h1.MessageType)
	assert.Equal(t, []byte("abc"), p1)

	h2, p2, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, byte(0x06), h2.MessageType)
	assert.Equal(t, []byte("defgh"), p2)

	_, _, err = ReadMessage(r)
	assert.Error(t, err)
}
