package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

func TestHandshakeRoundTrip(t *testing.T) {
	h := Handshake{
		Port:              15600,
		Timestamp:         time.Unix(1_700_000_000, 0),
		MWM:               14,
		SupportedVersions: []byte{0b0000_0011},
	}
	copy(h.CoordinatorPubKeyHash[:], []byte("COORDINATORHASHCOORDINATORHASHCOORDINATORHASH49"))

	decoded, err := DecodeHandshake(EncodeHandshake(h))
	require.NoError(t, err)

	assert.Equal(t, h.Port, decoded.Port)
	assert.Equal(t, h.Timestamp.Unix(), decoded.Timestamp.Unix())
	assert.Equal(t, h.MWM, decoded.MWM)
	assert.Equal(t, h.CoordinatorPubKeyHash, decoded.CoordinatorPubKeyHash)
	assert.Equal(t, h.SupportedVersions, decoded.SupportedVersions)
}

func TestSharesVersionWith(t *testing.T) {
	a := Handshake{SupportedVersions: []byte{0b0000_0001}} // version 1
	b := Handshake{SupportedVersions: []byte{0b0000_0011}} // versions 1,2
	c := Handshake{SupportedVersions: []byte{0b0000_0010}} // version 2

	assert.True(t, a.SharesVersionWith(b))
	assert.False(t, a.SharesVersionWith(c))
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := peer.Heartbeat{
		SolidMilestoneIndex:  100,
		PrunedIndex:          10,
		LatestMilestoneIndex: 110,
		ConnectedPeers:       4,
		SyncedPeers:          3,
	}

	decoded, err := DecodeHeartbeat(EncodeHeartbeat(hb))
	require.NoError(t, err)
	assert.Equal(t, hb, decoded)
}

func TestMilestoneRequestRoundTrip(t *testing.T) {
	decoded, err := DecodeMilestoneRequest(EncodeMilestoneRequest(milestone.Index(4242)))
	require.NoError(t, err)
	assert.Equal(t, milestone.Index(4242), decoded)
}

func TestTransactionRequestRejectsWrongLength(t *testing.T) {
	_, err := DecodeTransactionRequest(make([]byte, HashLength-1))
	assert.Error(t, err)
}
