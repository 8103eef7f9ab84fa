// Package gossip defines the wire payloads of the core message types
// (spec.md §6) and their encode/decode functions. Framing is handled by
// pkg/protocol/tlv; this package deals only with payload bytes.
package gossip

// Type identifies one of the core gossip message kinds by its TLV
// message-type byte.
type Type byte

const (
	MessageTypeHandshake            Type = 0x01
	// 0x02 is reserved (spec.md §6 table) and currently unused: milestone
	// responses are gossiped as MessageTypeTransactionBroadcast, one per
	// transaction in the milestone bundle, not as a distinct message kind.
	MessageTypeMilestoneRequest     Type = 0x03
	MessageTypeTransactionBroadcast Type = 0x04
	MessageTypeTransactionRequest   Type = 0x05
	MessageTypeHeartbeat            Type = 0x06
)

// HashLength is the wire length of a compressed transaction hash or
// coordinator public-key hash (49 bytes, spec.md §6).
const HashLength = 49
