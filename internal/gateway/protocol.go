package gateway

import (
	"encoding/json"

	"github.com/roach88/flint/internal/spec"
)

// ProtocolVersion is carried in the HELLO message sent on connect.
const ProtocolVersion = "1"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeRequest = "REQUEST"
	TypeUpdate  = "UPDATE"
	TypeAck     = "ACK"
)

// Request ops.
const (
	OpFreeze   = "freeze"
	OpUnfreeze = "unfreeze"
	OpStep     = "step"
	OpSetBlock = "set_block"
	OpFill     = "fill"
	OpSync     = "sync"
)

// Message is the single wire envelope. Type selects which fields are set:
//
//	HELLO   server -> client on connect: ProtocolVersion, Tick
//	REQUEST client -> server: ID, Op and the op's arguments
//	UPDATE  server -> client: Tick, Updates
//	ACK     server -> client: ID, Tick, and Kind/Error on failure
//
// The server sends every UPDATE caused by a request before that request's
// ACK.
type Message struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version,omitempty"`
	ID              uint64        `json:"id,omitempty"`
	Op              string        `json:"op,omitempty"`
	Pos             *spec.Pos     `json:"pos,omitempty"`
	Region          *spec.Region  `json:"region,omitempty"`
	Block           string        `json:"block,omitempty"`
	N               int           `json:"n,omitempty"`
	Tick            int64         `json:"tick"`
	Updates         []BlockUpdate `json:"updates,omitempty"`
	Kind            ErrorKind     `json:"kind,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// BlockUpdate reports the current block at one position. Block is the
// canonical block state string; air means the position was cleared.
type BlockUpdate struct {
	Pos   spec.Pos `json:"pos"`
	Block string   `json:"block"`
}

// DecodeMessage parses one wire message.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}
