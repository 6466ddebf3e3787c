// Package gossip defines the block-announcement message a committed
// block is published as. It is deliberately thin: a typed commit
// event, not a peer-to-peer transport (P2P consensus is out of this
// core's scope).
package gossip

import (
	"github.com/fxamacker/cbor/v2"
)

// MessageType identifies the kind of gossip message.
type MessageType uint8

const (
	MsgTypeBlockAnnounce MessageType = 1
)

// BlockAnnounce is broadcast once a block has been committed.
type BlockAnnounce struct {
	Type        MessageType `cbor:"1,keyasint"`
	BlockID     uint64      `cbor:"2,keyasint"`
	BlockHash   string      `cbor:"3,keyasint"`
	HeaderBytes []byte      `cbor:"4,keyasint"`
}

// Encode serializes a BlockAnnounce to CBOR.
func Encode(msg BlockAnnounce) ([]byte, error) {
	return cbor.Marshal(msg)
}

// Decode parses a CBOR-encoded BlockAnnounce.
func Decode(data []byte) (*BlockAnnounce, error) {
	var msg BlockAnnounce
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Broadcaster publishes a BlockAnnounce to whatever transport the
// deployment wires in. The chain core only depends on this narrow
// interface, never on a concrete transport.
type Broadcaster interface {
	Announce(msg BlockAnnounce) error
}
