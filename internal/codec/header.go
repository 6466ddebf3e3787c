// Package codec implements the bit-exact block header wire format: two
// header versions distinguished by address length, all multi-byte
// integers little-endian.
package codec

import (
	"encoding/binary"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
)

// SerializeHeader emits the wire form of h. The version is chosen by
// the length of h.MinerAddress: 33 bytes selects v2 (one-byte 0x02
// prefix), 64 bytes selects v1 (no prefix). Any other length is a
// BadAddressLength error.
func SerializeHeader(h *chaintypes.Header) ([]byte, error) {
	addrLen := len(h.MinerAddress)
	var version chaintypes.HeaderVersion
	switch addrLen {
	case 64:
		version = chaintypes.HeaderVersion1
	case 33:
		version = chaintypes.HeaderVersion2
	default:
		return nil, chainerrors.New(chainerrors.CodeBadAddressLength,
			"miner address must be 33 or 64 bytes")
	}

	size := 32 + addrLen + 32 + 4 + 2 + 4
	if version == chaintypes.HeaderVersion2 {
		size++
	}
	buf := make([]byte, size)
	offset := 0
	if version == chaintypes.HeaderVersion2 {
		buf[0] = byte(chaintypes.HeaderVersion2)
		offset = 1
	}
	offset += copy(buf[offset:], h.PreviousHash[:])
	offset += copy(buf[offset:], h.MinerAddress)
	offset += copy(buf[offset:], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[offset:], h.Timestamp)
	offset += 4
	binary.LittleEndian.PutUint16(buf[offset:], h.DifficultyRaw)
	offset += 2
	binary.LittleEndian.PutUint32(buf[offset:], h.Nonce)

	return buf, nil
}

// DeserializeHeader parses the wire form produced by SerializeHeader.
// A 138-byte payload is always v1. Any other length must begin with a
// single 0x02 byte and be exactly 108 bytes, else the shape is
// rejected outright.
func DeserializeHeader(data []byte) (*chaintypes.Header, error) {
	switch len(data) {
	case chaintypes.SerializedSizeV1:
		return deserializeBody(data, chaintypes.HeaderVersion1, 64)
	case chaintypes.SerializedSizeV2:
		if len(data) < 1 {
			return nil, chainerrors.New(chainerrors.CodeBadHeaderShape, "empty header")
		}
		if data[0] != byte(chaintypes.HeaderVersion2) {
			return nil, chainerrors.New(chainerrors.CodeUnsupportedVersion,
				"expected version byte 2")
		}
		return deserializeBody(data[1:], chaintypes.HeaderVersion2, 33)
	default:
		return nil, chainerrors.New(chainerrors.CodeBadHeaderShape,
			"header length must be 138 (v1) or 108 (v2)")
	}
}

func deserializeBody(body []byte, version chaintypes.HeaderVersion, addrLen int) (*chaintypes.Header, error) {
	expected := 32 + addrLen + 32 + 4 + 2 + 4
	if len(body) != expected {
		return nil, chainerrors.New(chainerrors.CodeBadHeaderShape, "truncated header body")
	}

	h := &chaintypes.Header{Version: version}
	offset := 0
	copy(h.PreviousHash[:], body[offset:offset+32])
	offset += 32
	h.MinerAddress = append([]byte(nil), body[offset:offset+addrLen]...)
	offset += addrLen
	copy(h.MerkleRoot[:], body[offset:offset+32])
	offset += 32
	h.Timestamp = binary.LittleEndian.Uint32(body[offset:])
	offset += 4
	h.DifficultyRaw = binary.LittleEndian.Uint16(body[offset:])
	offset += 2
	h.Nonce = binary.LittleEndian.Uint32(body[offset:])

	return h, nil
}
