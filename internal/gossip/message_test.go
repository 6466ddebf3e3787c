package gossip

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := BlockAnnounce{
		Type:        MsgTypeBlockAnnounce,
		BlockID:     42,
		BlockHash:   "deadbeef",
		HeaderBytes: []byte{1, 2, 3},
	}
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != msg.Type || got.BlockID != msg.BlockID || got.BlockHash != msg.BlockHash || !bytes.Equal(got.HeaderBytes, msg.HeaderBytes) {
		t.Errorf("got = %+v, want %+v", *got, msg)
	}
}
