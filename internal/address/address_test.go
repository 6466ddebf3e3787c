package address

import (
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/codec"
)

func samplePubKey(t *testing.T) *secp256k1.PublicKey {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	return priv.PubKey()
}

func TestFromPublicKey_RoundTripsThroughToPublicKey(t *testing.T) {
	pub := samplePubKey(t)
	addr := FromPublicKey(pub)

	got, err := ToPublicKey(addr)
	if err != nil {
		t.Fatalf("ToPublicKey: %v", err)
	}
	if !got.IsEqual(pub) {
		t.Errorf("recovered public key does not match original")
	}
}

func TestDecode_V2RawCompressedBytes(t *testing.T) {
	pub := samplePubKey(t)
	raw := pub.SerializeCompressed()

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := FromPublicKey(pub); got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecode_V1RawUncompressedBytesMinusPrefix(t *testing.T) {
	pub := samplePubKey(t)
	raw := pub.SerializeUncompressed()[1:]
	if len(raw) != legacyUncompressedLength {
		t.Fatalf("test fixture has length %d, want %d", len(raw), legacyUncompressedLength)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := FromPublicKey(pub); got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecode_RejectsWrongRawLength(t *testing.T) {
	if _, err := Decode([]byte("not the right length")); err == nil {
		t.Fatal("expected rejection of a raw payload that is neither 33 nor 64 bytes")
	}
}

func TestValidate_StripsWhitespace(t *testing.T) {
	pub := samplePubKey(t)
	addr := FromPublicKey(pub)

	got, err := Validate("  " + strings.ToUpper(addr) + "  ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != addr {
		t.Errorf("Validate() = %q, want %q", got, addr)
	}
}

func TestValidate_RejectsWrongLength(t *testing.T) {
	if _, err := Validate("deadbeef"); err == nil {
		t.Fatal("expected rejection of a too-short address")
	}
}

func TestValidate_RejectsNonHex(t *testing.T) {
	if _, err := Validate("not-hex-at-all-zzzz"); err == nil {
		t.Fatal("expected rejection of non-hex input")
	}
}

func TestValidate_RejectsInvalidCurvePoint(t *testing.T) {
	zeros := strings.Repeat("00", CompressedLength)
	if _, err := Validate(zeros); err == nil {
		t.Fatal("expected rejection of a non-curve-point byte string")
	}
}

func TestDecode_RoundTripsThroughHeaderCodec(t *testing.T) {
	pub := samplePubKey(t)
	want := FromPublicKey(pub)

	for _, h := range []*chaintypes.Header{
		{MinerAddress: pub.SerializeCompressed()},
		{MinerAddress: pub.SerializeUncompressed()[1:]},
	} {
		data, err := codec.SerializeHeader(h)
		if err != nil {
			t.Fatalf("SerializeHeader: %v", err)
		}
		parsed, err := codec.DeserializeHeader(data)
		if err != nil {
			t.Fatalf("DeserializeHeader: %v", err)
		}
		got, err := Decode(parsed.MinerAddress)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != want {
			t.Errorf("Decode(round-tripped header) = %q, want %q", got, want)
		}
	}
}
