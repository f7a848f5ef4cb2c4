package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
)

func TestAddressRoundTrip(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	addr := NewAddress(AssetPrefix, payload)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AssetPrefix)+"1") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != AssetPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), payload) {
		t.Fatalf("payload mismatch: %x", decoded.Bytes())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestDecodeRejectsWrongPayloadLength(t *testing.T) {
	// A well-formed bech32 string carrying a short payload must error, not
	// panic, since it arrives from untrusted request fields.
	short := make([]byte, 10)
	conv, err := bech32.ConvertBits(short, 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	encoded, err := bech32.Encode(string(AccountPrefix), conv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeAddress(encoded); err == nil {
		t.Fatal("expected short payload to be rejected")
	}
}

func TestNewAddressLengthCheck(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for short payload")
		}
	}()
	NewAddress(AccountPrefix, []byte{1, 2, 3})
}

func TestIsZeroAndEqual(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatal("empty address should be zero")
	}
	if !NewAddress(AccountPrefix, make([]byte, 20)).IsZero() {
		t.Fatal("all-zero payload should be zero")
	}

	payload := make([]byte, 20)
	payload[19] = 1
	a := NewAddress(AccountPrefix, payload)
	b := NewAddress(AssetPrefix, append([]byte(nil), payload...))
	if a.IsZero() {
		t.Fatal("nonzero payload reported zero")
	}
	// Prefix only affects rendering; identity is the payload.
	if !a.Equal(b) {
		t.Fatal("same payload should compare equal across prefixes")
	}
}

func TestKeyDerivedAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix: %s", addr.Prefix())
	}
	if addr.IsZero() {
		t.Fatal("derived address should not be zero")
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.PubKey().Address().Equal(addr) {
		t.Fatal("restored key derives a different address")
	}
}
