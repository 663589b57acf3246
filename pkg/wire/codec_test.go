package wire

import (
	"bytes"
	"errors"
	"testing"
)

type sample struct {
	ID    uint16 `cbor:"1,keyasint"`
	Name  string `cbor:"2,keyasint"`
	Bytes []byte `cbor:"3,keyasint"`
}

func TestEnvelope(t *testing.T) {
	in := sample{ID: 7, Name: "light", Bytes: []byte{1, 2, 3}}
	data, err := Encode(0x20, &in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Opcode != 0x20 {
		t.Errorf("Opcode = 0x%02x, want 0x20", env.Opcode)
	}

	var out sample
	if err := Expect(data, 0x20, &out); err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if out.ID != in.ID || out.Name != in.Name || !bytes.Equal(out.Bytes, in.Bytes) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestExpectWrongOpcode(t *testing.T) {
	data, err := Encode(0x21, &sample{ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	var out sample
	if err := Expect(data, 0x22, &out); !errors.Is(err, ErrUnexpectedOpcode) {
		t.Fatalf("expected ErrUnexpectedOpcode, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestEmptyBody(t *testing.T) {
	data, err := Encode(0x01, nil)
	if err != nil {
		t.Fatal(err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	var out sample
	if err := env.DecodeBody(&out); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestDeterministicEncoding(t *testing.T) {
	m := map[uint16]string{3: "c", 1: "a", 2: "b"}
	a, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b, err := Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Fatal("map encoding is not deterministic")
		}
	}
}
