package spake2p

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/backkem/matter-switch/pkg/crypto/p256"
)

// Vector from RFC 9383 Appendix C (P256-SHA256-HKDF-SHA256-HMAC-SHA256).
// The points and Hash(TT) = Ka || Ke are taken from the RFC. KcA, KcB and
// the confirmation MACs follow the Matter key schedule, which expands the
// 16-byte Ka instead of the full K_main.
var rfc9383 = struct {
	w0, w1, L, x, y, X, Y, Z, V, ke, cA, cB string
}{
	w0: "bb8e1bbcf3c48f62c08db243652ae55d3e5586053fca77102994f23ad95491b3",
	w1: "7e945f34d78785b8a3ef44d0df5a1a97d6b3b460409a345ca7830387a74b1dba",
	L:  "04eb7c9db3d9a9eb1f8adab81b5794c1f13ae3e225efbe91ea487425854c7fc00f00bfedcbd09b2400142d40a14f2064ef31dfaa903b91d1faea7093d835966efd",
	x:  "d1232c8e8693d02368976c174e2088851b8365d0d79a9eee709c6a05a2fad539",
	y:  "717a72348a182085109c8d3917d6c43d59b224dc6a7fc4f0483232fa6516d8b3",
	X:  "04ef3bd051bf78a2234ec0df197f7828060fe9856503579bb1733009042c15c0c1de127727f418b5966afadfdd95a6e4591d171056b333dab97a79c7193e341727",
	Y:  "04c0f65da0d11927bdf5d560c69e1d7d939a05b0e88291887d679fcadea75810fb5cc1ca7494db39e82ff2f50665255d76173e09986ab46742c798a9a68437b048",
	Z:  "04bbfce7dd7f277819c8da21544afb7964705569bdf12fb92aa388059408d50091a0c5f1d3127f56813b5337f9e4e67e2ca633117a4fbd559946ab474356c41839",
	V:  "0458bf27c6bca011c9ce1930e8984a797a3419797b936629a5a937cf2f11c8b9514b82b993da8a46e664f23db7c01edc87faa530db01c2ee405230b18997f16b68",
	ke: "89b56cd11542f53d3576fb6c2a438a29",
	cA: "b6b09119a2f04b889532bec49c599330f5aa8c1f8a8553cc96ef9e2c3f2aa735",
	cB: "5d98987a90a83f91aead1a4e207e0adb5626102ff035a70c221078cbe3f1dcab",
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestKnownAnswerVector(t *testing.T) {
	v := rfc9383
	backends := []struct {
		name string
		new  func(x, y []byte) (pb, vb p256.Backend)
	}{
		{"software", func(x, y []byte) (p256.Backend, p256.Backend) {
			return p256.NewSoftware(bytes.NewReader(x)), p256.NewSoftware(bytes.NewReader(y))
		}},
		{"constant_time", func(x, y []byte) (p256.Backend, p256.Backend) {
			return p256.NewConstantTime(bytes.NewReader(x)), p256.NewConstantTime(bytes.NewReader(y))
		}},
	}

	for _, tc := range backends {
		t.Run(tc.name, func(t *testing.T) {
			pb, vb := tc.new(unhex(t, v.x), unhex(t, v.y))
			prover := New(Config{Suite: Suite{Backend: pb}})
			verifier := New(Config{Suite: Suite{Backend: vb}})
			for _, c := range []*Context{prover, verifier} {
				if err := c.Init(testContext); err != nil {
					t.Fatalf("Init failed: %v", err)
				}
			}
			if err := prover.BeginProver(testProverID, testVerifyID, unhex(t, v.w0), unhex(t, v.w1)); err != nil {
				t.Fatalf("BeginProver failed: %v", err)
			}
			if err := verifier.BeginVerifier(testProverID, testVerifyID, unhex(t, v.w0), unhex(t, v.L)); err != nil {
				t.Fatalf("BeginVerifier failed: %v", err)
			}

			X, err := prover.ComputeRoundOne()
			if err != nil {
				t.Fatalf("prover round one: %v", err)
			}
			if got := hex.EncodeToString(X); got != v.X {
				t.Errorf("X = %s\nwant %s", got, v.X)
			}
			Y, err := verifier.ComputeRoundOne()
			if err != nil {
				t.Fatalf("verifier round one: %v", err)
			}
			if got := hex.EncodeToString(Y); got != v.Y {
				t.Errorf("Y = %s\nwant %s", got, v.Y)
			}

			cB, err := verifier.ComputeRoundTwo(X)
			if err != nil {
				t.Fatalf("verifier round two: %v", err)
			}
			cA, err := prover.ComputeRoundTwo(Y)
			if err != nil {
				t.Fatalf("prover round two: %v", err)
			}
			for _, c := range []*Context{prover, verifier} {
				if got := hex.EncodeToString(c.z.Bytes()); got != v.Z {
					t.Errorf("%s Z = %s\nwant %s", c.role, got, v.Z)
				}
				if got := hex.EncodeToString(c.v.Bytes()); got != v.V {
					t.Errorf("%s V = %s\nwant %s", c.role, got, v.V)
				}
			}
			if got := hex.EncodeToString(cA); got != v.cA {
				t.Errorf("cA = %s\nwant %s", got, v.cA)
			}
			if got := hex.EncodeToString(cB); got != v.cB {
				t.Errorf("cB = %s\nwant %s", got, v.cB)
			}

			if err := prover.KeyConfirm(cB); err != nil {
				t.Fatalf("prover KeyConfirm: %v", err)
			}
			if err := verifier.KeyConfirm(cA); err != nil {
				t.Fatalf("verifier KeyConfirm: %v", err)
			}
			for _, c := range []*Context{prover, verifier} {
				ke, err := c.Keys()
				if err != nil {
					t.Fatalf("%s Keys: %v", c.role, err)
				}
				if got := hex.EncodeToString(ke); got != v.ke {
					t.Errorf("%s Ke = %s\nwant %s", c.role, got, v.ke)
				}
			}
		})
	}
}
