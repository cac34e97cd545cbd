// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecdh

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// Tests that both sides of an exchange agree on every curve.
func TestAgreement(t *testing.T) {
	for _, curve := range []Curve{P256, P384, P521, X25519, X448} {
		alice, err := GenerateKey(curve)
		if err != nil {
			t.Fatalf("%v: failed to generate key: %v", curve, err)
		}
		bob, err := GenerateKey(curve)
		if err != nil {
			t.Fatalf("%v: failed to generate key: %v", curve, err)
		}
		ab, err := alice.ECDH(bob.PublicKey())
		if err != nil {
			t.Fatalf("%v: alice failed to agree: %v", curve, err)
		}
		ba, err := bob.ECDH(alice.PublicKey())
		if err != nil {
			t.Fatalf("%v: bob failed to agree: %v", curve, err)
		}
		if !bytes.Equal(ab, ba) || len(ab) != curve.Size() {
			t.Errorf("%v: shared secret mismatch: %x vs %x", curve, ab, ba)
		}
	}
}

// Tests that raw scalar and point encodings round trip, including the affine
// coordinate form of the NIST curves.
func TestRawCodec(t *testing.T) {
	for _, curve := range []Curve{P256, P384, P521, X25519, X448} {
		secret, _ := GenerateKey(curve)

		parsed, err := ParseSecretKey(curve, secret.Marshal())
		if err != nil {
			t.Fatalf("%v: failed to parse scalar: %v", curve, err)
		}
		if !bytes.Equal(parsed.PublicKey().Marshal(), secret.PublicKey().Marshal()) {
			t.Errorf("%v: public key mismatch after scalar roundtrip", curve)
		}
		if curve.Montgomery() {
			continue
		}
		x, y, err := secret.PublicKey().Coordinates()
		if err != nil {
			t.Fatalf("%v: failed to get coordinates: %v", curve, err)
		}
		public, err := ParsePublicKeyCoordinates(curve, x, y)
		if err != nil {
			t.Fatalf("%v: failed to parse coordinates: %v", curve, err)
		}
		if !bytes.Equal(public.Marshal(), secret.PublicKey().Marshal()) {
			t.Errorf("%v: public key mismatch after coordinate roundtrip", curve)
		}
		y[len(y)-1] ^= 0x01
		if _, err := ParsePublicKeyCoordinates(curve, x, y); err == nil {
			t.Errorf("%v: off-curve point accepted", curve)
		}
	}
}

// Tests the X25519 function against RFC 7748 Section 6.1.
func TestRFC7748Vector(t *testing.T) {
	a, _ := hex.DecodeString("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	bpub, _ := hex.DecodeString("de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f")
	want, _ := hex.DecodeString("4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742")

	alice, err := ParseSecretKey(X25519, a)
	if err != nil {
		t.Fatalf("failed to parse scalar: %v", err)
	}
	bob, err := ParsePublicKey(X25519, bpub)
	if err != nil {
		t.Fatalf("failed to parse public key: %v", err)
	}
	shared, err := alice.ECDH(bob)
	if err != nil {
		t.Fatalf("failed to agree: %v", err)
	}
	if !bytes.Equal(shared, want) {
		t.Fatalf("shared secret mismatch: have %x, want %x", shared, want)
	}
}

// Tests that the OKP curves round trip through PEM, and that mixing curves is
// rejected.
func TestPEMCodecAndMismatch(t *testing.T) {
	for _, curve := range []Curve{X25519, X448} {
		secret, _ := GenerateKey(curve)
		enc, err := secret.MarshalPEM()
		if err != nil {
			t.Fatalf("%v: failed to encode: %v", curve, err)
		}
		parsed, err := ParseSecretKeyPEM(enc)
		if err != nil {
			t.Fatalf("%v: failed to parse: %v", curve, err)
		}
		if !bytes.Equal(parsed.Marshal(), secret.Marshal()) {
			t.Errorf("%v: scalar mismatch after PEM roundtrip", curve)
		}
		pubEnc, _ := secret.PublicKey().MarshalPEM()
		public, err := ParsePublicKeyPEM(pubEnc)
		if err != nil {
			t.Fatalf("%v: failed to parse public: %v", curve, err)
		}
		if !bytes.Equal(public.Marshal(), secret.PublicKey().Marshal()) {
			t.Errorf("%v: public mismatch after PEM roundtrip", curve)
		}
	}
	a, _ := GenerateKey(P256)
	b, _ := GenerateKey(X25519)
	if _, err := a.ECDH(b.PublicKey()); err == nil {
		t.Fatal("cross-curve agreement accepted")
	}
	if _, err := a.MarshalDER(); err == nil {
		t.Fatal("NIST key encoded as OKP")
	}
}
