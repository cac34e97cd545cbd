// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eddsa

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// Tests signing and verifying messages. Note, this test is not meant to test
// cryptography, it is mostly an API sanity check to verify that everything
// seems to work.
func TestSignVerify(t *testing.T) {
	secret := GenerateKey()
	public := secret.PublicKey()

	message := []byte("message to authenticate")
	signature := secret.Sign(message)

	if err := public.Verify(message, signature); err != nil {
		t.Fatalf("failed to verify message: %v", err)
	}
	// Verify wrong message fails
	if err := public.Verify([]byte("wrong message"), signature); err == nil {
		t.Fatal("expected verification to fail for wrong message")
	}
}

// Tests against the first test vector of RFC 8032 Section 7.1.
func TestRFC8032Vector(t *testing.T) {
	seed, _ := hex.DecodeString("9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	pub, _ := hex.DecodeString("d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a")
	sig, _ := hex.DecodeString("" +
		"e5564300c360ac729086e2cc806e828a84877f1eb8e5d974d873e06522490155" +
		"5fb8821590a33bacc61e39701cf9b46bd25bf5f0595bbe24655141438e7a100b")

	secret, err := ParseSecretKey(seed)
	if err != nil {
		t.Fatalf("failed to parse seed: %v", err)
	}
	if have := secret.PublicKey().Marshal(); !bytes.Equal(have, pub) {
		t.Fatalf("public key mismatch: have %x, want %x", have, pub)
	}
	if have := secret.Sign(nil); !bytes.Equal(have, sig) {
		t.Fatalf("signature mismatch: have %x, want %x", have, sig)
	}
}

// Tests that DER and PEM encodings round trip.
func TestDERPEMCodec(t *testing.T) {
	secret := GenerateKey()

	parsed, err := ParseSecretKeyPEM(secret.MarshalPEM())
	if err != nil {
		t.Fatalf("failed to parse private PEM: %v", err)
	}
	if !bytes.Equal(parsed.Marshal(), secret.Marshal()) {
		t.Fatalf("seed mismatch after PEM roundtrip")
	}
	public, err := ParsePublicKeyPEM(secret.PublicKey().MarshalPEM())
	if err != nil {
		t.Fatalf("failed to parse public PEM: %v", err)
	}
	if !bytes.Equal(public.Marshal(), secret.PublicKey().Marshal()) {
		t.Fatalf("public key mismatch after PEM roundtrip")
	}
}
