// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"errors"
	"testing"
)

// Tests the registry lookups for a sample of every family.
func TestAlgorithmRegistry(t *testing.T) {
	tests := []struct {
		alg    Algorithm
		name   string
		family Family
		key    int
		tag    int
	}{
		{AlgorithmA128GCM, "A128GCM", FamilyAEAD, 128, 128},
		{AlgorithmAESCCM64_64_256, "AES-CCM-64-64-256", FamilyAEAD, 256, 64},
		{AlgorithmChaCha20Poly1305, "ChaCha20/Poly1305", FamilyAEAD, 256, 128},
		{AlgorithmHMAC256_64, "HMAC 256/64", FamilyMAC, 256, 64},
		{AlgorithmAESMAC128_128, "AES-MAC 128/128", FamilyMAC, 128, 128},
		{AlgorithmA192KW, "A192KW", FamilyKeyWrap, 192, 64},
		{AlgorithmDirect, "direct", FamilyDirect, 0, 0},
		{AlgorithmECDHSSHKDF512, "ECDH-SS + HKDF-512", FamilyKeyAgreement, 0, 0},
		{AlgorithmECDHESA256KW, "ECDH-ES + A256KW", FamilyKeyAgreementWrap, 256, 64},
		{AlgorithmES384, "ES384", FamilySignature, 0, 0},
		{AlgorithmMLDSA65, "ML-DSA-65", FamilySignature, 0, 0},
	}
	for _, tt := range tests {
		if have := tt.alg.String(); have != tt.name {
			t.Errorf("%d: name mismatch: have %q, want %q", tt.alg, have, tt.name)
		}
		if have := tt.alg.Family(); have != tt.family {
			t.Errorf("%v: family mismatch: have %v, want %v", tt.alg, have, tt.family)
		}
		if have := tt.alg.KeySize(); have != tt.key {
			t.Errorf("%v: key size mismatch: have %d, want %d", tt.alg, have, tt.key)
		}
		if have := tt.alg.TagSize(); have != tt.tag {
			t.Errorf("%v: tag size mismatch: have %d, want %d", tt.alg, have, tt.tag)
		}
	}
	if have := AlgorithmECDHSSA128KW.keyWrap(); have != AlgorithmA128KW {
		t.Errorf("key wrap of ECDH-SS + A128KW: have %v, want %v", have, AlgorithmA128KW)
	}
	if !AlgorithmECDHSSA192KW.static() || AlgorithmECDHESA192KW.static() {
		t.Errorf("static sender classification is wrong")
	}
	for alg, want := range map[Algorithm]int{
		AlgorithmA256GCM:          12,
		AlgorithmChaCha20Poly1305: 12,
		AlgorithmAESCCM16_64_128:  13,
		AlgorithmAESCCM64_128_256: 7,
		AlgorithmHMAC256:          0,
	} {
		if have := alg.IVSize(); have != want {
			t.Errorf("%v: IV size mismatch: have %d, want %d", alg, have, want)
		}
	}
}

// Tests resolving algorithm header values.
func TestResolveAlgorithm(t *testing.T) {
	if _, err := ResolveAlgorithm(nil, false); !errors.Is(err, ErrNoAlgorithm) {
		t.Fatalf("absent: have %v, want %v", err, ErrNoAlgorithm)
	}
	if _, err := ResolveAlgorithm(int64(-65535), true); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("unknown: have %v, want %v", err, ErrUnknownAlgorithm)
	}
	alg, err := ResolveAlgorithm(int64(-7), true)
	if err != nil || alg != AlgorithmES256 {
		t.Fatalf("ES256: have %v/%v, want %v", alg, err, AlgorithmES256)
	}
	if _, err := ResolveAlgorithm("EdDSA", true); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("text name: have %v, want %v", err, ErrUnknownAlgorithm)
	}
}

// Tests parsing algorithms from names and identifiers.
func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input string
		want  Algorithm
	}{
		{"ES256", AlgorithmES256},
		{"eddsa", AlgorithmEdDSA},
		{"ECDH-ES + HKDF-256", AlgorithmECDHESHKDF256},
		{"-7", AlgorithmES256},
		{"3", AlgorithmA256GCM},
	}
	for _, tt := range tests {
		alg, err := ParseAlgorithm(tt.input)
		if err != nil || alg != tt.want {
			t.Fatalf("%q: have %v/%v, want %v", tt.input, alg, err, tt.want)
		}
	}
	for _, input := range []string{"ES999", "-65535", ""} {
		if _, err := ParseAlgorithm(input); !errors.Is(err, ErrUnknownAlgorithm) {
			t.Fatalf("%q: have %v, want %v", input, err, ErrUnknownAlgorithm)
		}
	}
}
