// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecdsa

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"testing"
)

// Tests that concat signatures survive a DER round trip for every curve size,
// including halves with leading zeroes and with the high bit set.
func TestConcatDERRoundtrip(t *testing.T) {
	for _, size := range []int{32, 48, 66} {
		halves := [][]byte{
			bytes.Repeat([]byte{0x00}, size-1),
			append(make([]byte, size-1), 0x01),
			bytes.Repeat([]byte{0xff}, size),
			append([]byte{0x80}, make([]byte, size-1)...),
			append([]byte{0x00, 0x00, 0x7f}, bytes.Repeat([]byte{0x42}, size-3)...),
		}
		halves[0] = append(halves[0], 0x00) // all zero

		for i, r := range halves {
			for j, s := range halves {
				t.Run(fmt.Sprintf("size %d r %d s %d", size, i, j), func(t *testing.T) {
					sig := append(append([]byte{}, r...), s...)

					der, err := ConcatToDER(sig)
					if err != nil {
						t.Fatalf("failed to convert to DER: %v", err)
					}
					back, err := DERToConcat(der, size)
					if err != nil {
						t.Fatalf("failed to convert to concat: %v", err)
					}
					if !bytes.Equal(back, sig) {
						t.Fatalf("roundtrip mismatch: have %x, want %x", back, sig)
					}
				})
			}
		}
	}
}

// Tests that the DER side of the codec emits minimal signed integers.
func TestConcatToDERMinimal(t *testing.T) {
	tests := []struct {
		concat string
		der    string
	}{
		// r = 1, s = 0x80 needs a sign byte
		{"0001" + "0080", "3007020101020200" + "80"},
		// r = 0x7f, s = 0x0100
		{"007f" + "0100", "300702017f02020100"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			sig, _ := hex.DecodeString(tt.concat)
			der, err := ConcatToDER(sig)
			if err != nil {
				t.Fatalf("expected success, have error: %v", err)
			}
			if have := hex.EncodeToString(der); have != tt.der {
				t.Fatalf("DER mismatch: have %s, want %s", have, tt.der)
			}
		})
	}
}

// Tests that malformed DER inputs are rejected.
func TestDERToConcatRejects(t *testing.T) {
	tests := []string{
		"",                         // empty
		"3106020101020101",         // SET instead of SEQUENCE
		"0201013006020101020101",   // leading INTEGER
		"300602010102010100",       // trailing byte
		"3003020101",               // missing s
		"30060201ff020101",         // negative r
		"3026022101" + repeat("00", 32) + "020101", // r wider than 32 bytes
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			der, _ := hex.DecodeString(tt)
			if _, err := DERToConcat(der, 32); !errors.Is(err, ErrMalformedSignature) {
				t.Fatalf("expected malformed signature error, have %v", err)
			}
		})
	}
}

func repeat(s string, n int) string {
	out := ""
	for range n {
		out += s
	}
	return out
}

// Tests signing and verifying messages on every curve.
func TestSignVerify(t *testing.T) {
	tests := []struct {
		curve Curve
		hash  crypto.Hash
	}{
		{P256, crypto.SHA256},
		{P384, crypto.SHA384},
		{P521, crypto.SHA512},
	}
	for _, tt := range tests {
		t.Run(tt.curve.String(), func(t *testing.T) {
			secret, err := GenerateKey(tt.curve)
			if err != nil {
				t.Fatalf("failed to generate key: %v", err)
			}
			public := secret.PublicKey()

			message := []byte("message to authenticate")
			sig, err := secret.Sign(message, tt.hash)
			if err != nil {
				t.Fatalf("failed to sign message: %v", err)
			}
			if len(sig) != 2*tt.curve.Size() {
				t.Fatalf("signature size mismatch: have %d, want %d", len(sig), 2*tt.curve.Size())
			}
			if err := public.Verify(message, sig, tt.hash); err != nil {
				t.Fatalf("failed to verify message: %v", err)
			}
			if err := public.Verify([]byte("wrong message"), sig, tt.hash); err == nil {
				t.Fatal("expected verification to fail for wrong message")
			}
		})
	}
}

// Tests that a private scalar alone yields the full key pair, and that the
// public point can be rebuilt from both coordinate forms.
func TestParseKeys(t *testing.T) {
	for _, curve := range []Curve{P256, P384, P521} {
		t.Run(curve.String(), func(t *testing.T) {
			secret, err := GenerateKey(curve)
			if err != nil {
				t.Fatalf("failed to generate key: %v", err)
			}
			x, y := secret.PublicKey().Coordinates()

			parsed, err := ParseSecretKey(curve, secret.Marshal())
			if err != nil {
				t.Fatalf("failed to parse private scalar: %v", err)
			}
			px, py := parsed.PublicKey().Coordinates()
			if !bytes.Equal(px, x) || !bytes.Equal(py, y) {
				t.Fatalf("derived public point mismatch")
			}
			full, err := ParsePublicKey(curve, x, y)
			if err != nil {
				t.Fatalf("failed to parse public key: %v", err)
			}
			compressed, err := ParseCompressedPublicKey(curve, x, y[len(y)-1]&1 == 1)
			if err != nil {
				t.Fatalf("failed to parse compressed public key: %v", err)
			}
			if !full.Crypto().Equal(compressed.Crypto()) {
				t.Fatalf("compressed point mismatch")
			}
			// A corrupted y must not land on the curve
			bad := append([]byte{}, y...)
			bad[0] ^= 0x01
			if _, err := ParsePublicKey(curve, x, bad); err == nil {
				t.Fatalf("off-curve point accepted")
			}
			// DER and PEM round trips
			if _, err := ParseSecretKeyPEM(secret.MarshalPEM()); err != nil {
				t.Fatalf("failed to parse private PEM: %v", err)
			}
			if _, err := ParsePublicKeyPEM(full.MarshalPEM()); err != nil {
				t.Fatalf("failed to parse public PEM: %v", err)
			}
		})
	}
}

// Tests that private scalars outside [1, n-1] are rejected instead of
// producing a key at the identity point.
func TestParseSecretKeyRange(t *testing.T) {
	for _, curve := range []Curve{P256, P384, P521} {
		t.Run(curve.String(), func(t *testing.T) {
			order := curve.elliptic().Params().N
			tests := [][]byte{
				{0x00},
				make([]byte, curve.Size()),
				order.FillBytes(make([]byte, curve.Size())),
				new(big.Int).Add(order, big.NewInt(1)).FillBytes(make([]byte, curve.Size())),
			}
			for i, d := range tests {
				if _, err := ParseSecretKey(curve, d); !errors.Is(err, ErrInvalidScalar) {
					t.Errorf("scalar %d: have %v, want %v", i, err, ErrInvalidScalar)
				}
			}
			last := new(big.Int).Sub(order, big.NewInt(1)).FillBytes(make([]byte, curve.Size()))
			secret, err := ParseSecretKey(curve, last)
			if err != nil {
				t.Fatalf("n-1 rejected: %v", err)
			}
			if !bytes.Equal(secret.Marshal(), last) {
				t.Fatalf("scalar mismatch: have %x, want %x", secret.Marshal(), last)
			}
		})
	}
}

// Tests that a random signature of the right size never panics the verifier.
func TestVerifyGarbage(t *testing.T) {
	secret, _ := GenerateKey(P256)
	sig := make([]byte, 64)
	rand.Read(sig)
	if err := secret.PublicKey().Verify([]byte("message"), sig, crypto.SHA256); err == nil {
		t.Fatalf("random signature accepted")
	}
	if err := secret.PublicKey().Verify([]byte("message"), sig[:63], crypto.SHA256); !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("short signature error mismatch: have %v", err)
	}
}
